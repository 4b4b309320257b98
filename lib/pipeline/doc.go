// Package pipeline implements the bidirectional data transform pipeline.
//
// A Pipeline holds two ordered stage sequences: In for received frames and Out for payloads
// that are about to be written. Process runs the data through every stage of one direction in
// registration order, each stage receiving the output of the previous one. Order matters:
// stages [f, g] turn b into g(f(b)).
//
// Stages may implement Enabler and Disabler. InitLayers enables all stages (In first, then Out)
// and fails fast with a *LayerInitError naming the stage that refused. Shutdown is the
// symmetric teardown and fails with a *LayerDisableError. The server and client facades treat
// both errors as fatal for Start and Close.
//
// Bundled stages (base64, zstd compression, XChaCha20-Poly1305 sealing) live in the stages
// sub package.
package pipeline
