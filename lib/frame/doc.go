// Package frame implements the framed I/O channel of dNet.
//
// A Channel wraps one duplex byte Stream (normally a net.Conn, see NewConnStream) and splits the
// inbound bytes into frames terminated by a single delimiter byte (line-feed by default). The
// payload of a frame excludes the delimiter. Outbound payloads are written followed by the
// delimiter. There is no length prefix and no escaping, payloads that may contain the delimiter
// must be encoded by a transform stage first (see package pipeline).
//
// Reading is driven from the outside. Read never blocks: it returns as soon as no byte is
// available, so a single goroutine can drive the reads of many channels. Only the liveness
// probe (Probe) and ReadToN block, both bounded by the caller.
//
// Every transition is published to the registered Listeners:
//
//	read:  DataReadStart -> (DataReadFailed) -> DataReadEnd
//	write: Write(payload) -> (WriteFailed) -> WriteEnd
//	close: CloseStart -> (CloseFailed) -> CloseEnd
//
// Connection resets and end of stream are not failures, they close the channel. Close is
// idempotent, only the first call publishes the close events.
package frame
