// Package rpc bundles the network facing parts of dNet. It builds on the lib packages
// (frame, pipeline, liveness, event) and turns them into servers and clients.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures, logging setup and the Message type of the demo
//     chat protocol.
//
//   - transport: Connector abstractions that open listening sockets and dial endpoints,
//     with implementations for TCP and unix sockets.
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - server: The server facade, its connection registry with the accept and poll loops,
//     and the per peer Connection.
//
//   - client: The client facade that dials a server and exchanges framed messages with it.
package rpc
