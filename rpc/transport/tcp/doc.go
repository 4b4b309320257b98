// Package tcp implements the TCP connectors of the transport package.
//
// Key Components:
//
//   - serverConnector: listens on a host:port endpoint (NewServerConnector)
//
//   - clientConnector: dials a host:port endpoint with a timeout (NewClientConnector)
//
// Both apply the same socket options to their connections: TCP_NODELAY, read and write
// buffer sizes, keep-alive period and linger.
package tcp
