// Package transport defines how dNet servers and clients obtain their raw connections.
//
// The server and client facades do not call net.Listen or net.Dial themselves. They are given
// an IServerConnector or IClientConnector, which opens the endpoint and applies socket options
// to every connection. The tcp and unix sub packages provide the implementations, other
// connectors (e.g. a TLS wrapper) can be plugged in the same way.
package transport
