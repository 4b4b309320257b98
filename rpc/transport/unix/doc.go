// Package unix implements unix domain socket connectors for the transport package.
// The server connector removes a stale socket file before listening.
package unix
