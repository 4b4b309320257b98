// Package server implements the server side of dNet: a listening socket, a registry of accepted
// connections and the loops that drive them.
//
// Key Components:
//
//   - Server: Facade that owns the stage pipeline, the liveness detector and the registry.
//     Start opens everything, Close releases it again.
//
//   - Registry: Holds the live connections in a concurrent map. One goroutine accepts new peers,
//     a second goroutine polls all connections for input, so no connection gets its own
//     blocking reader.
//
//   - Connection: One accepted peer wrapped in a frame.Channel. A connection removes itself
//     from the registry when its channel closes.
//
//   - Listener: Observer interface for lifecycle events (start, accept, close, ...). Embed
//     NopListener or use ListenerFunc to receive a subset.
//
// Usage Example:
//
//	s := server.NewServer(common.DefaultServerConfig(), tcp.NewServerConnector(),
//	  func(c *server.Connection, payload []byte) {
//	    if string(payload) == "PING" {
//	      _ = c.Send([]byte("PONG"))
//	    }
//	  })
//
//	if err := s.Start(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//	defer s.Close()
//
// Thread Safety:
//
//	All exported methods are safe for concurrent use. Frame handlers run on the poll
//	goroutine and must not call Server.Close.
package server
