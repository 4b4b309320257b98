// Package client implements the client side of dNet.
//
// A Client dials a server through a transport.IClientConnector, wraps the connection in a
// frame.Channel and drives its reads from a single goroutine. Outbound messages pass the
// pipeline in the Out direction, inbound frames pass it in the In direction before they reach
// the FrameHandler. A liveness detector probes the connection when it stays silent.
//
// Usage Example:
//
//	c := client.NewClient(common.DefaultClientConfig(), tcp.NewClientConnector(),
//	  func(payload []byte) { fmt.Println(string(payload)) })
//
//	if err := c.Connect(); err != nil {
//	  log.Fatalf("Client error: %v", err)
//	}
//	defer c.Close()
//
//	_ = c.Send([]byte("PING"))
//
// The client closes itself when the server closes the connection. Listeners receive Close
// followed by CloseSuccess or CloseFailed in that case as well.
package client
