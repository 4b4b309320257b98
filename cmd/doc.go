// Package cmd implements the command-line interface of dNet. It provides a small chat demo
// that exercises the server and client packages end to end.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a dNet server speaking the demo protocol (ping/pong, chat broadcast,
//     join and leave announcements)
//   - connect: Connects to a server, sends stdin lines as chat messages and prints what arrives
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dnet -help for a list of all commands.
package cmd
