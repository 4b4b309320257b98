// Package common provides the configuration, logging and message types shared by the dNet
// server, client and command line packages.
//
// The package focuses on:
//   - Configuration structures for servers and clients
//   - Custom logging implementation integrated with the Dragonboat logger facade
//   - The application message of the demo chat protocol used by the dnet CLI
//
// Key Components:
//
//   - ServerConfig / ClientConfig: endpoint, framing (FrameConf), dead peer detection
//     (LivenessConf) and socket options (SocketConf, TCPConf). Both provide a String method
//     for startup logging and conversions into the configs of the lib packages.
//
//   - Logger: CreateLogger and InitLoggers install a custom formatted logger for all dNet
//     packages, which obtain their loggers with logger.GetLogger(name). Output goes to stderr
//     unless redirected with SetLogOutput.
//
//   - Message: the chat, ping/pong and join/leave messages exchanged by dnet serve and
//     dnet connect. Serializers for it live in the serializer package.
package common
