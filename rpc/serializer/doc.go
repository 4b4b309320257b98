// Package serializer converts the application messages of the dnet demo protocol to bytes
// and back. The serialized message becomes the payload of one frame.
//
// Key Components:
//
//   - IMessageSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format. Uses a flag byte to encode only the
//     fields that are present, resulting in compact frames.
//
//   - gobSerializerImpl: Implementation using Go's gob encoding. Every frame carries its own
//     type information, which makes it the largest of the three.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, human readable and the default
//     of the CLI.
//
// Framing:
//
//	Frames are delimited by a line-feed. JSON output never contains a raw line-feed (TextSafe
//	reports true). The binary and gob formats may contain any byte, the CLI therefore adds a
//	base64 stage to the pipeline when one of them is selected.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use.
//
// Usage:
//
//	  s, err := serializer.New("binary")
//	  data, err := s.Serialize(message)
//	  // ... send data ...
//	  var receivedMsg common.Message
//	  err = s.Deserialize(receivedData, &receivedMsg)
package serializer
