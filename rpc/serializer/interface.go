package serializer

import (
	"fmt"
	"github.com/ValentinKolb/dNet/rpc/common"
)

// IMessageSerializer is the interface for all Message serializers
type IMessageSerializer interface {
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message
	// It takes a byte array and a pointer to a Message as parameters
	// It returns an error if any
	Deserialize(b []byte, msg *common.Message) error
	// TextSafe reports whether the serialized form never contains a line-feed.
	// Serializers that are not text safe need a base64 stage in the pipeline.
	TextSafe() bool
}

// New creates a serializer by name (json, gob, binary)
func New(name string) (IMessageSerializer, error) {
	switch name {
	case "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	case "binary":
		return NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", name)
	}
}
