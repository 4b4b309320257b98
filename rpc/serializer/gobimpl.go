package serializer

import (
	"bytes"
	"encoding/gob"
	"github.com/ValentinKolb/dNet/rpc/common"
)

// NewGOBSerializer creates a new serializer using Go's binary gob format
func NewGOBSerializer() IMessageSerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the IMessageSerializer interface using gob encoding.
// Every message is encoded with a fresh encoder, so each frame carries its own type info.
type gobSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IMessageSerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	dec := gob.NewDecoder(bytes.NewReader(b))
	return dec.Decode(msg)
}

func (g gobSerializerImpl) TextSafe() bool {
	return false
}
