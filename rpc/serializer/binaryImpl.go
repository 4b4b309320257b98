package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dNet/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and size
func NewBinarySerializer() IMessageSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IMessageSerializer using a custom binary format:
//
//	[0]    MsgType
//	[1]    flags (which of the optional fields follow)
//	[2..]  Sent (8 bytes), From, Body, Err (each 4 byte length + data), in this order
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasSent byte = 1 << 0
	hasFrom byte = 1 << 1
	hasBody byte = 1 << 2
	hasErr  byte = 1 << 3
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IMessageSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, 2, b.sizeBytes(msg))
	result[0] = byte(msg.MsgType)

	var flags byte

	// Handle Sent
	if msg.Sent != 0 {
		flags |= hasSent
		result = binary.BigEndian.AppendUint64(result, uint64(msg.Sent))
	}

	// Handle strings
	for _, field := range []struct {
		flag  byte
		value string
	}{
		{hasFrom, msg.From},
		{hasBody, msg.Body},
		{hasErr, msg.Err},
	} {
		if field.value == "" {
			continue
		}
		flags |= field.flag
		result = binary.BigEndian.AppendUint32(result, uint32(len(field.value)))
		result = append(result, field.value...)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := data[1]
	pos := 2

	// Read Sent
	if flags&hasSent != 0 {
		if len(data) < pos+8 {
			return fmt.Errorf("data too short for sent timestamp")
		}
		msg.Sent = int64(binary.BigEndian.Uint64(data[pos : pos+8]))
		pos += 8
	}

	// Read strings
	for _, field := range []struct {
		flag   byte
		name   string
		target *string
	}{
		{hasFrom, "from", &msg.From},
		{hasBody, "body", &msg.Body},
		{hasErr, "err", &msg.Err},
	} {
		if flags&field.flag == 0 {
			continue
		}
		if len(data) < pos+4 {
			return fmt.Errorf("data too short for %s length", field.name)
		}
		n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if n < 0 || len(data) < pos+n {
			return fmt.Errorf("data too short for %s", field.name)
		}
		*field.target = string(data[pos : pos+n])
		pos += n
	}

	if pos != len(data) {
		return fmt.Errorf("%d trailing bytes after message", len(data)-pos)
	}
	return nil
}

func (b binarySerializerImpl) TextSafe() bool {
	return false
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// sizeBytes calculates the exact size of the serialized message
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := 2
	if msg.Sent != 0 {
		size += 8
	}
	for _, s := range []string{msg.From, msg.Body, msg.Err} {
		if s != "" {
			size += 4 + len(s)
		}
	}
	return size
}
