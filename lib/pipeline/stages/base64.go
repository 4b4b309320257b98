package stages

import (
	"encoding/base64"
	"github.com/ValentinKolb/dNet/lib/pipeline"
)

// Base64 encodes outbound data and decodes inbound data with the standard base64 alphabet.
// The encoded form never contains a line-feed, which makes any payload safe to frame.
type Base64 struct {
	dir pipeline.Direction
}

// NewBase64 creates a base64 stage for dir
func NewBase64(dir pipeline.Direction) *Base64 {
	return &Base64{dir: dir}
}

func (b *Base64) Name() string {
	return "base64/" + b.dir.String()
}

func (b *Base64) Process(data []byte) ([]byte, error) {
	enc := base64.StdEncoding
	if b.dir == pipeline.Out {
		out := make([]byte, enc.EncodedLen(len(data)))
		enc.Encode(out, data)
		return out, nil
	}

	out := make([]byte, enc.DecodedLen(len(data)))
	n, err := enc.Decode(out, data)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
