package stages

import (
	"errors"
	"github.com/ValentinKolb/dNet/lib/pipeline"
	"github.com/klauspost/compress/zstd"
	"sync"
)

// defaultMaxDecodedSize bounds the memory a single inbound frame may decompress to
const defaultMaxDecodedSize = 64 << 20

var errZstdDisabled = errors.New("zstd stage is not enabled")

// Zstd compresses outbound and decompresses inbound data.
// The encoder or decoder is created in OnEnable and released in OnDisable.
type Zstd struct {
	dir   pipeline.Direction
	level zstd.EncoderLevel

	mu  sync.RWMutex
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstd creates a zstd stage for dir with the default compression level
func NewZstd(dir pipeline.Direction) *Zstd {
	return NewZstdLevel(dir, zstd.SpeedDefault)
}

// NewZstdLevel creates a zstd stage for dir with the given compression level
func NewZstdLevel(dir pipeline.Direction, level zstd.EncoderLevel) *Zstd {
	return &Zstd{dir: dir, level: level}
}

func (z *Zstd) Name() string {
	return "zstd/" + z.dir.String()
}

func (z *Zstd) OnEnable() bool {
	z.mu.Lock()
	defer z.mu.Unlock()

	var err error
	if z.dir == pipeline.Out {
		if z.enc == nil {
			z.enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(z.level))
		}
	} else if z.dec == nil {
		z.dec, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(defaultMaxDecodedSize))
	}

	if err != nil {
		pipeline.Logger.Errorf("zstd: failed to create codec: %v", err)
		return false
	}
	return true
}

func (z *Zstd) OnDisable() bool {
	z.mu.Lock()
	defer z.mu.Unlock()

	ok := true
	if z.enc != nil {
		if err := z.enc.Close(); err != nil {
			pipeline.Logger.Errorf("zstd: failed to close encoder: %v", err)
			ok = false
		}
		z.enc = nil
	}
	if z.dec != nil {
		z.dec.Close()
		z.dec = nil
	}
	return ok
}

func (z *Zstd) Process(data []byte) ([]byte, error) {
	z.mu.RLock()
	defer z.mu.RUnlock()

	if z.dir == pipeline.Out {
		if z.enc == nil {
			return nil, errZstdDisabled
		}
		return z.enc.EncodeAll(data, nil), nil
	}

	if z.dec == nil {
		return nil, errZstdDisabled
	}
	return z.dec.DecodeAll(data, nil)
}
