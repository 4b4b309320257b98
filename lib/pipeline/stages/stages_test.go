package stages

import (
	"bytes"
	"github.com/ValentinKolb/dNet/lib/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

// pair builds a sender and a receiver pipeline from the same stage constructors.
// Out stages are added in order, In stages in reverse order.
func pair(t *testing.T, ctors ...func(pipeline.Direction) pipeline.Stage) (*pipeline.Pipeline, *pipeline.Pipeline) {
	t.Helper()

	sender, receiver := pipeline.New(), pipeline.New()
	for _, ctor := range ctors {
		require.NoError(t, sender.AddLayer(pipeline.Out, ctor(pipeline.Out)))
	}
	for i := len(ctors) - 1; i >= 0; i-- {
		require.NoError(t, receiver.AddLayer(pipeline.In, ctors[i](pipeline.In)))
	}
	require.NoError(t, sender.InitLayers())
	require.NoError(t, receiver.InitLayers())
	t.Cleanup(func() {
		assert.NoError(t, sender.Shutdown())
		assert.NoError(t, receiver.Shutdown())
	})
	return sender, receiver
}

func base64Ctor(dir pipeline.Direction) pipeline.Stage { return NewBase64(dir) }
func zstdCtor(dir pipeline.Direction) pipeline.Stage   { return NewZstd(dir) }

func sealCtor(key []byte) func(pipeline.Direction) pipeline.Stage {
	return func(dir pipeline.Direction) pipeline.Stage { return NewSeal(dir, key) }
}

func roundTrip(t *testing.T, sender, receiver *pipeline.Pipeline, payload []byte) []byte {
	t.Helper()
	wire, err := sender.Process(pipeline.Out, payload)
	require.NoError(t, err)
	assert.NotContains(t, string(wire), "\n")
	out, err := receiver.Process(pipeline.In, wire)
	require.NoError(t, err)
	return out
}

func TestBase64RoundTrip(t *testing.T) {
	sender, receiver := pair(t, base64Ctor)
	payload := []byte("binary\n\x00\xffdata")
	assert.Equal(t, payload, roundTrip(t, sender, receiver, payload))
}

func TestBase64RejectsGarbage(t *testing.T) {
	_, err := NewBase64(pipeline.In).Process([]byte("not base64!"))
	assert.Error(t, err)
}

func TestZstdRoundTrip(t *testing.T) {
	sender, receiver := pair(t, zstdCtor, base64Ctor)
	payload := bytes.Repeat([]byte("compress me "), 200)

	wire, err := sender.Process(pipeline.Out, payload)
	require.NoError(t, err)
	assert.Less(t, len(wire), len(payload))

	out, err := receiver.Process(pipeline.In, wire)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestZstdRequiresEnable(t *testing.T) {
	z := NewZstd(pipeline.Out)
	_, err := z.Process([]byte("x"))
	assert.Error(t, err)

	require.True(t, z.OnEnable())
	_, err = z.Process([]byte("x"))
	assert.NoError(t, err)
	assert.True(t, z.OnDisable())
}

func TestSealRoundTrip(t *testing.T) {
	key, err := DeriveKey("correct horse battery staple")
	require.NoError(t, err)
	require.Len(t, key, KeySize)

	sender, receiver := pair(t, zstdCtor, sealCtor(key), base64Ctor)
	payload := []byte("secret message")
	assert.Equal(t, payload, roundTrip(t, sender, receiver, payload))
}

func TestSealNoncesDiffer(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)
	s := NewSeal(pipeline.Out, key)
	require.True(t, s.OnEnable())

	a, err := s.Process([]byte("same"))
	require.NoError(t, err)
	b, err := s.Process([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealRejectsWrongKey(t *testing.T) {
	key := bytes.Repeat([]byte{1}, KeySize)
	other := bytes.Repeat([]byte{2}, KeySize)

	out := NewSeal(pipeline.Out, key)
	in := NewSeal(pipeline.In, other)
	require.True(t, out.OnEnable())
	require.True(t, in.OnEnable())

	sealed, err := out.Process([]byte("x"))
	require.NoError(t, err)
	_, err = in.Process(sealed)
	assert.Error(t, err)

	_, err = in.Process([]byte("short"))
	assert.Error(t, err)
}

func TestSealBadKeySizeFailsInit(t *testing.T) {
	p := pipeline.New()
	require.NoError(t, p.AddLayer(pipeline.Out, NewSeal(pipeline.Out, []byte("too short"))))

	err := p.InitLayers()

	var initErr *pipeline.LayerInitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "seal/out", initErr.Stage)
}
