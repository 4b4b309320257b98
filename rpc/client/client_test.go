package client

import (
	"github.com/ValentinKolb/dNet/lib/frame"
	"github.com/ValentinKolb/dNet/lib/pipeline"
	"github.com/ValentinKolb/dNet/lib/pipeline/stages"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/server"
	"github.com/ValentinKolb/dNet/rpc/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func startPongServer(t *testing.T) *server.Server {
	t.Helper()
	conf := common.DefaultServerConfig()
	conf.Endpoint = "127.0.0.1:0"
	conf.AcceptTimeout = 50 * time.Millisecond
	conf.Liveness.Disabled = true

	s := server.NewServer(conf, tcp.NewServerConnector(), func(c *server.Connection, payload []byte) {
		if string(payload) == "PING" {
			_ = c.Send([]byte("PONG"))
		}
	})
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func clientConfig(s *server.Server) common.ClientConfig {
	conf := common.DefaultClientConfig()
	conf.Endpoint = s.Addr().String()
	conf.DialTimeout = time.Second
	conf.Liveness.Disabled = true
	return conf
}

type inbox struct {
	ch chan string
}

func newInbox() *inbox {
	return &inbox{ch: make(chan string, 16)}
}

func (i *inbox) handle(payload []byte) {
	i.ch <- string(payload)
}

func (i *inbox) next(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-i.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return ""
	}
}

type recorder struct {
	mu    sync.Mutex
	kinds []EventKind
}

//go:noinline
func (r *recorder) listener() *ListenerFunc {
	f := ListenerFunc(func(kind EventKind, _ []any) {
		r.mu.Lock()
		r.kinds = append(r.kinds, kind)
		r.mu.Unlock()
	})
	return &f
}

func (r *recorder) get() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventKind(nil), r.kinds...)
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestPingPong(t *testing.T) {
	s := startPongServer(t)
	in := newInbox()

	c := NewClient(clientConfig(s), tcp.NewClientConnector(), in.handle)
	require.NoError(t, c.Connect())
	defer c.Close()

	assert.True(t, c.IsConnected())
	require.NoError(t, c.Send([]byte("PING")))
	assert.Equal(t, "PONG", in.next(t))
}

func TestServerLocatesClientByAddress(t *testing.T) {
	s := startPongServer(t)
	in := newInbox()

	c := NewClient(clientConfig(s), tcp.NewClientConnector(), in.handle)
	require.NoError(t, c.Connect())
	defer c.Close()

	address := c.LocalAddr().String()
	require.Eventually(t, func() bool {
		_, ok := s.GetByAddress(address)
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Send(address, []byte("hello")))
	assert.Equal(t, "hello", in.next(t))
}

func TestSendWhileDisconnected(t *testing.T) {
	c := NewClient(common.DefaultClientConfig(), tcp.NewClientConnector(), nil)
	assert.ErrorIs(t, c.Send([]byte("x")), ErrNotConnected)
	assert.False(t, c.IsConnected())
	assert.NoError(t, c.Close())
}

func TestConnectFailure(t *testing.T) {
	rec := &recorder{}
	conf := common.DefaultClientConfig()
	conf.Endpoint = "127.0.0.1:1"
	conf.DialTimeout = 500 * time.Millisecond

	c := NewClient(conf, tcp.NewClientConnector(), nil)
	c.RegisterListener(rec.listener())

	assert.Error(t, c.Connect())
	assert.Equal(t, []EventKind{Connection, ConnectionFailed}, rec.get())
	assert.False(t, c.IsConnected())
}

func TestCloseIsIdempotent(t *testing.T) {
	s := startPongServer(t)
	rec := &recorder{}

	c := NewClient(clientConfig(s), tcp.NewClientConnector(), nil)
	c.RegisterListener(rec.listener())
	require.NoError(t, c.Connect())
	assert.ErrorIs(t, c.Connect(), ErrAlreadyConnected)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, []EventKind{Connection, ConnectionSuccess, Close, CloseSuccess}, rec.get())
	assert.ErrorIs(t, c.Send([]byte("x")), ErrNotConnected)
}

func TestClientClosesWhenServerCloses(t *testing.T) {
	s := startPongServer(t)
	rec := &recorder{}

	c := NewClient(clientConfig(s), tcp.NewClientConnector(), nil)
	c.RegisterListener(rec.listener())
	require.NoError(t, c.Connect())

	require.NoError(t, s.Close())

	require.Eventually(t, func() bool { return !c.IsConnected() }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		kinds := rec.get()
		return len(kinds) > 0 && kinds[len(kinds)-1] == CloseSuccess
	}, 2*time.Second, 5*time.Millisecond)
}

func TestReconnect(t *testing.T) {
	s := startPongServer(t)
	in := newInbox()

	c := NewClient(clientConfig(s), tcp.NewClientConnector(), in.handle)
	require.NoError(t, c.Connect())
	require.NoError(t, c.Close())

	require.NoError(t, c.Connect())
	defer c.Close()
	require.NoError(t, c.Send([]byte("PING")))
	assert.Equal(t, "PONG", in.next(t))
}

func TestChannelListenerOnLiveChannel(t *testing.T) {
	s := startPongServer(t)

	c := NewClient(clientConfig(s), tcp.NewClientConnector(), nil)
	require.NoError(t, c.Connect())
	defer c.Close()

	writes := make(chan []byte, 1)
	l := &frame.ListenerFuncs{Write: func(_ *frame.Channel, payload []byte) { writes <- payload }}
	c.RegisterChannelListener(l)

	require.NoError(t, c.Send([]byte("PING")))
	select {
	case payload := <-writes:
		assert.Equal(t, "PING", string(payload))
	case <-time.After(time.Second):
		t.Fatal("write not observed")
	}

	assert.True(t, c.RemoveChannelListener(l))
}

func TestPipelineRoundTripThroughServer(t *testing.T) {
	conf := common.DefaultServerConfig()
	conf.Endpoint = "127.0.0.1:0"
	conf.Liveness.Disabled = true

	s := server.NewServer(conf, tcp.NewServerConnector(), func(c *server.Connection, payload []byte) {
		_ = c.Send(payload)
	})
	require.NoError(t, s.Pipeline().AddLayer(pipeline.In, stages.NewBase64(pipeline.In)))
	require.NoError(t, s.Pipeline().AddLayer(pipeline.Out, stages.NewBase64(pipeline.Out)))
	require.NoError(t, s.Start())
	defer s.Close()

	in := newInbox()
	c := NewClient(clientConfig(s), tcp.NewClientConnector(), in.handle)
	require.NoError(t, c.Pipeline().AddLayer(pipeline.Out, stages.NewZstd(pipeline.Out)))
	require.NoError(t, c.Pipeline().AddLayer(pipeline.Out, stages.NewBase64(pipeline.Out)))
	require.NoError(t, c.Pipeline().AddLayer(pipeline.In, stages.NewBase64(pipeline.In)))
	require.NoError(t, c.Pipeline().AddLayer(pipeline.In, stages.NewZstd(pipeline.In)))
	require.NoError(t, c.Connect())
	defer c.Close()

	// binary payload containing the delimiter
	require.NoError(t, c.Send([]byte("line one\nline two")))
	assert.Equal(t, "line one\nline two", in.next(t))
}

func TestRemoveListenerKeepsOtherListeners(t *testing.T) {
	s := startPongServer(t)
	kept, removed := &recorder{}, &recorder{}

	c := NewClient(clientConfig(s), tcp.NewClientConnector(), nil)
	c.RegisterListener(kept.listener())
	l := removed.listener()
	c.RegisterListener(l)

	assert.True(t, c.RemoveListener(l))
	assert.False(t, c.RemoveListener(l))

	require.NoError(t, c.Connect())
	require.NoError(t, c.Close())

	assert.Equal(t, []EventKind{Connection, ConnectionSuccess, Close, CloseSuccess}, kept.get())
	assert.Empty(t, removed.get())
}

func TestCloseFromFrameHandler(t *testing.T) {
	s := startPongServer(t)
	rec := &recorder{}
	done := make(chan error, 1)

	var c *Client
	c = NewClient(clientConfig(s), tcp.NewClientConnector(), func([]byte) {
		done <- c.Close()
	})
	c.RegisterListener(rec.listener())
	require.NoError(t, c.Connect())
	require.NoError(t, c.Send([]byte("PING")))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Close called from the frame handler did not return")
	}

	assert.False(t, c.IsConnected())
	require.Eventually(t, func() bool {
		kinds := rec.get()
		return len(kinds) > 0 && kinds[len(kinds)-1] == CloseSuccess
	}, 2*time.Second, 5*time.Millisecond)

	// the client is usable again afterwards
	require.NoError(t, c.Connect())
	assert.NoError(t, c.Close())
}
