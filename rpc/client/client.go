package client

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dNet/lib/event"
	"github.com/ValentinKolb/dNet/lib/frame"
	"github.com/ValentinKolb/dNet/lib/liveness"
	"github.com/ValentinKolb/dNet/lib/pipeline"
	"github.com/ValentinKolb/dNet/lib/util"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/someonegg/gox/syncx"
	"go.uber.org/multierr"
	"net"
	"sync"
	"sync/atomic"
)

var Logger = logger.GetLogger("client")

var (
	ErrNotConnected     = errors.New("client: not connected")
	ErrAlreadyConnected = errors.New("client: already connected")
)

// FrameHandler receives one message after the inbound pipeline
type FrameHandler func(payload []byte)

// session holds everything that belongs to one connection of the client
type session struct {
	conn     net.Conn
	channel  *frame.Channel
	detector *liveness.Detector
	stop     chan struct{}
	readD    syncx.DoneChan

	dispatching atomic.Bool // set while the frame handler runs on the read goroutine
}

// Client connects to a dNet server and exchanges framed messages with it.
// A client can be connected again after it was closed.
type Client struct {
	conf      common.ClientConfig
	connector transport.IClientConnector
	handler   FrameHandler

	events           *event.Dispatcher[EventKind, Listener]
	pipeline         *pipeline.Pipeline
	channelListeners *util.COWList[frame.Listener]

	connectMu sync.Mutex // serializes Connect
	mu        sync.Mutex // guards current
	current   *session
}

// NewClient creates a client. Nothing is opened before Connect.
func NewClient(conf common.ClientConfig, connector transport.IClientConnector, handler FrameHandler) *Client {
	if handler == nil {
		handler = func([]byte) {}
	}
	return &Client{
		conf:             conf,
		connector:        connector,
		handler:          handler,
		events:           newDispatcher(),
		pipeline:         pipeline.New(),
		channelListeners: util.NewCOWList[frame.Listener](),
	}
}

// Pipeline returns the stage pipeline of the client
func (c *Client) Pipeline() *pipeline.Pipeline {
	return c.pipeline
}

// IsConnected reports whether the client has an open channel
func (c *Client) IsConnected() bool {
	s := c.session()
	return s != nil && !s.channel.Closing()
}

// Channel returns the current channel, nil if not connected
func (c *Client) Channel() *frame.Channel {
	if s := c.session(); s != nil {
		return s.channel
	}
	return nil
}

// LocalAddr returns the local address of the current connection, nil if not connected
func (c *Client) LocalAddr() net.Addr {
	if s := c.session(); s != nil {
		return s.conn.LocalAddr()
	}
	return nil
}

// --------------------------------------------------------------------------
// Listener management
// --------------------------------------------------------------------------

// RegisterListener adds a client listener
func (c *Client) RegisterListener(l Listener) {
	c.events.Register(l)
}

// RemoveListener removes a client listener by identity
func (c *Client) RemoveListener(l Listener) bool {
	return c.events.Remove(l)
}

// RegisterChannelListener adds a channel listener to the current and all future channels
func (c *Client) RegisterChannelListener(l frame.Listener) {
	c.channelListeners.Append(l)
	if s := c.session(); s != nil {
		s.channel.RegisterListener(l)
	}
}

// RemoveChannelListener removes l from the current and all future channels
func (c *Client) RemoveChannelListener(l frame.Listener) bool {
	removed := c.channelListeners.Remove(l)
	if s := c.session(); s != nil {
		removed = s.channel.RemoveListener(l) || removed
	}
	return removed
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Connect dials the configured endpoint, enables the pipeline and starts reading.
// Failures are published as ConnectionFailed and returned.
func (c *Client) Connect() error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.session() != nil {
		return ErrAlreadyConnected
	}

	c.events.Notify(Connection)

	s, err := c.open()
	if err != nil {
		Logger.Warningf("failed to connect to %s: %v", c.conf.Endpoint, err)
		c.events.Notify(ConnectionFailed, err)
		return err
	}

	c.mu.Lock()
	c.current = s
	c.mu.Unlock()
	go c.readLoop(s)

	// the channel may have closed before the session was published
	if s.channel.Closing() {
		go c.closeSession(s)
	}

	Logger.Infof("connected to %s (%s)", c.conf.Endpoint, c.connector.GetName())
	c.events.Notify(ConnectionSuccess)
	return nil
}

// open creates a new session, releasing everything again on failure
func (c *Client) open() (*session, error) {
	conn, err := c.connector.Connect(c.conf.Endpoint, c.conf.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}
	if err = c.connector.UpgradeConnection(conn, c.conf.Socket, c.conf.TCP); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	s := &session{
		conn:  conn,
		stop:  make(chan struct{}),
		readD: syncx.NewDoneChan(),
	}

	stream := frame.NewConnStream(conn, c.conf.Frame.PollWindow)
	ch, err := frame.NewChannel(stream, func(payload []byte) error {
		return c.handleFrame(s, payload)
	}, c.conf.Frame.ToChannelConfig(c.conf.Endpoint))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.channel = ch

	// the client closes itself once the channel is gone, e.g. when the server hangs up
	ch.RegisterListener(&frame.ListenerFuncs{
		CloseEnd: func(*frame.Channel) { go c.closeSession(s) },
	})
	for _, l := range c.channelListeners.Snapshot() {
		ch.RegisterListener(l)
	}

	if err = c.pipeline.InitLayers(); err != nil {
		_ = c.pipeline.Shutdown()
		_ = conn.Close()
		return nil, err
	}

	if !c.conf.Liveness.Disabled {
		s.detector = liveness.NewDetector(c.conf.Liveness.ToDetectorConfig(), func() []liveness.Target {
			return []liveness.Target{ch}
		})
		if err = s.detector.Start(context.Background()); err != nil {
			_ = c.pipeline.Shutdown()
			_ = conn.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the connection and disables the pipeline. It is safe to call Close on a client
// that is not connected, or more than once.
//
// Close may be called from the frame handler. In that case it returns once the channel is
// closed; the socket and the pipeline are released (and CloseSuccess or CloseFailed is
// published) as soon as the handler returns.
func (c *Client) Close() error {
	s := c.session()
	if s == nil {
		return nil
	}
	return c.closeSession(s)
}

// closeSession closes s if it is still the current session
func (c *Client) closeSession(s *session) error {
	c.mu.Lock()
	if c.current != s {
		c.mu.Unlock()
		return nil
	}
	c.current = nil
	c.mu.Unlock()

	c.events.Notify(Close)

	close(s.stop)

	// The frame handler runs on the read goroutine or on a liveness probe. Neither can
	// finish while the handler waits for it, so the rest of the close runs asynchronously.
	if s.dispatching.Load() {
		err := s.channel.Close()
		go func() {
			_ = c.finishClose(s, err)
		}()
		return err
	}

	if s.detector != nil {
		s.detector.Stop()
	}
	return c.finishClose(s, s.channel.Close())
}

// finishClose waits for the goroutines of s and releases the socket and the pipeline
func (c *Client) finishClose(s *session, err error) error {
	if s.detector != nil {
		s.detector.Stop()
	}
	<-s.readD

	if connErr := s.conn.Close(); connErr != nil && !errors.Is(connErr, net.ErrClosed) {
		err = multierr.Append(err, connErr)
	}
	err = multierr.Append(err, c.pipeline.Shutdown())

	if err != nil {
		Logger.Warningf("failed to close client: %v", err)
		c.events.Notify(CloseFailed, err)
		return err
	}
	c.events.Notify(CloseSuccess)
	return nil
}

// --------------------------------------------------------------------------
// Data
// --------------------------------------------------------------------------

// Send runs payload through the outbound pipeline and writes it as one frame.
// Write failures are published on the channel, only pipeline errors are returned.
func (c *Client) Send(payload []byte) error {
	s := c.session()
	if s == nil || s.channel.Closing() {
		return ErrNotConnected
	}
	data, err := c.pipeline.Process(pipeline.Out, payload)
	if err != nil {
		return err
	}
	s.channel.Write(data)
	return nil
}

func (c *Client) handleFrame(s *session, payload []byte) error {
	data, err := c.pipeline.Process(pipeline.In, payload)
	if err != nil {
		return err
	}
	s.dispatching.Store(true)
	defer s.dispatching.Store(false)
	c.handler(data)
	return nil
}

// readLoop drives the reads of one session until it is stopped or the channel closes
func (c *Client) readLoop(s *session) {
	defer s.readD.SetDone()
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		if s.channel.Closing() {
			return
		}
		s.channel.Read()
	}
}

func (c *Client) session() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
