package server

import (
	"context"
	"errors"
	"github.com/ValentinKolb/dNet/lib/frame"
	"github.com/ValentinKolb/dNet/lib/pipeline"
	"github.com/google/uuid"
	"net"
	"sync"
	"time"
)

// FrameHandler processes one received message. payload has already passed the inbound pipeline.
// It runs on the poll goroutine of the server, so it should not block for long.
type FrameHandler func(conn *Connection, payload []byte)

// Connection is one accepted peer of a Server.
//
// A connection removes itself from its registry when its channel closes, no matter whether the
// close was requested locally, by the peer (end of stream, reset) or by the liveness detector.
type Connection struct {
	id       string
	address  string
	conn     net.Conn
	channel  *frame.Channel
	registry *Registry

	closeOnce sync.Once
}

// newConnection wraps an accepted socket and attaches the channel listeners of the registry
func newConnection(r *Registry, raw net.Conn) (*Connection, error) {
	c := &Connection{
		id:       uuid.New().String(),
		address:  raw.RemoteAddr().String(),
		conn:     raw,
		registry: r,
	}

	// Create the framed channel
	stream := r.newStream(raw, r.conf.Frame.PollWindow)
	ch, err := frame.NewChannel(stream, c.handleFrame, r.conf.Frame.ToChannelConfig(c.address))
	if err != nil {
		return nil, err
	}
	c.channel = ch

	// The close listener goes first so the registry is consistent for all later listeners
	ch.RegisterListener(&frame.ListenerFuncs{
		CloseEnd: func(*frame.Channel) { c.finishClose() },
	})
	for _, l := range r.channelListeners.Snapshot() {
		ch.RegisterListener(l)
	}

	return c, nil
}

// ID returns the unique id of the connection
func (c *Connection) ID() string {
	return c.id
}

// Address returns the remote address
func (c *Connection) Address() string {
	return c.address
}

// Channel returns the framed channel of the connection
func (c *Connection) Channel() *frame.Channel {
	return c.channel
}

// Send runs payload through the outbound pipeline and writes it as one frame.
// Write failures are reported to the channel listeners, only pipeline errors are returned.
func (c *Connection) Send(payload []byte) error {
	if c.channel.Closing() {
		return ErrClosed
	}
	data, err := c.registry.pipeline.Process(pipeline.Out, payload)
	if err != nil {
		return err
	}
	c.channel.Write(data)
	return nil
}

// Close closes the connection. It is safe to call Close more than once.
func (c *Connection) Close() error {
	return c.channel.Close()
}

// Closed reports whether the connection is closing or closed
func (c *Connection) Closed() bool {
	return c.channel.Closing()
}

// FlushRead delivers the incomplete frame that is currently buffered
func (c *Connection) FlushRead() {
	c.channel.FlushRead()
}

// ReadToN blocks until n bytes are buffered and delivers them as a frame
func (c *Connection) ReadToN(n int) error {
	return c.channel.ReadToN(n)
}

// LastRead returns the time the last byte was received
func (c *Connection) LastRead() time.Time {
	return c.channel.LastRead()
}

// Probe performs a bounded single byte read, see frame.Channel.Probe
func (c *Connection) Probe(ctx context.Context) error {
	return c.channel.Probe(ctx)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (c *Connection) handleFrame(payload []byte) error {
	data, err := c.registry.pipeline.Process(pipeline.In, payload)
	if err != nil {
		return err
	}
	framesHandled.Inc()
	c.registry.handler(c, data)
	return nil
}

// finishClose runs once after the channel has closed
func (c *Connection) finishClose() {
	c.closeOnce.Do(func() {
		r := c.registry
		r.events.Notify(ConnectionClose, c)

		err := c.conn.Close()
		r.remove(c)

		if err != nil && !errors.Is(err, net.ErrClosed) {
			Logger.Warningf("failed to close connection %s: %v", c.address, err)
			r.events.Notify(ConnectionCloseFailed, c, err)
		}
		r.events.Notify(ConnectionCloseEnd, c)
	})
}
