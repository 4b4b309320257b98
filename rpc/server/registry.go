package server

import (
	"errors"
	"github.com/ValentinKolb/dNet/lib/frame"
	"github.com/ValentinKolb/dNet/lib/pipeline"
	"github.com/ValentinKolb/dNet/lib/util"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/someonegg/gox/syncx"
	"net"
	"sync/atomic"
	"time"
)

const (
	// acceptBackoff is the pause after a failed accept
	acceptBackoff = 50 * time.Millisecond
	// idleWait is the pause of the poll loop while no connection is registered
	idleWait = time.Millisecond
)

// deadliner is implemented by listeners that support accept deadlines (tcp and unix)
type deadliner interface {
	SetDeadline(t time.Time) error
}

// streamFactory wraps an accepted socket into the byte stream of its channel
type streamFactory func(conn net.Conn, pollWindow time.Duration) frame.Stream

// Registry owns the listening socket and all accepted connections of a server.
// It runs two goroutines: one accepting connections and one polling all connections for input.
type Registry struct {
	conf      common.ServerConfig
	connector transport.IServerConnector
	listener  net.Listener

	connections *xsync.MapOf[string, *Connection]

	events           *dispatcher
	pipeline         *pipeline.Pipeline
	channelListeners *util.COWList[frame.Listener]
	handler          FrameHandler
	newStream        streamFactory

	started atomic.Bool
	closing atomic.Bool
	stop    chan struct{}
	acceptD syncx.DoneChan
	pollD   syncx.DoneChan
}

func newRegistry(s *Server) *Registry {
	return &Registry{
		conf:             s.conf,
		connector:        s.connector,
		connections:      xsync.NewMapOf[string, *Connection](),
		events:           s.events,
		pipeline:         s.pipeline,
		channelListeners: s.channelListeners,
		handler:          s.handler,
		newStream:        s.newStream,
		stop:             make(chan struct{}),
		acceptD:          syncx.NewDoneChan(),
		pollD:            syncx.NewDoneChan(),
	}
}

// start takes ownership of listener and launches the accept and poll loops
func (r *Registry) start(listener net.Listener) {
	r.listener = listener
	r.started.Store(true)
	go r.acceptLoop()
	go r.pollLoop()
}

// --------------------------------------------------------------------------
// Lookup
// --------------------------------------------------------------------------

// Get returns the connection with the given id
func (r *Registry) Get(id string) (*Connection, bool) {
	return r.connections.Load(id)
}

// GetByAddress returns the connection whose remote address equals address
func (r *Registry) GetByAddress(address string) (*Connection, bool) {
	var found *Connection
	r.connections.Range(func(_ string, c *Connection) bool {
		if c.address == address {
			found = c
			return false
		}
		return true
	})
	return found, found != nil
}

// Connections returns a snapshot of all registered connections
func (r *Registry) Connections() []*Connection {
	out := make([]*Connection, 0, r.connections.Size())
	r.connections.Range(func(_ string, c *Connection) bool {
		out = append(out, c)
		return true
	})
	return out
}

// Len returns the number of registered connections
func (r *Registry) Len() int {
	return r.connections.Size()
}

func (r *Registry) remove(c *Connection) {
	if _, ok := r.connections.LoadAndDelete(c.id); ok {
		activeConnections.Add(-1)
		connectionsClosed.Inc()
	}
}

// --------------------------------------------------------------------------
// Loops
// --------------------------------------------------------------------------

func (r *Registry) acceptLoop() {
	defer r.acceptD.SetDone()

	r.events.Notify(AcceptStart)
	defer r.events.Notify(AcceptEnd)

	dl, canDeadline := r.listener.(deadliner)

	for {
		if r.closing.Load() {
			return
		}
		if canDeadline && r.conf.AcceptTimeout > 0 {
			_ = dl.SetDeadline(time.Now().Add(r.conf.AcceptTimeout))
		}

		raw, err := r.listener.Accept()
		if err != nil {
			switch {
			case r.closing.Load():
				return
			case frame.IsTimeout(err):
				continue
			case errors.Is(err, net.ErrClosed):
				Logger.Warningf("listening socket closed: %v", err)
				r.events.Notify(SocketClosed, err, r.listener.Addr().String())
				return
			default:
				Logger.Errorf("accept failed: %v", err)
				acceptFailures.Inc()
				r.events.Notify(AcceptFailed, err)
				select {
				case <-r.stop:
					return
				case <-time.After(acceptBackoff):
				}
				continue
			}
		}

		r.register(raw)
	}
}

// register upgrades and registers a freshly accepted socket
func (r *Registry) register(raw net.Conn) {
	if err := r.connector.UpgradeConnection(raw, r.conf.Socket, r.conf.TCP); err != nil {
		Logger.Warningf("failed to upgrade connection %s: %v", raw.RemoteAddr(), err)
		_ = raw.Close()
		r.events.Notify(ConnectionInitFailed, err)
		return
	}

	c, err := newConnection(r, raw)
	if err != nil {
		_ = raw.Close()
		r.events.Notify(ConnectionInitFailed, err)
		return
	}

	r.connections.Store(c.id, c)
	activeConnections.Add(1)
	connectionsAccepted.Inc()
	Logger.Debugf("accepted connection %s", c.address)
	r.events.Notify(Accept, c)

	// Close may have run its sweep before the store above
	if r.closing.Load() {
		_ = c.Close()
	}
}

func (r *Registry) pollLoop() {
	defer r.pollD.SetDone()

	for {
		select {
		case <-r.stop:
			return
		default:
		}

		if r.connections.Size() == 0 {
			select {
			case <-r.stop:
				return
			case <-time.After(idleWait):
			}
			continue
		}

		r.connections.Range(func(_ string, c *Connection) bool {
			if r.closing.Load() {
				return false
			}
			c.channel.Read()
			return true
		})
	}
}

// --------------------------------------------------------------------------
// Close
// --------------------------------------------------------------------------

// Close stops both loops, closes the listening socket and then every connection.
// It must not be called from a frame handler since it waits for the poll loop to return.
func (r *Registry) Close() error {
	if !r.closing.CompareAndSwap(false, true) {
		return nil
	}
	close(r.stop)

	var err error
	if r.listener != nil {
		if lErr := r.listener.Close(); lErr != nil && !errors.Is(lErr, net.ErrClosed) {
			err = lErr
		}
	}

	if r.started.Load() {
		<-r.acceptD
		<-r.pollD
	}

	r.connections.Range(func(_ string, c *Connection) bool {
		_ = c.Close()
		return true
	})
	return err
}
