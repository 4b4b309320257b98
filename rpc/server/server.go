package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dNet/lib/frame"
	"github.com/ValentinKolb/dNet/lib/liveness"
	"github.com/ValentinKolb/dNet/lib/pipeline"
	"github.com/ValentinKolb/dNet/lib/util"
	"github.com/ValentinKolb/dNet/rpc/common"
	"github.com/ValentinKolb/dNet/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"go.uber.org/multierr"
	"net"
	"sync"
)

var Logger = logger.GetLogger("server")

var (
	ErrClosed             = errors.New("server: closed")
	ErrNotStarted         = errors.New("server: not started")
	ErrAlreadyStarted     = errors.New("server: already started")
	ErrConnectionNotFound = errors.New("server: connection not found")
)

// Server accepts connections, reads frames from all of them on a single poll goroutine and
// hands every frame (after the inbound pipeline) to the frame handler.
//
// Usage:
//
//	s := server.NewServer(
//		common.DefaultServerConfig(),
//		tcp.NewServerConnector(),
//		func(c *server.Connection, payload []byte) { _ = c.Send(payload) },
//	)
//
//	if err := s.Start(); err != nil {
//		panic(err)
//	}
//	defer s.Close()
type Server struct {
	conf      common.ServerConfig
	connector transport.IServerConnector
	handler   FrameHandler

	events           *dispatcher
	pipeline         *pipeline.Pipeline
	channelListeners *util.COWList[frame.Listener]
	newStream        streamFactory

	mu       sync.Mutex // guards the fields below
	started  bool
	closed   bool
	registry *Registry
	detector *liveness.Detector
}

// NewServer creates a server. Nothing is opened before Start.
func NewServer(conf common.ServerConfig, connector transport.IServerConnector, handler FrameHandler) *Server {
	if handler == nil {
		handler = func(*Connection, []byte) {}
	}
	return &Server{
		conf:             conf,
		connector:        connector,
		handler:          handler,
		events:           newDispatcher(),
		pipeline:         pipeline.New(),
		channelListeners: util.NewCOWList[frame.Listener](),
		newStream:        frame.NewConnStream,
	}
}

// Pipeline returns the stage pipeline shared by all connections
func (s *Server) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// Config returns the server configuration
func (s *Server) Config() common.ServerConfig {
	return s.conf
}

// Addr returns the address of the listening socket, nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry == nil || s.registry.listener == nil {
		return nil
	}
	return s.registry.listener.Addr()
}

// Detector returns the liveness detector, nil before Start or if liveness is disabled
func (s *Server) Detector() *liveness.Detector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detector
}

// Connections returns a snapshot of the open connections
func (s *Server) Connections() []*Connection {
	if r := s.currentRegistry(); r != nil {
		return r.Connections()
	}
	return nil
}

// GetByAddress returns the connection with the given remote address
func (s *Server) GetByAddress(address string) (*Connection, bool) {
	if r := s.currentRegistry(); r != nil {
		return r.GetByAddress(address)
	}
	return nil, false
}

// --------------------------------------------------------------------------
// Listener management
// --------------------------------------------------------------------------

// RegisterListener adds a server listener
func (s *Server) RegisterListener(l Listener) {
	s.events.Register(l)
}

// RemoveListener removes a server listener by identity
func (s *Server) RemoveListener(l Listener) bool {
	return s.events.Remove(l)
}

// RegisterChannelListener adds a listener that is attached to every connection accepted
// afterwards. Connections that are already open are not affected.
func (s *Server) RegisterChannelListener(l frame.Listener) {
	s.channelListeners.Append(l)
}

// RemoveChannelListener stops attaching l to new connections
func (s *Server) RemoveChannelListener(l frame.Listener) bool {
	return s.channelListeners.Remove(l)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Start opens the listening socket, starts the liveness detector, enables all pipeline stages
// and launches the accept and poll loops. On failure everything opened so far is released,
// StartFailed is published and the error is returned.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}

	s.events.Notify(Start)

	registry := newRegistry(s)
	detector, err := s.startLocked(registry)
	if err != nil {
		Logger.Errorf("failed to start server on %s: %v", s.conf.Endpoint, err)
		s.events.Notify(StartFailed, err)
		return err
	}

	s.started = true
	s.registry = registry
	s.detector = detector

	Logger.Infof("server listening on %s (%s)", registry.listener.Addr(), s.connector.GetName())
	s.events.Notify(StartSuccess)
	return nil
}

func (s *Server) startLocked(registry *Registry) (*liveness.Detector, error) {
	listener, err := s.connector.Listen(s.conf)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	var detector *liveness.Detector
	if !s.conf.Liveness.Disabled {
		detector = liveness.NewDetector(s.conf.Liveness.ToDetectorConfig(), func() []liveness.Target {
			conns := registry.Connections()
			targets := make([]liveness.Target, len(conns))
			for i, c := range conns {
				targets[i] = c
			}
			return targets
		})
		if err = detector.Start(context.Background()); err != nil {
			_ = listener.Close()
			return nil, err
		}
	}

	if err = s.pipeline.InitLayers(); err != nil {
		_ = s.pipeline.Shutdown()
		if detector != nil {
			detector.Stop()
		}
		_ = listener.Close()
		return nil, err
	}

	registry.start(listener)
	return detector, nil
}

// Close stops accepting, closes every connection, disables the pipeline and stops the
// liveness detector. It is safe to call Close more than once, only the first call does work.
// Close must not be called from a frame handler.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	registry, detector, started := s.registry, s.detector, s.started
	s.mu.Unlock()

	s.events.Notify(Close)

	var err error
	if detector != nil {
		detector.Stop()
	}
	if registry != nil {
		err = multierr.Append(err, registry.Close())
	}
	if started {
		err = multierr.Append(err, s.pipeline.Shutdown())
	}

	if err != nil {
		Logger.Warningf("server close failed: %v", err)
		s.events.Notify(CloseFailed, err)
	}
	s.events.Notify(CloseEnd)
	return err
}

// --------------------------------------------------------------------------
// Sending
// --------------------------------------------------------------------------

// Send writes payload to the connection with the given remote address
func (s *Server) Send(address string, payload []byte) error {
	r := s.currentRegistry()
	if r == nil {
		return ErrNotStarted
	}
	c, ok := r.GetByAddress(address)
	if !ok {
		return ErrConnectionNotFound
	}
	return c.Send(payload)
}

// Broadcast runs payload through the outbound pipeline once and writes the result to every
// open connection
func (s *Server) Broadcast(payload []byte) error {
	r := s.currentRegistry()
	if r == nil {
		return ErrNotStarted
	}
	data, err := s.pipeline.Process(pipeline.Out, payload)
	if err != nil {
		return err
	}
	for _, c := range r.Connections() {
		c.channel.Write(data)
	}
	return nil
}

func (s *Server) currentRegistry() *Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry
}
