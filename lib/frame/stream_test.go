package frame

import (
	"bytes"
	"github.com/stretchr/testify/require"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// In-memory stream
// --------------------------------------------------------------------------

// memStream is a scriptable Stream. Bytes are fed with feed, an empty input without eof
// behaves like an idle connection.
type memStream struct {
	mu       sync.Mutex
	in       []byte
	eof      bool
	readErr  error
	out      bytes.Buffer
	pending  []byte
	writeErr error
	closeErr error
	closed   bool
}

func (s *memStream) feed(b string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.in = append(s.in, b...)
}

func (s *memStream) written() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.String()
}

func (s *memStream) Available() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return false, net.ErrClosed
	case len(s.in) > 0:
		return true, nil
	case s.readErr != nil:
		err := s.readErr
		s.readErr = nil
		return true, err
	case s.eof:
		return false, io.EOF
	default:
		return false, nil
	}
}

func (s *memStream) ReadByte() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return 0, net.ErrClosed
	case len(s.in) > 0:
		b := s.in[0]
		s.in = s.in[1:]
		return b, nil
	case s.eof:
		return 0, io.EOF
	default:
		return 0, os.ErrDeadlineExceeded
	}
}

func (s *memStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.pending = append(s.pending, p...)
	return len(p), nil
}

func (s *memStream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.Write(s.pending)
	s.pending = nil
	return nil
}

func (s *memStream) SetReadDeadline(time.Time) error { return nil }

func (s *memStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeErr
}

// --------------------------------------------------------------------------
// Loopback TCP helpers
// --------------------------------------------------------------------------

// tcpPair returns two connected TCP connections
func tcpPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	select {
	case server := <-accepted:
		require.NotNil(t, server)
		t.Cleanup(func() {
			_ = client.Close()
			_ = server.Close()
		})
		return client, server
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
		return nil, nil
	}
}

func TestConnStreamAvailable(t *testing.T) {
	a, b := tcpPair(t)
	s := NewConnStream(b, time.Millisecond)

	ok, err := s.Available()
	require.NoError(t, err)
	require.False(t, ok)

	_, err = a.Write([]byte("x"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		ok, err := s.Available()
		return err == nil && ok
	}, time.Second, 5*time.Millisecond)

	c, err := s.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('x'), c)

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool {
		_, err := s.Available()
		return IsEndOfStream(err)
	}, time.Second, 5*time.Millisecond)
}
