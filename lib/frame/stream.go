package frame

import (
	"bufio"
	"net"
	"time"
)

// Stream is the raw duplex byte stream underneath a Channel.
//
// Available must not block longer than a short poll window. ReadByte blocks until a byte
// arrives, the read deadline passes or the stream is closed.
type Stream interface {
	// Available reports whether at least one byte can be read without blocking.
	// It returns io.EOF once the peer closed its write side.
	Available() (bool, error)
	// ReadByte reads the next byte
	ReadByte() (byte, error)
	// Write buffers p for sending
	Write(p []byte) (int, error)
	// Flush sends all buffered bytes
	Flush() error
	// SetReadDeadline bounds pending and future ReadByte calls. The zero time clears it.
	SetReadDeadline(t time.Time) error
	// Close closes the stream in both directions
	Close() error
}

// --------------------------------------------------------------------------
// net.Conn backed stream
// --------------------------------------------------------------------------

const defaultPollWindow = 100 * time.Microsecond

// connStream adapts a net.Conn. Availability is checked by peeking with a short read deadline,
// which is the closest equivalent to a non-blocking "bytes available" query on a Go connection.
type connStream struct {
	conn       net.Conn
	reader     *bufio.Reader
	writer     *bufio.Writer
	pollWindow time.Duration
}

// NewConnStream wraps conn. pollWindow is the longest time Available waits for a byte,
// values <= 0 select the default of 100µs.
func NewConnStream(conn net.Conn, pollWindow time.Duration) Stream {
	if pollWindow <= 0 {
		pollWindow = defaultPollWindow
	}
	return &connStream{
		conn:       conn,
		reader:     bufio.NewReader(conn),
		writer:     bufio.NewWriter(conn),
		pollWindow: pollWindow,
	}
}

func (s *connStream) Available() (bool, error) {
	if s.reader.Buffered() > 0 {
		return true, nil
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(s.pollWindow)); err != nil {
		return false, err
	}
	_, err := s.reader.Peek(1)
	if clearErr := s.conn.SetReadDeadline(time.Time{}); clearErr != nil && err == nil {
		err = clearErr
	}

	switch {
	case err == nil:
		return true, nil
	case IsTimeout(err):
		return false, nil
	default:
		return false, err
	}
}

func (s *connStream) ReadByte() (byte, error) {
	return s.reader.ReadByte()
}

func (s *connStream) Write(p []byte) (int, error) {
	return s.writer.Write(p)
}

func (s *connStream) Flush() error {
	return s.writer.Flush()
}

func (s *connStream) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

func (s *connStream) Close() error {
	return s.conn.Close()
}
