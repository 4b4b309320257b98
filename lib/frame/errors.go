package frame

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

var (
	// ErrClosed is returned by blocking reads on a channel that is closing or closed
	ErrClosed = errors.New("frame: channel closed")
)

// IsReset reports whether err means the connection was reset or already closed locally.
// Such errors are close triggers, not failures.
func IsReset(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}

// IsTimeout reports whether err is a deadline or timeout error
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsEndOfStream reports whether the peer has closed its write side
func IsEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
