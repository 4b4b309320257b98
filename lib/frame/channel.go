package frame

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dNet/lib/event"
	"github.com/benbjohnson/clock"
	"github.com/lni/dragonboat/v4/logger"
	"go.uber.org/multierr"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("frame")

const (
	// DefaultDelimiter terminates every frame on the wire
	DefaultDelimiter byte = 0x0A
	// DefaultMaxReadSize is the maximum number of bytes consumed by one Read call
	DefaultMaxReadSize = 1024

	// probeLockRetry is the pause between attempts of a probe to take the read side
	probeLockRetry = time.Millisecond
)

// FrameHandler receives the payload of one frame (without the delimiter).
// The slice is owned by the handler. A returned error is published as DataReadFailed.
type FrameHandler func(payload []byte) error

// Config configures a Channel
type Config struct {
	// Delimiter terminates every frame. Both peers must use the same value.
	Delimiter byte
	// MaxReadSize bounds the bytes consumed by a single Read call
	MaxReadSize int
	// Name identifies the channel in log messages, usually the remote address
	Name string
	// Clock is used for the last-read timestamp
	Clock clock.Clock
}

// DefaultConfig returns a config with line-feed delimiter and 1024 byte read cap
func DefaultConfig() Config {
	return Config{
		Delimiter:   DefaultDelimiter,
		MaxReadSize: DefaultMaxReadSize,
		Clock:       clock.New(),
	}
}

// --------------------------------------------------------------------------
// Channel
// --------------------------------------------------------------------------

// Channel turns a Stream into delimiter terminated frames and back.
//
// Thread-safety: Read, ReadToN and Probe serialize on the read side, Write serializes on the
// write side, Close may be called from any goroutine (including listener callbacks) at any time.
type Channel struct {
	stream     Stream
	conf       Config
	onFrame    FrameHandler
	dispatcher *event.Dispatcher[EventKind, Listener]

	readMu  sync.Mutex
	buf     []byte // guarded by readMu
	writeMu sync.Mutex

	lastRead atomic.Int64 // unix nanos
	closing  atomic.Bool
	closed   atomic.Bool
}

// NewChannel creates a channel on top of stream. onFrame is called once per complete frame.
func NewChannel(stream Stream, onFrame FrameHandler, conf Config) (*Channel, error) {
	if stream == nil {
		return nil, fmt.Errorf("frame: stream must not be nil")
	}
	if onFrame == nil {
		return nil, fmt.Errorf("frame: frame handler must not be nil")
	}
	if conf.MaxReadSize <= 0 {
		conf.MaxReadSize = DefaultMaxReadSize
	}
	if conf.Clock == nil {
		conf.Clock = clock.New()
	}

	ch := &Channel{
		stream:  stream,
		conf:    conf,
		onFrame: onFrame,
	}
	ch.dispatcher = newDispatcher(ch)
	ch.touch()
	return ch, nil
}

// Name returns the configured name
func (c *Channel) Name() string {
	return c.conf.Name
}

// LastRead returns the time the last byte was read (or the creation time)
func (c *Channel) LastRead() time.Time {
	return time.Unix(0, c.lastRead.Load())
}

// Closing reports whether Close has been called
func (c *Channel) Closing() bool {
	return c.closing.Load()
}

// Closed reports whether the close sequence has completed
func (c *Channel) Closed() bool {
	return c.closed.Load()
}

// RegisterListener adds a listener, see event.Dispatcher
func (c *Channel) RegisterListener(l Listener) {
	c.dispatcher.Register(l)
}

// RemoveListener removes a listener by identity
func (c *Channel) RemoveListener(l Listener) bool {
	return c.dispatcher.Remove(l)
}

// --------------------------------------------------------------------------
// Read side
// --------------------------------------------------------------------------

// Read consumes the bytes that are currently available, up to MaxReadSize, and delivers every
// completed frame. It returns immediately if nothing is available, if the channel is closing,
// or if another read (e.g. a liveness probe) is in progress.
func (c *Channel) Read() {
	if c.closing.Load() {
		return
	}
	if !c.readMu.TryLock() {
		return
	}

	shouldClose := c.readAvailable()
	c.releaseRead()

	if shouldClose {
		_ = c.Close()
	}
}

// readAvailable performs one Read while holding readMu. It returns true if the channel
// must be closed afterwards.
func (c *Channel) readAvailable() bool {
	ok, err := c.stream.Available()
	if err != nil {
		// nothing has been read yet, so there is no start/end bracket to report in
		return c.handleReadError(err)
	}
	if !ok {
		return false
	}

	c.dispatcher.Notify(DataReadStart)
	defer c.dispatcher.Notify(DataReadEnd)

	for n := 0; n < c.conf.MaxReadSize; n++ {
		if n > 0 {
			if ok, err = c.stream.Available(); err != nil {
				return c.handleReadError(err)
			} else if !ok {
				return false
			}
		}
		if err = c.readOne(); err != nil {
			return c.handleReadError(err)
		}
	}
	return false
}

// readOne reads a single byte into the buffer, flushing on the delimiter. Requires readMu.
func (c *Channel) readOne() error {
	b, err := c.stream.ReadByte()
	if err != nil {
		return err
	}
	c.touch()
	bytesReceived.Inc()

	if b == c.conf.Delimiter {
		c.flushLocked()
	} else {
		c.buf = append(c.buf, b)
	}
	return nil
}

// handleReadError classifies a read error and reports it. It returns true if the channel
// must be closed.
func (c *Channel) handleReadError(err error) bool {
	switch {
	case IsEndOfStream(err):
		Logger.Debugf("channel %s: end of stream", c.conf.Name)
		return true
	case IsReset(err):
		Logger.Debugf("channel %s: connection reset: %v", c.conf.Name, err)
		return true
	case IsTimeout(err):
		return false
	default:
		if c.closing.Load() {
			return false
		}
		Logger.Warningf("channel %s: read failed: %v", c.conf.Name, err)
		readFailures.Inc()
		c.dispatcher.Notify(DataReadFailed, err)
		return false
	}
}

// ReadToN blocks until the read buffer holds at least n bytes and then flushes it.
// Delimiters seen on the way are handled as usual. It stops with ErrClosed when the channel
// closes and with the stream error otherwise (an end of stream also closes the channel).
func (c *Channel) ReadToN(n int) error {
	c.readMu.Lock()
	err := c.readToNLocked(n)
	c.releaseRead()

	if err != nil && (IsEndOfStream(err) || IsReset(err)) {
		_ = c.Close()
	}
	return err
}

func (c *Channel) readToNLocked(n int) error {
	for len(c.buf) < n {
		if c.closing.Load() {
			return ErrClosed
		}
		if err := c.readOne(); err != nil {
			return err
		}
	}
	c.flushLocked()
	return nil
}

// Probe performs one blocking single-byte read bounded by ctx. It is used to detect peers
// that vanished without closing the connection: a dead peer surfaces as end of stream or
// reset, which closes the channel.
//
// A probe that runs into the deadline returns ctx.Err() and reports nothing. A byte consumed
// before the deadline stays in the read buffer (or completes a frame), it is never discarded.
func (c *Channel) Probe(ctx context.Context) error {
	if c.closing.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// a slow frame handler or ReadToN holds readMu, the wait for it counts against ctx
	if err := c.lockReadContext(ctx); err != nil {
		return err
	}

	if dl, ok := ctx.Deadline(); ok {
		_ = c.stream.SetReadDeadline(dl)
	}
	expired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(expired)
		_ = c.stream.SetReadDeadline(time.Unix(1, 0))
	})

	err := c.readOne()

	if !stop() {
		<-expired
	}
	_ = c.stream.SetReadDeadline(time.Time{})
	c.releaseRead()

	switch {
	case err == nil:
		return nil
	case IsTimeout(err):
		// the socket deadline may fire marginally before the context notices
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return context.DeadlineExceeded
	case c.handleReadError(err):
		_ = c.Close()
		return ErrClosed
	default:
		return err
	}
}

// lockReadContext acquires readMu or gives up with ctx.Err() once ctx is done
func (c *Channel) lockReadContext(ctx context.Context) error {
	if c.readMu.TryLock() {
		return nil
	}
	ticker := time.NewTicker(probeLockRetry)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if c.readMu.TryLock() {
				return nil
			}
		}
	}
}

// FlushRead delivers the current buffer content as one frame, even if it is empty
func (c *Channel) FlushRead() {
	c.readMu.Lock()
	c.flushLocked()
	c.readMu.Unlock()
}

// flushLocked hands the buffer to the frame handler and clears it. Requires readMu.
func (c *Channel) flushLocked() {
	payload := make([]byte, len(c.buf))
	copy(payload, c.buf)
	c.buf = c.buf[:0]

	framesReceived.Inc()
	if err := c.onFrame(payload); err != nil {
		Logger.Debugf("channel %s: frame rejected: %v", c.conf.Name, err)
		readFailures.Inc()
		c.dispatcher.Notify(DataReadFailed, err)
	}
}

// Buffered returns a copy of the bytes of the incomplete frame
func (c *Channel) Buffered() []byte {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	out := make([]byte, len(c.buf))
	copy(out, c.buf)
	return out
}

// releaseRead drops the buffer if the channel closed during the read and unlocks readMu
func (c *Channel) releaseRead() {
	if c.closing.Load() {
		c.buf = nil
	}
	c.readMu.Unlock()
}

func (c *Channel) touch() {
	c.lastRead.Store(c.conf.Clock.Now().UnixNano())
}

// --------------------------------------------------------------------------
// Write side
// --------------------------------------------------------------------------

// Write sends payload followed by the delimiter and flushes the stream.
// Failures are reported as WriteFailed events and never returned. Writes to a closing
// channel are dropped.
func (c *Channel) Write(payload []byte) {
	if c.closing.Load() {
		return
	}

	c.dispatcher.Notify(Write, payload)

	if err := c.writeFrame(payload); err != nil {
		Logger.Debugf("channel %s: write failed: %v", c.conf.Name, err)
		writeFailures.Inc()
		c.dispatcher.Notify(WriteFailed, err)
	} else {
		framesSent.Inc()
		bytesSent.Add(len(payload) + 1)
	}

	c.dispatcher.Notify(WriteEnd)
}

func (c *Channel) writeFrame(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.stream.Write(payload); err != nil {
		return err
	}
	if _, err := c.stream.Write([]byte{c.conf.Delimiter}); err != nil {
		return err
	}
	return c.stream.Flush()
}

// --------------------------------------------------------------------------
// Close
// --------------------------------------------------------------------------

// Close flushes pending output and closes the stream. Only the first call runs the close
// sequence (CloseStart, optional CloseFailed, CloseEnd), later calls return nil immediately.
// The returned error is the one reported with CloseFailed.
func (c *Channel) Close() error {
	if !c.closing.CompareAndSwap(false, true) {
		return nil
	}

	c.dispatcher.Notify(CloseStart)

	var err error

	// a writer blocked on a full socket holds writeMu; it flushes on its own
	if c.writeMu.TryLock() {
		if flushErr := c.stream.Flush(); flushErr != nil && !IsReset(flushErr) {
			err = multierr.Append(err, flushErr)
		}
		c.writeMu.Unlock()
	}
	if closeErr := c.stream.Close(); closeErr != nil && !IsReset(closeErr) {
		err = multierr.Append(err, closeErr)
	}

	// a running read clears the buffer itself when it returns
	if c.readMu.TryLock() {
		c.buf = nil
		c.readMu.Unlock()
	}

	if err != nil {
		Logger.Warningf("channel %s: close failed: %v", c.conf.Name, err)
		c.dispatcher.Notify(CloseFailed, err)
	}

	c.closed.Store(true)
	channelsClosed.Inc()
	c.dispatcher.Notify(CloseEnd)
	return err
}
