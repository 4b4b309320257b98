package frame

import (
	"context"
	"errors"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

type frameSink struct {
	mu     sync.Mutex
	frames []string
}

func (s *frameSink) handle(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, string(payload))
	return nil
}

func discard([]byte) error { return nil }

func (s *frameSink) get() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, name)
}

func (l *eventLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func recordEvents(ch *Channel) *eventLog {
	log := &eventLog{}
	ch.RegisterListener(&ListenerFuncs{
		DataReadStart:  func(*Channel) { log.add("DataReadStart") },
		DataReadEnd:    func(*Channel) { log.add("DataReadEnd") },
		DataReadFailed: func(*Channel, error) { log.add("DataReadFailed") },
		CloseStart:     func(*Channel) { log.add("CloseStart") },
		CloseEnd:       func(*Channel) { log.add("CloseEnd") },
		CloseFailed:    func(*Channel, error) { log.add("CloseFailed") },
		Write:          func(_ *Channel, p []byte) { log.add("Write:" + string(p)) },
		WriteEnd:       func(*Channel) { log.add("WriteEnd") },
		WriteFailed:    func(*Channel, error) { log.add("WriteFailed") },
	})
	return log
}

func newMemChannel(t *testing.T, conf Config) (*Channel, *memStream, *frameSink) {
	t.Helper()
	s := &memStream{}
	sink := &frameSink{}
	ch, err := NewChannel(s, sink.handle, conf)
	require.NoError(t, err)
	return ch, s, sink
}

// --------------------------------------------------------------------------
// Framing
// --------------------------------------------------------------------------

func TestReadSingleFrame(t *testing.T) {
	ch, s, sink := newMemChannel(t, DefaultConfig())
	s.feed("PING\n")

	ch.Read()

	assert.Equal(t, []string{"PING"}, sink.get())
	assert.Empty(t, ch.Buffered())
}

func TestReadWithoutDelimiterAccumulates(t *testing.T) {
	ch, s, sink := newMemChannel(t, DefaultConfig())

	s.feed("he")
	ch.Read()
	ch.Read() // nothing available
	s.feed("llo")
	ch.Read()

	assert.Empty(t, sink.get())
	assert.Equal(t, []byte("hello"), ch.Buffered())

	s.feed("\n")
	ch.Read()
	assert.Equal(t, []string{"hello"}, sink.get())
	assert.Empty(t, ch.Buffered())
}

func TestReadContinuesPastDelimiterUpToCap(t *testing.T) {
	conf := DefaultConfig()
	conf.MaxReadSize = 4
	ch, s, sink := newMemChannel(t, conf)
	s.feed("ab\ncd\n")

	ch.Read()
	assert.Equal(t, []string{"ab"}, sink.get())
	assert.Equal(t, []byte("c"), ch.Buffered())

	ch.Read()
	assert.Equal(t, []string{"ab", "cd"}, sink.get())
}

func TestEmptyFrame(t *testing.T) {
	ch, s, sink := newMemChannel(t, DefaultConfig())
	s.feed("\n\n")

	ch.Read()
	assert.Equal(t, []string{"", ""}, sink.get())
}

func TestCustomDelimiter(t *testing.T) {
	conf := DefaultConfig()
	conf.Delimiter = 0x00
	ch, s, sink := newMemChannel(t, conf)
	s.feed("a\nb\x00")

	ch.Read()
	assert.Equal(t, []string{"a\nb"}, sink.get())

	ch.Write([]byte("x"))
	assert.Equal(t, "x\x00", s.written())
}

func TestReadEvents(t *testing.T) {
	ch, s, _ := newMemChannel(t, DefaultConfig())
	log := recordEvents(ch)

	ch.Read() // nothing available, no events
	assert.Empty(t, log.get())

	s.feed("a\n")
	ch.Read()
	assert.Equal(t, []string{"DataReadStart", "DataReadEnd"}, log.get())
}

func TestReadFailureIsReportedAndNotFatal(t *testing.T) {
	ch, s, sink := newMemChannel(t, DefaultConfig())
	log := recordEvents(ch)

	s.feed("ab")
	s.readErr = errors.New("disk on fire")
	ch.Read()

	assert.Equal(t, []string{"DataReadStart", "DataReadFailed", "DataReadEnd"}, log.get())
	assert.False(t, ch.Closing())

	s.feed("\n")
	ch.Read()
	assert.Equal(t, []string{"ab"}, sink.get())
}

func TestEndOfStreamClosesChannel(t *testing.T) {
	ch, s, sink := newMemChannel(t, DefaultConfig())
	log := recordEvents(ch)

	s.feed("partial")
	ch.Read()
	s.eof = true
	ch.Read()

	assert.True(t, ch.Closed())
	assert.Empty(t, sink.get())
	assert.Empty(t, ch.Buffered())
	assert.Equal(t, []string{"DataReadStart", "DataReadEnd", "CloseStart", "CloseEnd"}, log.get())

	// reads after close are no-ops
	s.feed("x\n")
	ch.Read()
	assert.Empty(t, sink.get())
}

func TestLastReadUsesClock(t *testing.T) {
	mock := clock.NewMock()
	conf := DefaultConfig()
	conf.Clock = mock
	ch, s, _ := newMemChannel(t, conf)

	assert.True(t, mock.Now().Equal(ch.LastRead()))

	mock.Add(3 * time.Second)
	s.feed("x")
	ch.Read()
	assert.True(t, mock.Now().Equal(ch.LastRead()))
}

func TestReadToN(t *testing.T) {
	ch, s, sink := newMemChannel(t, DefaultConfig())
	s.feed("a\nbcd")

	require.NoError(t, ch.ReadToN(2))
	assert.Equal(t, []string{"a", "bc"}, sink.get())
	assert.Equal(t, []byte{}, ch.Buffered())

	require.NoError(t, ch.Close())
	assert.ErrorIs(t, ch.ReadToN(1), ErrClosed)
}

func TestRejectedFrameIsReported(t *testing.T) {
	s := &memStream{}
	ch, err := NewChannel(s, func([]byte) error { return errors.New("bad frame") }, DefaultConfig())
	require.NoError(t, err)
	log := recordEvents(ch)

	s.feed("x\n")
	ch.Read()

	assert.Equal(t, []string{"DataReadStart", "DataReadFailed", "DataReadEnd"}, log.get())
	assert.False(t, ch.Closing())
}

// --------------------------------------------------------------------------
// Write
// --------------------------------------------------------------------------

func TestWrite(t *testing.T) {
	ch, s, _ := newMemChannel(t, DefaultConfig())
	log := recordEvents(ch)

	ch.Write([]byte("PONG"))

	assert.Equal(t, "PONG\n", s.written())
	assert.Equal(t, []string{"Write:PONG", "WriteEnd"}, log.get())
}

func TestWriteFailureIsSwallowed(t *testing.T) {
	ch, s, _ := newMemChannel(t, DefaultConfig())
	log := recordEvents(ch)
	s.writeErr = errors.New("broken")

	ch.Write([]byte("x"))

	assert.Equal(t, []string{"Write:x", "WriteFailed", "WriteEnd"}, log.get())
	assert.False(t, ch.Closing())
}

func TestWriteAfterCloseIsDropped(t *testing.T) {
	ch, s, _ := newMemChannel(t, DefaultConfig())
	require.NoError(t, ch.Close())
	log := recordEvents(ch)

	ch.Write([]byte("x"))
	assert.Empty(t, s.written())
	assert.Empty(t, log.get())
}

// --------------------------------------------------------------------------
// Close
// --------------------------------------------------------------------------

func TestCloseIsIdempotent(t *testing.T) {
	ch, s, _ := newMemChannel(t, DefaultConfig())
	log := recordEvents(ch)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ch.Close())
		}()
	}
	wg.Wait()
	assert.NoError(t, ch.Close())

	assert.Equal(t, []string{"CloseStart", "CloseEnd"}, log.get())
	assert.True(t, s.closed)
	assert.True(t, ch.Closed())
}

func TestCloseFromListenerIsNotReentrant(t *testing.T) {
	ch, _, _ := newMemChannel(t, DefaultConfig())
	starts := 0
	ch.RegisterListener(&ListenerFuncs{
		CloseStart: func(c *Channel) {
			starts++
			assert.NoError(t, c.Close())
		},
	})

	require.NoError(t, ch.Close())
	assert.Equal(t, 1, starts)
}

func TestCloseFailure(t *testing.T) {
	ch, s, _ := newMemChannel(t, DefaultConfig())
	log := recordEvents(ch)
	s.closeErr = errors.New("cannot close")

	err := ch.Close()

	assert.ErrorIs(t, err, s.closeErr)
	assert.Equal(t, []string{"CloseStart", "CloseFailed", "CloseEnd"}, log.get())
	assert.True(t, ch.Closed())
}

func TestCloseFlushesPendingOutput(t *testing.T) {
	ch, s, _ := newMemChannel(t, DefaultConfig())
	_, _ = s.Write([]byte("tail"))

	require.NoError(t, ch.Close())
	assert.Equal(t, "tail", s.written())
}

// --------------------------------------------------------------------------
// TCP
// --------------------------------------------------------------------------

func TestRoundTripOverTCP(t *testing.T) {
	a, b := tcpPair(t)

	sender, err := NewChannel(NewConnStream(a, 0), discard, DefaultConfig())
	require.NoError(t, err)
	sink := &frameSink{}
	receiver, err := NewChannel(NewConnStream(b, 0), sink.handle, DefaultConfig())
	require.NoError(t, err)

	payloads := []string{"hello", "", "with spaces and \r", "last"}
	for _, p := range payloads {
		sender.Write([]byte(p))
	}

	require.Eventually(t, func() bool {
		receiver.Read()
		return len(sink.get()) == len(payloads)
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, payloads, sink.get())
}

func TestPeerCloseClosesChannel(t *testing.T) {
	a, b := tcpPair(t)
	ch, err := NewChannel(NewConnStream(b, 0), discard, DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, a.Close())

	require.Eventually(t, func() bool {
		ch.Read()
		return ch.Closed()
	}, 2*time.Second, time.Millisecond)
}

func TestProbeTimeoutIsBenign(t *testing.T) {
	a, b := tcpPair(t)
	sink := &frameSink{}
	ch, err := NewChannel(NewConnStream(b, 0), sink.handle, DefaultConfig())
	require.NoError(t, err)
	log := recordEvents(ch)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = ch.Probe(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, log.get())
	assert.False(t, ch.Closing())

	// the connection keeps working after the aborted probe
	_, err = a.Write([]byte("ok\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		ch.Read()
		return len(sink.get()) == 1
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, []string{"ok"}, sink.get())
}

func TestProbeKeepsConsumedBytes(t *testing.T) {
	a, b := tcpPair(t)
	sink := &frameSink{}
	ch, err := NewChannel(NewConnStream(b, 0), sink.handle, DefaultConfig())
	require.NoError(t, err)

	_, err = a.Write([]byte("x"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ch.Probe(ctx))
	assert.Equal(t, []byte("x"), ch.Buffered())

	_, err = a.Write([]byte("y\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		ch.Read()
		return len(sink.get()) == 1
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, []string{"xy"}, sink.get())
}

func TestProbeDetectsDeadPeer(t *testing.T) {
	a, b := tcpPair(t)
	ch, err := NewChannel(NewConnStream(b, 0), discard, DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, a.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.ErrorIs(t, ch.Probe(ctx), ErrClosed)
	assert.True(t, ch.Closed())
}

func TestProbeDoesNotWaitPastDeadlineForBusyReader(t *testing.T) {
	a, b := tcpPair(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	ch, err := NewChannel(NewConnStream(b, 0), func([]byte) error {
		close(entered)
		<-release
		return nil
	}, DefaultConfig())
	require.NoError(t, err)

	_, err = a.Write([]byte("slow\n"))
	require.NoError(t, err)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for !isClosed(entered) {
			ch.Read()
		}
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.ErrorIs(t, ch.Probe(ctx), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	close(release)
	<-readDone
	assert.False(t, ch.Closing())
}

func TestExpiredProbesLeaveNoReadDeadline(t *testing.T) {
	a, b := tcpPair(t)
	sink := &frameSink{}
	ch, err := NewChannel(NewConnStream(b, 0), sink.handle, DefaultConfig())
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(i%3)*time.Millisecond)
		_ = ch.Probe(ctx)
		cancel()
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = a.Write([]byte("abc"))
	}()

	require.NoError(t, ch.ReadToN(3))
	assert.Equal(t, []string{"abc"}, sink.get())
}

func isClosed(c chan struct{}) bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}
