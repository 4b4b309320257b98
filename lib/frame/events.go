package frame

import (
	"github.com/ValentinKolb/dNet/lib/event"
)

// --------------------------------------------------------------------------
// Event kinds
// --------------------------------------------------------------------------

// EventKind enumerates the transitions a Channel publishes
type EventKind int

const (
	DataReadStart EventKind = iota
	DataReadEnd
	DataReadFailed
	CloseStart
	CloseEnd
	CloseFailed
	Write
	WriteEnd
	WriteFailed
)

func (k EventKind) String() string {
	switch k {
	case DataReadStart:
		return "DataReadStart"
	case DataReadEnd:
		return "DataReadEnd"
	case DataReadFailed:
		return "DataReadFailed"
	case CloseStart:
		return "CloseStart"
	case CloseEnd:
		return "CloseEnd"
	case CloseFailed:
		return "CloseFailed"
	case Write:
		return "Write"
	case WriteEnd:
		return "WriteEnd"
	case WriteFailed:
		return "WriteFailed"
	default:
		return "Unknown"
	}
}

var schemas = map[EventKind]event.Schema{
	DataReadFailed: {Required: event.Types(event.TypeOf[error]())},
	CloseFailed:    {Required: event.Types(event.TypeOf[error]())},
	Write:          {Required: event.Types(event.TypeOf[[]byte]())},
	WriteFailed:    {Required: event.Types(event.TypeOf[error]())},
}

// --------------------------------------------------------------------------
// Listener
// --------------------------------------------------------------------------

// Listener observes a Channel. Embed NopListener to implement only a subset of the methods.
type Listener interface {
	OnDataReadStart(ch *Channel)
	OnDataReadEnd(ch *Channel)
	OnDataReadFailed(ch *Channel, err error)
	OnCloseStart(ch *Channel)
	OnCloseEnd(ch *Channel)
	OnCloseFailed(ch *Channel, err error)
	OnWrite(ch *Channel, payload []byte)
	OnWriteEnd(ch *Channel)
	OnWriteFailed(ch *Channel, err error)
}

// NopListener implements Listener with empty methods
type NopListener struct{}

func (NopListener) OnDataReadStart(*Channel)         {}
func (NopListener) OnDataReadEnd(*Channel)           {}
func (NopListener) OnDataReadFailed(*Channel, error) {}
func (NopListener) OnCloseStart(*Channel)            {}
func (NopListener) OnCloseEnd(*Channel)              {}
func (NopListener) OnCloseFailed(*Channel, error)    {}
func (NopListener) OnWrite(*Channel, []byte)         {}
func (NopListener) OnWriteEnd(*Channel)              {}
func (NopListener) OnWriteFailed(*Channel, error)    {}

// ListenerFuncs is a Listener built from optional callbacks. Nil callbacks are skipped.
// Register it by pointer so it can be removed again.
type ListenerFuncs struct {
	DataReadStart  func(ch *Channel)
	DataReadEnd    func(ch *Channel)
	DataReadFailed func(ch *Channel, err error)
	CloseStart     func(ch *Channel)
	CloseEnd       func(ch *Channel)
	CloseFailed    func(ch *Channel, err error)
	Write          func(ch *Channel, payload []byte)
	WriteEnd       func(ch *Channel)
	WriteFailed    func(ch *Channel, err error)
}

func (f *ListenerFuncs) OnDataReadStart(ch *Channel) {
	if f.DataReadStart != nil {
		f.DataReadStart(ch)
	}
}

func (f *ListenerFuncs) OnDataReadEnd(ch *Channel) {
	if f.DataReadEnd != nil {
		f.DataReadEnd(ch)
	}
}

func (f *ListenerFuncs) OnDataReadFailed(ch *Channel, err error) {
	if f.DataReadFailed != nil {
		f.DataReadFailed(ch, err)
	}
}

func (f *ListenerFuncs) OnCloseStart(ch *Channel) {
	if f.CloseStart != nil {
		f.CloseStart(ch)
	}
}

func (f *ListenerFuncs) OnCloseEnd(ch *Channel) {
	if f.CloseEnd != nil {
		f.CloseEnd(ch)
	}
}

func (f *ListenerFuncs) OnCloseFailed(ch *Channel, err error) {
	if f.CloseFailed != nil {
		f.CloseFailed(ch, err)
	}
}

func (f *ListenerFuncs) OnWrite(ch *Channel, payload []byte) {
	if f.Write != nil {
		f.Write(ch, payload)
	}
}

func (f *ListenerFuncs) OnWriteEnd(ch *Channel) {
	if f.WriteEnd != nil {
		f.WriteEnd(ch)
	}
}

func (f *ListenerFuncs) OnWriteFailed(ch *Channel, err error) {
	if f.WriteFailed != nil {
		f.WriteFailed(ch, err)
	}
}

// newDispatcher creates the dispatcher of ch
func newDispatcher(ch *Channel) *event.Dispatcher[EventKind, Listener] {
	return event.NewDispatcher[EventKind, Listener]("frame.Channel", schemas,
		func(l Listener, kind EventKind, args []any) {
			switch kind {
			case DataReadStart:
				l.OnDataReadStart(ch)
			case DataReadEnd:
				l.OnDataReadEnd(ch)
			case DataReadFailed:
				l.OnDataReadFailed(ch, args[0].(error))
			case CloseStart:
				l.OnCloseStart(ch)
			case CloseEnd:
				l.OnCloseEnd(ch)
			case CloseFailed:
				l.OnCloseFailed(ch, args[0].(error))
			case Write:
				l.OnWrite(ch, args[0].([]byte))
			case WriteEnd:
				l.OnWriteEnd(ch)
			case WriteFailed:
				l.OnWriteFailed(ch, args[0].(error))
			}
		})
}
