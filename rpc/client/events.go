package client

import (
	"github.com/ValentinKolb/dNet/lib/event"
)

// EventKind enumerates the client lifecycle events
type EventKind int

const (
	Connection EventKind = iota
	ConnectionSuccess
	ConnectionFailed
	Close
	CloseFailed
	CloseSuccess
)

func (k EventKind) String() string {
	switch k {
	case Connection:
		return "Connection"
	case ConnectionSuccess:
		return "ConnectionSuccess"
	case ConnectionFailed:
		return "ConnectionFailed"
	case Close:
		return "Close"
	case CloseFailed:
		return "CloseFailed"
	case CloseSuccess:
		return "CloseSuccess"
	default:
		return "Unknown"
	}
}

var schemas = map[EventKind]event.Schema{
	ConnectionFailed: {Required: event.Types(event.TypeOf[error]())},
	CloseFailed:      {Required: event.Types(event.TypeOf[error]())},
}

// Listener observes a Client. Embed NopListener to implement only a subset of the methods.
type Listener interface {
	OnConnection()
	OnConnectionSuccess()
	OnConnectionFailed(err error)
	OnClose()
	OnCloseFailed(err error)
	OnCloseSuccess()
}

// NopListener implements Listener with empty methods
type NopListener struct{}

func (NopListener) OnConnection()            {}
func (NopListener) OnConnectionSuccess()     {}
func (NopListener) OnConnectionFailed(error) {}
func (NopListener) OnClose()                 {}
func (NopListener) OnCloseFailed(error)      {}
func (NopListener) OnCloseSuccess()          {}

// ListenerFunc receives every client event as a single record.
// Register a *ListenerFunc if it has to be removed later; func values have no identity.
type ListenerFunc func(kind EventKind, payload []any)

func (f ListenerFunc) OnConnection()                { f(Connection, nil) }
func (f ListenerFunc) OnConnectionSuccess()         { f(ConnectionSuccess, nil) }
func (f ListenerFunc) OnConnectionFailed(err error) { f(ConnectionFailed, []any{err}) }
func (f ListenerFunc) OnClose()                     { f(Close, nil) }
func (f ListenerFunc) OnCloseFailed(err error)      { f(CloseFailed, []any{err}) }
func (f ListenerFunc) OnCloseSuccess()              { f(CloseSuccess, nil) }

func newDispatcher() *event.Dispatcher[EventKind, Listener] {
	return event.NewDispatcher[EventKind, Listener]("client.Client", schemas,
		func(l Listener, kind EventKind, args []any) {
			switch kind {
			case Connection:
				l.OnConnection()
			case ConnectionSuccess:
				l.OnConnectionSuccess()
			case ConnectionFailed:
				l.OnConnectionFailed(args[0].(error))
			case Close:
				l.OnClose()
			case CloseFailed:
				l.OnCloseFailed(args[0].(error))
			case CloseSuccess:
				l.OnCloseSuccess()
			}
		})
}
