package server

import (
	"github.com/ValentinKolb/dNet/lib/event"
)

// --------------------------------------------------------------------------
// Event kinds
// --------------------------------------------------------------------------

// EventKind enumerates the server lifecycle events
type EventKind int

const (
	Start EventKind = iota
	StartSuccess
	StartFailed
	AcceptStart
	Accept
	AcceptFailed
	AcceptEnd
	SocketClosed
	Close
	CloseFailed
	CloseEnd
	ConnectionInitFailed
	ConnectionClose
	ConnectionCloseFailed
	ConnectionCloseEnd
)

func (k EventKind) String() string {
	switch k {
	case Start:
		return "Start"
	case StartSuccess:
		return "StartSuccess"
	case StartFailed:
		return "StartFailed"
	case AcceptStart:
		return "AcceptStart"
	case Accept:
		return "Accept"
	case AcceptFailed:
		return "AcceptFailed"
	case AcceptEnd:
		return "AcceptEnd"
	case SocketClosed:
		return "SocketClosed"
	case Close:
		return "Close"
	case CloseFailed:
		return "CloseFailed"
	case CloseEnd:
		return "CloseEnd"
	case ConnectionInitFailed:
		return "ConnectionInitFailed"
	case ConnectionClose:
		return "ConnectionClose"
	case ConnectionCloseFailed:
		return "ConnectionCloseFailed"
	case ConnectionCloseEnd:
		return "ConnectionCloseEnd"
	default:
		return "Unknown"
	}
}

var (
	errType  = event.TypeOf[error]()
	connType = event.TypeOf[*Connection]()

	schemas = map[EventKind]event.Schema{
		StartFailed:           {Required: event.Types(errType)},
		Accept:                {Required: event.Types(connType)},
		AcceptFailed:          {Required: event.Types(errType)},
		SocketClosed:          {Required: event.Types(errType), Optional: event.Types(event.TypeOf[string]())},
		CloseFailed:           {Required: event.Types(errType)},
		ConnectionInitFailed:  {Required: event.Types(errType)},
		ConnectionClose:       {Required: event.Types(connType)},
		ConnectionCloseFailed: {Required: event.Types(connType, errType)},
		ConnectionCloseEnd:    {Required: event.Types(connType)},
	}
)

// --------------------------------------------------------------------------
// Listener
// --------------------------------------------------------------------------

// Listener observes a Server. Embed NopListener to implement only a subset of the methods.
type Listener interface {
	OnStart()
	OnStartSuccess()
	OnStartFailed(err error)
	OnAcceptStart()
	OnAccept(conn *Connection)
	OnAcceptFailed(err error)
	OnAcceptEnd()
	// OnSocketClosed is called when the listening socket is gone. address is empty if unknown.
	OnSocketClosed(err error, address string)
	OnClose()
	OnCloseFailed(err error)
	OnCloseEnd()
	OnConnectionInitFailed(err error)
	OnConnectionClose(conn *Connection)
	OnConnectionCloseFailed(conn *Connection, err error)
	OnConnectionCloseEnd(conn *Connection)
}

// NopListener implements Listener with empty methods
type NopListener struct{}

func (NopListener) OnStart()                                  {}
func (NopListener) OnStartSuccess()                           {}
func (NopListener) OnStartFailed(error)                       {}
func (NopListener) OnAcceptStart()                            {}
func (NopListener) OnAccept(*Connection)                      {}
func (NopListener) OnAcceptFailed(error)                      {}
func (NopListener) OnAcceptEnd()                              {}
func (NopListener) OnSocketClosed(error, string)              {}
func (NopListener) OnClose()                                  {}
func (NopListener) OnCloseFailed(error)                       {}
func (NopListener) OnCloseEnd()                               {}
func (NopListener) OnConnectionInitFailed(error)              {}
func (NopListener) OnConnectionClose(*Connection)             {}
func (NopListener) OnConnectionCloseFailed(*Connection, error) {}
func (NopListener) OnConnectionCloseEnd(*Connection)           {}

// ListenerFunc receives every server event as a single record. Payload holds the event
// arguments in schema order.
//
// Func values have no identity, so a ListenerFunc registered by value cannot be
// removed again. Register a *ListenerFunc when RemoveListener is needed.
type ListenerFunc func(kind EventKind, payload []any)

func (f ListenerFunc) OnStart()                  { f(Start, nil) }
func (f ListenerFunc) OnStartSuccess()           { f(StartSuccess, nil) }
func (f ListenerFunc) OnStartFailed(err error)   { f(StartFailed, []any{err}) }
func (f ListenerFunc) OnAcceptStart()            { f(AcceptStart, nil) }
func (f ListenerFunc) OnAccept(conn *Connection) { f(Accept, []any{conn}) }
func (f ListenerFunc) OnAcceptFailed(err error)  { f(AcceptFailed, []any{err}) }
func (f ListenerFunc) OnAcceptEnd()              { f(AcceptEnd, nil) }
func (f ListenerFunc) OnClose()                  { f(Close, nil) }
func (f ListenerFunc) OnCloseFailed(err error)   { f(CloseFailed, []any{err}) }
func (f ListenerFunc) OnCloseEnd()               { f(CloseEnd, nil) }

func (f ListenerFunc) OnConnectionInitFailed(err error) {
	f(ConnectionInitFailed, []any{err})
}

func (f ListenerFunc) OnSocketClosed(err error, address string) {
	f(SocketClosed, []any{err, address})
}

func (f ListenerFunc) OnConnectionClose(conn *Connection) {
	f(ConnectionClose, []any{conn})
}

func (f ListenerFunc) OnConnectionCloseFailed(conn *Connection, err error) {
	f(ConnectionCloseFailed, []any{conn, err})
}

func (f ListenerFunc) OnConnectionCloseEnd(conn *Connection) {
	f(ConnectionCloseEnd, []any{conn})
}

// dispatcher is the event dispatcher type of the server
type dispatcher = event.Dispatcher[EventKind, Listener]

func newDispatcher() *dispatcher {
	return event.NewDispatcher[EventKind, Listener]("server.Server", schemas, invoke)
}

func invoke(l Listener, kind EventKind, args []any) {
	switch kind {
	case Start:
		l.OnStart()
	case StartSuccess:
		l.OnStartSuccess()
	case StartFailed:
		l.OnStartFailed(args[0].(error))
	case AcceptStart:
		l.OnAcceptStart()
	case Accept:
		l.OnAccept(args[0].(*Connection))
	case AcceptFailed:
		l.OnAcceptFailed(args[0].(error))
	case AcceptEnd:
		l.OnAcceptEnd()
	case SocketClosed:
		address := ""
		if len(args) > 1 {
			address = args[1].(string)
		}
		l.OnSocketClosed(args[0].(error), address)
	case Close:
		l.OnClose()
	case CloseFailed:
		l.OnCloseFailed(args[0].(error))
	case CloseEnd:
		l.OnCloseEnd()
	case ConnectionInitFailed:
		l.OnConnectionInitFailed(args[0].(error))
	case ConnectionClose:
		l.OnConnectionClose(args[0].(*Connection))
	case ConnectionCloseFailed:
		l.OnConnectionCloseFailed(args[0].(*Connection), args[1].(error))
	case ConnectionCloseEnd:
		l.OnConnectionCloseEnd(args[0].(*Connection))
	}
}
