package event

import (
	"fmt"
	"github.com/ValentinKolb/dNet/lib/util"
	"reflect"
)

// Kind is the constraint for event kinds
type Kind interface {
	comparable
	String() string
}

// Schema describes the payload of one event kind.
// Required types must all be present, Optional types may follow in order.
type Schema struct {
	Required []reflect.Type
	Optional []reflect.Type
}

// Invoker calls the listener method matching kind. args have already been validated
// against the schema of kind, so type assertions on them cannot fail.
type Invoker[K Kind, L any] func(listener L, kind K, args []any)

// Dispatcher delivers events of kind K to listeners of type L
type Dispatcher[K Kind, L any] struct {
	owner     string
	schemas   map[K]Schema
	invoke    Invoker[K, L]
	listeners *util.COWList[L]
}

// NewDispatcher creates a dispatcher. owner is only used in error messages.
// Event kinds without an entry in schemas carry no payload.
func NewDispatcher[K Kind, L any](owner string, schemas map[K]Schema, invoke Invoker[K, L]) *Dispatcher[K, L] {
	if invoke == nil {
		panic("event: nil invoker")
	}
	return &Dispatcher[K, L]{
		owner:     owner,
		schemas:   schemas,
		invoke:    invoke,
		listeners: util.NewCOWList[L](),
	}
}

// --------------------------------------------------------------------------
// Listener management
// --------------------------------------------------------------------------

// Register appends a listener. The same listener may be registered more than once,
// it is then notified once per registration.
func (d *Dispatcher[K, L]) Register(listener L) {
	d.listeners.Append(listener)
}

// Remove removes the first registration of listener (by identity)
func (d *Dispatcher[K, L]) Remove(listener L) bool {
	return d.listeners.Remove(listener)
}

// Listeners returns the currently registered listeners in registration order
func (d *Dispatcher[K, L]) Listeners() []L {
	return d.listeners.Snapshot()
}

// Len returns the number of registrations
func (d *Dispatcher[K, L]) Len() int {
	return d.listeners.Len()
}

// --------------------------------------------------------------------------
// Notification
// --------------------------------------------------------------------------

// Notify validates args against the schema of kind and then calls every registered
// listener in registration order. It panics with a *PayloadError if the payload does
// not match, before any listener is called.
func (d *Dispatcher[K, L]) Notify(kind K, args ...any) {
	if err := d.Validate(kind, args); err != nil {
		panic(err)
	}

	for _, l := range d.listeners.Snapshot() {
		d.invoke(l, kind, args)
	}
}

// Validate checks args against the schema of kind
func (d *Dispatcher[K, L]) Validate(kind K, args []any) error {
	schema := d.schemas[kind]

	minArgs := len(schema.Required)
	maxArgs := minArgs + len(schema.Optional)
	if len(args) < minArgs || len(args) > maxArgs {
		return &PayloadError{
			Owner:  d.owner,
			Kind:   kind.String(),
			Reason: fmt.Sprintf("expected %s arguments, got %d", arity(minArgs, maxArgs), len(args)),
		}
	}

	for i, arg := range args {
		var want reflect.Type
		if i < minArgs {
			want = schema.Required[i]
		} else {
			want = schema.Optional[i-minArgs]
		}

		if arg == nil {
			return &PayloadError{
				Owner:  d.owner,
				Kind:   kind.String(),
				Reason: fmt.Sprintf("argument %d is nil, expected %s", i, want),
			}
		}
		if got := reflect.TypeOf(arg); !got.AssignableTo(want) {
			return &PayloadError{
				Owner:  d.owner,
				Kind:   kind.String(),
				Reason: fmt.Sprintf("argument %d has type %s, expected %s", i, got, want),
			}
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// PayloadError is raised (as a panic) when an event is published with a payload
// that does not match the schema of its kind
type PayloadError struct {
	Owner  string
	Kind   string
	Reason string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("event: invalid payload for %s.%s: %s", e.Owner, e.Kind, e.Reason)
}

// TypeOf returns the reflect.Type of T, also for interface types like error
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Types is a shorthand for building schema type lists
func Types(types ...reflect.Type) []reflect.Type {
	return types
}

func arity(minArgs, maxArgs int) string {
	if minArgs == maxArgs {
		return fmt.Sprintf("%d", minArgs)
	}
	return fmt.Sprintf("%d to %d", minArgs, maxArgs)
}
