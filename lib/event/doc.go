// Package event provides the typed notification dispatcher used by the dNet components.
//
// Every component that publishes lifecycle events (the framed channel, the connection
// registry, the server and client facades) owns its own Dispatcher instance. There is no
// global event bus.
//
// A Dispatcher is parameterized by the event kind type and the listener type of its owner:
//
//   - K is a comparable event kind (usually a small integer enum with a String method).
//   - L is the listener interface of the owner, e.g. frame.Listener.
//
// The owner supplies an Invoker that maps an event kind to the matching listener method,
// and a Schema per event kind describing the payload the listener method expects.
// Notify validates the payload against that schema before any listener is called. A
// mismatch is a programming error and panics with a *PayloadError.
//
// Listeners are kept in registration order in a copy-on-write list. Duplicates are
// allowed, removal is by identity, and a notification in flight iterates the snapshot
// it started with, so listeners may register or remove listeners from within a callback.
package event
