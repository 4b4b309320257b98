package util

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// COWList is an insertion ordered list with copy-on-write semantics.
//
// Readers take a Snapshot and iterate it without holding any lock. Writers copy the
// current slice, apply their change and publish the copy atomically, so an iteration
// that is in flight keeps seeing the state it started with.
//
// Thread-safety: all methods are safe for concurrent use.
type COWList[T any] struct {
	mu    sync.Mutex // serializes writers
	items atomic.Pointer[[]T]
}

// NewCOWList creates an empty list
func NewCOWList[T any]() *COWList[T] {
	l := &COWList[T]{}
	empty := make([]T, 0)
	l.items.Store(&empty)
	return l
}

// Snapshot returns the current contents. The returned slice must not be modified.
func (l *COWList[T]) Snapshot() []T {
	if p := l.items.Load(); p != nil {
		return *p
	}
	return nil
}

// Len returns the current number of items
func (l *COWList[T]) Len() int {
	return len(l.Snapshot())
}

// Append adds an item at the end of the list. Duplicates are allowed.
func (l *COWList[T]) Append(item T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.Snapshot()
	next := make([]T, len(current), len(current)+1)
	copy(next, current)
	next = append(next, item)
	l.items.Store(&next)
}

// Insert places the item at index, shifting the item currently at that position
// (if any) and all following items one position to the right.
// Valid indices are 0..Len().
func (l *COWList[T]) Insert(index int, item T) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.Snapshot()
	if index < 0 || index > len(current) {
		return fmt.Errorf("index %d out of range [0,%d]", index, len(current))
	}

	next := make([]T, 0, len(current)+1)
	next = append(next, current[:index]...)
	next = append(next, item)
	next = append(next, current[index:]...)
	l.items.Store(&next)
	return nil
}

// At returns the item at index
func (l *COWList[T]) At(index int) (T, bool) {
	current := l.Snapshot()
	if index < 0 || index >= len(current) {
		var zero T
		return zero, false
	}
	return current[index], true
}

// Remove deletes the first item that has the same identity as item (see SameIdentity).
// It returns false if no such item exists.
func (l *COWList[T]) Remove(item T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.Snapshot()
	for i := range current {
		if SameIdentity(current[i], item) {
			next := make([]T, 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			l.items.Store(&next)
			return true
		}
	}
	return false
}
