package util

import (
	"reflect"
)

// SameIdentity reports whether a and b refer to the same object.
//
// Comparable values (pointers, channels, comparable structs) are compared with ==.
// Maps and slices are compared by their backing storage. Function values are never
// identical: two closures from the same factory share a code pointer, so a func-typed
// value has no identity of its own. Wrap it in a pointer to make it removable.
//
// A comparable struct whose interface fields hold uncomparable dynamic values is
// reported as not identical instead of panicking.
func SameIdentity(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	if ta.Comparable() {
		return safeEqual(a, b)
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Map, reflect.Slice:
		if va.IsNil() || vb.IsNil() {
			return false
		}
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	default:
		return false
	}
}

// safeEqual is a == b that yields false where == would panic at runtime
func safeEqual(a, b any) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return a == b
}
