package util

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

type holder struct {
	v any
}

//go:noinline
func newCallback(counter *int) func() {
	return func() { *counter++ }
}

func TestSameIdentity(t *testing.T) {
	type named struct{ n int }
	p1, p2 := &named{1}, &named{1}

	f := func() {}

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"same pointer", p1, p1, true},
		{"different pointers", p1, p2, false},
		{"comparable values", 3, 3, true},
		{"different types", 3, int64(3), false},
		{"funcs have no identity", f, f, false},
		{"both nil", nil, nil, true},
		{"one nil", p1, nil, false},
		{"slices never compare by value", []int{1}, []int{1}, false},
		{"comparable struct holding a pointer", holder{p1}, holder{p1}, true},
		{"struct holding a slice", holder{[]int{1}}, holder{[]int{1}}, false},
		{"struct holding a func", holder{f}, holder{f}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, SameIdentity(tt.a, tt.b))
			})
		})
	}
}

func TestSameIdentityClosuresFromOneFactory(t *testing.T) {
	var n1, n2 int
	a, b := newCallback(&n1), newCallback(&n2)

	assert.False(t, SameIdentity(a, b))

	l := NewCOWList[func()]()
	l.Append(a)
	assert.False(t, l.Remove(b))
	assert.Equal(t, 1, l.Len())
}

func TestCOWListRemoveWithUncomparablePayload(t *testing.T) {
	l := NewCOWList[any]()
	l.Append(holder{[]int{1}})
	target := &holder{}
	l.Append(target)

	assert.NotPanics(t, func() {
		assert.True(t, l.Remove(target))
	})
	assert.Equal(t, 1, l.Len())
}
