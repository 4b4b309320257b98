package util

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
)

func TestCOWListAppendAndOrder(t *testing.T) {
	l := NewCOWList[int]()
	l.Append(1)
	l.Append(2)
	l.Append(2)

	assert.Equal(t, []int{1, 2, 2}, l.Snapshot())
	assert.Equal(t, 3, l.Len())
}

func TestCOWListInsertShiftsFollowingItems(t *testing.T) {
	l := NewCOWList[string]()
	l.Append("a")
	l.Append("c")

	require.NoError(t, l.Insert(1, "b"))
	require.NoError(t, l.Insert(0, "start"))
	require.NoError(t, l.Insert(4, "end"))
	assert.Equal(t, []string{"start", "a", "b", "c", "end"}, l.Snapshot())

	assert.Error(t, l.Insert(-1, "x"))
	assert.Error(t, l.Insert(6, "x"))
}

func TestCOWListAt(t *testing.T) {
	l := NewCOWList[int]()
	l.Append(7)

	v, ok := l.At(0)
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = l.At(1)
	assert.False(t, ok)
}

func TestCOWListRemoveByIdentity(t *testing.T) {
	type item struct{ name string }
	a, b := &item{"a"}, &item{"a"}

	l := NewCOWList[*item]()
	l.Append(a)
	l.Append(b)
	l.Append(a)

	// b is equal in value but a different object
	assert.True(t, l.Remove(b))
	assert.Equal(t, []*item{a, a}, l.Snapshot())

	// only the first occurrence is removed
	assert.True(t, l.Remove(a))
	assert.Equal(t, []*item{a}, l.Snapshot())

	assert.False(t, l.Remove(&item{"a"}))
}

func TestCOWListSnapshotIsolation(t *testing.T) {
	l := NewCOWList[int]()
	l.Append(1)
	l.Append(2)

	snap := l.Snapshot()
	l.Append(3)
	l.Remove(1)

	assert.Equal(t, []int{1, 2}, snap)
	assert.Equal(t, []int{2, 3}, l.Snapshot())
}

func TestCOWListConcurrentWriters(t *testing.T) {
	l := NewCOWList[int]()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l.Append(w*100 + i)
				_ = l.Snapshot()
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 800, l.Len())
}
