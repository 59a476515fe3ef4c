package buffers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingAppendBelowCapacity(t *testing.T) {
	r := NewRing[int](4)
	r.Append(1)
	r.Append(2)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []int{1, 2}, r.Snapshot())
}

func TestRingEvictsOldestAtCapacity(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Append(i)
	}

	require.Equal(t, 3, r.Len())
	assert.Equal(t, []int{3, 4, 5}, r.Snapshot())
}

func TestRingLast(t *testing.T) {
	r := NewRing[string](3)
	r.Append("a")
	r.Append("b")
	r.Append("c")
	r.Append("d") // evicts "a"

	assert.Equal(t, []string{"c", "d"}, r.Last(2))
	assert.Equal(t, []string{"b", "c", "d"}, r.Last(10))
	assert.Nil(t, r.Last(0))
}

func TestRingClear(t *testing.T) {
	r := NewRing[int](2)
	r.Append(1)
	r.Append(2)
	r.Append(3)
	r.Clear()

	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.Snapshot())

	// Buffer remains usable after clearing a wrapped buffer.
	r.Append(7)
	assert.Equal(t, []int{7}, r.Snapshot())
}

func TestRingMinimumCapacity(t *testing.T) {
	r := NewRing[int](0)
	r.Append(1)
	r.Append(2)

	assert.Equal(t, 1, r.Cap())
	assert.Equal(t, []int{2}, r.Snapshot())
}
