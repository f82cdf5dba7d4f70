package ringlog

import (
	"fmt"
	"testing"

	"pkg.world.dev/world-engine/assert"
)

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	_, err = New(-5)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestRecentBeforeWraparound(t *testing.T) {
	l, err := New(4)
	assert.NilError(t, err)
	l.Append("a")
	l.Append("b")

	assert.Equal(t, 2, l.Len())
	assert.DeepEqual(t, []string{"a", "b"}, l.Recent(10))
	assert.DeepEqual(t, []string{"b"}, l.Recent(1))
}

func TestRecentAfterWraparound(t *testing.T) {
	l, err := New(3)
	assert.NilError(t, err)
	for i := 1; i <= 5; i++ {
		l.Append(fmt.Sprintf("entry %d", i))
	}

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 3, l.Capacity())
	assert.DeepEqual(t, []string{"entry 3", "entry 4", "entry 5"}, l.Recent(3))
	assert.DeepEqual(t, []string{"entry 4", "entry 5"}, l.Recent(2))
}

func TestRecentOnEmptyLog(t *testing.T) {
	l, err := New(2)
	assert.NilError(t, err)
	assert.Equal(t, 0, len(l.Recent(5)))
	assert.Equal(t, 0, l.Len())
}
