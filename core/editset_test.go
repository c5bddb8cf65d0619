package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEditSet_OverlapConflict(t *testing.T) {
	a := Edit{Start: 10, End: 20, Replacement: "A"}
	b := Edit{Start: 15, End: 25, Replacement: "B"}

	_, err := NewEditSet("f.go", []Edit{b, a})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "f.go", conflict.File)
	assert.Equal(t, 10, conflict.A.Start)
	assert.Equal(t, 15, conflict.B.Start)
	assert.Contains(t, conflict.Error(), "[10,20)")
	assert.Contains(t, conflict.Error(), "[15,25)")
}

func TestNewEditSet_IdenticalCollapse(t *testing.T) {
	set, err := NewEditSet("f.go", []Edit{
		{Start: 4, End: 7, Replacement: "bar"},
		{Start: 4, End: 7, Replacement: "bar"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
}

func TestNewEditSet_SameRangeDifferentText(t *testing.T) {
	_, err := NewEditSet("f.go", []Edit{
		{Start: 4, End: 7, Replacement: "bar"},
		{Start: 4, End: 7, Replacement: "baz"},
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestNewEditSet_TouchingAllowed(t *testing.T) {
	set, err := NewEditSet("f.go", []Edit{
		{Start: 5, End: 10, Replacement: "b"},
		{Start: 0, End: 5, Replacement: "a"},
		{Start: 10, End: 10, Replacement: "insert"},
	})
	require.NoError(t, err)

	edits := set.Edits()
	require.Len(t, edits, 3)
	for i := 1; i < len(edits); i++ {
		assert.LessOrEqual(t, edits[i-1].End, edits[i].Start, "edits are sorted and disjoint")
	}
	for _, e := range edits {
		assert.Equal(t, "f.go", e.File)
	}
}

func TestNewEditSet_InvalidRange(t *testing.T) {
	_, err := NewEditSet("f.go", []Edit{{Start: 8, End: 3}})
	assert.ErrorIs(t, err, ErrEditRange)

	_, err = NewEditSet("f.go", []Edit{{Start: -1, End: 3}})
	assert.ErrorIs(t, err, ErrEditRange)
}

func TestNewEditSet_Empty(t *testing.T) {
	set, err := NewEditSet("f.go", nil)
	require.NoError(t, err)
	assert.True(t, set.Empty())
	assert.Empty(t, set.Changes())
}

func TestEditSet_Changes(t *testing.T) {
	set, err := NewEditSet("f.go", []Edit{{Start: 1, End: 2, Replacement: "xy"}})
	require.NoError(t, err)

	changes := set.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, 1, changes[0].Start)
	assert.Equal(t, 2, changes[0].End)
	assert.Equal(t, []byte("xy"), changes[0].Text)
}

type dropSecond struct{ calls int }

func (d *dropSecond) ResolveConflict(_ context.Context, c *ConflictError) (Edit, bool) {
	d.calls++
	return c.B, true
}

type declineAll struct{}

func (declineAll) ResolveConflict(context.Context, *ConflictError) (Edit, bool) {
	return Edit{}, false
}

func TestResolveEditSet(t *testing.T) {
	edits := []Edit{
		{Start: 10, End: 20, Replacement: "A"},
		{Start: 15, End: 25, Replacement: "B"},
		{Start: 18, End: 30, Replacement: "C"},
	}

	t.Run("resolver drops edits until consistent", func(t *testing.T) {
		resolver := &dropSecond{}
		set, err := ResolveEditSet(context.Background(), "f.go", edits, resolver)
		require.NoError(t, err)
		require.Equal(t, 1, set.Len())
		assert.Equal(t, "A", set.Edits()[0].Replacement)
		assert.Equal(t, 2, resolver.calls)
	})

	t.Run("declined conflict stands", func(t *testing.T) {
		_, err := ResolveEditSet(context.Background(), "f.go", edits, declineAll{})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("nil resolver", func(t *testing.T) {
		_, err := ResolveEditSet(context.Background(), "f.go", edits, nil)
		assert.ErrorIs(t, err, ErrConflict)
	})
}
