package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_EmptySetIsIdentity(t *testing.T) {
	original := []byte("function foo() { return 1 }\n")
	set, err := NewEditSet("a.js", nil)
	require.NoError(t, err)

	got, err := Apply(original, set)
	require.NoError(t, err)
	assert.Equal(t, original, got)

	got[0] = 'F'
	assert.Equal(t, byte('f'), original[0], "result does not alias the input")
}

func TestApply_RoundTrip(t *testing.T) {
	original := []byte("function foo() {}\nfoo();\n")
	edits := []Edit{
		{Start: 9, End: 12, Replacement: "bar"},
		{Start: 18, End: 21, Replacement: "bar"},
	}
	set, err := NewEditSet("a.js", edits)
	require.NoError(t, err)

	got, err := Apply(original, set)
	require.NoError(t, err)
	assert.Equal(t, "function bar() {}\nbar();\n", string(got))

	// Every byte outside the edited ranges is preserved in order.
	assert.Equal(t, original[:9], got[:9])
	assert.Equal(t, original[12:18], got[12:18])
	assert.Equal(t, original[21:], got[21:])
}

func TestApply_Idempotent(t *testing.T) {
	original := []byte("x = foo(1)\n")
	edit := Edit{Start: 4, End: 7, Replacement: "bar"}

	once, err := NewEditSet("a.py", []Edit{edit})
	require.NoError(t, err)
	twice, err := NewEditSet("a.py", []Edit{edit, edit})
	require.NoError(t, err)

	a, err := Apply(original, once)
	require.NoError(t, err)
	b, err := Apply(original, twice)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestApply_InsertAndDelete(t *testing.T) {
	original := []byte("abcdef")
	set, err := NewEditSet("f", []Edit{
		{Start: 0, End: 0, Replacement: ">"},
		{Start: 2, End: 4},
		{Start: 6, End: 6, Replacement: "<"},
	})
	require.NoError(t, err)

	got, err := Apply(original, set)
	require.NoError(t, err)
	assert.Equal(t, ">abef<", string(got))
}

func TestApply_OutOfRange(t *testing.T) {
	set, err := NewEditSet("f", []Edit{{Start: 2, End: 40, Replacement: "x"}})
	require.NoError(t, err)

	_, err = Apply([]byte("short"), set)
	assert.ErrorIs(t, err, ErrEditRange)
}

func TestApplyEdits(t *testing.T) {
	original := []byte("0123456789abcdefghijklmnopqrstuvwxyz")

	t.Run("applied", func(t *testing.T) {
		result := ApplyEdits("f", original, []Edit{{Start: 0, End: 1, Replacement: "X"}})
		assert.True(t, result.Applied)
		assert.Equal(t, "X123456789abcdefghijklmnopqrstuvwxyz", string(result.Content))
	})

	t.Run("conflict rejected", func(t *testing.T) {
		result := ApplyEdits("f", original, []Edit{
			{Start: 10, End: 20, Replacement: "A"},
			{Start: 15, End: 25, Replacement: "B"},
		})
		assert.False(t, result.Applied)
		assert.Nil(t, result.Content)
		assert.Len(t, result.Conflicts, 2)
		assert.Contains(t, result.Reason, "conflicts with")
	})
}
