package core

import (
	"bytes"

	"gitlab.com/tozd/go/errors"
)

// Apply rebuilds content from original and a normalized edit set in one
// pass. An empty set returns a byte-identical copy.
func Apply(original []byte, set *EditSet) ([]byte, error) {
	size := len(original)
	for _, e := range set.edits {
		if e.End > len(original) {
			return nil, errors.Errorf("%w: %s %s beyond %d bytes", ErrEditRange, set.file, e, len(original))
		}
		size += len(e.Replacement) - e.Len()
	}

	var buf bytes.Buffer
	buf.Grow(size)
	cursor := 0
	for _, e := range set.edits {
		buf.Write(original[cursor:e.Start])
		buf.WriteString(e.Replacement)
		cursor = e.End
	}
	buf.Write(original[cursor:])
	return buf.Bytes(), nil
}

// ApplyEdits normalizes and applies edits, reporting conflicts as a
// rejection instead of an error.
func ApplyEdits(file string, original []byte, edits []Edit) ApplyResult {
	set, err := NewEditSet(file, edits)
	if err != nil {
		return rejected(err)
	}
	content, err := Apply(original, set)
	if err != nil {
		return rejected(err)
	}
	return ApplyResult{Applied: true, Content: content}
}

func rejected(err error) ApplyResult {
	result := ApplyResult{Reason: err.Error()}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		result.Conflicts = []Edit{conflict.A, conflict.B}
	}
	return result
}
