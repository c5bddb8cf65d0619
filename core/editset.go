package core

import (
	"context"
	"fmt"
	"slices"

	"gitlab.com/tozd/go/errors"

	"github.com/termfx/refactory/syntax"
)

var (
	// ErrConflict is wrapped by every *ConflictError.
	ErrConflict = errors.Base("conflicting edits")
	// ErrEditRange reports an edit outside the file's bytes.
	ErrEditRange = errors.Base("edit out of range")
)

// ConflictError reports two edits that cannot both be applied: the same
// range with different replacements, or ranges that overlap.
type ConflictError struct {
	File string
	A    Edit
	B    Edit
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: edit %s conflicts with %s", e.File, e.A, e.B)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// ConflictResolver is consulted when edits conflict. It returns the edit to
// drop, or ok=false to leave the conflict standing.
type ConflictResolver interface {
	ResolveConflict(ctx context.Context, conflict *ConflictError) (drop Edit, ok bool)
}

// EditSet is one file's edits, sorted by start and free of overlaps.
type EditSet struct {
	file  string
	edits []Edit
}

// NewEditSet normalizes edits for file. Edits with the same range and the
// same replacement collapse into one. Identical ranges with different
// replacements, or overlapping ranges, yield a *ConflictError; adjacent
// ranges are fine.
func NewEditSet(file string, edits []Edit) (*EditSet, error) {
	sorted := slices.Clone(edits)
	for _, e := range sorted {
		if e.Start < 0 || e.End < e.Start {
			return nil, errors.Errorf("%w: %s %s", ErrEditRange, file, e)
		}
	}
	slices.SortStableFunc(sorted, func(a, b Edit) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return a.End - b.End
	})

	out := make([]Edit, 0, len(sorted))
	for _, e := range sorted {
		e.File = file
		if len(out) > 0 {
			prev := out[len(out)-1]
			if prev.sameRange(e) {
				if prev.Replacement == e.Replacement {
					continue
				}
				return nil, &ConflictError{File: file, A: prev, B: e}
			}
			if e.Start < prev.End {
				return nil, &ConflictError{File: file, A: prev, B: e}
			}
		}
		out = append(out, e)
	}
	return &EditSet{file: file, edits: out}, nil
}

// ResolveEditSet normalizes edits, asking resolver to drop one edit of each
// conflicting pair until the set is consistent or the resolver declines.
func ResolveEditSet(ctx context.Context, file string, edits []Edit, resolver ConflictResolver) (*EditSet, error) {
	pending := slices.Clone(edits)
	for {
		set, err := NewEditSet(file, pending)
		if err == nil {
			return set, nil
		}
		var conflict *ConflictError
		if resolver == nil || !errors.As(err, &conflict) {
			return nil, err
		}
		drop, ok := resolver.ResolveConflict(ctx, conflict)
		if !ok {
			return nil, err
		}
		i := slices.IndexFunc(pending, func(e Edit) bool {
			return e.sameRange(drop) && e.Replacement == drop.Replacement
		})
		if i < 0 {
			return nil, err
		}
		pending = slices.Delete(pending, i, i+1)
	}
}

// File returns the path the edits apply to.
func (s *EditSet) File() string {
	return s.file
}

// Edits returns a copy of the normalized edits.
func (s *EditSet) Edits() []Edit {
	return slices.Clone(s.edits)
}

// Len returns the number of edits.
func (s *EditSet) Len() int {
	return len(s.edits)
}

// Empty reports whether the set has no edits.
func (s *EditSet) Empty() bool {
	return len(s.edits) == 0
}

// Changes converts the edits for incremental re-parsing.
func (s *EditSet) Changes() []syntax.Change {
	changes := make([]syntax.Change, len(s.edits))
	for i, e := range s.edits {
		changes[i] = syntax.Change{Start: e.Start, End: e.End, Text: []byte(e.Replacement)}
	}
	return changes
}
