package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) (*Journal, *DirStore) {
	t.Helper()
	store, err := NewDirStore(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	config := DefaultAtomicConfig()
	config.UseFsync = false
	return NewJournal(store, NewAtomicWriter(config)), store
}

func TestJournal_WriteAndRevert(t *testing.T) {
	ctx := context.Background()
	journal, store := newTestJournal(t)
	dir := t.TempDir()

	a := filepath.Join(dir, "a.go")
	b := filepath.Join(dir, "b.go")
	require.NoError(t, os.WriteFile(a, []byte("package a\nfunc foo() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("package b\n"), 0o644))

	id, err := journal.Begin(ctx, "rename foo", dir)
	require.NoError(t, err)

	require.NoError(t, journal.Write(ctx, a, "go",
		[]byte("package a\nfunc foo() {}\n"), []byte("package a\nfunc bar() {}\n"),
		[]Edit{{File: a, Start: 15, End: 18, Replacement: "bar"}}))
	require.NoError(t, journal.Write(ctx, b, "go", []byte("package b\n"), []byte("package bb\n"), nil))
	require.NoError(t, journal.Commit(ctx))

	record, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JournalCommitted, record.Status)
	require.Len(t, record.Entries, 2)
	assert.Equal(t, Checksum([]byte("package a\nfunc foo() {}\n")), record.Entries[0].BeforeSum)
	assert.Equal(t, "bar", record.Entries[0].Edits[0].Replacement)

	got, err := os.ReadFile(a)
	require.NoError(t, err)
	assert.Equal(t, "package a\nfunc bar() {}\n", string(got))

	result, err := journal.Revert(ctx, id)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, result.Restored)
	assert.Empty(t, result.Skipped)

	got, err = os.ReadFile(a)
	require.NoError(t, err)
	assert.Equal(t, "package a\nfunc foo() {}\n", string(got))

	record, err = store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JournalReverted, record.Status)

	_, err = journal.Revert(ctx, id)
	assert.ErrorIs(t, err, ErrAlreadyReverted)
}

func TestJournal_RevertSkipsChangedFiles(t *testing.T) {
	ctx := context.Background()
	journal, store := newTestJournal(t)
	dir := t.TempDir()

	a := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(a, []byte("foo()\n"), 0o644))

	id, err := journal.Begin(ctx, "", dir)
	require.NoError(t, err)
	require.NoError(t, journal.Write(ctx, a, "python", []byte("foo()\n"), []byte("bar()\n"), nil))
	require.NoError(t, journal.Commit(ctx))

	require.NoError(t, os.WriteFile(a, []byte("baz()\n"), 0o644))

	result, err := journal.Revert(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, result.Restored)
	require.Contains(t, result.Skipped, a)
	assert.ErrorIs(t, result.Skipped[a], ErrChangedSinceEdit)

	got, err := os.ReadFile(a)
	require.NoError(t, err)
	assert.Equal(t, "baz()\n", string(got), "hand edits are never overwritten")

	record, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JournalCommitted, record.Status)
}

func TestJournal_RevertInterruptedRun(t *testing.T) {
	ctx := context.Background()
	journal, store := newTestJournal(t)
	a := filepath.Join(t.TempDir(), "a.js")
	require.NoError(t, os.WriteFile(a, []byte("foo"), 0o644))

	id, err := journal.Begin(ctx, "", "")
	require.NoError(t, err)

	// An entry recorded but never written, as after a crash.
	require.NoError(t, store.Record(ctx, id, JournalEntry{
		Path: a, Original: []byte("foo"), BeforeSum: Checksum([]byte("foo")), AfterSum: Checksum([]byte("bar")),
	}))

	result, err := journal.Revert(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{a}, result.Unchanged)
}

func TestJournal_Lifecycle(t *testing.T) {
	ctx := context.Background()
	journal, _ := newTestJournal(t)

	assert.ErrorIs(t, journal.Commit(ctx), ErrNoActiveJournal)
	assert.ErrorIs(t, journal.Write(ctx, "x", "", nil, nil, nil), ErrNoActiveJournal)

	_, err := journal.Begin(ctx, "first", "")
	require.NoError(t, err)
	_, err = journal.Begin(ctx, "second", "")
	assert.ErrorIs(t, err, ErrJournalActive)

	_, err = journal.Revert(ctx, "run_missing")
	assert.ErrorIs(t, err, ErrJournalNotFound)
	_, err = journal.Revert(ctx, "../etc")
	assert.ErrorIs(t, err, ErrJournalNotFound)
}

func TestJournal_History(t *testing.T) {
	ctx := context.Background()
	journal, store := newTestJournal(t)

	older := &JournalRecord{ID: "run_older", Status: JournalCommitted, Started: time.Now().Add(-2 * time.Hour), Completed: time.Now().Add(-2 * time.Hour)}
	newer := &JournalRecord{ID: "run_newer", Status: JournalCommitted, Started: time.Now(), Completed: time.Now()}
	require.NoError(t, store.Begin(ctx, older))
	require.NoError(t, store.Begin(ctx, newer))

	records, err := journal.History(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "run_newer", records[0].ID)

	removed, err := store.Prune(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	records, err = journal.History(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "run_newer", records[0].ID)
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Checksum(nil))
}
