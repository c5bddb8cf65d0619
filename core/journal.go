package core

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

var (
	ErrJournalNotFound  = errors.Base("journal not found")
	ErrNoActiveJournal  = errors.Base("no active journal")
	ErrJournalActive    = errors.Base("journal already in progress")
	ErrAlreadyReverted  = errors.Base("journal already reverted")
	ErrChangedSinceEdit = errors.Base("file changed since it was edited")
)

// JournalStatus is the lifecycle of a journaled run.
type JournalStatus string

const (
	JournalPending   JournalStatus = "pending"
	JournalCommitted JournalStatus = "committed"
	JournalReverted  JournalStatus = "reverted"
)

// JournalEntry is one written file. It is recorded before the write so an
// interrupted run can still be reverted.
type JournalEntry struct {
	Path        string    `json:"path"`
	Language    string    `json:"language,omitempty"`
	Original    []byte    `json:"original"`
	BeforeSum   string    `json:"before_sum"`
	AfterSum    string    `json:"after_sum"`
	Edits       []Edit    `json:"edits,omitempty"`
	Error       string    `json:"error,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
	AppliedSize int64     `json:"applied_size"`
}

// JournalRecord is the persisted history of one run.
type JournalRecord struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Root        string         `json:"root"`
	Status      JournalStatus  `json:"status"`
	Started     time.Time      `json:"started"`
	Completed   time.Time      `json:"completed,omitzero"`
	Entries     []JournalEntry `json:"entries"`
}

// JournalStore persists journal records. Record upserts by entry path.
type JournalStore interface {
	Begin(ctx context.Context, record *JournalRecord) error
	Record(ctx context.Context, id string, entry JournalEntry) error
	Finish(ctx context.Context, id string, status JournalStatus, at time.Time) error
	Load(ctx context.Context, id string) (*JournalRecord, error)
	List(ctx context.Context) ([]JournalRecord, error)
	Prune(ctx context.Context, olderThan time.Duration) (int, error)
}

// RevertResult lists what Revert did per file.
type RevertResult struct {
	Restored  []string
	Unchanged []string
	Skipped   map[string]error
}

// Journal writes files through an AtomicWriter while keeping enough state
// to undo the run later.
type Journal struct {
	store  JournalStore
	writer *AtomicWriter

	mu      sync.Mutex
	current *JournalRecord
}

// NewJournal creates a journal over store.
func NewJournal(store JournalStore, writer *AtomicWriter) *Journal {
	return &Journal{store: store, writer: writer}
}

// Begin starts a new journaled run and returns its ID.
func (j *Journal) Begin(ctx context.Context, description, root string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.current != nil {
		return "", errors.Errorf("%w: %s", ErrJournalActive, j.current.ID)
	}

	record := &JournalRecord{
		ID:          newJournalID(),
		Description: description,
		Root:        root,
		Status:      JournalPending,
		Started:     time.Now().UTC(),
	}
	if err := j.store.Begin(ctx, record); err != nil {
		return "", errors.Errorf("failed to write journal: %w", err)
	}
	j.current = record
	return record.ID, nil
}

// Write records path's original content and replaces it with content.
func (j *Journal) Write(ctx context.Context, path, language string, original, content []byte, edits []Edit) error {
	j.mu.Lock()
	record := j.current
	j.mu.Unlock()
	if record == nil {
		return ErrNoActiveJournal
	}

	entry := JournalEntry{
		Path:        path,
		Language:    language,
		Original:    original,
		BeforeSum:   Checksum(original),
		AfterSum:    Checksum(content),
		Edits:       edits,
		RecordedAt:  time.Now().UTC(),
		AppliedSize: int64(len(content)),
	}
	if err := j.store.Record(ctx, record.ID, entry); err != nil {
		return errors.Errorf("failed to journal %s: %w", path, err)
	}

	if err := j.writer.WriteFile(path, content); err != nil {
		entry.Error = err.Error()
		if recErr := j.store.Record(ctx, record.ID, entry); recErr != nil {
			zerolog.Ctx(ctx).Warn().Err(recErr).Str("path", path).Msg("failed to journal write error")
		}
		return err
	}
	return nil
}

// Commit marks the active run finished.
func (j *Journal) Commit(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.current == nil {
		return ErrNoActiveJournal
	}
	id := j.current.ID
	j.current = nil
	return j.store.Finish(ctx, id, JournalCommitted, time.Now().UTC())
}

// Revert restores every file of run id whose content still matches what the
// run wrote. Files edited since then are skipped with ErrChangedSinceEdit.
func (j *Journal) Revert(ctx context.Context, id string) (*RevertResult, error) {
	record, err := j.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status == JournalReverted {
		return nil, errors.Errorf("%w: %s", ErrAlreadyReverted, id)
	}

	log := zerolog.Ctx(ctx)
	result := &RevertResult{Skipped: map[string]error{}}
	for _, entry := range slices.Backward(record.Entries) {
		current, err := os.ReadFile(entry.Path)
		if err != nil {
			result.Skipped[entry.Path] = errors.Errorf("failed to read: %w", err)
			continue
		}

		switch Checksum(current) {
		case entry.BeforeSum:
			result.Unchanged = append(result.Unchanged, entry.Path)
		case entry.AfterSum:
			if err := j.writer.WriteFile(entry.Path, entry.Original); err != nil {
				result.Skipped[entry.Path] = err
				continue
			}
			result.Restored = append(result.Restored, entry.Path)
			log.Debug().Str("path", entry.Path).Msg("restored")
		default:
			result.Skipped[entry.Path] = errors.Errorf("%w: %s", ErrChangedSinceEdit, entry.Path)
		}
	}

	if len(result.Skipped) == 0 {
		if err := j.store.Finish(ctx, id, JournalReverted, time.Now().UTC()); err != nil {
			return result, errors.Errorf("failed to update journal: %w", err)
		}
	}
	return result, nil
}

// History lists stored runs, newest first.
func (j *Journal) History(ctx context.Context) ([]JournalRecord, error) {
	records, err := j.store.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(records, func(a, b JournalRecord) int {
		return b.Started.Compare(a.Started)
	})
	return records, nil
}

// Prune drops finished runs completed more than olderThan ago.
func (j *Journal) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	return j.store.Prune(ctx, olderThan)
}

// Checksum returns the hex SHA-256 of content.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func newJournalID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("run_%d", time.Now().UTC().UnixNano())
	}
	return fmt.Sprintf("run_%s_%s", time.Now().UTC().Format("20060102T150405"), hex.EncodeToString(buf))
}
