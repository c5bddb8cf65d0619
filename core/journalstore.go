package core

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gitlab.com/tozd/go/errors"
)

// DirStore keeps one JSON file per run in a directory.
type DirStore struct {
	dir string
	mu  sync.Mutex
}

// NewDirStore creates dir if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Errorf("failed to create journal dir: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

func (s *DirStore) Begin(_ context.Context, record *JournalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(record)
}

func (s *DirStore) Record(_ context.Context, id string, entry JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.read(id)
	if err != nil {
		return err
	}
	replaced := false
	for i := range record.Entries {
		if record.Entries[i].Path == entry.Path {
			record.Entries[i] = entry
			replaced = true
		}
	}
	if !replaced {
		record.Entries = append(record.Entries, entry)
	}
	return s.write(record)
}

func (s *DirStore) Finish(_ context.Context, id string, status JournalStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.read(id)
	if err != nil {
		return err
	}
	record.Status = status
	record.Completed = at
	return s.write(record)
}

func (s *DirStore) Load(_ context.Context, id string) (*JournalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

func (s *DirStore) List(_ context.Context) ([]JournalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var records []JournalRecord
	for _, file := range files {
		id, ok := strings.CutSuffix(file.Name(), ".json")
		if file.IsDir() || !ok {
			continue
		}
		record, err := s.read(id)
		if err != nil {
			continue // Skip corrupted logs
		}
		records = append(records, *record)
	}
	return records, nil
}

// Prune removes finished runs completed more than olderThan ago.
func (s *DirStore) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	records, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, record := range records {
		if record.Status == JournalPending || !record.Completed.Before(cutoff) {
			continue
		}
		if err := os.Remove(s.path(record.ID)); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *DirStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *DirStore) read(id string) (*JournalRecord, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, errors.Errorf("%w: %q", ErrJournalNotFound, id)
	}
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, errors.Errorf("%w: %s", ErrJournalNotFound, id)
	} else if err != nil {
		return nil, errors.Errorf("failed to read journal: %w", err)
	}

	var record JournalRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.Errorf("failed to parse journal %s: %w", id, err)
	}
	return &record, nil
}

func (s *DirStore) write(record *JournalRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(record.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(record.ID))
}
