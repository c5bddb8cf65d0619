package db

import (
	"context"
	"encoding/json"
	"time"

	"gitlab.com/tozd/go/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/termfx/refactory/core"
	"github.com/termfx/refactory/models"
)

// JournalStore persists core journals in SQL.
type JournalStore struct {
	db *gorm.DB
}

// NewJournalStore wraps a connected database.
func NewJournalStore(db *gorm.DB) *JournalStore {
	return &JournalStore{db: db}
}

func (s *JournalStore) Begin(ctx context.Context, record *core.JournalRecord) error {
	run := models.Run{
		ID:          record.ID,
		Description: record.Description,
		Root:        record.Root,
		Status:      string(record.Status),
		StartedAt:   record.Started,
	}
	return s.db.WithContext(ctx).Create(&run).Error
}

func (s *JournalStore) Record(ctx context.Context, id string, entry core.JournalEntry) error {
	edits, err := json.Marshal(entry.Edits)
	if err != nil {
		return err
	}
	change := models.FileChange{
		RunID:        id,
		Path:         entry.Path,
		Language:     entry.Language,
		Original:     entry.Original,
		BeforeDigest: entry.BeforeSum,
		AfterDigest:  entry.AfterSum,
		AppliedSize:  entry.AppliedSize,
		Edits:        datatypes.JSON(edits),
		Error:        entry.Error,
		RecordedAt:   entry.RecordedAt,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Run{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errors.Errorf("%w: %s", core.ErrJournalNotFound, id)
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}, {Name: "path"}},
			UpdateAll: true,
		}).Create(&change).Error
	})
}

func (s *JournalStore) Finish(ctx context.Context, id string, status core.JournalStatus, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.Run{}).Where("id = ?", id).
		Updates(map[string]any{"status": string(status), "completed_at": at})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.Errorf("%w: %s", core.ErrJournalNotFound, id)
	}
	return nil
}

func (s *JournalStore) Load(ctx context.Context, id string) (*core.JournalRecord, error) {
	var run models.Run
	err := s.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Errorf("%w: %s", core.ErrJournalNotFound, id)
	} else if err != nil {
		return nil, err
	}
	return toRecord(run)
}

func (s *JournalStore) List(ctx context.Context) ([]core.JournalRecord, error) {
	var runs []models.Run
	err := s.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("started_at desc").
		Find(&runs).Error
	if err != nil {
		return nil, err
	}

	records := make([]core.JournalRecord, 0, len(runs))
	for _, run := range runs {
		record, err := toRecord(run)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

func (s *JournalStore) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&models.Run{}).Select("id").
			Where("status <> ? AND completed_at < ?", string(core.JournalPending), cutoff)
		if err := tx.Where("run_id IN (?)", stale).Delete(&models.FileChange{}).Error; err != nil {
			return err
		}
		result := tx.Where("status <> ? AND completed_at < ?", string(core.JournalPending), cutoff).Delete(&models.Run{})
		removed = result.RowsAffected
		return result.Error
	})
	return int(removed), err
}

func toRecord(run models.Run) (*core.JournalRecord, error) {
	record := &core.JournalRecord{
		ID:          run.ID,
		Description: run.Description,
		Root:        run.Root,
		Status:      core.JournalStatus(run.Status),
		Started:     run.StartedAt,
	}
	if run.CompletedAt != nil {
		record.Completed = *run.CompletedAt
	}
	for _, f := range run.Files {
		var edits []core.Edit
		if len(f.Edits) > 0 {
			if err := json.Unmarshal(f.Edits, &edits); err != nil {
				return nil, errors.Errorf("failed to decode edits of %s: %w", f.Path, err)
			}
		}
		record.Entries = append(record.Entries, core.JournalEntry{
			Path:        f.Path,
			Language:    f.Language,
			Original:    f.Original,
			BeforeSum:   f.BeforeDigest,
			AfterSum:    f.AfterDigest,
			Edits:       edits,
			Error:       f.Error,
			RecordedAt:  f.RecordedAt,
			AppliedSize: f.AppliedSize,
		})
	}
	return record, nil
}
