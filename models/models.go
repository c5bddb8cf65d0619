package models

import (
	"time"

	"gorm.io/datatypes"
)

// Run is one journaled batch run.
type Run struct {
	ID          string `gorm:"primaryKey;type:varchar(64)"`
	Description string `gorm:"type:text"`
	Root        string `gorm:"type:text"`

	// Status tracking: pending, committed, reverted
	Status      string    `gorm:"type:varchar(20);default:'pending';index"`
	StartedAt   time.Time `gorm:"index"`
	CompletedAt *time.Time

	// Relationships
	Files []FileChange `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// FileChange records one file written by a run, with enough data to
// restore it.
type FileChange struct {
	ID       uint   `gorm:"primaryKey"`
	RunID    string `gorm:"type:varchar(64);not null;uniqueIndex:idx_run_path"`
	Path     string `gorm:"type:text;not null;uniqueIndex:idx_run_path"`
	Language string `gorm:"type:varchar(50)"`

	// Content
	Original []byte `gorm:"type:blob"`

	// Checksums for validation
	BeforeDigest string `gorm:"type:varchar(64)"` // SHA256 of original
	AfterDigest  string `gorm:"type:varchar(64)"` // SHA256 of modified
	AppliedSize  int64

	// Edits as applied, for history output
	Edits datatypes.JSON `gorm:"type:json"`
	Error string         `gorm:"type:text"`

	RecordedAt time.Time
}

// TableName customizations for cleaner names
func (Run) TableName() string        { return "runs" }
func (FileChange) TableName() string { return "file_changes" }
