package core

import (
	"fmt"
	"time"

	"github.com/termfx/refactory/syntax"
)

// SourceFile is one file's content and its last-known syntax tree. The tree
// is owned by the file and invalidated whenever the content is replaced.
type SourceFile struct {
	Path     string
	Language string
	content  []byte
	tree     *syntax.Tree
}

// NewSourceFile wraps content read from path.
func NewSourceFile(path, language string, content []byte) *SourceFile {
	return &SourceFile{Path: path, Language: language, content: content}
}

// Content returns the current bytes. They must not be modified.
func (f *SourceFile) Content() []byte {
	return f.content
}

// Tree returns the tree for the current content, or nil.
func (f *SourceFile) Tree() *syntax.Tree {
	return f.tree
}

// SetTree attaches a tree parsed from the current content.
func (f *SourceFile) SetTree(t *syntax.Tree) {
	if f.tree != nil && f.tree != t {
		f.tree.Close()
	}
	f.tree = t
}

// SetContent replaces the content and drops the stale tree.
func (f *SourceFile) SetContent(content []byte) {
	f.content = content
	f.SetTree(nil)
}

// Close releases the tree.
func (f *SourceFile) Close() {
	f.SetTree(nil)
}

// Edit replaces bytes [Start, End) of File's original content. Coordinates
// always refer to the content the matches were taken from, never to a
// partially edited buffer.
type Edit struct {
	File        string `json:"file"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Replacement string `json:"replacement"`
	// Origin names what produced the edit, e.g. "rule rename-foo (literal)".
	Origin string `json:"origin,omitempty"`
}

func (e Edit) String() string {
	return fmt.Sprintf("[%d,%d)->%q", e.Start, e.End, e.Replacement)
}

// Len returns the number of original bytes replaced.
func (e Edit) Len() int {
	return e.End - e.Start
}

// sameRange reports whether two edits cover exactly the same bytes.
func (e Edit) sameRange(o Edit) bool {
	return e.Start == o.Start && e.End == o.End
}

// ApplyResult is the outcome for one file: either the complete new content
// or a rejection that leaves the file untouched. It is never partial.
type ApplyResult struct {
	Applied   bool
	Content   []byte
	Reason    string
	Conflicts []Edit
}

// FileState tracks a file through a batch run. States only move forward.
type FileState int

const (
	StateDiscovered FileState = iota
	StateParsed
	StateQueried
	StateEditSetBuilt
	StateApplied
	StateRejected
	StateSkipped
)

func (s FileState) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateParsed:
		return "parsed"
	case StateQueried:
		return "queried"
	case StateEditSetBuilt:
		return "edit-set-built"
	case StateApplied:
		return "applied"
	case StateRejected:
		return "rejected"
	case StateSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s FileState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition is possible.
func (s FileState) Terminal() bool {
	return s >= StateApplied
}

// SkipReason says why a file was never edited.
type SkipReason string

const (
	SkipUnsupported SkipReason = "unsupported language"
	SkipUnreadable  SkipReason = "unreadable"
	SkipParseError  SkipReason = "parse error"
	SkipCancelled   SkipReason = "cancelled"
)

// FileScope defines which files to process in filesystem operations
type FileScope struct {
	Path            string   `json:"path"`                    // Root path to scan
	Include         []string `json:"include,omitempty"`       // File patterns to include (*.go, **/*.ts)
	Exclude         []string `json:"exclude,omitempty"`       // File patterns to exclude
	Languages       []string `json:"languages,omitempty"`     // Restrict to these language tags
	MaxDepth        int      `json:"max_depth,omitempty"`     // Max directory levels below Path (0 = unlimited)
	MaxFiles        int      `json:"max_files,omitempty"`     // Max files to process (0 = unlimited)
	MaxFileSize     int64    `json:"max_file_size,omitempty"` // Skip larger files (0 = unlimited)
	FollowSymlinks  bool     `json:"follow_symlinks"`         // Follow symbolic links
	IncludeHidden   bool     `json:"include_hidden"`          // Descend into dot-directories
	IgnoreGitignore bool     `json:"ignore_gitignore"`        // Do not apply .gitignore rules
}

// FileReport is the final per-file outcome of a batch run.
type FileReport struct {
	Path         string      `json:"path"`
	Language     string      `json:"language,omitempty"`
	State        FileState   `json:"state"`
	SkipReason   SkipReason  `json:"skip_reason,omitempty"`
	Matches      int         `json:"matches"`
	Found        []MatchInfo `json:"found,omitempty"`
	Declined     int         `json:"declined,omitempty"`
	Edits        []Edit      `json:"edits,omitempty"`
	Conflicts    []Edit      `json:"conflicts,omitempty"`
	Modified     bool        `json:"modified"`
	Diff         string      `json:"diff,omitempty"`
	Warnings     []string    `json:"warnings,omitempty"`
	Error        string      `json:"error,omitempty"`
	OriginalSize int64       `json:"original_size"`
	ModifiedSize int64       `json:"modified_size"`
	Err          error       `json:"-"`
}

func (r *FileReport) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *FileReport) skip(reason SkipReason, err error) {
	r.State = StateSkipped
	r.SkipReason = reason
	if err != nil {
		r.Err = err
		r.Error = err.Error()
	}
}

func (r *FileReport) reject(err error) {
	r.State = StateRejected
	r.Err = err
	r.Error = err.Error()
}

// Report summarizes a batch run in discovery order.
type Report struct {
	Files         []FileReport  `json:"files"`
	Warnings      []string      `json:"warnings,omitempty"`
	Cancelled     bool          `json:"cancelled"`
	DryRun        bool          `json:"dry_run"`
	JournalID     string        `json:"journal_id,omitempty"`
	ScanDuration  time.Duration `json:"scan_duration"`
	TotalDuration time.Duration `json:"total_duration"`
}

// Counts returns how many files ended in each terminal state.
func (r *Report) Counts() (applied, rejected, skipped int) {
	for _, f := range r.Files {
		switch f.State {
		case StateApplied:
			applied++
		case StateRejected:
			rejected++
		case StateSkipped:
			skipped++
		}
	}
	return applied, rejected, skipped
}

// Modified returns the number of files whose content changed.
func (r *Report) Modified() int {
	n := 0
	for _, f := range r.Files {
		if f.Modified {
			n++
		}
	}
	return n
}

// ExitCode is 0 when every file was applied or skipped for a benign reason
// and 1 when any file was rejected or the run was cancelled.
func (r *Report) ExitCode() int {
	if r.Cancelled {
		return 1
	}
	for _, f := range r.Files {
		if f.State == StateRejected {
			return 1
		}
	}
	return 0
}
