package core

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"gitlab.com/tozd/go/errors"

	"github.com/termfx/refactory/providers"
)

// ErrInvalidScope reports a scope that cannot be walked.
var ErrInvalidScope = errors.Base("invalid scope")

const shebangHeadSize = 128

// FileWalker discovers candidate files in a deterministic, lexical order.
type FileWalker struct {
	registry   *providers.Registry
	bufferSize int
}

// NewFileWalker creates a walker that keeps files the registry can parse.
func NewFileWalker(registry *providers.Registry) *FileWalker {
	return &FileWalker{
		registry:   registry,
		bufferSize: 64,
	}
}

// WalkResult is a discovered file or a non-fatal warning. Language is empty
// for files kept only because an include pattern named them.
type WalkResult struct {
	Path     string
	Info     fs.FileInfo
	Language string
	Warning  string
}

// IsWarning reports whether the result carries no file.
func (r WalkResult) IsWarning() bool {
	return r.Warning != "" && r.Path == ""
}

type gitignoreLayer struct {
	base    string
	matcher *ignore.GitIgnore
}

type walkState struct {
	scope     FileScope
	root      string
	excluded  map[string]struct{}
	languages map[string]struct{}
	visited   map[string]struct{}
	seen      map[string]struct{}
	emitted   int
	out       chan<- WalkResult
}

// Walk streams files under scope.Path. The channel is closed when the walk
// finishes or ctx is cancelled. A walk is not restartable.
func (fw *FileWalker) Walk(ctx context.Context, scope FileScope) (<-chan WalkResult, error) {
	if err := fw.validateScope(scope); err != nil {
		return nil, err
	}
	for _, p := range slices.Concat(scope.Include, scope.Exclude) {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf("%w: bad pattern %q", ErrInvalidScope, p)
		}
	}

	root, err := filepath.Abs(scope.Path)
	if err != nil {
		return nil, errors.Errorf("%w: %w", ErrInvalidScope, err)
	}

	results := make(chan WalkResult, fw.bufferSize)
	state := &walkState{
		scope:    scope,
		root:     root,
		excluded: fw.registry.ExcludedDirs(scope.Languages...),
		visited:  make(map[string]struct{}),
		seen:     make(map[string]struct{}),
		out:      results,
	}
	if len(scope.Languages) > 0 {
		state.languages = make(map[string]struct{}, len(scope.Languages))
		for _, l := range scope.Languages {
			state.languages[strings.ToLower(l)] = struct{}{}
		}
	}
	if real, err := filepath.EvalSymlinks(root); err == nil {
		state.visited[real] = struct{}{}
	}

	go func() {
		defer close(results)
		fw.scanDirectory(ctx, state, root, 0, nil)
	}()
	return results, nil
}

// scanDirectory visits dir's entries in lexical order and reports false once
// the walk must stop.
func (fw *FileWalker) scanDirectory(ctx context.Context, st *walkState, dir string, depth int, layers []gitignoreLayer) bool {
	if ctx.Err() != nil {
		return false
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return st.send(ctx, WalkResult{Warning: fmt.Sprintf("cannot read directory %s: %v", dir, err)})
	}

	if !st.scope.IgnoreGitignore {
		if gi, err := ignore.CompileIgnoreFile(filepath.Join(dir, ".gitignore")); err == nil {
			layers = append(slices.Clip(layers), gitignoreLayer{base: dir, matcher: gi})
		}
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return false
		}
		if st.scope.MaxFiles > 0 && st.emitted >= st.scope.MaxFiles {
			return false
		}

		name := entry.Name()
		fullPath := filepath.Join(dir, name)
		rel := st.rel(fullPath)

		isDir := entry.IsDir()
		target := fullPath
		if entry.Type()&os.ModeSymlink != 0 {
			if !st.scope.FollowSymlinks {
				continue
			}
			resolved, err := filepath.EvalSymlinks(fullPath)
			if err != nil {
				if !st.send(ctx, WalkResult{Warning: fmt.Sprintf("broken symlink %s: %v", rel, err)}) {
					return false
				}
				continue
			}
			info, err := os.Stat(resolved)
			if err != nil {
				continue
			}
			isDir = info.IsDir()
			target = resolved
		}

		if ignored(layers, fullPath, isDir) {
			continue
		}

		if isDir {
			if fw.skipDir(st, name, rel) {
				continue
			}
			if st.scope.MaxDepth > 0 && depth+1 > st.scope.MaxDepth {
				continue
			}
			real, err := filepath.EvalSymlinks(target)
			if err != nil {
				real = target
			}
			if _, seen := st.visited[real]; seen {
				if target != fullPath {
					if !st.send(ctx, WalkResult{Warning: fmt.Sprintf("symlink cycle at %s", rel)}) {
						return false
					}
				}
				continue
			}
			st.visited[real] = struct{}{}
			if !fw.scanDirectory(ctx, st, fullPath, depth+1, layers) {
				return false
			}
			continue
		}

		if matchAny(rel, st.scope.Exclude) {
			continue
		}
		if !fw.processFile(ctx, st, fullPath, target, rel) {
			return false
		}
	}
	return true
}

// skipDir applies the hidden, excluded-dir and exclude-pattern rules.
func (fw *FileWalker) skipDir(st *walkState, name, rel string) bool {
	if name == ".git" {
		return true
	}
	if strings.HasPrefix(name, ".") && !st.scope.IncludeHidden {
		return true
	}
	if _, ok := st.excluded[name]; ok {
		return true
	}
	return matchAny(rel, st.scope.Exclude) || matchAny(rel+"/", st.scope.Exclude)
}

// processFile classifies one file and emits it when it qualifies.
func (fw *FileWalker) processFile(ctx context.Context, st *walkState, path, target, rel string) bool {
	explicit := len(st.scope.Include) > 0 && matchAny(rel, st.scope.Include)
	if len(st.scope.Include) > 0 && !explicit {
		return true
	}

	language := ""
	if g, err := fw.registry.Resolve(path, nil); err == nil {
		language = g.Name()
	} else if filepath.Ext(path) == "" && fw.registry.HasInterpreters() {
		if g, err := fw.registry.Resolve(path, providers.ReadHead(target, shebangHeadSize)); err == nil {
			language = g.Name()
		}
	}
	if language == "" && !explicit {
		return true
	}
	if st.languages != nil && language != "" {
		if _, ok := st.languages[language]; !ok {
			return true
		}
	}

	// A file reachable through a symlink and under its own name is emitted once.
	real, err := filepath.EvalSymlinks(target)
	if err != nil {
		real = target
	}
	if _, dup := st.seen[real]; dup {
		return true
	}
	st.seen[real] = struct{}{}

	info, err := os.Stat(target)
	if err != nil {
		return st.send(ctx, WalkResult{Warning: fmt.Sprintf("cannot stat %s: %v", rel, err)})
	}
	if st.scope.MaxFileSize > 0 && info.Size() > st.scope.MaxFileSize {
		return st.send(ctx, WalkResult{Warning: fmt.Sprintf("skipping %s: %d bytes exceeds limit of %d", rel, info.Size(), st.scope.MaxFileSize)})
	}

	st.emitted++
	return st.send(ctx, WalkResult{Path: target, Info: info, Language: language})
}

func (st *walkState) send(ctx context.Context, r WalkResult) bool {
	select {
	case <-ctx.Done():
		return false
	case st.out <- r:
		return true
	}
}

func (st *walkState) rel(path string) string {
	rel, err := filepath.Rel(st.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func ignored(layers []gitignoreLayer, path string, isDir bool) bool {
	for _, layer := range layers {
		rel, err := filepath.Rel(layer.base, path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if isDir {
			rel += "/"
		}
		if layer.matcher.MatchesPath(rel) {
			return true
		}
	}
	return false
}

// matchAny matches a slash-separated relative path against doublestar
// patterns. Patterns without a separator also match the base name.
func matchAny(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, _ := doublestar.Match(pattern, pathBase(rel)); ok {
				return true
			}
		}
	}
	return false
}

func pathBase(rel string) string {
	rel = strings.TrimSuffix(rel, "/")
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[i+1:]
	}
	return rel
}

// validateScope validates FileScope parameters
func (fw *FileWalker) validateScope(scope FileScope) error {
	if scope.Path == "" {
		return errors.Errorf("%w: path is required", ErrInvalidScope)
	}

	info, err := os.Stat(scope.Path)
	if err != nil {
		return errors.Errorf("%w: cannot access path %s: %w", ErrInvalidScope, scope.Path, err)
	}
	if !info.IsDir() {
		return errors.Errorf("%w: path %s is not a directory", ErrInvalidScope, scope.Path)
	}
	return nil
}

// FastScan collects the paths of every discovered file.
func (fw *FileWalker) FastScan(ctx context.Context, scope FileScope) ([]string, error) {
	results, err := fw.Walk(ctx, scope)
	if err != nil {
		return nil, err
	}

	var files []string
	for result := range results {
		if result.Path != "" {
			files = append(files, result.Path)
		}
	}
	return files, ctx.Err()
}

// GetLanguageStats counts discovered files by language.
func (fw *FileWalker) GetLanguageStats(ctx context.Context, scope FileScope) (map[string]int, error) {
	results, err := fw.Walk(ctx, scope)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]int)
	for result := range results {
		if result.Path != "" {
			stats[result.Language]++
		}
	}
	return stats, ctx.Err()
}
