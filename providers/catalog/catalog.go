package catalog

import (
	"bytes"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// LanguageInfo captures metadata about a registered grammar.
type LanguageInfo struct {
	ID           string
	Extensions   []string
	Interpreters []string
}

// Index maps file extensions and shebang interpreters to language IDs.
// The zero value is not usable; use New.
type Index struct {
	mu       sync.RWMutex
	byLang   map[string]LanguageInfo
	byExt    map[string]LanguageInfo
	byInterp map[string]LanguageInfo
}

// New returns an empty index.
func New() *Index {
	return &Index{
		byLang:   make(map[string]LanguageInfo),
		byExt:    make(map[string]LanguageInfo),
		byInterp: make(map[string]LanguageInfo),
	}
}

// Register stores language metadata for extension and shebang lookups.
// Subsequent registrations for the same language overwrite prior data to keep
// the index in sync with the latest grammar definition.
func (x *Index) Register(info LanguageInfo) {
	if info.ID == "" {
		return
	}

	info.ID = strings.ToLower(info.ID)
	info.Extensions = uniqueExtensions(info.Extensions)
	info.Interpreters = uniqueNames(info.Interpreters)

	x.mu.Lock()
	defer x.mu.Unlock()

	x.byLang[info.ID] = info
	for _, ext := range info.Extensions {
		x.byExt[ext] = info
	}
	for _, name := range info.Interpreters {
		x.byInterp[name] = info
	}
}

// LookupByExtension returns the language info associated with a file extension.
func (x *Index) LookupByExtension(ext string) (LanguageInfo, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	info, ok := x.byExt[normalizeExtension(ext)]
	return info, ok
}

// LookupByPath resolves a path by its longest known extension, so that
// "types.d.ts" can map differently from ".ts" when registered.
func (x *Index) LookupByPath(path string) (LanguageInfo, bool) {
	base := strings.ToLower(filepath.Base(path))
	x.mu.RLock()
	defer x.mu.RUnlock()
	for i := 0; i < len(base); i++ {
		if base[i] != '.' || i == 0 {
			continue
		}
		if info, ok := x.byExt[base[i:]]; ok {
			return info, true
		}
	}
	return LanguageInfo{}, false
}

// LookupByShebang inspects the first line of a file for an interpreter
// directive such as "#!/usr/bin/env python3".
func (x *Index) LookupByShebang(head []byte) (LanguageInfo, bool) {
	name := Interpreter(head)
	if name == "" {
		return LanguageInfo{}, false
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if info, ok := x.byInterp[name]; ok {
		return info, true
	}
	// python3.11 -> python3 -> python
	trimmed := strings.TrimRight(name, "0123456789.")
	info, ok := x.byInterp[trimmed]
	return info, ok
}

// Lookup returns the info registered for a language ID.
func (x *Index) Lookup(id string) (LanguageInfo, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	info, ok := x.byLang[strings.ToLower(id)]
	return info, ok
}

// Languages returns all registered language infos sorted by language ID.
func (x *Index) Languages() []LanguageInfo {
	x.mu.RLock()
	defer x.mu.RUnlock()

	infos := make([]LanguageInfo, 0, len(x.byLang))
	for _, info := range x.byLang {
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// Interpreter extracts the interpreter name from a shebang line, or "".
func Interpreter(head []byte) string {
	if !bytes.HasPrefix(head, []byte("#!")) {
		return ""
	}
	line := head[2:]
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(string(line))
	if len(fields) == 0 {
		return ""
	}

	name := filepath.Base(fields[0])
	if name == "env" {
		name = ""
		for _, f := range fields[1:] {
			if strings.HasPrefix(f, "-") || strings.Contains(f, "=") {
				continue
			}
			name = filepath.Base(f)
			break
		}
	}
	return strings.ToLower(name)
}

func normalizeExtension(ext string) string {
	normalized := strings.ToLower(strings.TrimSpace(ext))
	if normalized != "" && !strings.HasPrefix(normalized, ".") {
		normalized = "." + normalized
	}
	return normalized
}

func uniqueExtensions(exts []string) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0, len(exts))
	for _, ext := range exts {
		normalized := normalizeExtension(ext)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}
	return result
}

func uniqueNames(names []string) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0, len(names))
	for _, name := range names {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}
	return result
}
