package providers

import (
	"os"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"gitlab.com/tozd/go/errors"

	"github.com/termfx/refactory/providers/catalog"
)

// ErrUnsupportedLanguage is returned when no grammar matches a file.
// Callers skip the file; it never aborts a batch run.
var ErrUnsupportedLanguage = errors.Base("unsupported language")

// LanguageConfig defines language-specific behavior that must be implemented
type LanguageConfig interface {
	// Metadata
	Language() string
	Extensions() []string
	Interpreters() []string
	GetLanguage() *sitter.Language

	// Construct aliases ("function", "class") to grammar node types
	MapQueryTypeToNodeTypes(queryType string) []string
	SupportedQueryTypes() []string

	// Directories never worth descending into for this language
	ExcludedDirs() []string
}

// Grammar is a registered language whose tree-sitter definition is loaded on
// first use. Loading is guarded per language tag; later reads take no lock.
type Grammar struct {
	config LanguageConfig

	once   sync.Once
	lang   *sitter.Language
	symbol map[string]struct{}
}

// Name returns the language tag.
func (g *Grammar) Name() string {
	return g.config.Language()
}

// Config exposes the language configuration.
func (g *Grammar) Config() LanguageConfig {
	return g.config
}

// Language returns the tree-sitter language, loading it on first access.
func (g *Grammar) Language() *sitter.Language {
	g.load()
	return g.lang
}

func (g *Grammar) load() {
	g.once.Do(func() {
		g.lang = g.config.GetLanguage()
		g.symbol = make(map[string]struct{})
		if g.lang == nil {
			return
		}
		for i := uint32(0); i < g.lang.SymbolCount(); i++ {
			g.symbol[g.lang.SymbolName(sitter.Symbol(i))] = struct{}{}
		}
	})
}

// NodeTypes resolves a construct alias or raw node type to the grammar's node
// types. Unknown names resolve to nothing.
func (g *Grammar) NodeTypes(kind string) []string {
	g.load()
	var out []string
	for _, t := range g.config.MapQueryTypeToNodeTypes(kind) {
		if _, ok := g.symbol[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Registry manages all grammars
type Registry struct {
	mu       sync.RWMutex
	grammars map[string]*Grammar
	index    *catalog.Index
}

// NewRegistry creates an empty grammar registry
func NewRegistry() *Registry {
	return &Registry{
		grammars: make(map[string]*Grammar),
		index:    catalog.New(),
	}
}

// Register adds a language. Registering a tag twice replaces the earlier entry.
func (r *Registry) Register(config LanguageConfig) {
	r.mu.Lock()
	r.grammars[strings.ToLower(config.Language())] = &Grammar{config: config}
	r.mu.Unlock()

	r.index.Register(catalog.LanguageInfo{
		ID:           config.Language(),
		Extensions:   config.Extensions(),
		Interpreters: config.Interpreters(),
	})
}

// Get retrieves a grammar by language tag
func (r *Registry) Get(language string) (*Grammar, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grammars[strings.ToLower(language)]
	return g, ok
}

// Resolve maps a file to its grammar by extension, then by shebang. head is
// the beginning of the file and may be nil.
func (r *Registry) Resolve(path string, head []byte) (*Grammar, error) {
	if info, ok := r.index.LookupByPath(path); ok {
		if g, ok := r.Get(info.ID); ok {
			return g, nil
		}
	}
	if info, ok := r.index.LookupByShebang(head); ok {
		if g, ok := r.Get(info.ID); ok {
			return g, nil
		}
	}
	return nil, errors.WithDetails(ErrUnsupportedLanguage, "path", path)
}

// HasInterpreters reports whether any registered language is detectable by
// shebang, which makes extensionless files worth opening.
func (r *Registry) HasInterpreters() bool {
	for _, info := range r.index.Languages() {
		if len(info.Interpreters) > 0 {
			return true
		}
	}
	return false
}

// List returns all grammars sorted by language tag
func (r *Registry) List() []*Grammar {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Grammar, 0, len(r.grammars))
	for _, g := range r.grammars {
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Languages returns all registered language identifiers
func (r *Registry) Languages() []string {
	grammars := r.List()
	langs := make([]string, 0, len(grammars))
	for _, g := range grammars {
		langs = append(langs, g.Name())
	}
	return langs
}

// ExcludedDirs returns the union of excluded directory names for the given
// languages, or for every language when none are given.
func (r *Registry) ExcludedDirs(languages ...string) map[string]struct{} {
	dirs := make(map[string]struct{})
	for _, g := range r.List() {
		if len(languages) > 0 && !contains(languages, g.Name()) {
			continue
		}
		for _, d := range g.config.ExcludedDirs() {
			dirs[d] = struct{}{}
		}
	}
	return dirs
}

// ReadHead returns up to n leading bytes of a file for shebang detection.
func ReadHead(path string, n int) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	buf := make([]byte, n)
	read, _ := f.Read(buf)
	return buf[:read]
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
