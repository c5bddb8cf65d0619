package golang

import (
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// Config implements LanguageConfig for Go
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "go"
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".go"}
}

// Interpreters returns nothing; Go sources carry no shebang.
func (c *Config) Interpreters() []string {
	return nil
}

// GetLanguage returns tree-sitter language for Go
func (c *Config) GetLanguage() *sitter.Language {
	return golang.GetLanguage()
}

// ExcludedDirs lists module and build directories skipped by the walker
func (c *Config) ExcludedDirs() []string {
	return []string{"vendor", "testdata"}
}

// MapQueryTypeToNodeTypes maps query types to Go AST node types
func (c *Config) MapQueryTypeToNodeTypes(queryType string) []string {
	if nodes, ok := c.aliasMap()[queryType]; ok {
		return nodes
	}
	return []string{queryType}
}

func (c *Config) aliasMap() map[string][]string {
	return map[string][]string{
		"function":  {"function_declaration", "method_declaration"},
		"func":      {"function_declaration", "method_declaration"},
		"fn":        {"function_declaration", "method_declaration"},
		"method":    {"method_declaration"},
		"closure":   {"func_literal"},
		"struct":    {"type_spec"},
		"interface": {"type_spec"},
		"type":      {"type_spec"},
		"variable":  {"var_declaration", "short_var_declaration"},
		"var":       {"var_declaration", "short_var_declaration"},
		"constant":  {"const_declaration"},
		"const":     {"const_declaration"},
		"import":    {"import_declaration"},
		"field":     {"field_declaration"},
		"comment":   {"comment"},
	}
}

// SupportedQueryTypes returns colloquial query types/aliases for Go
func (c *Config) SupportedQueryTypes() []string {
	m := c.aliasMap()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
