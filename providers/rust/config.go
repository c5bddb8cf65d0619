package rust

import (
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// Config implements LanguageConfig for Rust
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "rust"
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".rs"}
}

// Interpreters recognized in a shebang line
func (c *Config) Interpreters() []string {
	return []string{"rust-script"}
}

// GetLanguage returns tree-sitter language for Rust
func (c *Config) GetLanguage() *sitter.Language {
	return rust.GetLanguage()
}

// ExcludedDirs lists cargo build output and registry caches
func (c *Config) ExcludedDirs() []string {
	return []string{"target", ".cargo"}
}

// MapQueryTypeToNodeTypes maps query types to Rust AST node types
func (c *Config) MapQueryTypeToNodeTypes(queryType string) []string {
	if nodes, ok := aliases[queryType]; ok {
		return nodes
	}
	return []string{queryType}
}

var aliases = map[string][]string{
	"function": {"function_item", "function_signature_item"},
	"func":     {"function_item", "function_signature_item"},
	"fn":       {"function_item", "function_signature_item"},
	"struct":   {"struct_item"},
	"enum":     {"enum_item"},
	"trait":    {"trait_item"},
	"impl":     {"impl_item"},
	"module":   {"mod_item"},
	"mod":      {"mod_item"},
	"const":    {"const_item"},
	"static":   {"static_item"},
	"type":     {"type_item"},
	"use":      {"use_declaration"},
	"import":   {"use_declaration"},
	"macro":    {"macro_definition"},
	"let":      {"let_declaration"},
	"closure":  {"closure_expression"},
	"comment":  {"line_comment", "block_comment"},
}

// SupportedQueryTypes returns colloquial query types/aliases for Rust
func (c *Config) SupportedQueryTypes() []string {
	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
