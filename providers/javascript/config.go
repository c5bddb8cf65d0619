package javascript

import (
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// Config implements LanguageConfig for JavaScript
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "javascript"
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".js", ".mjs", ".cjs", ".jsx"}
}

// Interpreters recognized in a shebang line
func (c *Config) Interpreters() []string {
	return []string{"node", "nodejs"}
}

// GetLanguage returns tree-sitter language for JavaScript
func (c *Config) GetLanguage() *sitter.Language {
	return javascript.GetLanguage()
}

// ExcludedDirs lists package and bundler output directories
func (c *Config) ExcludedDirs() []string {
	return []string{"node_modules", "bower_components"}
}

// MapQueryTypeToNodeTypes maps query types to JavaScript AST node types
func (c *Config) MapQueryTypeToNodeTypes(queryType string) []string {
	if nodes, ok := c.aliasMap()[queryType]; ok {
		return nodes
	}
	return []string{queryType}
}

func (c *Config) aliasMap() map[string][]string {
	functions := []string{
		"function_declaration", "generator_function_declaration",
		"function_expression", "function", "arrow_function", "method_definition",
	}
	return map[string][]string{
		"function":    functions,
		"func":        functions,
		"fn":          functions,
		"method":      {"method_definition"},
		"constructor": {"method_definition"},
		"class":       {"class_declaration", "class"},
		"field":       {"field_definition"},
		"property":    {"field_definition"},
		"variable":    {"variable_declarator"},
		"var":         {"variable_declarator"},
		"const":       {"lexical_declaration"},
		"let":         {"lexical_declaration"},
		"arrow":       {"arrow_function"},
		"import":      {"import_statement"},
		"export":      {"export_statement"},
		"call":        {"call_expression"},
		"comment":     {"comment"},
	}
}

// SupportedQueryTypes returns colloquial query types/aliases for JavaScript
func (c *Config) SupportedQueryTypes() []string {
	m := c.aliasMap()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
