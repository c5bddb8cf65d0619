package typescript

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Config implements LanguageConfig for TypeScript
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "typescript"
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".ts", ".mts", ".cts"}
}

// Interpreters recognized in a shebang line
func (c *Config) Interpreters() []string {
	return []string{"ts-node", "tsx", "deno"}
}

// GetLanguage returns tree-sitter language for TypeScript
func (c *Config) GetLanguage() *sitter.Language {
	return typescript.GetLanguage()
}

// ExcludedDirs lists package directories
func (c *Config) ExcludedDirs() []string {
	return []string{"node_modules"}
}

// MapQueryTypeToNodeTypes maps query types to TypeScript AST node types
func (c *Config) MapQueryTypeToNodeTypes(queryType string) []string {
	return mapQueryType(queryType)
}

// SupportedQueryTypes returns the aliases understood by MapQueryTypeToNodeTypes
func (c *Config) SupportedQueryTypes() []string {
	return supportedQueryTypes
}

// TSXConfig implements LanguageConfig for TypeScript with JSX. The grammar is
// distinct from plain TypeScript because angle-bracket casts are ambiguous.
type TSXConfig struct{}

// Language identifier
func (c *TSXConfig) Language() string {
	return "tsx"
}

// Extensions supported
func (c *TSXConfig) Extensions() []string {
	return []string{".tsx"}
}

func (c *TSXConfig) Interpreters() []string {
	return nil
}

// GetLanguage returns tree-sitter language for TSX
func (c *TSXConfig) GetLanguage() *sitter.Language {
	return tsx.GetLanguage()
}

func (c *TSXConfig) ExcludedDirs() []string {
	return []string{"node_modules"}
}

func (c *TSXConfig) MapQueryTypeToNodeTypes(queryType string) []string {
	if queryType == "element" || queryType == "jsx" {
		return []string{"jsx_element", "jsx_self_closing_element"}
	}
	return mapQueryType(queryType)
}

func (c *TSXConfig) SupportedQueryTypes() []string {
	return append([]string{"element", "jsx"}, supportedQueryTypes...)
}

var supportedQueryTypes = []string{
	"class", "enum", "export", "func", "function", "import", "interface",
	"let", "method", "module", "namespace", "type", "var", "variable",
}

func mapQueryType(queryType string) []string {
	switch queryType {
	case "function", "func":
		return []string{"function_declaration", "generator_function_declaration", "function_expression", "arrow_function", "method_definition", "method_signature"}
	case "method":
		return []string{"method_definition", "method_signature"}
	case "class":
		return []string{"class_declaration", "abstract_class_declaration", "class"}
	case "interface":
		return []string{"interface_declaration"}
	case "type":
		return []string{"type_alias_declaration"}
	case "enum":
		return []string{"enum_declaration"}
	case "variable", "var", "let":
		return []string{"variable_declarator"}
	case "import":
		return []string{"import_statement"}
	case "export":
		return []string{"export_statement"}
	case "module", "namespace":
		return []string{"module", "internal_module"}
	default:
		// Try to use the query type directly as node type
		return []string{queryType}
	}
}
