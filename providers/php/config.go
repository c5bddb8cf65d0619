package php

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"
)

// Config implements LanguageConfig for PHP
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "php"
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".php", ".phtml", ".php4", ".php5", ".phps"}
}

// Interpreters recognized in a shebang line
func (c *Config) Interpreters() []string {
	return []string{"php"}
}

// GetLanguage returns tree-sitter language for PHP
func (c *Config) GetLanguage() *sitter.Language {
	return php.GetLanguage()
}

// ExcludedDirs lists composer dependencies
func (c *Config) ExcludedDirs() []string {
	return []string{"vendor"}
}

// MapQueryTypeToNodeTypes maps query types to PHP AST node types
func (c *Config) MapQueryTypeToNodeTypes(queryType string) []string {
	switch queryType {
	case "function", "func":
		return []string{"function_definition", "method_declaration"}
	case "method":
		return []string{"method_declaration"}
	case "class":
		return []string{"class_declaration"}
	case "interface":
		return []string{"interface_declaration"}
	case "trait":
		return []string{"trait_declaration"}
	case "enum":
		return []string{"enum_declaration"}
	case "property", "field":
		return []string{"property_declaration"}
	case "constant", "const":
		return []string{"const_declaration"}
	case "namespace":
		return []string{"namespace_definition"}
	case "use", "import":
		return []string{"namespace_use_declaration"}
	default:
		// Try to use the query type directly as node type
		return []string{queryType}
	}
}

// SupportedQueryTypes returns the aliases understood by MapQueryTypeToNodeTypes
func (c *Config) SupportedQueryTypes() []string {
	return []string{"class", "const", "constant", "enum", "field", "func", "function", "import", "interface", "method", "namespace", "property", "trait", "use"}
}
