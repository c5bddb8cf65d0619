package python

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Config implements LanguageConfig for Python
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "python"
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".py", ".pyw", ".pyi"}
}

// Interpreters recognized in a shebang line
func (c *Config) Interpreters() []string {
	return []string{"python", "python2", "python3", "pypy", "pypy3"}
}

// GetLanguage returns tree-sitter language for Python
func (c *Config) GetLanguage() *sitter.Language {
	return python.GetLanguage()
}

// ExcludedDirs lists interpreter caches and virtual environments
func (c *Config) ExcludedDirs() []string {
	return []string{"site-packages", "venv", ".venv", "__pycache__", ".pytest_cache", ".mypy_cache", ".tox"}
}

// MapQueryTypeToNodeTypes maps query types to Python AST node types
func (c *Config) MapQueryTypeToNodeTypes(queryType string) []string {
	switch queryType {
	case "function", "func", "def":
		return []string{"function_definition"}
	case "method":
		return []string{"function_definition"}
	case "class":
		return []string{"class_definition"}
	case "variable", "var":
		return []string{"assignment", "global_statement", "nonlocal_statement"}
	case "import":
		return []string{"import_statement", "import_from_statement"}
	case "decorator":
		return []string{"decorator"}
	case "decorated":
		return []string{"decorated_definition"}
	case "lambda":
		return []string{"lambda"}
	case "comment":
		return []string{"comment"}
	default:
		// Try to use the query type directly as node type
		return []string{queryType}
	}
}

// SupportedQueryTypes returns the aliases understood by MapQueryTypeToNodeTypes
func (c *Config) SupportedQueryTypes() []string {
	return []string{"class", "comment", "decorated", "decorator", "def", "func", "function", "import", "lambda", "method", "var", "variable"}
}
