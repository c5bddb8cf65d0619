package javascript

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/termfx/refactory/providers"
)

func TestFunctionAliasCoversDeclarationsAndArrows(t *testing.T) {
	registry := providers.NewRegistry()
	registry.Register(&Config{})
	g, _ := registry.Get("javascript")

	types := g.NodeTypes("function")
	assert.Contains(t, types, "function_declaration")
	assert.Contains(t, types, "arrow_function")
	assert.Contains(t, types, "method_definition")
	assert.Equal(t, []string{"call_expression"}, g.NodeTypes("call"))
}

func TestSupportedQueryTypesSorted(t *testing.T) {
	types := (&Config{}).SupportedQueryTypes()
	assert.IsIncreasing(t, types)
	assert.Contains(t, types, "class")
}
