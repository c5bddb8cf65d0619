package typescript

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/termfx/refactory/providers"
)

func TestTypeScriptAndTSXAreSeparateGrammars(t *testing.T) {
	registry := providers.NewRegistry()
	registry.Register(&Config{})
	registry.Register(&TSXConfig{})

	ts, err := registry.Resolve("src/app.ts", nil)
	assert.NoError(t, err)
	assert.Equal(t, "typescript", ts.Name())

	tsx, err := registry.Resolve("src/App.tsx", nil)
	assert.NoError(t, err)
	assert.Equal(t, "tsx", tsx.Name())

	assert.NotEmpty(t, ts.NodeTypes("interface"))
	assert.NotEmpty(t, tsx.NodeTypes("element"))
}
