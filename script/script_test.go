package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termfx/refactory/core"
	"github.com/termfx/refactory/providers/builtin"
	"github.com/termfx/refactory/query"
)

func request() core.ReplacementRequest {
	return core.ReplacementRequest{
		File:     "a.py",
		Language: "python",
		Rule:     "rename",
		Kind:     "identifier",
		Text:     "foo",
		Indent:   "    ",
		Captures: map[string]string{"name": "foo"},
	}
}

func TestSource_Replacement(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"literal", `"bar"`, "bar"},
		{"text global", `text + "_v2"`, "foo_v2"},
		{"captures map", `captures["name"] + "()"`, "foo()"},
		{"capture builtin", `capture("name") + capture("missing")`, "foo"},
		{"context globals", `language + ":" + kind + ":" + rule`, "python:identifier:rename"},
		{"function", "func pick() {\n  if kind == \"identifier\" {\n    return \"bar\"\n  }\n  return text\n}\npick()", "bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.code).Replacement(context.Background(), request())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSource_Errors(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"syntax error", `func (`},
		{"undefined name", `no_such_global + "x"`},
		{"not a string", `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.code).Replacement(context.Background(), request())
			assert.ErrorIs(t, err, ErrScript)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rename.risor")
	require.NoError(t, os.WriteFile(path, []byte(`"renamed_" + text`), 0o644))

	source, err := Load(path)
	require.NoError(t, err)
	got, err := source.Replacement(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "renamed_foo", got)

	_, err = Load(filepath.Join(t.TempDir(), "missing.risor"))
	assert.Error(t, err)
}

func TestSource_InBatch(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "app.py")
	require.NoError(t, os.WriteFile(path, []byte("def foo():\n    return 1\n\nfoo()\n"), 0o644))

	writerConfig := core.DefaultAtomicConfig()
	writerConfig.UseFsync = false
	batch, err := core.NewBatch(core.BatchConfig{
		Registry: builtin.Default(),
		Write:    true,
		Writer:   core.NewAtomicWriter(writerConfig),
	}, []core.Rule{{
		Name:    "suffix",
		Query:   query.MustParse(`((identifier) @id (#eq? @id "foo"))`),
		Capture: "id",
		Source:  New(`capture("id") + "_v2"`),
	}})
	require.NoError(t, err)

	report, err := batch.Run(context.Background(), core.FileScope{Path: root})
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, core.StateApplied, report.Files[0].State)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "def foo_v2():\n    return 1\n\nfoo_v2()\n", string(content))
}
