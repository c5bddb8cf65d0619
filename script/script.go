// Package script runs Risor programs that compute replacement text.
//
// A script sees the selected construct through these globals:
//
//	text      matched source text
//	kind      node kind
//	language  language name
//	file      file path
//	rule      rule name
//	indent    leading whitespace of the construct's line
//	captures  map of capture name to text
//	capture   capture(name) returns a capture's text or ""
//
// The value of the last expression must be a string.
package script

import (
	"context"
	"os"
	"path/filepath"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/object"
	"gitlab.com/tozd/go/errors"

	"github.com/termfx/refactory/core"
)

// ErrScript wraps every failure raised while running a script.
var ErrScript = errors.Base("replacement script failed")

// Source is a core.ReplacementSource evaluating one Risor program per
// selection. It holds no mutable state and is safe for concurrent use.
type Source struct {
	code  string
	label string
}

var _ core.ReplacementSource = (*Source)(nil)

// New creates a source from inline code.
func New(code string) *Source {
	return &Source{code: code, label: "<inline>"}
}

// Load reads a script file.
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("loading script %s: %w", path, err)
	}
	return &Source{code: string(data), label: filepath.Base(path)}, nil
}

func (s *Source) Replacement(ctx context.Context, req core.ReplacementRequest) (string, error) {
	var opts []risor.Option
	for name, val := range globals(req) {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	result, err := risor.Eval(ctx, s.code, opts...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Errorf("%w: %s: %w", ErrScript, s.label, err)
	}

	switch v := result.(type) {
	case *object.String:
		return v.Value(), nil
	case *object.Error:
		return "", errors.Errorf("%w: %s: %s", ErrScript, s.label, v.Inspect())
	case nil:
		return "", errors.Errorf("%w: %s: no result", ErrScript, s.label)
	default:
		return "", errors.Errorf("%w: %s: result is %s, not string", ErrScript, s.label, v.Type())
	}
}

func globals(req core.ReplacementRequest) map[string]any {
	captures := make(map[string]object.Object, len(req.Captures))
	for name, text := range req.Captures {
		captures[name] = object.NewString(text)
	}

	return map[string]any{
		"text":     object.NewString(req.Text),
		"kind":     object.NewString(req.Kind),
		"language": object.NewString(req.Language),
		"file":     object.NewString(req.File),
		"rule":     object.NewString(req.Rule),
		"indent":   object.NewString(req.Indent),
		"captures": object.NewMap(captures),
		"capture":  makeCaptureFn(req.Captures),
	}
}

// capture(name) → string
func makeCaptureFn(captures map[string]string) *object.Builtin {
	return object.NewBuiltin("capture", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("capture", 1, len(args))
		}
		name, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("capture: name must be a string, got %s", args[0].Type())
		}
		return object.NewString(captures[name.Value()])
	})
}
