// Package builtin wires every bundled language into a grammar registry.
package builtin

import (
	"sync"

	"github.com/termfx/refactory/providers"
	"github.com/termfx/refactory/providers/golang"
	"github.com/termfx/refactory/providers/javascript"
	"github.com/termfx/refactory/providers/php"
	"github.com/termfx/refactory/providers/python"
	"github.com/termfx/refactory/providers/rust"
	"github.com/termfx/refactory/providers/typescript"
)

var (
	defaultOnce     sync.Once
	defaultRegistry *providers.Registry
)

// Configs returns a fresh config for every bundled language.
func Configs() []providers.LanguageConfig {
	return []providers.LanguageConfig{
		&golang.Config{},
		&python.Config{},
		&javascript.Config{},
		&typescript.Config{},
		&typescript.TSXConfig{},
		&php.Config{},
		&rust.Config{},
	}
}

// NewRegistry creates a registry populated with all bundled languages.
func NewRegistry() *providers.Registry {
	registry := providers.NewRegistry()
	for _, cfg := range Configs() {
		registry.Register(cfg)
	}
	return registry
}

// Default returns the process-wide registry, built on first access.
func Default() *providers.Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}
