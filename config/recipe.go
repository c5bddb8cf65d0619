// Package config loads environment settings and edit recipes.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/termfx/refactory/core"
)

// ErrInvalidRecipe reports a recipe that cannot be loaded or compiled.
var ErrInvalidRecipe = errors.Base("invalid recipe")

// Recipe is a batch of rules plus the scope they run over.
type Recipe struct {
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Root        string         `json:"root,omitempty" yaml:"root,omitempty"`
	Include     []string       `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude     []string       `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Languages   []string       `json:"languages,omitempty" yaml:"languages,omitempty"`
	Workers     int            `json:"workers,omitempty" yaml:"workers,omitempty"`
	MaxFileSize int64          `json:"max_file_size,omitempty" yaml:"max_file_size,omitempty"`
	Suggest     *SuggestConfig `json:"suggest,omitempty" yaml:"suggest,omitempty"`
	Rules       []RuleSpec     `json:"rules" yaml:"rules"`

	location string
}

// SuggestConfig tunes the suggestion service for suggest rules.
type SuggestConfig struct {
	BaseURL     string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model       string `json:"model,omitempty" yaml:"model,omitempty"`
	Concurrency int    `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	Retries     int    `json:"retries,omitempty" yaml:"retries,omitempty"`
	Validate    bool   `json:"validate,omitempty" yaml:"validate,omitempty"`
}

// RuleSpec selects constructs either by Query or by Kind and Name, and
// names exactly one replacement: Replace, Script, ScriptFile or Suggest.
type RuleSpec struct {
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Query      string `json:"query,omitempty" yaml:"query,omitempty"`
	Kind       string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Match      string `json:"match,omitempty" yaml:"match,omitempty"`
	Capture    string `json:"capture,omitempty" yaml:"capture,omitempty"`
	Replace    string `json:"replace,omitempty" yaml:"replace,omitempty"`
	Delete     bool   `json:"delete,omitempty" yaml:"delete,omitempty"`
	Script     string `json:"script,omitempty" yaml:"script,omitempty"`
	ScriptFile string `json:"script_file,omitempty" yaml:"script_file,omitempty"`
	Suggest    string `json:"suggest,omitempty" yaml:"suggest,omitempty"`
	Reindent   bool   `json:"reindent,omitempty" yaml:"reindent,omitempty"`
}

// LoadRecipe reads a recipe, picking the format from the extension: .hcl,
// .yaml/.yml or .json. Relative roots and script files resolve against the
// recipe's directory.
func LoadRecipe(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading recipe: %w", err)
	}

	var recipe *Recipe
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		recipe, err = loadJSON(data)
	case ".yaml", ".yml":
		recipe, err = loadYAML(data)
	case ".hcl":
		recipe, err = loadHCL(data, path)
	default:
		return nil, errors.Errorf("%w: unsupported file extension %q", ErrInvalidRecipe, ext)
	}
	if err != nil {
		return nil, errors.Errorf("%w: %w", ErrInvalidRecipe, err)
	}

	recipe.location = path
	dir := filepath.Dir(path)
	if recipe.Root != "" && !filepath.IsAbs(recipe.Root) {
		recipe.Root = filepath.Join(dir, recipe.Root)
	}
	for i := range recipe.Rules {
		if f := recipe.Rules[i].ScriptFile; f != "" && !filepath.IsAbs(f) {
			recipe.Rules[i].ScriptFile = filepath.Join(dir, f)
		}
	}

	if err := recipe.Validate(); err != nil {
		return nil, err
	}
	return recipe, nil
}

// Location returns the file the recipe was loaded from, if any.
func (r *Recipe) Location() string {
	return r.location
}

func loadJSON(data []byte) (*Recipe, error) {
	var recipe Recipe
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&recipe); err != nil {
		return nil, errors.Errorf("parsing JSON: %w", err)
	}
	return &recipe, nil
}

func loadYAML(data []byte) (*Recipe, error) {
	var recipe Recipe
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&recipe); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &recipe, nil
}

// Validate checks every rule names one selector and one replacement.
func (r *Recipe) Validate() error {
	if len(r.Rules) == 0 {
		return errors.Errorf("%w: no rules", ErrInvalidRecipe)
	}
	if r.Workers < 0 {
		return errors.Errorf("%w: workers must not be negative", ErrInvalidRecipe)
	}
	seen := make(map[string]bool)
	for i, rule := range r.Rules {
		label := rule.Name
		if label == "" {
			label = "#" + strconv.Itoa(i+1)
		}
		if rule.Name != "" {
			if seen[rule.Name] {
				return errors.Errorf("%w: duplicate rule name %q", ErrInvalidRecipe, rule.Name)
			}
			seen[rule.Name] = true
		}

		switch {
		case rule.Query == "" && rule.Kind == "":
			return errors.Errorf("%w: rule %s: needs query or kind", ErrInvalidRecipe, label)
		case rule.Query != "" && rule.Kind != "":
			return errors.Errorf("%w: rule %s: query and kind are exclusive", ErrInvalidRecipe, label)
		case rule.Match != "" && rule.Kind == "":
			return errors.Errorf("%w: rule %s: match requires kind", ErrInvalidRecipe, label)
		}

		sources := 0
		for _, set := range []bool{rule.Replace != "" || rule.Delete, rule.Script != "", rule.ScriptFile != "", rule.Suggest != ""} {
			if set {
				sources++
			}
		}
		if rule.Replace != "" && rule.Delete {
			return errors.Errorf("%w: rule %s: replace and delete are exclusive", ErrInvalidRecipe, label)
		}
		if sources != 1 {
			return errors.Errorf("%w: rule %s: needs exactly one of replace, delete, script, script_file, suggest", ErrInvalidRecipe, label)
		}
	}
	return nil
}

// UsesSuggest reports whether any rule asks the suggestion service.
func (r *Recipe) UsesSuggest() bool {
	for _, rule := range r.Rules {
		if rule.Suggest != "" {
			return true
		}
	}
	return false
}

// Scope returns the walk scope the recipe describes, rooted at fallback
// when the recipe names no root.
func (r *Recipe) Scope(fallback string) core.FileScope {
	root := r.Root
	if root == "" {
		root = fallback
	}
	return core.FileScope{
		Path:        root,
		Include:     r.Include,
		Exclude:     r.Exclude,
		Languages:   r.Languages,
		MaxFileSize: r.MaxFileSize,
	}
}
