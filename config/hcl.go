package config

import (
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

type hclRecipe struct {
	Description string      `hcl:"description,optional"`
	Root        string      `hcl:"root,optional"`
	Include     []string    `hcl:"include,optional"`
	Exclude     []string    `hcl:"exclude,optional"`
	Languages   []string    `hcl:"languages,optional"`
	Workers     int         `hcl:"workers,optional"`
	MaxFileSize int64       `hcl:"max_file_size,optional"`
	Suggest     *hclSuggest `hcl:"suggest,block"`
	Rules       []hclRule   `hcl:"rule,block"`
}

type hclSuggest struct {
	BaseURL     string `hcl:"base_url,optional"`
	Model       string `hcl:"model,optional"`
	Concurrency int    `hcl:"concurrency,optional"`
	Retries     int    `hcl:"retries,optional"`
	Validate    bool   `hcl:"validate,optional"`
}

type hclRule struct {
	Name       string `hcl:"name,label"`
	Query      string `hcl:"query,optional"`
	Kind       string `hcl:"kind,optional"`
	Match      string `hcl:"match,optional"`
	Capture    string `hcl:"capture,optional"`
	Replace    string `hcl:"replace,optional"`
	Delete     bool   `hcl:"delete,optional"`
	Script     string `hcl:"script,optional"`
	ScriptFile string `hcl:"script_file,optional"`
	Suggest    string `hcl:"suggest,optional"`
	Reindent   bool   `hcl:"reindent,optional"`
}

// loadHCL decodes an HCL recipe. Expressions may read environment variables
// through the env object, e.g. replace = env.NEW_NAME.
func loadHCL(data []byte, filename string) (*Recipe, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envObject(),
		},
	}

	var raw hclRecipe
	diags = gohcl.DecodeBody(file.Body, evalCtx, &raw)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	recipe := &Recipe{
		Description: raw.Description,
		Root:        raw.Root,
		Include:     raw.Include,
		Exclude:     raw.Exclude,
		Languages:   raw.Languages,
		Workers:     raw.Workers,
		MaxFileSize: raw.MaxFileSize,
	}
	if raw.Suggest != nil {
		recipe.Suggest = &SuggestConfig{
			BaseURL:     raw.Suggest.BaseURL,
			Model:       raw.Suggest.Model,
			Concurrency: raw.Suggest.Concurrency,
			Retries:     raw.Suggest.Retries,
			Validate:    raw.Suggest.Validate,
		}
	}
	for _, r := range raw.Rules {
		recipe.Rules = append(recipe.Rules, RuleSpec(r))
	}
	return recipe, nil
}

func envObject() cty.Value {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		vars[name] = cty.StringVal(value)
	}
	return cty.ObjectVal(vars)
}
