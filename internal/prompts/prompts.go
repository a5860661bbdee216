// Package prompts holds the language-model prompt catalog. Templates live in an embedded
// YAML file and are rendered with text/template.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Prompt names in the catalog.
const (
	ExtractRecord    = "extract_record"
	ClinVarReport    = "clinvar_report"
	TreatmentPathway = "treatment_pathway"
)

//go:embed prompts.yaml
var defaultCatalog []byte

type rawPrompt struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type compiled struct {
	system string
	user   *template.Template
}

// Catalog renders named prompts.
type Catalog struct {
	prompts map[string]compiled
}

// Rendered is a prompt ready to send.
type Rendered struct {
	System string
	User   string
}

// Default returns the embedded catalog. It panics only if the embedded file is malformed.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded prompt catalog is invalid: %v", err))
	}
	return c
}

// Parse builds a catalog from YAML. Every prompt named in this package must be present.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]rawPrompt
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode prompt catalog: %w", err)
	}

	c := &Catalog{prompts: make(map[string]compiled, len(raw))}
	for name, p := range raw {
		tmpl, err := template.New(name).Option("missingkey=error").Parse(p.User)
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt %s: %w", name, err)
		}
		c.prompts[name] = compiled{system: strings.TrimSpace(p.System), user: tmpl}
	}

	for _, name := range []string{ExtractRecord, ClinVarReport, TreatmentPathway} {
		if _, ok := c.prompts[name]; !ok {
			return nil, fmt.Errorf("prompt catalog is missing %s", name)
		}
	}
	return c, nil
}

// Render executes the named prompt with data.
func (c *Catalog) Render(name string, data any) (Rendered, error) {
	p, ok := c.prompts[name]
	if !ok {
		return Rendered{}, fmt.Errorf("unknown prompt: %s", name)
	}
	var buf bytes.Buffer
	if err := p.user.Execute(&buf, data); err != nil {
		return Rendered{}, fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return Rendered{System: p.system, User: strings.TrimSpace(buf.String())}, nil
}
