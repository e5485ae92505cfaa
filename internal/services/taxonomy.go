package services

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy_default.yaml
var defaultTaxonomy []byte

// Taxonomy maps the sub-categories the generation service reports onto general
// categories.
type Taxonomy struct {
	general map[string]string
}

// LoadTaxonomy reads a YAML mapping of general category to sub-categories.
// An empty path loads the built-in mapping.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	raw := defaultTaxonomy
	if p := strings.TrimSpace(path); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read taxonomy %s: %w", p, err)
		}
		raw = b
	}
	return ParseTaxonomy(raw)
}

func ParseTaxonomy(raw []byte) (*Taxonomy, error) {
	var doc map[string][]string
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	generals := make([]string, 0, len(doc))
	for g := range doc {
		generals = append(generals, g)
	}
	sort.Strings(generals)

	t := &Taxonomy{general: make(map[string]string)}
	for _, g := range generals {
		for _, sub := range doc[g] {
			sub = strings.TrimSpace(sub)
			if sub == "" {
				continue
			}
			if _, dup := t.general[sub]; !dup {
				t.general[sub] = g
			}
		}
	}
	return t, nil
}

// GeneralFor returns the distinct general categories of subs, in first-seen order.
// Unknown sub-categories are skipped.
func (t *Taxonomy) GeneralFor(subs []string) []string {
	out := []string{}
	if t == nil {
		return out
	}
	seen := map[string]bool{}
	for _, sub := range subs {
		g, ok := t.general[strings.TrimSpace(sub)]
		if !ok || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}
