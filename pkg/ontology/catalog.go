// Package ontology loads the read-only concept catalog (certificates,
// industries, processes, materials) that the orchestrator's concept
// extraction pipeline brute-matches phase-1 search results against and
// resolves phase-2 mapping responses into. The catalog is immutable once
// loaded and shared by pointer across orchestrator goroutines.
package ontology

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Concept is one canonical label plus the synonyms that should resolve to
// it during brute-force matching.
type Concept struct {
	Label    string   `yaml:"label"`
	Synonyms []string `yaml:"synonyms"`
}

type conceptTypeYAML struct {
	Concepts []Concept `yaml:"concepts"`
}

type catalogYAML struct {
	Version string                     `yaml:"version"`
	Types   map[string]conceptTypeYAML `yaml:"types"`
}

// Catalog is the fully loaded, read-only concept catalog.
type Catalog struct {
	version string
	byType  map[string][]Concept
	// matchers[conceptType][label] is a compiled case-insensitive,
	// word-boundary pattern matching the label or any of its synonyms.
	matchers map[string]map[string]*regexp.Regexp
}

// Load reads and compiles the concept catalog at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ontology: reading catalog %s: %w", path, err)
	}

	var raw catalogYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ontology: parsing catalog %s: %w", path, err)
	}

	c := &Catalog{
		version:  raw.Version,
		byType:   make(map[string][]Concept, len(raw.Types)),
		matchers: make(map[string]map[string]*regexp.Regexp, len(raw.Types)),
	}

	for conceptType, t := range raw.Types {
		c.byType[conceptType] = t.Concepts
		c.matchers[conceptType] = make(map[string]*regexp.Regexp, len(t.Concepts))
		for _, concept := range t.Concepts {
			terms := append([]string{concept.Label}, concept.Synonyms...)
			pattern, err := compileWordBoundaryPattern(terms)
			if err != nil {
				return nil, fmt.Errorf("ontology: compiling pattern for %s/%s: %w", conceptType, concept.Label, err)
			}
			c.matchers[conceptType][concept.Label] = pattern
		}
	}

	return c, nil
}

// Version identifies the loaded catalog revision, stored alongside a
// deferred field's state so a mid-flight extraction can detect that the
// ontology changed underneath it and needs to restart.
func (c *Catalog) Version() string {
	return c.version
}

// Labels returns every canonical label for conceptType.
func (c *Catalog) Labels(conceptType string) []string {
	concepts := c.byType[conceptType]
	labels := make([]string, len(concepts))
	for i, concept := range concepts {
		labels[i] = concept.Label
	}
	return labels
}

// BruteMatch returns the canonical labels of conceptType whose label or any
// synonym appears in text as a whole word, case-insensitively.
func (c *Catalog) BruteMatch(conceptType, text string) []string {
	var matched []string
	for label, pattern := range c.matchers[conceptType] {
		if pattern.MatchString(text) {
			matched = append(matched, label)
		}
	}
	return matched
}

func compileWordBoundaryPattern(terms []string) (*regexp.Regexp, error) {
	escaped := make([]string, len(terms))
	for i, t := range terms {
		escaped[i] = regexp.QuoteMeta(strings.TrimSpace(t))
	}
	return regexp.Compile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
}
