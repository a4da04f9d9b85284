// Package safety implements the embedding-similarity risk gate that screens
// every user utterance for emergency-level clinical patterns before any
// retrieval or generation happens.
package safety

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed risk_catalog.yaml
var defaultCatalogYAML []byte

// Condition is one named risk pattern. Description is the sentence that gets
// embedded and compared against user utterances, so it should read like a
// symptom statement, not a diagnosis label.
type Condition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Catalog is the full set of risk conditions the gate screens for.
type Catalog struct {
	Version    int         `yaml:"version"`
	Conditions []Condition `yaml:"conditions"`
}

// DefaultCatalog returns the built-in catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return parseCatalog(defaultCatalogYAML)
}

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read risk catalog: %w", err)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse risk catalog: %w", err)
	}
	if len(c.Conditions) == 0 {
		return nil, fmt.Errorf("risk catalog has no conditions")
	}
	for i, cond := range c.Conditions {
		if cond.Name == "" || cond.Description == "" {
			return nil, fmt.Errorf("risk catalog condition %d missing name or description", i)
		}
	}
	return &c, nil
}
