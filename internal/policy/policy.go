// Package policy loads the evidence policy: the evidence types and the
// requirement rows that govern stage moves.
package policy

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"homeward/internal/domain"
)

//go:embed default.yaml
var defaultPolicy []byte

// TypeSpec declares one evidence type.
type TypeSpec struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	System      bool   `yaml:"system"`
}

// RequirementSpec declares one requirement row. EvidenceType is a type name.
type RequirementSpec struct {
	From         domain.Stage `yaml:"from"`
	To           domain.Stage `yaml:"to"`
	EvidenceType string       `yaml:"evidence_type"`
	Required     bool         `yaml:"required"`
}

// File is a parsed policy document.
type File struct {
	EvidenceTypes []TypeSpec        `yaml:"evidence_types"`
	Requirements  []RequirementSpec `yaml:"requirements"`
}

// Load reads a policy file. An empty path yields the built-in policy.
func Load(path string) (File, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in policy.
func Default() (File, error) {
	return Parse(defaultPolicy)
}

// Parse decodes and validates a policy document.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("failed to parse policy file: %w", err)
	}
	for i := range f.EvidenceTypes {
		f.EvidenceTypes[i].Name = strings.ToLower(strings.TrimSpace(f.EvidenceTypes[i].Name))
	}
	for i := range f.Requirements {
		f.Requirements[i].EvidenceType = strings.ToLower(strings.TrimSpace(f.Requirements[i].EvidenceType))
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks names, stages and references.
func (f File) Validate() error {
	var errs []error
	names := make(map[string]bool, len(f.EvidenceTypes))
	for _, t := range f.EvidenceTypes {
		if _, err := domain.NewEvidenceType("", t.Name, t.DisplayName); err != nil {
			errs = append(errs, err)
			continue
		}
		if names[t.Name] {
			errs = append(errs, fmt.Errorf("evidence type %q declared twice", t.Name))
		}
		names[t.Name] = true
	}

	seen := map[RequirementSpec]bool{}
	for _, r := range f.Requirements {
		if _, err := domain.NewRequirement(r.From, r.To, r.EvidenceType, r.Required); err != nil {
			errs = append(errs, err)
			continue
		}
		if !names[r.EvidenceType] {
			errs = append(errs, fmt.Errorf("requirement %s -> %s references undeclared evidence type %q", r.From, r.To, r.EvidenceType))
		}
		key := r
		key.Required = false
		if seen[key] {
			errs = append(errs, fmt.Errorf("requirement %s -> %s for %q declared twice", r.From, r.To, r.EvidenceType))
		}
		seen[key] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid policy: %w", errors.Join(errs...))
	}
	return nil
}
