package models

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultSearchSize is the number of hits requested per query when a config sets none
const DefaultSearchSize = 10

// MatcherConfig is a complete matching algorithm: where to search and the ordered steps to run
type MatcherConfig struct {
	Name         string      `json:"name,omitempty" yaml:"name,omitempty"`
	Index        string      `json:"index" yaml:"index" validate:"required"`
	DocType      string      `json:"doc_type,omitempty" yaml:"doc_type,omitempty"`
	Size         int         `json:"size,omitempty" yaml:"size,omitempty" validate:"gte=0"`
	Source       []string    `json:"source,omitempty" yaml:"source,omitempty"`
	MatchDeleted bool        `json:"match_deleted,omitempty" yaml:"match_deleted,omitempty"`
	Collections  []string    `json:"collections,omitempty" yaml:"collections,omitempty" validate:"omitempty,dive,required"`
	Algorithm    []MatchStep `json:"algorithm" yaml:"algorithm" validate:"required,min=1,dive"`
}

// SearchSize returns Size, or DefaultSearchSize when unset
func (c *MatcherConfig) SearchSize() int {
	if c.Size <= 0 {
		return DefaultSearchSize
	}
	return c.Size
}

// MatchStep is one stage of an algorithm. Every hit of every query must pass all validators.
type MatchStep struct {
	Queries   []QuerySpec    `json:"queries" yaml:"queries" validate:"required,dive"`
	Validator ValidatorNames `json:"validator,omitempty" yaml:"validator,omitempty"`
}

// ValidatorNames lists validator names. Configs may give a single name or a list.
type ValidatorNames []string

// UnmarshalJSON accepts null, a string, or a list of strings
func (v *ValidatorNames) UnmarshalJSON(data []byte) error {
	var single *string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == nil {
			*v = nil
		} else {
			*v = ValidatorNames{*single}
		}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("validator must be a string or a list of strings: %w", err)
	}
	*v = list
	return nil
}

// UnmarshalYAML accepts a scalar or a sequence of scalars
func (v *ValidatorNames) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*v = nil
			return nil
		}
		*v = ValidatorNames{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*v = list
		return nil
	default:
		return fmt.Errorf("validator must be a string or a list of strings (line %d)", node.Line)
	}
}

// DefaultMatcherConfig matches on arXiv eprint, then DOI
func DefaultMatcherConfig() *MatcherConfig {
	return &MatcherConfig{
		Name:    "default",
		Index:   "records-hep",
		DocType: "hep",
		Size:    DefaultSearchSize,
		Algorithm: []MatchStep{
			{
				Queries: []QuerySpec{
					{
						Type:       QueryTypeExact,
						Path:       "arxiv_eprints.value",
						SearchPath: "arxiv_eprints.value.raw",
					},
					{
						Type:       QueryTypeExact,
						Path:       "dois.value",
						SearchPath: "dois.value.raw",
					},
				},
			},
		},
	}
}
