package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// LLMConfig is the model catalog: a mapping from vendor name to an
// ordered list of model definitions, plus the ordered list of vendor
// display names. Loaded once from JSON; each load produces a fresh
// immutable snapshot.
type LLMConfig struct {
	LLMVendors     map[string][]LLMDefinition `json:"llm_vendors"`
	LLMVendorNames []string                   `json:"llm_vendor_names"`
}

// LLMDefinition describes one servable model.
type LLMDefinition struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Vendor         string `json:"vendor"`
	MaxTokenLength int    `json:"max_token_length"`
}

// LoadLLMConfig reads the model catalog from a JSON file.
func LoadLLMConfig(path string) (*LLMConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read llm config %s: %w", path, err)
	}
	var cfg LLMConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse llm config %s: %w", path, err)
	}
	return &cfg, nil
}

// LookupModel finds a model definition by id across all vendors.
// Returns nil when the id is not in the catalog.
func (c *LLMConfig) LookupModel(id string) *LLMDefinition {
	for _, llms := range c.LLMVendors {
		for i := range llms {
			if llms[i].ID == id {
				return &llms[i]
			}
		}
	}
	return nil
}
