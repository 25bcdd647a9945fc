package leaky

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads an analysis configuration from a YAML file. Fields left
// out of the file keep their defaults. Explicit split views cannot be
// expressed in YAML; use the field or tags specifiers there.
//
// Example:
//
//	method: hash
//	hash:
//	  method: image
//	  hash_size: 24
//	  hash_field: dhash
//	  splits:
//	    tags: [train, test]
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
