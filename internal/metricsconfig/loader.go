package metricsconfig

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Load reads a catalog file, or the built-in catalog when path is empty
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metric catalog: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in catalog
func Default() *Catalog {
	cat, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in metric catalog is invalid: %v", err))
	}
	return cat
}

// Parse decodes and validates catalog YAML. Unknown fields are errors.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("decode metric catalog: %w", err)
	}

	if err := Validate(&cat); err != nil {
		return nil, err
	}
	return &cat, nil
}
