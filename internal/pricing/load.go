package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk catalog layout.
type File struct {
	Services []Service         `yaml:"services"`
	Aliases  map[string]string `yaml:"aliases"`
}

// LoadFile reads a YAML catalog. Built-in aliases are kept for every
// canonical ID the file defines, and the file's own aliases are added on top.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	aliases := make(map[string]string)
	for a, t := range DefaultAliases() {
		if containsID(f.Services, t) {
			aliases[a] = t
		}
	}
	for a, t := range f.Aliases {
		aliases[a] = t
	}

	c, err := NewCatalog(f.Services, aliases)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

func containsID(services []Service, id string) bool {
	for _, s := range services {
		if normalize(s.ID) == id {
			return true
		}
	}
	return false
}
