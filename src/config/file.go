package config

import (
	"fmt"
	"os"

	"github.com/stake-plus/mod-review/src/review"
	"gopkg.in/yaml.v3"
)

// File is the optional YAML overlay named by REVIEW_CONFIG. It holds values that are
// awkward as env vars: DM copy and extra placeholder identities.
type File struct {
	Messages     review.Messages `yaml:"messages"`
	Placeholders []string        `yaml:"placeholders"`
	AdminIDs     []string        `yaml:"admin_ids"`
}

// LoadFile reads a YAML overlay. An empty path yields an empty File.
func LoadFile(path string) (File, error) {
	var f File
	if path == "" {
		return f, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("config file: %w", err)
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("config file %s: %w", path, err)
	}
	return f, nil
}
