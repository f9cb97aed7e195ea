package config

import (
	"fmt"
	"os"

	"Go2NetReplay/internal/model"

	"gopkg.in/yaml.v3"
)

// TagsConfig holds the tag taxonomy, inline or in a separate YAML file.
type TagsConfig struct {
	File  string      `yaml:"file"`
	Items []model.Tag `yaml:"items"`
}

// LoadTags returns the configured taxonomy. Tags from File follow the inline ones.
func (c *Config) LoadTags() ([]model.Tag, error) {
	tags := append([]model.Tag(nil), c.Tags.Items...)
	if c.Tags.File == "" {
		return tags, nil
	}
	data, err := os.ReadFile(c.Tags.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags file: %w", err)
	}
	var fromFile []model.Tag
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags YAML: %w", err)
	}
	return append(tags, fromFile...), nil
}
