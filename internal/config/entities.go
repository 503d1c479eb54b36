package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/moodpulse/pkg/models"
	"github.com/seenimoa/moodpulse/pkg/utils"
)

type entitiesFile struct {
	Entities []models.EntityConfig `yaml:"entities"`
}

// LoadEntities reads the tracked entity list from a YAML file of the form
//
//	entities:
//	  - id: kr
//	    displayName: South Korea
//	    feedUrl: https://news.google.com/rss?hl=ko&gl=KR&ceid=KR:ko
func LoadEntities(path string) ([]models.EntityConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "pipeline.entities_file", Err: err}
	}
	return ParseEntities(data)
}

// ParseEntities decodes and validates an entity list. Ids are normalized
// to lowercase.
func ParseEntities(data []byte) ([]models.EntityConfig, error) {
	var f entitiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &ConfigError{Field: "entities", Err: fmt.Errorf("parse: %w", err)}
	}
	for i := range f.Entities {
		f.Entities[i].ID = utils.NormalizeEntityID(f.Entities[i].ID)
		f.Entities[i].DisplayName = strings.TrimSpace(f.Entities[i].DisplayName)
		f.Entities[i].FeedURL = strings.TrimSpace(f.Entities[i].FeedURL)
	}
	if err := ValidateEntities(f.Entities); err != nil {
		return nil, err
	}
	return f.Entities, nil
}

// ValidateEntities enforces unique, file-name safe ids and http(s) feed URLs.
func ValidateEntities(entities []models.EntityConfig) error {
	if len(entities) == 0 {
		return &ConfigError{Field: "entities", Err: errors.New("no entities configured")}
	}
	seen := make(map[string]bool, len(entities))
	for i, e := range entities {
		if strings.TrimSpace(e.ID) == "" {
			return &ConfigError{Field: fmt.Sprintf("entities[%d].id", i), Err: errors.New("must not be empty")}
		}
		if !utils.IsValidEntityID(e.ID) {
			return &ConfigError{Field: fmt.Sprintf("entities[%d].id", i), Err: fmt.Errorf("invalid id %q (use a-z, 0-9, '-', '_', '.')", e.ID)}
		}
		if seen[e.ID] {
			return &ConfigError{Field: fmt.Sprintf("entities[%d].id", i), Err: fmt.Errorf("duplicate id %q", e.ID)}
		}
		seen[e.ID] = true
		if !strings.HasPrefix(e.FeedURL, "http://") && !strings.HasPrefix(e.FeedURL, "https://") {
			return &ConfigError{Field: fmt.Sprintf("entities[%d].feedUrl", i), Err: fmt.Errorf("invalid URL %q", e.FeedURL)}
		}
	}
	return nil
}

// EntityIDs returns the ids of entities in configuration order.
func EntityIDs(entities []models.EntityConfig) []string {
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return ids
}
