package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseEntities(t *testing.T) {
	data := []byte(`
entities:
  - id: kr
    displayName: South Korea
    feedUrl: https://news.google.com/rss?hl=ko&gl=KR&ceid=KR:ko
  - id: " NVIDIA "
    displayName: NVIDIA
    feedUrl: https://news.google.com/rss/search?q=nvidia
`)
	entities, err := ParseEntities(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(entities) != 2 {
		t.Fatalf("got %d entities, want 2", len(entities))
	}
	if entities[0].ID != "kr" || entities[0].DisplayName != "South Korea" {
		t.Errorf("entities[0] = %+v", entities[0])
	}
	ids := EntityIDs(entities)
	if ids[0] != "kr" || ids[1] != "nvidia" {
		t.Errorf("EntityIDs = %v", ids)
	}
}

func TestParseEntitiesInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", "entities: []"},
		{"not yaml", "entities: [::"},
		{"missing id", "entities:\n  - displayName: X\n    feedUrl: https://x\n"},
		{"duplicate id", "entities:\n  - id: a\n    feedUrl: https://x\n  - id: a\n    feedUrl: https://y\n"},
		{"bad url", "entities:\n  - id: a\n    feedUrl: ftp://x\n"},
		{"unsafe id", "entities:\n  - id: ../etc\n    feedUrl: https://x\n"},
		{"duplicate after normalization", "entities:\n  - id: KR\n    feedUrl: https://x\n  - id: kr\n    feedUrl: https://y\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseEntities([]byte(tc.data))
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("got %v, want ConfigError", err)
			}
		})
	}
}

func TestLoadEntitiesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yaml")
	if err := os.WriteFile(path, []byte("entities:\n  - id: jp\n    displayName: Japan\n    feedUrl: https://example.com/jp.xml\n"), 0644); err != nil {
		t.Fatal(err)
	}
	entities, err := LoadEntities(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entities) != 1 || entities[0].FeedURL != "https://example.com/jp.xml" {
		t.Errorf("got %+v", entities)
	}

	if _, err := LoadEntities(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSampleFilesLoad(t *testing.T) {
	entities, err := LoadEntities("../../config/entities.yaml")
	if err != nil {
		t.Fatalf("sample entities: %v", err)
	}
	if len(entities) == 0 {
		t.Error("sample entities file is empty")
	}

	cfg, err := LoadFromFile("../../config/config.example.yaml")
	if err != nil {
		t.Fatalf("sample config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("sample config invalid: %v", err)
	}
}
