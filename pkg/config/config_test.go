package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/finsightai/finsight/engine/domain"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != ProviderLocal {
		t.Errorf("provider = %q, want local", cfg.Provider)
	}
	if cfg.Query.SimilarityTopK != 3 {
		t.Errorf("similarity_top_k = %d, want 3", cfg.Query.SimilarityTopK)
	}
	if cfg.Index.Collection != "nvidia_financials" {
		t.Errorf("collection = %q", cfg.Index.Collection)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
index:
  qdrant_addr: qdrant.internal:6334
  collection: filings
  dimensions: 384
query:
  similarity_top_k: 5
  request_timeout_secs: 30
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Index.Collection != "filings" || cfg.Index.Dimensions != 384 {
		t.Errorf("index config not applied: %+v", cfg.Index)
	}
	if cfg.Query.SimilarityTopK != 5 {
		t.Errorf("similarity_top_k = %d, want 5", cfg.Query.SimilarityTopK)
	}
	// Untouched sections keep defaults.
	if cfg.Ollama.EmbedModel != "nomic-embed-text" {
		t.Errorf("embed model default lost: %q", cfg.Ollama.EmbedModel)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestValidate_RemoteRequiresKey(t *testing.T) {
	cfg := Default()
	cfg.Provider = ProviderRemote
	cfg.Remote.APIKeyEnv = "FINSIGHT_TEST_MISSING_KEY"
	os.Unsetenv("FINSIGHT_TEST_MISSING_KEY")

	err := cfg.Validate()
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}

	t.Setenv("FINSIGHT_TEST_MISSING_KEY", "gsk_test")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with key present: %v", err)
	}
}

func TestValidate_BadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Provider = "cloud" }},
		{"empty collection", func(c *Config) { c.Index.Collection = "" }},
		{"zero dimensions", func(c *Config) { c.Index.Dimensions = 0 }},
		{"zero top_k", func(c *Config) { c.Query.SimilarityTopK = 0 }},
		{"inverted chunk bounds", func(c *Config) { c.Ingest.MaxChunkChars = 100; c.Ingest.MinChunkChars = 200 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, domain.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QDRANT_COLLECTION", "filings_2025")
	t.Setenv("FINSIGHT_PROVIDER", "local")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Index.Collection != "filings_2025" {
		t.Errorf("env override not applied: %q", cfg.Index.Collection)
	}
}
