// Package config loads the process-wide configuration once at startup.
// Components never read the environment themselves; everything they need
// is passed in explicitly from here.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/finsightai/finsight/engine/domain"
)

// Provider names select the embedding/LLM backend pair at construction.
const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"
)

// OllamaConfig configures the local in-process model backend.
type OllamaConfig struct {
	BaseURL    string `yaml:"base_url"`
	EmbedModel string `yaml:"embed_model"`
	ChatModel  string `yaml:"chat_model"`
}

// RemoteConfig configures the hosted OpenAI-compatible backend.
type RemoteConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	EmbedModel string `yaml:"embed_model"`
	ChatModel  string `yaml:"chat_model"`
}

// APIKey resolves the credential from the configured env variable.
func (r RemoteConfig) APIKey() string { return os.Getenv(r.APIKeyEnv) }

// IndexConfig addresses the persisted vector index.
type IndexConfig struct {
	QdrantAddr string `yaml:"qdrant_addr"`
	Collection string `yaml:"collection"`
	Dimensions int    `yaml:"dimensions"`
}

// QueryConfig tunes the query pipeline.
type QueryConfig struct {
	SimilarityTopK     int `yaml:"similarity_top_k"`
	RequestTimeoutSecs int `yaml:"request_timeout_secs"`
}

// RequestTimeout returns the synthesis call bound as a duration.
func (q QueryConfig) RequestTimeout() time.Duration {
	return time.Duration(q.RequestTimeoutSecs) * time.Second
}

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	MaxChunkChars   int     `yaml:"max_chunk_chars"`
	MinChunkChars   int     `yaml:"min_chunk_chars"`
	EmbedWorkers    int     `yaml:"embed_workers"`
	EmbedRatePerSec float64 `yaml:"embed_rate_per_sec"`
}

// HistoryConfig configures the optional chat-history collaborator.
type HistoryConfig struct {
	DatabaseURLEnv string `yaml:"database_url_env"`
}

// DatabaseURL resolves the DSN; empty means history is disabled.
func (h HistoryConfig) DatabaseURL() string { return os.Getenv(h.DatabaseURLEnv) }

// Config is the root configuration.
type Config struct {
	Provider string        `yaml:"provider"`
	Ollama   OllamaConfig  `yaml:"ollama"`
	Remote   RemoteConfig  `yaml:"remote"`
	Index    IndexConfig   `yaml:"index"`
	Query    QueryConfig   `yaml:"query"`
	Ingest   IngestConfig  `yaml:"ingest"`
	History  HistoryConfig `yaml:"history"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider: ProviderLocal,
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			EmbedModel: "nomic-embed-text",
			ChatModel:  "llama3.1:8b",
		},
		Remote: RemoteConfig{
			BaseURL:    "https://api.groq.com/openai/v1",
			APIKeyEnv:  "GROQ_API_KEY",
			EmbedModel: "text-embedding-3-small",
			ChatModel:  "llama-3.3-70b-versatile",
		},
		Index: IndexConfig{
			QdrantAddr: "localhost:6334",
			Collection: "nvidia_financials",
			Dimensions: 768,
		},
		Query: QueryConfig{
			SimilarityTopK:     3,
			RequestTimeoutSecs: 60,
		},
		Ingest: IngestConfig{
			MaxChunkChars:   1800,
			MinChunkChars:   200,
			EmbedWorkers:    4,
			EmbedRatePerSec: 8,
		},
		History: HistoryConfig{
			DatabaseURLEnv: "DATABASE_URL",
		},
	}
}

// Load reads configuration from an optional YAML file, then applies env
// overrides. A missing file yields defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	// A .env file is a development convenience; absence is fine.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, domain.Wrap(domain.ErrConfiguration, "config.Load", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.Wrap(domain.ErrConfiguration, "config.Load", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"FINSIGHT_PROVIDER", &cfg.Provider},
		{"OLLAMA_URL", &cfg.Ollama.BaseURL},
		{"EMBED_MODEL", &cfg.Ollama.EmbedModel},
		{"CHAT_MODEL", &cfg.Ollama.ChatModel},
		{"QDRANT_ADDR", &cfg.Index.QdrantAddr},
		{"QDRANT_COLLECTION", &cfg.Index.Collection},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// Validate checks the configuration for construction-time errors.
// Missing credentials fail here, never at first use.
func (c *Config) Validate() error {
	const op = "config.Validate"
	switch c.Provider {
	case ProviderLocal, ProviderRemote:
	default:
		return domain.Wrapf(domain.ErrConfiguration, op, "unknown provider %q", c.Provider)
	}
	if c.Provider == ProviderRemote && c.Remote.APIKey() == "" {
		return domain.Wrapf(domain.ErrConfiguration, op, "missing API key in env %s", c.Remote.APIKeyEnv)
	}
	if c.Index.Collection == "" {
		return domain.Wrapf(domain.ErrConfiguration, op, "collection name is empty")
	}
	if c.Index.Dimensions <= 0 {
		return domain.Wrapf(domain.ErrConfiguration, op, "dimensions must be positive, got %d", c.Index.Dimensions)
	}
	if c.Query.SimilarityTopK <= 0 {
		return domain.Wrapf(domain.ErrConfiguration, op, "similarity_top_k must be positive, got %d", c.Query.SimilarityTopK)
	}
	if c.Ingest.MaxChunkChars <= c.Ingest.MinChunkChars {
		return domain.Wrapf(domain.ErrConfiguration, op, "max_chunk_chars %d must exceed min_chunk_chars %d",
			c.Ingest.MaxChunkChars, c.Ingest.MinChunkChars)
	}
	return nil
}
