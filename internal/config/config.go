package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FastCodeConfig holds global configuration loaded from ~/.codelens/config.yaml:
// the teacher's flat API-key/model block, plus the retrieval/agent/vector-store/
// cache sections a complete retrieval engine needs tuned per-deployment rather
// than hardcoded.
type FastCodeConfig struct {
	OpenAIAPIKey   string `yaml:"openai_api_key"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	EmbeddingURL   string `yaml:"embedding_url"`   // Separate URL for embedding API
	EmbeddingModel string `yaml:"embedding_model"` // Embedding model name

	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Agent       AgentSection      `yaml:"agent"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Cache       CacheConfig       `yaml:"cache"`
}

// RetrievalConfig tunes the hybrid retriever's fusion and reranking weights.
type RetrievalConfig struct {
	SemanticWeight   float64 `yaml:"semantic_weight"`
	KeywordWeight    float64 `yaml:"keyword_weight"`
	GraphWeight      float64 `yaml:"graph_weight"`
	DiversityPenalty float64 `yaml:"diversity_penalty"`
	TopK             int     `yaml:"top_k"`
}

// AgentSection nests the iterative agent's tunable budget under agent.iterative.*.
type AgentSection struct {
	Iterative IterativeConfig `yaml:"iterative"`
}

// IterativeConfig mirrors agent.AgentConfig's fields for YAML configurability.
type IterativeConfig struct {
	MaxRounds           int     `yaml:"max_rounds"`
	ConfidenceThreshold int     `yaml:"confidence_threshold"`
	MaxTokenBudget      int     `yaml:"max_token_budget"`
	MaxTotalLines       int     `yaml:"max_total_lines"`
	Temperature         float64 `yaml:"temperature"`
}

// VectorStoreConfig mirrors index.VectorStoreConfig's HNSW-style ANN params.
type VectorStoreConfig struct {
	M              int `yaml:"m"`
	EfConstruction int `yaml:"ef_construction"`
	EfSearch       int `yaml:"ef_search"`
}

// CacheConfig controls where and how long indexed artifacts persist on disk.
type CacheConfig struct {
	Dir     string `yaml:"dir"`
	TTLDays int    `yaml:"ttl_days"`
}

// DefaultRetrievalConfig mirrors the hybrid retriever's own hardcoded
// defaults, so a config file only needs to list the values it overrides.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{SemanticWeight: 0.6, KeywordWeight: 0.3, GraphWeight: 0.1, DiversityPenalty: 0.1, TopK: 10}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".codelens", "config.yaml")
}

// Load reads the YAML config file and sets environment variables.
// Environment variables already set take precedence over the config file.
func Load() (*FastCodeConfig, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom reads a specific YAML config file and sets environment variables.
func LoadFrom(path string) (*FastCodeConfig, error) {
	cfg := &FastCodeConfig{Retrieval: DefaultRetrievalConfig()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // No config file, not an error
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	// Set env vars only if not already set (env vars take precedence)
	setIfEmpty("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	setIfEmpty("MODEL", cfg.Model)
	setIfEmpty("BASE_URL", cfg.BaseURL)
	setIfEmpty("EMBEDDING_URL", cfg.EmbeddingURL)
	setIfEmpty("EMBEDDING_MODEL", cfg.EmbeddingModel)
	setIfEmpty("CODELENS_CACHE_DIR", cfg.Cache.Dir)

	return cfg, nil
}

func setIfEmpty(key, value string) {
	if value != "" && os.Getenv(key) == "" {
		os.Setenv(key, value)
	}
}
