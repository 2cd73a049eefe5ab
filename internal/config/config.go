// Package config loads and validates lodestar configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete lodestar configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	DataDir    string           `yaml:"data_dir" json:"data_dir"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// IndexConfig configures the search index layout.
type IndexConfig struct {
	// Name is the index name documents are written to.
	Name string `yaml:"name" json:"name"`
	// TextField is the document text field name (default: page_content).
	TextField string `yaml:"text_field" json:"text_field"`
	// VectorField is the embedding field name (default: vector).
	VectorField string `yaml:"vector_field" json:"vector_field"`
	// Metric is the vector similarity metric: cosine, l2, or inner_product.
	Metric string `yaml:"metric" json:"metric"`
}

// RetrievalConfig configures query construction and reranking.
type RetrievalConfig struct {
	// Strategy selects query construction: content, dense_hybrid, or keyword.
	Strategy string `yaml:"strategy" json:"strategy"`

	// KeywordImportance scales keyword boost clauses and enables keyword
	// reranking of search results (default: 1.5, 0 disables).
	KeywordImportance float64 `yaml:"keyword_importance" json:"keyword_importance"`

	// Hybrid enables the vector leg for the dense_hybrid strategy.
	Hybrid bool `yaml:"hybrid" json:"hybrid"`

	// HybridAlpha balances lexical versus vector relevance (0.0-1.0).
	HybridAlpha float64 `yaml:"hybrid_alpha" json:"hybrid_alpha"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Backend selects the embedder: "static" (offline hash embeddings) or
	// "ollama".
	Backend string `yaml:"backend" json:"backend"`
	// Model is the embedding model name (Ollama only).
	Model string `yaml:"model" json:"model"`
	// Host is the Ollama API endpoint (default: http://localhost:11434).
	Host string `yaml:"host" json:"host"`
	// CacheSize is the embedding LRU cache capacity (0 disables caching).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level"`
	// FilePath is the log file path. Empty logs to stderr only.
	FilePath string `yaml:"file_path" json:"file_path"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Index: IndexConfig{
			Name:        "documents",
			TextField:   "page_content",
			VectorField: "vector",
			Metric:      "cosine",
		},
		Retrieval: RetrievalConfig{
			Strategy:          "content",
			KeywordImportance: 1.5,
			Hybrid:            false,
			HybridAlpha:       0.7,
		},
		Embeddings: EmbeddingsConfig{
			Backend:   "static",
			Model:     "nomic-embed-text",
			Host:      "", // Empty uses default http://localhost:11434
			CacheSize: 1000,
		},
		Logging: LoggingConfig{
			Level:    "info",
			FilePath: "",
		},
	}
}

// defaultDataDir returns the default index storage path.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".lodestar", "data")
	}
	return filepath.Join(home, ".lodestar", "data")
}

// Load loads configuration from the specified directory. It applies
// configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Config file (lodestar.yaml or .lodestar.yaml in dir)
//  3. Environment variables (LODESTAR_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile attempts to load lodestar.yaml or .lodestar.yaml from dir.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{"lodestar.yaml", ".lodestar.yaml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML loads configuration from a YAML file, overlaying defaults.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies LODESTAR_* environment variables, which take
// precedence over file configuration.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LODESTAR_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("LODESTAR_INDEX"); v != "" {
		c.Index.Name = v
	}
	if v := os.Getenv("LODESTAR_STRATEGY"); v != "" {
		c.Retrieval.Strategy = v
	}
	if v := os.Getenv("LODESTAR_KEYWORD_IMPORTANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Retrieval.KeywordImportance = f
		}
	}
	if v := os.Getenv("LODESTAR_EMBEDDINGS_BACKEND"); v != "" {
		c.Embeddings.Backend = v
	}
	if v := os.Getenv("LODESTAR_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("LODESTAR_OLLAMA_HOST"); v != "" {
		c.Embeddings.Host = v
	}
	if v := os.Getenv("LODESTAR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var problems []string

	if c.Index.Name == "" {
		problems = append(problems, "index.name must not be empty")
	}
	switch c.Index.Metric {
	case "cosine", "l2", "inner_product":
	default:
		problems = append(problems, fmt.Sprintf("index.metric %q must be cosine, l2, or inner_product", c.Index.Metric))
	}
	switch c.Retrieval.Strategy {
	case "content", "dense_hybrid", "keyword":
	default:
		problems = append(problems, fmt.Sprintf("retrieval.strategy %q must be content, dense_hybrid, or keyword", c.Retrieval.Strategy))
	}
	if c.Retrieval.KeywordImportance < 0 {
		problems = append(problems, "retrieval.keyword_importance must not be negative")
	}
	if c.Retrieval.HybridAlpha < 0 || c.Retrieval.HybridAlpha > 1 {
		problems = append(problems, "retrieval.hybrid_alpha must be between 0.0 and 1.0")
	}
	switch c.Embeddings.Backend {
	case "static", "ollama":
	default:
		problems = append(problems, fmt.Sprintf("embeddings.backend %q must be static or ollama", c.Embeddings.Backend))
	}
	if c.Embeddings.CacheSize < 0 {
		problems = append(problems, "embeddings.cache_size must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
