package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"ragbench/internal/domain"
)

// Config holds all configuration for ragbench.
type Config struct {
	Data      DataConfig      `yaml:"data"`
	Store     StoreConfig     `yaml:"store"`
	Run       RunConfig       `yaml:"run"`
	Index     IndexConfig     `yaml:"index"`
	Providers ProvidersConfig `yaml:"providers"`
	Logging   LoggingConfig   `yaml:"logging"`
	Report    ReportConfig    `yaml:"report"`
}

// DataConfig locates inputs and outputs.
type DataConfig struct {
	Dir            string `yaml:"dir"`
	OutputDir      string `yaml:"output_dir"`
	SweepOutputDir string `yaml:"sweep_output_dir"`
}

// StoreConfig holds the local index database location.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// RunConfig holds per-run fan-out settings.
type RunConfig struct {
	NResults     int `yaml:"n_results"`
	RewriteBatch int `yaml:"rewrite_batch_size"`
	RerankBatch  int `yaml:"rerank_batch_size"`
	SearchBatch  int `yaml:"search_batch_size"`
	Workers      int `yaml:"workers"` // 0 = min(32, NumCPU+4)
}

// IndexConfig holds indexing and lexical scoring settings.
type IndexConfig struct {
	InsertBatchSize  int     `yaml:"insert_batch_size"`
	MaxInsertWorkers int     `yaml:"max_insert_workers"`
	EmbedBatchSize   int     `yaml:"embed_batch_size"`
	Stemming         bool    `yaml:"stemming"`
	K1               float64 `yaml:"k1"`
	B                float64 `yaml:"b"`
	RRFK             int     `yaml:"rrf_k"`
	BM25Weight       float64 `yaml:"bm25_weight"`
	QueryCacheSize   int     `yaml:"query_cache_size"`
}

// ProvidersConfig holds settings shared by every remote provider.
type ProvidersConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 = unlimited
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInitialDelay time.Duration `yaml:"retry_initial_delay"`
	// BaseURLs overrides provider endpoints, keyed by provider name
	// (openai, anthropic, jina, voyage, contextual).
	BaseURLs map[string]string `yaml:"base_urls"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // console or json
	OutputPath string `yaml:"output_path"`
}

// ReportConfig controls HTML report generation.
type ReportConfig struct {
	HTML bool `yaml:"html"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir:            "data/experimentation-playground-sample-data",
			OutputDir:      "results",
			SweepOutputDir: "results/sweeps",
		},
		Store: StoreConfig{
			Path: filepath.Join(".ragbench", "index.db"),
		},
		Run: RunConfig{
			NResults:     10,
			RewriteBatch: 100,
			RerankBatch:  5,
			SearchBatch:  5,
		},
		Index: IndexConfig{
			InsertBatchSize:  100,
			MaxInsertWorkers: 20,
			EmbedBatchSize:   100,
			Stemming:         true,
			K1:               1.2,
			B:                0.75,
			RRFK:             60,
			BM25Weight:       0.5,
			QueryCacheSize:   1024,
		},
		Providers: ProvidersConfig{
			Timeout:           60 * time.Second,
			RetryAttempts:     3,
			RetryInitialDelay: time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Report: ReportConfig{
			HTML: true,
		},
	}
}

// Validate reports the first nonsensical value as a *domain.ConfigError.
func (c *Config) Validate() error {
	positive := []struct {
		key   string
		value int
	}{
		{"run.n_results", c.Run.NResults},
		{"run.rewrite_batch_size", c.Run.RewriteBatch},
		{"run.rerank_batch_size", c.Run.RerankBatch},
		{"run.search_batch_size", c.Run.SearchBatch},
		{"index.insert_batch_size", c.Index.InsertBatchSize},
		{"index.max_insert_workers", c.Index.MaxInsertWorkers},
		{"index.embed_batch_size", c.Index.EmbedBatchSize},
		{"index.rrf_k", c.Index.RRFK},
		{"providers.retry_attempts", c.Providers.RetryAttempts},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return domain.NewConfigError(p.key, fmt.Sprint(p.value), "must be positive")
		}
	}
	if c.Run.Workers < 0 {
		return domain.NewConfigError("run.workers", fmt.Sprint(c.Run.Workers), "must not be negative")
	}
	if c.Index.QueryCacheSize < 0 {
		return domain.NewConfigError("index.query_cache_size", fmt.Sprint(c.Index.QueryCacheSize), "must not be negative")
	}
	if c.Index.K1 < 0 {
		return domain.NewConfigError("index.k1", fmt.Sprint(c.Index.K1), "must not be negative")
	}
	if c.Index.B < 0 || c.Index.B > 1 {
		return domain.NewConfigError("index.b", fmt.Sprint(c.Index.B), "must be within [0, 1]")
	}
	if c.Index.BM25Weight < 0 || c.Index.BM25Weight > 1 {
		return domain.NewConfigError("index.bm25_weight", fmt.Sprint(c.Index.BM25Weight), "must be within [0, 1]")
	}
	if c.Providers.RequestsPerSecond < 0 {
		return domain.NewConfigError("providers.requests_per_second", fmt.Sprint(c.Providers.RequestsPerSecond), "must not be negative")
	}
	if c.Providers.Timeout < 0 || c.Providers.RetryInitialDelay < 0 {
		return domain.NewConfigError("providers", "", "durations must not be negative")
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return domain.NewConfigError("logging.format", c.Logging.Format, "must be console or json")
	}
	if c.Store.Path == "" {
		return domain.NewConfigError("store.path", "", "must not be empty")
	}
	return nil
}

// BaseURL returns the configured endpoint override for provider, or "".
func (c *Config) BaseURL(provider string) string {
	return c.Providers.BaseURLs[provider]
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// LoadFromDir looks for ragbench.yaml, then .ragbench/config.yaml.
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "ragbench.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".ragbench", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
