// Package config loads dupescope's YAML configuration and resolves the
// embedding credential used by semantic search.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when an explicitly requested config file is missing.
var ErrNotFound = errors.New("config file not found")

// Config holds the application configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level,omitempty"`
	Projection ProjectionConfig `yaml:"projection"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Groups     GroupsConfig     `yaml:"groups,omitempty"`
	Viewer     ViewerConfig     `yaml:"viewer,omitempty"`
	Qdrant     QdrantConfig     `yaml:"qdrant,omitempty"`
}

// ProjectionConfig holds the reducer hyperparameters and output switches.
type ProjectionConfig struct {
	NNeighbors        int     `yaml:"n_neighbors"`
	MinDist           float64 `yaml:"min_dist"`
	Spread            float64 `yaml:"spread"`
	PCAComponents     int     `yaml:"pca_components"`
	Epochs            int     `yaml:"epochs,omitempty"`
	Seed              int64   `yaml:"seed,omitempty"` // 0 picks a fresh seed per run
	Force             bool    `yaml:"force,omitempty"`
	IncludeEmbeddings bool    `yaml:"include_embeddings,omitempty"`
}

// EmbeddingConfig describes the service used to embed search queries.
type EmbeddingConfig struct {
	Provider       string        `yaml:"provider"` // "openai" | "ollama" | "huggingface"
	BaseURL        string        `yaml:"base_url,omitempty"`
	Model          string        `yaml:"model"`
	APIKeyEnv      string        `yaml:"api_key_env,omitempty"`
	EnvFile        string        `yaml:"env_file,omitempty"`
	MaxAttempts    int           `yaml:"max_attempts,omitempty"`
	InitialBackoff time.Duration `yaml:"initial_backoff,omitempty"`
	MaxBackoff     time.Duration `yaml:"max_backoff,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
}

// GroupsConfig tunes the density clustering that proposes duplicate groups.
type GroupsConfig struct {
	MinClusterSize int `yaml:"min_cluster_size,omitempty"`
	MinSamples     int `yaml:"min_samples,omitempty"` // 0 means min_cluster_size
}

// ViewerConfig holds interaction tolerances for the terminal viewer.
type ViewerConfig struct {
	HitRadius      float64 `yaml:"hit_radius,omitempty"`
	ClickThreshold float64 `yaml:"click_threshold,omitempty"`
	LogFile        string  `yaml:"log_file,omitempty"`
}

// QdrantConfig locates an optional Qdrant collection holding embedded records.
type QdrantConfig struct {
	Address    string `yaml:"address,omitempty"`
	Collection string `yaml:"collection,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := newConfig()
	cfg.applyDefaults()
	return cfg
}

// defaultMinDist is seeded before decoding rather than filled in afterwards,
// so an explicit min_dist: 0 survives.
const defaultMinDist = 0.1

func newConfig() *Config {
	return &Config{Projection: ProjectionConfig{MinDist: defaultMinDist}}
}

// DefaultPath returns ~/.dupescope/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".dupescope", "config.yaml"), nil
}

// Load reads the config at path. An empty path means the default location,
// in which case a missing file yields Default() instead of an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		defaultPath, err := DefaultPath()
		if err != nil {
			return Default(), nil
		}
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if !explicit {
				return Default(), nil
			}
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := newConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	p := &c.Projection
	if p.NNeighbors == 0 {
		p.NNeighbors = 15
	}
	if p.Spread == 0 {
		p.Spread = 1.0
	}
	if p.PCAComponents == 0 {
		p.PCAComponents = 50
	}
	if p.Epochs == 0 {
		p.Epochs = 200
	}

	e := &c.Embedding
	if e.Provider == "" {
		e.Provider = "openai"
	}
	if e.Model == "" {
		switch e.Provider {
		case "ollama":
			e.Model = "nomic-embed-text"
		case "huggingface":
			e.Model = "sentence-transformers/all-MiniLM-L6-v2"
		default:
			e.Model = "text-embedding-3-small"
		}
	}
	if e.BaseURL == "" {
		switch e.Provider {
		case "ollama":
			e.BaseURL = "http://localhost:11434"
		case "huggingface":
			e.BaseURL = "https://api-inference.huggingface.co"
		default:
			e.BaseURL = "https://api.openai.com/v1"
		}
	}
	if e.APIKeyEnv == "" {
		e.APIKeyEnv = "OPENAI_API_KEY"
		if e.Provider == "huggingface" {
			e.APIKeyEnv = "HF_TOKEN"
		}
	}
	if e.EnvFile == "" {
		e.EnvFile = ".env"
	}
	if e.MaxAttempts == 0 {
		e.MaxAttempts = 4
	}
	if e.InitialBackoff == 0 {
		e.InitialBackoff = 500 * time.Millisecond
	}
	if e.MaxBackoff == 0 {
		e.MaxBackoff = 8 * time.Second
	}
	if e.Timeout == 0 {
		e.Timeout = 30 * time.Second
	}

	if c.Groups.MinClusterSize == 0 {
		c.Groups.MinClusterSize = 3
	}

	v := &c.Viewer
	if v.HitRadius == 0 {
		v.HitRadius = 2
	}
	if v.ClickThreshold == 0 {
		v.ClickThreshold = 2
	}
	if v.LogFile == "" {
		v.LogFile = filepath.Join(os.TempDir(), "dupescope.log")
	}

	q := &c.Qdrant
	if q.Address == "" {
		q.Address = "localhost:6334"
	}
	if q.Collection == "" {
		q.Collection = "issues"
	}
}

// Validate checks value ranges that would otherwise surface as confusing
// failures deep inside the reducer or the HTTP clients.
func (c *Config) Validate() error {
	p := c.Projection
	if p.NNeighbors < 2 {
		return fmt.Errorf("projection.n_neighbors must be at least 2, got %d", p.NNeighbors)
	}
	if p.MinDist < 0 {
		return fmt.Errorf("projection.min_dist must be non-negative, got %g", p.MinDist)
	}
	if p.Spread <= 0 {
		return fmt.Errorf("projection.spread must be positive, got %g", p.Spread)
	}
	if p.MinDist > p.Spread {
		return fmt.Errorf("projection.min_dist (%g) must not exceed spread (%g)", p.MinDist, p.Spread)
	}
	if p.PCAComponents < 1 {
		return fmt.Errorf("projection.pca_components must be positive, got %d", p.PCAComponents)
	}
	if p.Epochs < 1 {
		return fmt.Errorf("projection.epochs must be positive, got %d", p.Epochs)
	}

	switch c.Embedding.Provider {
	case "openai", "ollama", "huggingface":
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}
	if c.Embedding.MaxAttempts < 1 {
		return fmt.Errorf("embedding.max_attempts must be positive, got %d", c.Embedding.MaxAttempts)
	}

	if c.Groups.MinClusterSize < 2 {
		return fmt.Errorf("groups.min_cluster_size must be at least 2, got %d", c.Groups.MinClusterSize)
	}
	if c.Groups.MinSamples < 0 {
		return fmt.Errorf("groups.min_samples must not be negative, got %d", c.Groups.MinSamples)
	}

	return nil
}

// NeedsCredential reports whether the configured provider requires an API key.
func (e EmbeddingConfig) NeedsCredential() bool {
	return e.Provider != "ollama"
}

// LoadCredential resolves the embedding API key from the process environment
// first, then from the configured dotenv file. The key is only ever held in
// memory; nothing here writes it back out. An empty result is not an error.
func LoadCredential(e EmbeddingConfig) (string, error) {
	if value := strings.TrimSpace(os.Getenv(e.APIKeyEnv)); value != "" {
		return value, nil
	}

	values, err := godotenv.Read(e.EnvFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read env file %s: %w", e.EnvFile, err)
	}
	return strings.TrimSpace(values[e.APIKeyEnv]), nil
}
