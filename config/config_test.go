package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Projection.NNeighbors != 15 {
		t.Errorf("expected NNeighbors=15, got %d", cfg.Projection.NNeighbors)
	}
	if cfg.Projection.MinDist != 0.1 {
		t.Errorf("expected MinDist=0.1, got %f", cfg.Projection.MinDist)
	}
	if cfg.Projection.Spread != 1.0 {
		t.Errorf("expected Spread=1.0, got %f", cfg.Projection.Spread)
	}
	if cfg.Projection.PCAComponents != 50 {
		t.Errorf("expected PCAComponents=50, got %d", cfg.Projection.PCAComponents)
	}
	if cfg.Projection.Force {
		t.Error("cache bypass should default to false")
	}
	if cfg.Projection.IncludeEmbeddings {
		t.Error("embedding inclusion must default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestParseOverridesAndDurations(t *testing.T) {
	data := []byte(`
projection:
  n_neighbors: 30
  min_dist: 0.25
  pca_components: 20
  include_embeddings: true
embedding:
  provider: ollama
  initial_backoff: 250ms
`)

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Projection.NNeighbors != 30 || cfg.Projection.MinDist != 0.25 || cfg.Projection.PCAComponents != 20 {
		t.Errorf("projection overrides not applied: %+v", cfg.Projection)
	}
	if cfg.Projection.Spread != 1.0 {
		t.Errorf("expected default spread to fill in, got %f", cfg.Projection.Spread)
	}
	if !cfg.Projection.IncludeEmbeddings {
		t.Error("expected include_embeddings=true")
	}
	if cfg.Embedding.Model != "nomic-embed-text" {
		t.Errorf("expected ollama default model, got %s", cfg.Embedding.Model)
	}
	if cfg.Embedding.InitialBackoff != 250*time.Millisecond {
		t.Errorf("expected 250ms backoff, got %v", cfg.Embedding.InitialBackoff)
	}
	if cfg.Embedding.NeedsCredential() {
		t.Error("ollama should not need a credential")
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"neighbors", "projection:\n  n_neighbors: 1\n"},
		{"spread", "projection:\n  spread: -1\n"},
		{"min dist above spread", "projection:\n  min_dist: 2\n  spread: 1\n"},
		{"provider", "embedding:\n  provider: carrier-pigeon\n"},
		{"group size", "groups:\n  min_cluster_size: 1\n"},
		{"group samples", "groups:\n  min_samples: -2\n"},
	}

	for _, tc := range tests {
		if _, err := Parse([]byte(tc.yaml)); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestParseMinDist(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		expected float64
	}{
		{"absent", "log_level: debug\n", 0.1},
		{"other projection keys", "projection:\n  n_neighbors: 20\n", 0.1},
		{"explicit zero", "projection:\n  min_dist: 0\n", 0},
		{"explicit value", "projection:\n  min_dist: 0.5\n", 0.5},
	}

	for _, tc := range tests {
		cfg, err := Parse([]byte(tc.yaml))
		if err != nil {
			t.Errorf("%s: Parse: %v", tc.name, err)
			continue
		}
		if cfg.Projection.MinDist != tc.expected {
			t.Errorf("%s: expected MinDist=%g, got %g", tc.name, tc.expected, cfg.Projection.MinDist)
		}
	}
}

func TestHuggingFaceDefaults(t *testing.T) {
	cfg, err := Parse([]byte("embedding:\n  provider: huggingface\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	e := cfg.Embedding
	if e.APIKeyEnv != "HF_TOKEN" || e.Model != "sentence-transformers/all-MiniLM-L6-v2" || e.BaseURL != "https://api-inference.huggingface.co" {
		t.Errorf("unexpected huggingface defaults %+v", e)
	}
	if !e.NeedsCredential() {
		t.Error("huggingface needs a token")
	}
	if cfg.Groups.MinClusterSize != 3 {
		t.Errorf("expected default min cluster size 3, got %d", cfg.Groups.MinClusterSize)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadCredentialFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("DUPESCOPE_TEST_KEY=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := EmbeddingConfig{APIKeyEnv: "DUPESCOPE_TEST_KEY", EnvFile: envFile}

	t.Setenv("DUPESCOPE_TEST_KEY", "")
	key, err := LoadCredential(cfg)
	if err != nil {
		t.Fatalf("LoadCredential: %v", err)
	}
	if key != "from-file" {
		t.Errorf("expected key from env file, got %q", key)
	}

	t.Setenv("DUPESCOPE_TEST_KEY", "from-env")
	key, _ = LoadCredential(cfg)
	if key != "from-env" {
		t.Errorf("environment should win over env file, got %q", key)
	}
}

func TestLoadCredentialMissingEnvFile(t *testing.T) {
	cfg := EmbeddingConfig{APIKeyEnv: "DUPESCOPE_TEST_ABSENT", EnvFile: filepath.Join(t.TempDir(), "nope.env")}
	t.Setenv("DUPESCOPE_TEST_ABSENT", "")

	key, err := LoadCredential(cfg)
	if err != nil {
		t.Fatalf("missing env file should not be an error: %v", err)
	}
	if key != "" {
		t.Errorf("expected empty key, got %q", key)
	}
}
