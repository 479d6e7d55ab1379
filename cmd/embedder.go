package cmd

import (
	"fmt"
	"strings"

	"github.com/alDuncanson/dupescope/config"
	"github.com/alDuncanson/dupescope/embedding"
	"github.com/alDuncanson/dupescope/huggingface"
	"github.com/alDuncanson/dupescope/logging"
	"github.com/alDuncanson/dupescope/ollama"
	"github.com/alDuncanson/dupescope/viewer"
)

// newEmbedderFactory builds query embedders for the configured provider,
// each wrapped in the configured retry policy.
func newEmbedderFactory(cfg config.EmbeddingConfig, logger *logging.Logger) viewer.EmbedderFactory {
	policy := embedding.RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
	}

	return func(credential string) (embedding.Embedder, error) {
		var inner embedding.Embedder
		switch cfg.Provider {
		case "ollama":
			inner = ollama.NewClient(cfg.BaseURL, cfg.Model, cfg.Timeout)
		case "openai":
			if credential == "" {
				return nil, embedding.ErrMissingCredential
			}
			inner = embedding.NewOpenAI(cfg.BaseURL, cfg.Model, credential, cfg.Timeout)
		case "huggingface":
			if credential == "" {
				return nil, embedding.ErrMissingCredential
			}
			inner = huggingface.NewEmbeddingsClient(cfg.BaseURL, cfg.Model, credential, cfg.Timeout)
		default:
			return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
		}
		return embedding.NewRetrying(inner, policy, logger), nil
	}
}

// pageSearchURL is the OpenAI-compatible base URL the HTML page posts
// queries to. Ollama serves that API under /v1.
func pageSearchURL(cfg config.EmbeddingConfig) string {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Provider == "ollama" && !strings.HasSuffix(base, "/v1") {
		return base + "/v1"
	}
	return base
}
