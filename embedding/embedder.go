// Package embedding defines the interface for text embedding providers and
// the retry wrapper every call into a provider goes through. Providers
// (OpenAI-compatible, Ollama) are interchangeable behind Embedder.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Embedder is the interface that text embedding providers must implement.
type Embedder interface {
	// Embed converts text into a vector. Implementations must honour ctx
	// cancellation and return a *RequestError for non-2xx responses.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrMissingCredential is returned when a provider that needs an API key
// has none.
var ErrMissingCredential = errors.New("embedding API key is not set")

// RequestError is a non-success HTTP response from an embedding service.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("embedding request failed: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("embedding request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the same request might succeed later: rate
// limits, request timeouts and server errors.
func (e *RequestError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode >= 500:
		return true
	default:
		return false
	}
}
