// Package huggingface embeds search queries with the Hugging Face Inference
// API feature-extraction pipeline.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alDuncanson/dupescope/embedding"
)

// DefaultBaseURL is the hosted Inference API.
const DefaultBaseURL = "https://api-inference.huggingface.co"

// EmbeddingsClient handles HTTP communication with the Hugging Face Inference API
// for generating text embeddings.
type EmbeddingsClient struct {
	baseURL    string
	modelID    string
	token      string
	httpClient *http.Client
}

// embeddingsRequest represents the JSON payload sent to the HF Inference API.
type embeddingsRequest struct {
	Inputs  string          `json:"inputs"`
	Options map[string]bool `json:"options,omitempty"`
}

// NewEmbeddingsClient creates a client for modelID authenticated with token.
// A zero timeout means 30 seconds.
func NewEmbeddingsClient(baseURL, modelID, token string, timeout time.Duration) *EmbeddingsClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EmbeddingsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		modelID:    modelID,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ embedding.Embedder = (*EmbeddingsClient)(nil)

// Embed converts the provided text into a vector embedding. Models that
// return one vector per token are mean-pooled into a single vector.
func (c *EmbeddingsClient) Embed(ctx context.Context, inputText string) ([]float32, error) {
	if strings.TrimSpace(inputText) == "" {
		return nil, nil
	}
	if c.token == "" {
		return nil, embedding.ErrMissingCredential
	}

	jsonBody, err := json.Marshal(embeddingsRequest{
		Inputs:  inputText,
		Options: map[string]bool{"wait_for_model": true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", c.baseURL, c.modelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &embedding.RequestError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return decodeFeatures(raw)
}

// decodeFeatures accepts a pooled vector [f, ...] or per-token vectors
// [[f, ...], ...].
func decodeFeatures(raw json.RawMessage) ([]float32, error) {
	var pooled []float32
	if err := json.Unmarshal(raw, &pooled); err == nil {
		if len(pooled) == 0 {
			return nil, fmt.Errorf("no embeddings returned")
		}
		return pooled, nil
	}

	var tokens [][]float32
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return meanPool(tokens)
}

func meanPool(tokens [][]float32) ([]float32, error) {
	if len(tokens) == 0 || len(tokens[0]) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	dim := len(tokens[0])
	sum := make([]float64, dim)
	for _, token := range tokens {
		if len(token) != dim {
			return nil, fmt.Errorf("token vectors differ in length: %d and %d", dim, len(token))
		}
		for i, v := range token {
			sum[i] += float64(v)
		}
	}

	out := make([]float32, dim)
	for i := range sum {
		out[i] = float32(sum[i] / float64(len(tokens)))
	}
	return out, nil
}
