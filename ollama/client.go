// Package ollama provides an HTTP client for the Ollama embedding API. It
// needs no credential, which makes it the offline choice for semantic search.
package ollama

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

// Client handles HTTP communication with the Ollama embedding API.
type Client struct {
	baseURL    string       // e.g. "http://localhost:11434"
	modelName  string       // e.g. "nomic-embed-text"
	httpClient *http.Client // reused across requests
}

// embeddingRequest is the JSON payload sent to /api/embed.
type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embeddingResponse is the JSON response from /api/embed. Embeddings is
// batched even though this client sends one input at a time.
type embeddingResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewClient creates a client for the given server and embedding model. A
// zero timeout means 30 seconds.
func NewClient(baseURL, modelName string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		modelName:  modelName,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ embedding.Embedder = (*Client)(nil)

// Embed converts inputText into a vector embedding. Empty input returns nil
// without contacting the server.
func (ollamaClient *Client) Embed(ctx context.Context, inputText string) ([]float32, error) {
	if strings.TrimSpace(inputText) == "" {
		return nil, nil
	}

	jsonRequestBody, marshalError := json.Marshal(embeddingRequest{
		Model: ollamaClient.modelName,
		Input: inputText,
	})
	if marshalError != nil {
		return nil, fmt.Errorf("marshal request: %w", marshalError)
	}

	httpRequest, requestError := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		ollamaClient.baseURL+"/api/embed",
		bytes.NewReader(jsonRequestBody),
	)
	if requestError != nil {
		return nil, fmt.Errorf("build request: %w", requestError)
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	httpResponse, postError := ollamaClient.httpClient.Do(httpRequest)
	if postError != nil {
		return nil, fmt.Errorf("post request: %w", postError)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 4096))
		return nil, &embedding.RequestError{
			StatusCode: httpResponse.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var parsedResponse embeddingResponse
	if decodeError := json.NewDecoder(httpResponse.Body).Decode(&parsedResponse); decodeError != nil {
		return nil, fmt.Errorf("decode response: %w", decodeError)
	}

	if len(parsedResponse.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	return parsedResponse.Embeddings[0], nil
}
