package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/alDuncanson/dupescope/embedding"
)

func TestEmbedPooledVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pipeline/feature-extraction/org/model" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer hf-test" {
			t.Errorf("unexpected authorization %q", got)
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Inputs != "login loop" || !req.Options["wait_for_model"] {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`[0.5, -0.5, 1]`))
	}))
	defer server.Close()

	vector, err := NewEmbeddingsClient(server.URL, "org/model", "hf-test", 0).Embed(context.Background(), "login loop")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if !reflect.DeepEqual(vector, []float32{0.5, -0.5, 1}) {
		t.Errorf("unexpected vector %v", vector)
	}
}

func TestEmbedMeanPoolsTokenVectors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1, 0], [3, 2]]`))
	}))
	defer server.Close()

	vector, err := NewEmbeddingsClient(server.URL, "m", "t", 0).Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if !reflect.DeepEqual(vector, []float32{2, 1}) {
		t.Errorf("expected mean of token vectors, got %v", vector)
	}
}

func TestEmbedErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewEmbeddingsClient(server.URL, "m", "t", 0).Embed(context.Background(), "text")
	var requestErr *embedding.RequestError
	if !errors.As(err, &requestErr) || !requestErr.Retryable() {
		t.Errorf("expected a retryable *embedding.RequestError, got %v", err)
	}

	_, err = NewEmbeddingsClient(server.URL, "m", "", 0).Embed(context.Background(), "text")
	if !errors.Is(err, embedding.ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential without a token, got %v", err)
	}

	vector, err := NewEmbeddingsClient(server.URL, "m", "", 0).Embed(context.Background(), " ")
	if vector != nil || err != nil {
		t.Errorf("empty input should return nil, nil; got %v, %v", vector, err)
	}
}

func TestDecodeFeaturesRejectsRaggedTokens(t *testing.T) {
	if _, err := decodeFeatures(json.RawMessage(`[[1, 2], [3]]`)); err == nil {
		t.Error("expected an error for token vectors of different lengths")
	}
	if _, err := decodeFeatures(json.RawMessage(`[]`)); err == nil {
		t.Error("expected an error for an empty response")
	}
}
