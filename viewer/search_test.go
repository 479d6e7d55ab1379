package viewer

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/alDuncanson/dupescope/embedding"
	"github.com/alDuncanson/dupescope/points"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{0.3, 0.4}, []float32{0.3, 0.4}, 1},
		{"scaled", []float32{1, 2}, []float32{2, 4}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
	}

	for _, tc := range tests {
		if got := CosineSimilarity(tc.a, tc.b); math.Abs(got-tc.expected) > 1e-6 {
			t.Errorf("%s: got %f, expected %f", tc.name, got, tc.expected)
		}
	}
}

func TestRankBySimilarityScenario(t *testing.T) {
	pts := []points.Point{
		{Embedding: []float32{1, 0}},
		{Embedding: []float32{0, 1}},
		{Embedding: []float32{0.9, 0.1}},
		{},
	}

	matches := RankBySimilarity([]float32{1, 0}, pts, MaxSearchResults)

	indices := make([]int, len(matches))
	for i, m := range matches {
		indices[i] = m.Index
	}
	if !reflect.DeepEqual(indices, []int{0, 2}) {
		t.Fatalf("expected [0 2], got %v", indices)
	}
	if math.Abs(matches[0].Similarity-1) > 1e-6 {
		t.Errorf("identical embedding should score 1, got %f", matches[0].Similarity)
	}
}

func TestRankBySimilarityLimit(t *testing.T) {
	pts := make([]points.Point, 30)
	for i := range pts {
		pts[i].Embedding = []float32{1, float32(i) / 10}
	}

	matches := RankBySimilarity([]float32{1, 0}, pts, MaxSearchResults)

	if len(matches) != MaxSearchResults {
		t.Fatalf("expected %d matches, got %d", MaxSearchResults, len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Similarity > matches[i-1].Similarity {
			t.Fatalf("matches not in descending order at %d", i)
		}
	}
	if matches[0].Index != 0 {
		t.Errorf("expected exact match first, got %d", matches[0].Index)
	}
}

func TestApplySearchReplacesSelection(t *testing.T) {
	pts := []points.Point{
		{X: 0.1, Y: 0.1, Embedding: []float32{1, 0}},
		{X: 0.5, Y: 0.5, Embedding: []float32{0, 1}},
		{X: 0.9, Y: 0.9, Embedding: []float32{0.9, 0.1}},
	}
	c := NewController(pts, Size{Width: 100, Height: 100}, Options{})
	c.ReplaceSelection([]int{1})

	matches := c.ApplySearch([]float32{1, 0})

	if len(matches) != 2 || matches[0].Index != 0 || matches[1].Index != 2 {
		t.Errorf("unexpected matches %v", matches)
	}
	if got := c.Selected(); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("expected selection [0 2], got %v", got)
	}
}

func TestSearchClientRequiresCredential(t *testing.T) {
	var credentials []string
	fake := &fakeEmbedder{vector: []float32{1, 0}}
	client := NewSearchClient(func(credential string) (embedding.Embedder, error) {
		credentials = append(credentials, credential)
		return fake, nil
	}, true)

	if _, err := client.Begin("  "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
	if _, err := client.Begin("crash"); !errors.Is(err, embedding.ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}

	client.SetCredential(" sk-test ")
	req, err := client.Begin("crash")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !client.InFlight() {
		t.Error("request should be in flight")
	}
	if _, err := client.Begin("another"); !errors.Is(err, ErrSearchInProgress) {
		t.Errorf("expected ErrSearchInProgress, got %v", err)
	}

	vector, err := req.Run(context.Background())
	vector, err = client.Finish(req, vector, err)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(vector) != 2 || client.InFlight() {
		t.Errorf("unexpected state after finish: %v in flight %v", vector, client.InFlight())
	}
	if !reflect.DeepEqual(credentials, []string{"sk-test"}) {
		t.Errorf("factory should receive the trimmed credential, got %v", credentials)
	}
}

func TestSearchFailureDiscardsCredentialAndKeepsSelection(t *testing.T) {
	fake := &fakeEmbedder{err: &embedding.RequestError{StatusCode: 401, Body: "bad key"}}
	client := NewSearchClient(func(string) (embedding.Embedder, error) { return fake, nil }, true)
	client.SetCredential("sk-wrong")

	c := NewController([]points.Point{{Embedding: []float32{1}}, {Embedding: []float32{1}}}, Size{Width: 10, Height: 10}, Options{})
	c.ReplaceSelection([]int{1})

	req, err := client.Begin("query")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	vector, err := req.Run(context.Background())
	if _, err := client.Finish(req, vector, err); err == nil {
		t.Fatal("expected error")
	} else {
		var requestErr *embedding.RequestError
		if !errors.As(err, &requestErr) {
			t.Errorf("error should wrap the request failure, got %v", err)
		}
	}

	if !client.NeedsCredential() {
		t.Error("failed search must discard the credential")
	}
	if client.InFlight() {
		t.Error("failed search must clear the in-flight flag")
	}
	if got := c.Selected(); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("selection must be untouched, got %v", got)
	}
}

func TestSearchClientCachesQueryVectors(t *testing.T) {
	fake := &fakeEmbedder{vector: []float32{0.5, 0.5}}
	client := NewSearchClient(func(string) (embedding.Embedder, error) { return fake, nil }, false)

	for i := 0; i < 2; i++ {
		req, err := client.Begin("flaky test")
		if err != nil {
			t.Fatalf("Begin %d: %v", i, err)
		}
		vector, err := req.Run(context.Background())
		if _, err := client.Finish(req, vector, err); err != nil {
			t.Fatalf("Finish %d: %v", i, err)
		}
	}

	if fake.calls != 1 {
		t.Errorf("expected one embedding call for a repeated query, got %d", fake.calls)
	}
}

func TestSearchClientRejectsEmptyVector(t *testing.T) {
	fake := &fakeEmbedder{}
	client := NewSearchClient(func(string) (embedding.Embedder, error) { return fake, nil }, false)

	req, err := client.Begin("anything")
	if err != nil {
		t.Fatal(err)
	}
	vector, err := req.Run(context.Background())
	if _, err := client.Finish(req, vector, err); err == nil {
		t.Error("an empty embedding should be reported as a failure")
	}
}
