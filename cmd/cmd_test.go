package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alDuncanson/dupescope/config"
	"github.com/alDuncanson/dupescope/dataimport"
	"github.com/alDuncanson/dupescope/embedding"
	"github.com/alDuncanson/dupescope/logging"
	"github.com/alDuncanson/dupescope/projection"
)

func TestPromptPCAComponents(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
		wantErr  bool
	}{
		{"enter keeps current", "\n", 50, false},
		{"eof keeps current", "", 50, false},
		{"explicit", "30\n", 30, false},
		{"no trailing newline", "12", 12, false},
		{"padded", "  8  \n", 8, false},
		{"zero", "0\n", 0, true},
		{"not a number", "lots\n", 0, true},
	}

	for _, tc := range tests {
		var out bytes.Buffer
		got, err := promptPCAComponents(strings.NewReader(tc.input), &out, 50)
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: unexpected error state: %v", tc.name, err)
			continue
		}
		if got != tc.expected {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.expected, got)
		}
		if !strings.Contains(out.String(), "[50]") {
			t.Errorf("%s: prompt should show the current value, got %q", tc.name, out.String())
		}
	}
}

func TestEmbedderFactory(t *testing.T) {
	base := config.Default().Embedding

	openai := newEmbedderFactory(base, logging.NewDiscard())
	if _, err := openai(""); !errors.Is(err, embedding.ErrMissingCredential) {
		t.Errorf("openai without a key: expected ErrMissingCredential, got %v", err)
	}
	e, err := openai("sk-test")
	if err != nil {
		t.Fatalf("openai with a key: %v", err)
	}
	if _, ok := e.(*embedding.Retrying); !ok {
		t.Errorf("expected a retrying embedder, got %T", e)
	}

	local := base
	local.Provider = "ollama"
	if _, err := newEmbedderFactory(local, nil)(""); err != nil {
		t.Errorf("ollama needs no key: %v", err)
	}

	hf := base
	hf.Provider = "huggingface"
	if _, err := newEmbedderFactory(hf, nil)(""); !errors.Is(err, embedding.ErrMissingCredential) {
		t.Errorf("huggingface without a token: expected ErrMissingCredential, got %v", err)
	}
	if _, err := newEmbedderFactory(hf, nil)("hf_test"); err != nil {
		t.Errorf("huggingface with a token: %v", err)
	}

	unknown := base
	unknown.Provider = "carrier-pigeon"
	if _, err := newEmbedderFactory(unknown, nil)("k"); err == nil {
		t.Error("unknown provider should fail")
	}
}

func TestPageSearchURL(t *testing.T) {
	tests := []struct {
		provider, baseURL, expected string
	}{
		{"openai", "https://api.openai.com/v1/", "https://api.openai.com/v1"},
		{"ollama", "http://localhost:11434", "http://localhost:11434/v1"},
		{"ollama", "http://localhost:11434/v1", "http://localhost:11434/v1"},
	}

	for _, tc := range tests {
		got := pageSearchURL(config.EmbeddingConfig{Provider: tc.provider, BaseURL: tc.baseURL})
		if got != tc.expected {
			t.Errorf("%s %s: expected %s, got %s", tc.provider, tc.baseURL, tc.expected, got)
		}
	}
}

func TestNewSearchClientPrefillsCredential(t *testing.T) {
	cfg := config.Default().Embedding
	cfg.APIKeyEnv = "DUPESCOPE_TEST_KEY"
	cfg.EnvFile = filepath.Join(t.TempDir(), "missing.env")

	t.Setenv("DUPESCOPE_TEST_KEY", "")
	if !newSearchClient(cfg, logging.NewDiscard()).NeedsCredential() {
		t.Error("no key anywhere: the viewer should ask for one")
	}

	t.Setenv("DUPESCOPE_TEST_KEY", "sk-env")
	if newSearchClient(cfg, logging.NewDiscard()).NeedsCredential() {
		t.Error("key from the environment should be used")
	}
}

func TestReduceConfigFrom(t *testing.T) {
	p := config.Default().Projection
	p.NNeighbors = 7
	p.MinDist = 0.3
	p.Seed = 42

	got := reduceConfigFrom(p, nil)
	if got.PCAComponents != 50 || got.UMAP.NNeighbors != 7 || got.UMAP.MinDist != 0.3 ||
		got.UMAP.RandomSeed != 42 || got.UMAP.NEpochs != p.Epochs || got.UMAP.Spread != 1 {
		t.Errorf("unexpected reduce config %+v", got)
	}
}

func TestDefaultCachePath(t *testing.T) {
	if got := defaultCachePath("data/issues.ndjson"); got != "data/issues.projection.json" {
		t.Errorf("got %s", got)
	}
}

func TestLoadDataset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.ndjson")
	lines := strings.Join([]string{
		`{"url":"https://example.test/1","title":"a","embedding":[1,0]}`,
		`not json`,
		`{"url":"https://example.test/2","title":"b"}`,
		`{"url":"https://example.test/3","title":"c","embedding":[0,1]}`,
	}, "\n")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}

	ds, err := loadDataset(context.Background(), config.Default(), path, false, logging.NewDiscard())
	if err != nil {
		t.Fatalf("loadDataset: %v", err)
	}
	if len(ds.records) != 2 || ds.title != "issues" || ds.cachePath != filepath.Join(dir, "issues.projection.json") {
		t.Errorf("unexpected dataset: %d records, title %q, cache %q", len(ds.records), ds.title, ds.cachePath)
	}

	empty := filepath.Join(dir, "empty.ndjson")
	if err := os.WriteFile(empty, []byte("nope\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadDataset(context.Background(), config.Default(), empty, false, logging.NewDiscard()); !errors.Is(err, errNoRecords) {
		t.Errorf("expected errNoRecords, got %v", err)
	}
}

func TestStageProgressWithoutTerminal(t *testing.T) {
	p := newStageProgress(nil)
	p.Report("2d", 1, 10)
	if p.bar != nil {
		t.Error("disabled progress should not create a bar")
	}
	p.Finish()
}

func TestStageProgressStartsBarPerStage(t *testing.T) {
	var out bytes.Buffer
	p := newStageProgress(&out)

	p.Report("2d", 1, 10)
	first := p.bar
	p.Report("2d", 2, 10)
	if p.bar != first {
		t.Error("same stage should reuse its bar")
	}
	p.Report("3d", 1, 10)
	if p.bar == first || p.stage != "3d" {
		t.Error("new stage should start a new bar")
	}
	p.Finish()
	if p.bar != nil {
		t.Error("Finish should drop the bar")
	}
}

func TestClusterRecordsAndPrintGroups(t *testing.T) {
	seven := 7
	records := []dataimport.Record{
		{URL: "https://example.test/1", Title: "Crash on start", Number: &seven, Embedding: []float32{1, 0}},
		{URL: "https://example.test/2", Title: "Crashes at launch", Embedding: []float32{2, 0}},
		{URL: "https://example.test/3", Title: "Dark mode", Embedding: []float32{0, 1}},
		{URL: "https://example.test/4", Title: "Night theme", Embedding: []float32{0, 5}},
	}

	result, err := clusterRecords(context.Background(), records, config.GroupsConfig{MinClusterSize: 2}, logging.NewDiscard())
	if err != nil {
		t.Fatalf("clusterRecords: %v", err)
	}

	var out bytes.Buffer
	if err := printGroups(&out, records, result, 1); err != nil {
		t.Fatalf("printGroups: %v", err)
	}
	text := out.String()
	for _, want := range []string{"Group 1 (2 records)", "#7", "Crash on start", "https://example.test/2"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Group 2") || strings.Contains(text, "Dark mode") {
		t.Errorf("limit should keep only the first group:\n%s", text)
	}

	out.Reset()
	noise := projection.ClusterResult{Labels: []int{projection.Noise}, Probabilities: []float64{0}}
	if err := printGroups(&out, records[:1], noise, 0); err != nil {
		t.Fatalf("printGroups: %v", err)
	}
	if !strings.Contains(out.String(), "No candidate duplicate groups") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestCacheReusable(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "issues.projection.json")
	ds := &dataset{records: []dataimport.Record{
		{URL: "https://example.test/1", Embedding: []float32{1, 0}},
		{URL: "https://example.test/2", Embedding: []float32{0, 1}},
	}}

	if cacheReusable(cachePath, false, ds) {
		t.Error("a missing cache cannot be reused")
	}

	proj := &projection.Projection{
		Coords2D: [][]float64{{0, 0}, {1, 1}},
		Coords3D: [][]float64{{0, 0, 0}, {1, 1, 1}},
	}
	if err := projection.SaveCache(cachePath, proj, dataimport.Vectors(ds.records)); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	if !cacheReusable(cachePath, false, ds) {
		t.Error("a matching cache should be reused, so no PCA prompt is needed")
	}
	if cacheReusable(cachePath, true, ds) {
		t.Error("force always recomputes")
	}

	changed := &dataset{records: []dataimport.Record{
		{URL: "https://example.test/1", Embedding: []float32{1, 0}},
		{URL: "https://example.test/2", Embedding: []float32{0.5, 0.5}},
	}}
	if cacheReusable(cachePath, false, changed) {
		t.Error("a cache built from other vectors must not be reused")
	}
}
