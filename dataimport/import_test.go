package dataimport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadSkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`{"url":"https://example.test/1","title":"first","number":1,"state":"open","type":"pr","files":["a.go"],"embedding":[1,0]}`,
		`not json at all`,
		``,
		`{"url":"https://example.test/2","title":"no vector"}`,
		`{"id":"https://example.test/3","title":"third","state":"MERGED","type":"issue","embedding":[0,1]}`,
		`{"url":"https://example.test/4","embedding":[0.5,0.5]`,
	}, "\n")

	result, err := Load(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}
	if result.Skipped != 3 {
		t.Errorf("expected 3 skipped lines, got %d", result.Skipped)
	}

	first := result.Records[0]
	if first.Number == nil || *first.Number != 1 {
		t.Errorf("expected number 1, got %v", first.Number)
	}
	if first.Kind != KindPullRequest || first.State != StateOpen {
		t.Errorf("unexpected kind/state: %q/%q", first.Kind, first.State)
	}
	if len(first.Files) != 1 || first.Files[0] != "a.go" {
		t.Errorf("unexpected files: %v", first.Files)
	}

	third := result.Records[1]
	if third.URL != "https://example.test/3" {
		t.Errorf("expected id to fill url, got %q", third.URL)
	}
	if third.State != StateClosed {
		t.Errorf("merged should map to closed, got %q", third.State)
	}
	if third.Number != nil {
		t.Errorf("absent number should stay nil, got %v", *third.Number)
	}
	if third.Files != nil {
		t.Errorf("absent files should stay nil, got %v", third.Files)
	}
}

func TestLoadSkipsOverlongLines(t *testing.T) {
	previous := maxLineBytes
	maxLineBytes = 256
	t.Cleanup(func() { maxLineBytes = previous })

	long := `{"url":"https://example.test/long","title":"` + strings.Repeat("x", 100*1024) + `","embedding":[1,1]}`
	input := strings.Join([]string{
		`{"url":"https://example.test/1","embedding":[1,0]}`,
		long,
		`{"url":"https://example.test/2","embedding":[0,1]}`,
		long,
	}, "\n")

	result, err := Load(strings.NewReader(input))
	if err != nil {
		t.Fatalf("an overlong line should not abort the load: %v", err)
	}
	if len(result.Records) != 2 || result.Skipped != 2 {
		t.Fatalf("expected 2 records and 2 skipped, got %d and %d", len(result.Records), result.Skipped)
	}
	if result.Records[1].URL != "https://example.test/2" {
		t.Errorf("the line after an overlong one should load intact, got %q", result.Records[1].URL)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input    string
		expected Kind
	}{
		{"pr", KindPullRequest},
		{"Pull_Request", KindPullRequest},
		{"issue", KindIssue},
		{"", KindUnknown},
		{"discussion", KindUnknown},
	}

	for _, tc := range tests {
		if got := ParseKind(tc.input); got != tc.expected {
			t.Errorf("ParseKind(%q) = %q, expected %q", tc.input, got, tc.expected)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")
	content := `{"url":"u1","embedding":[1,2,3]}` + "\n" + `{"url":"u2","embedding":[4,5,6]}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	vectors := Vectors(result.Records)
	if len(vectors) != 2 || len(vectors[1]) != 3 || vectors[1][2] != 6 {
		t.Errorf("unexpected vectors: %v", vectors)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}
