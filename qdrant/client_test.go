package qdrant

import (
	"reflect"
	"testing"

	"github.com/alDuncanson/dupescope/dataimport"
)

func TestPointIDIsDeterministic(t *testing.T) {
	first := PointID("https://github.com/org/repo/issues/1")
	second := PointID("https://github.com/org/repo/issues/1")
	other := PointID("https://github.com/org/repo/issues/2")

	if first != second {
		t.Errorf("same url should give the same id: %s vs %s", first, second)
	}
	if first == other {
		t.Error("different urls should give different ids")
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	number := 42
	tests := []struct {
		name   string
		record dataimport.Record
	}{
		{
			"full",
			dataimport.Record{
				URL:       "https://example.test/pull/42",
				Title:     "Fix crash",
				Body:      "details",
				Number:    &number,
				State:     dataimport.StateClosed,
				Kind:      dataimport.KindPullRequest,
				Files:     []string{"a.go", "b/c.go"},
				Embedding: []float32{0.1, 0.2},
			},
		},
		{
			"optional fields absent",
			dataimport.Record{
				URL:       "https://example.test/issues/7",
				Title:     "Question",
				Embedding: []float32{1},
			},
		},
	}

	for _, tc := range tests {
		got := recordFromPayload(payloadFor(tc.record), tc.record.Embedding)
		if !reflect.DeepEqual(got, tc.record) {
			t.Errorf("%s: round trip mismatch\n got  %+v\n want %+v", tc.name, got, tc.record)
		}
	}
}
