// Package points turns raw projected coordinates into render-ready records:
// every axis is rescaled into [0, 1] and paired with the record's metadata.
package points

import (
	"fmt"
	"math"

	"github.com/alDuncanson/dupescope/dataimport"
	"github.com/alDuncanson/dupescope/projection"
)

// Point is one render-ready record. Optional attributes keep their zero value
// (nil, "") when the source record omitted them.
type Point struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	X3 float64 `json:"x3"`
	Y3 float64 `json:"y3"`
	Z3 float64 `json:"z3"`

	URL       string           `json:"url"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Number    *int             `json:"number,omitempty"`
	State     dataimport.State `json:"state,omitempty"`
	Kind      dataimport.Kind  `json:"type,omitempty"`
	Files     []string         `json:"files,omitempty"`
	Embedding []float32        `json:"embedding,omitempty"`
}

// Options controls what Assemble copies into each Point.
type Options struct {
	// IncludeEmbedding attaches the raw vector, which in-view search needs
	// but which grows the output considerably.
	IncludeEmbedding bool
}

// Assemble normalizes proj and merges it with records, preserving order.
func Assemble(records []dataimport.Record, proj *projection.Projection, opts Options) ([]Point, error) {
	if len(proj.Coords2D) != len(records) || len(proj.Coords3D) != len(records) {
		return nil, fmt.Errorf("projection has %d/%d rows for %d records",
			len(proj.Coords2D), len(proj.Coords3D), len(records))
	}

	flat := NormalizeAxes(proj.Coords2D)
	deep := NormalizeAxes(proj.Coords3D)

	out := make([]Point, len(records))
	for i, rec := range records {
		p := Point{
			X:      column(flat[i], 0),
			Y:      column(flat[i], 1),
			X3:     column(deep[i], 0),
			Y3:     column(deep[i], 1),
			Z3:     column(deep[i], 2),
			URL:    rec.URL,
			Title:  rec.Title,
			Body:   rec.Body,
			Number: rec.Number,
			State:  rec.State,
			Kind:   rec.Kind,
			Files:  rec.Files,
		}
		if opts.IncludeEmbedding {
			p.Embedding = rec.Embedding
		}
		out[i] = p
	}
	return out, nil
}

// NormalizeAxes rescales each column independently to (v-min)/(max-min).
// A column whose values are all equal maps to 0. The input is not modified.
func NormalizeAxes(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	if len(rows) == 0 {
		return out
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	lows := make([]float64, width)
	highs := make([]float64, width)
	for axis := 0; axis < width; axis++ {
		lows[axis] = math.Inf(1)
		highs[axis] = math.Inf(-1)
	}
	for _, row := range rows {
		for axis, v := range row {
			lows[axis] = math.Min(lows[axis], v)
			highs[axis] = math.Max(highs[axis], v)
		}
	}

	for i, row := range rows {
		out[i] = make([]float64, len(row))
		for axis, v := range row {
			span := highs[axis] - lows[axis]
			if span == 0 {
				span = 1
			}
			out[i][axis] = (v - lows[axis]) / span
		}
	}
	return out
}

func column(row []float64, axis int) float64 {
	if axis < len(row) {
		return row[axis]
	}
	return 0
}
