// Package render produces the self-contained HTML viewer: one file with the
// points inlined as data and the viewer script inlined as code. Opening it
// needs no server and no network, except for the optional in-page search.
package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"

	"github.com/alDuncanson/dupescope/fileutil"
	"github.com/alDuncanson/dupescope/points"
)

//go:embed viewer.html.tmpl
var viewerSource string

var viewerTemplate = template.Must(template.New("viewer").Parse(viewerSource))

// SearchSettings configure the page's semantic search. The page asks for an
// API key at search time and keeps it in memory only.
type SearchSettings struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"baseURL"`
	Model   string `json:"model"`
}

// Document is everything the page shows.
type Document struct {
	Title  string
	Points []points.Point
	Search SearchSettings
}

// NewDocument builds a document for pts. Search is enabled only when the
// points carry embeddings.
func NewDocument(title string, pts []points.Point, baseURL, model string) Document {
	enabled := false
	for i := range pts {
		if len(pts[i].Embedding) > 0 {
			enabled = true
			break
		}
	}
	if pts == nil {
		pts = []points.Point{}
	}
	return Document{
		Title:  title,
		Points: pts,
		Search: SearchSettings{Enabled: enabled, BaseURL: baseURL, Model: model},
	}
}

// Render writes doc as HTML to w.
func Render(w io.Writer, doc Document) error {
	if err := viewerTemplate.Execute(w, doc); err != nil {
		return fmt.Errorf("render viewer: %w", err)
	}
	return nil
}

// WriteHTML renders doc into path, replacing any previous file atomically.
func WriteHTML(path string, doc Document) error {
	var buf bytes.Buffer
	if err := Render(&buf, doc); err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, buf.Bytes(), 0o644)
}
