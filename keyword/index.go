// Package keyword is an in-memory full-text index over record titles, bodies
// and touched paths. The terminal viewer uses it for literal "find" next to
// embedding-based semantic search.
package keyword

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	_ "github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/alDuncanson/dupescope/points"
)

// Index maps keyword queries to point indices.
type Index struct {
	index bleve.Index
}

type document struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Path  string `json:"path"`
}

// Build indexes every point. Document ids are the point indices.
func Build(pts []points.Point) (*Index, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}

	batch := index.NewBatch()
	for i, p := range pts {
		doc := document{
			Title: p.Title,
			Body:  p.Body,
			Path:  strings.Join(p.Files, " "),
		}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			index.Close()
			return nil, fmt.Errorf("index point %d: %w", i, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return nil, fmt.Errorf("write keyword index: %w", err)
	}

	return &Index{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"

	docMapping := bleve.NewDocumentMapping()

	titleField := bleve.NewTextFieldMapping()
	titleField.Store = false
	docMapping.AddFieldMappingsAt("title", titleField)

	bodyField := bleve.NewTextFieldMapping()
	bodyField.Store = false
	docMapping.AddFieldMappingsAt("body", bodyField)

	pathField := bleve.NewTextFieldMapping()
	pathField.Store = false
	pathField.Analyzer = "simple"
	docMapping.AddFieldMappingsAt("path", pathField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Find returns up to limit point indices matching text, best first. Title
// matches weigh more than body matches.
func (x *Index) Find(text string, limit int) ([]int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	titleQuery := bleve.NewMatchQuery(text)
	titleQuery.SetField("title")
	titleQuery.SetBoost(2.0)
	bodyQuery := bleve.NewMatchQuery(text)
	bodyQuery.SetField("body")
	bodyQuery.SetBoost(1.0)
	pathQuery := bleve.NewMatchQuery(text)
	pathQuery.SetField("path")
	pathQuery.SetBoost(1.5)

	disjunction := bleve.NewDisjunctionQuery([]blevequery.Query{titleQuery, bodyQuery, pathQuery}...)
	req := bleve.NewSearchRequestOptions(disjunction, limit, 0, false)

	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]int, 0, len(res.Hits))
	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		hits = append(hits, i)
	}
	return hits, nil
}

// Close releases the index.
func (x *Index) Close() error {
	return x.index.Close()
}
