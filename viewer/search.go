package viewer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/alDuncanson/dupescope/embedding"
	"github.com/alDuncanson/dupescope/points"
)

// MaxSearchResults caps how many matches a search selects.
const MaxSearchResults = 20

var (
	ErrEmptyQuery       = errors.New("search query is empty")
	ErrSearchInProgress = errors.New("a search is already running")
)

// Match is a ranked search hit.
type Match struct {
	Index      int
	Similarity float64
}

// CosineSimilarity returns dot(a, b) / (|a| |b|). Vectors of different
// length, or with zero magnitude, score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankBySimilarity scores every point against query and returns up to limit
// matches with positive similarity, best first. Points without an embedding
// score -1 and never match.
func RankBySimilarity(query []float32, pts []points.Point, limit int) []Match {
	matches := make([]Match, 0, len(pts))
	for i := range pts {
		similarity := -1.0
		if len(pts[i].Embedding) > 0 {
			similarity = CosineSimilarity(query, pts[i].Embedding)
		}
		if similarity > 0 {
			matches = append(matches, Match{Index: i, Similarity: similarity})
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Similarity > matches[b].Similarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// EmbedderFactory builds an embedder authenticated with credential, which
// is empty for providers that need none.
type EmbedderFactory func(credential string) (embedding.Embedder, error)

// SearchClient tracks the session state of semantic search: the credential
// entered by the operator, the single in-flight request and a short-lived
// cache of query embeddings. It belongs to the viewer's event loop; only
// SearchRequest.Run may be called from elsewhere.
type SearchClient struct {
	newEmbedder     EmbedderFactory
	needsCredential bool
	credential      string
	inFlight        bool
	queries         *cache.Cache
}

const (
	queryCacheTTL     = 10 * time.Minute
	queryCacheCleanup = 15 * time.Minute
)

// NewSearchClient creates a client. needsCredential reports whether the
// provider behind factory requires an API key.
func NewSearchClient(factory EmbedderFactory, needsCredential bool) *SearchClient {
	return &SearchClient{
		newEmbedder:     factory,
		needsCredential: needsCredential,
		queries:         cache.New(queryCacheTTL, queryCacheCleanup),
	}
}

// SetCredential stores key for this session only.
func (s *SearchClient) SetCredential(key string) {
	s.credential = strings.TrimSpace(key)
}

// NeedsCredential reports whether a key must be entered before searching.
func (s *SearchClient) NeedsCredential() bool {
	return s.needsCredential && s.credential == ""
}

// InFlight reports whether a request is outstanding.
func (s *SearchClient) InFlight() bool { return s.inFlight }

// SearchRequest is one query embedding request.
type SearchRequest struct {
	Query    string
	embedder embedding.Embedder
	cached   []float32
}

// Run embeds the query. It is safe to call off the event loop.
func (r *SearchRequest) Run(ctx context.Context) ([]float32, error) {
	if r.cached != nil {
		return r.cached, nil
	}
	return r.embedder.Embed(ctx, r.Query)
}

// Begin validates query and marks a request in flight. Every request that
// Begin returns must be passed to Finish.
func (s *SearchClient) Begin(query string) (*SearchRequest, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if s.inFlight {
		return nil, ErrSearchInProgress
	}

	if cached, ok := s.queries.Get(query); ok {
		s.inFlight = true
		return &SearchRequest{Query: query, cached: cached.([]float32)}, nil
	}

	if s.NeedsCredential() {
		return nil, embedding.ErrMissingCredential
	}
	embedder, err := s.newEmbedder(s.credential)
	if err != nil {
		return nil, err
	}

	s.inFlight = true
	return &SearchRequest{Query: query, embedder: embedder}, nil
}

// Finish records the outcome of req. On failure the credential is discarded
// so the operator is asked again next time, and the error is returned for
// display. On success the query vector is returned.
func (s *SearchClient) Finish(req *SearchRequest, vector []float32, err error) ([]float32, error) {
	s.inFlight = false

	if err == nil && len(vector) == 0 {
		err = errors.New("embedding service returned an empty vector")
	}
	if err != nil {
		s.credential = ""
		return nil, fmt.Errorf("search %q: %w", req.Query, err)
	}

	s.queries.Set(req.Query, vector, cache.DefaultExpiration)
	return vector, nil
}
