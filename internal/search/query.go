package search

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a transcript search.
type Params struct {
	Query string // User's search query

	// Filters
	BookID    string // Restrict to one book (empty = all)
	ChapterID string // Restrict to one chapter (empty = all)

	// Pagination
	Limit  int
	Offset int

	// Options
	Highlight bool // Include match highlighting
}

// DefaultParams returns sensible defaults.
func DefaultParams() Params {
	return Params{
		Limit:     20,
		Offset:    0,
		Highlight: true,
	}
}

// Result represents the search results.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// Hit is a single matching paragraph.
type Hit struct {
	ID             string  `json:"id"`
	BookID         string  `json:"book_id"`
	ChapterID      string  `json:"chapter_id"`
	BuildID        string  `json:"build_id"`
	ParagraphIndex int     `json:"paragraph_index"`
	Score          float64 `json:"score"`
	Text           string  `json:"text,omitempty"`
	Fragment       string  `json:"fragment,omitempty"`
}

// Search executes a transcript search.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	searchQuery := buildSearchQuery(params)
	searchRequest := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("text")
	}

	searchRequest.Fields = []string{
		"book_id", "chapter_id", "build_id", "paragraph_index", "text",
	}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		h := Hit{
			ID:    hit.ID,
			Score: hit.Score,
		}

		if v, ok := hit.Fields["book_id"].(string); ok {
			h.BookID = v
		}
		if v, ok := hit.Fields["chapter_id"].(string); ok {
			h.ChapterID = v
		}
		if v, ok := hit.Fields["build_id"].(string); ok {
			h.BuildID = v
		}
		if v, ok := hit.Fields["paragraph_index"].(float64); ok {
			h.ParagraphIndex = int(v)
		}
		if v, ok := hit.Fields["text"].(string); ok {
			h.Text = v
		}

		if fragments, ok := hit.Fragments["text"]; ok && len(fragments) > 0 {
			h.Fragment = fragments[0]
		}

		result.Hits = append(result.Hits, h)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params Params) query.Query {
	var queries []query.Query

	if params.Query != "" {
		textQueries := []query.Query{}

		// Stemmed match on the paragraph text.
		textMatch := bleve.NewMatchQuery(params.Query)
		textMatch.SetField("text")
		textMatch.SetBoost(2.0)
		textQueries = append(textQueries, textMatch)

		// Fuzzy matching for typo tolerance.
		fuzzyQuery := bleve.NewFuzzyQuery(params.Query)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("text")
		fuzzyQuery.SetBoost(0.5)
		textQueries = append(textQueries, fuzzyQuery)

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.BookID != "" {
		tq := bleve.NewTermQuery(params.BookID)
		tq.SetField("book_id")
		queries = append(queries, tq)
	}

	if params.ChapterID != "" {
		tq := bleve.NewTermQuery(params.ChapterID)
		tq.SetField("chapter_id")
		queries = append(queries, tq)
	}

	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	return bleve.NewConjunctionQuery(queries...)
}
