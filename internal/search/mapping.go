package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for transcript documents.
//
// Priorities:
//  1. Full-text search on paragraph text with English stemming
//  2. Exact keyword filters on book, chapter, and build IDs
//  3. Term vectors on text for highlighting
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// Paragraph text - the only full-text field.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = en.AnalyzerName
	textFieldMapping.Store = true
	textFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("text", textFieldMapping)

	// ID filters - exact match only.
	for _, field := range []string{"book_id", "chapter_id", "build_id"} {
		fieldMapping := bleve.NewTextFieldMapping()
		fieldMapping.Analyzer = keyword.Name
		fieldMapping.Store = true
		docMapping.AddFieldMappingsAt(field, fieldMapping)
	}

	// Paragraph index - stored for jump-to-position responses.
	paraFieldMapping := bleve.NewNumericFieldMapping()
	paraFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("paragraph_index", paraFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
