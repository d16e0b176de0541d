package search

import "fmt"

// Document is one indexed transcript paragraph. Paragraphs are the search
// unit: a hit maps straight back to a paragraph span, which gives the
// client both the display text and the audio position.
type Document struct {
	ID             string
	BookID         string
	ChapterID      string
	BuildID        string
	ParagraphIndex int
	Text           string
}

// DocumentID builds the index key for a paragraph of a build.
func DocumentID(buildID string, paragraphIndex int) string {
	return fmt.Sprintf("%s:%d", buildID, paragraphIndex)
}

// ToMap converts the document for indexing so field names match the mapping.
func (d *Document) ToMap() map[string]any {
	return map[string]any{
		"book_id":         d.BookID,
		"chapter_id":      d.ChapterID,
		"build_id":        d.BuildID,
		"paragraph_index": d.ParagraphIndex,
		"text":            d.Text,
	}
}
