package entity

import (
	"github.com/joseph-ayodele/species-extractor/constants"
)

// Document is one input PDF found during discovery.
type Document struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// PageText is the text recovered from one page. Empty pages are kept with
// Method == constants.PageEmpty so page accounting stays complete.
type PageText struct {
	Page   int                  `json:"page"`
	Text   string               `json:"text"`
	Method constants.PageMethod `json:"method"`
}

// Chunk is a bounded span of a document's normalized text.
// Overlap is the number of leading bytes repeated from the previous chunk.
type Chunk struct {
	Document string `json:"document"`
	Index    int    `json:"index"`
	Text     string `json:"text"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Overlap  int    `json:"overlap"`
}

// Fresh returns the part of the chunk not shared with its predecessor.
func (c Chunk) Fresh() string {
	if c.Overlap <= 0 || c.Overlap > len(c.Text) {
		return c.Text
	}
	return c.Text[c.Overlap:]
}
