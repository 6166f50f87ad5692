package pipeline

import (
	"sync"

	"github.com/joseph-ayodele/species-extractor/internal/entity"
)

// Corpus holds each document's contribution in first-seen order. A document
// processed again replaces its earlier contribution in place.
type Corpus struct {
	mu        sync.Mutex
	order     []string
	records   map[string][]entity.FinalRecord
	summaries map[string]entity.DocumentSummary
}

func NewCorpus() *Corpus {
	return &Corpus{
		records:   make(map[string][]entity.FinalRecord),
		summaries: make(map[string]entity.DocumentSummary),
	}
}

func (c *Corpus) Put(res DocumentResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := res.Summary.Document
	if _, ok := c.summaries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.summaries[key] = res.Summary
	c.records[key] = res.Records
}

// Sets returns the per-document record sets and summaries in document order.
func (c *Corpus) Sets() ([][]entity.FinalRecord, []entity.DocumentSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sets := make([][]entity.FinalRecord, 0, len(c.order))
	sums := make([]entity.DocumentSummary, 0, len(c.order))
	for _, k := range c.order {
		sets = append(sets, c.records[k])
		sums = append(sums, c.summaries[k])
	}
	return sets, sums
}

func (c *Corpus) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
