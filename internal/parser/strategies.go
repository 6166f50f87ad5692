package parser

import (
	"github.com/joseph-ayodele/species-extractor/internal/entity"
)

func (p *Parser) collect(v any) ([]entity.CandidateRecord, int, bool) {
	c := &collector{validator: p.validator}
	if !c.value(v) {
		return nil, 0, false
	}
	return c.records, c.coerced, true
}

// parseStrict accepts the answer only when all of it is one JSON value.
func (p *Parser) parseStrict(text string) ([]entity.CandidateRecord, int, bool) {
	v, ok := decodeJSON(text)
	if !ok {
		return nil, 0, false
	}
	return p.collect(v)
}

// parseBracket tries every [...] span, longest first, then a list cut off
// before its closing bracket.
func (p *Parser) parseBracket(text string) ([]entity.CandidateRecord, int, bool) {
	spans, unclosed := scanSpans(text, '[', ']', false)
	for _, sp := range largestFirst(spans) {
		v, ok := decodeLenient(text[sp.start:sp.end])
		if !ok {
			continue
		}
		if records, coerced, ok := p.collect(v); ok {
			return records, coerced, true
		}
	}
	if unclosed >= 0 {
		if closed, ok := closeTruncated(text[unclosed:]); ok {
			if v, ok := decodeLenient(closed); ok {
				return p.collect(v)
			}
		}
	}
	return nil, 0, false
}

// parseObjects collects every top-level {...} span that decodes on its own,
// for answers that list objects without an enclosing array.
func (p *Parser) parseObjects(text string) ([]entity.CandidateRecord, int, bool) {
	spans, _ := scanSpans(text, '{', '}', true)
	var (
		records    []entity.CandidateRecord
		coerced    int
		recognized bool
	)
	for _, sp := range spans {
		v, ok := decodeLenient(text[sp.start:sp.end])
		if !ok {
			continue
		}
		if rs, c, ok := p.collect(v); ok {
			records = append(records, rs...)
			coerced += c
			recognized = true
		}
	}
	if !recognized || len(records) == 0 {
		return nil, 0, false
	}
	return records, coerced, true
}
