// Package chunker splits normalized document text into bounded segments
// that each fit one model call.
package chunker

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/species-extractor/internal/entity"
)

// Config controls chunking behavior. Sizes are counted in characters (runes).
type Config struct {
	MaxChars int // Upper bound per chunk; a single longer sentence is emitted alone.
	Overlap  int // Characters of whole trailing sentences repeated at the start of the next chunk.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxChars: 4000,
		Overlap:  0,
	}
}

type Chunker struct {
	cfg Config
}

// New clamps the overlap to half of MaxChars so consecutive chunks always advance.
func New(cfg Config) *Chunker {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultConfig().MaxChars
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap > cfg.MaxChars/2 {
		cfg.Overlap = cfg.MaxChars / 2
	}
	return &Chunker{cfg: cfg}
}

// unit is an atomic span of text: a sentence or paragraph with its trailing whitespace.
type unit struct {
	start, end int // byte offsets
	chars      int
}

// Chunks lazily yields the chunks of text. The sequence is finite and can be
// ranged over repeatedly with identical results. Concatenating every chunk's
// Fresh() text reproduces text exactly.
func (c *Chunker) Chunks(document, text string) iter.Seq[entity.Chunk] {
	return func(yield func(entity.Chunk) bool) {
		if strings.TrimSpace(text) == "" {
			return
		}
		units := splitUnits(text)
		max, overlap := c.cfg.MaxChars, c.cfg.Overlap

		index := 0
		first, fresh, size := 0, 0, 0 // chunk = units[first:k]; units[first:fresh] repeat the previous chunk

		emit := func(k int) bool {
			ch := entity.Chunk{
				Document: document,
				Index:    index,
				Start:    units[first].start,
				End:      units[k-1].end,
				Overlap:  units[fresh].start - units[first].start,
			}
			ch.Text = text[ch.Start:ch.End]
			index++
			return yield(ch)
		}

		for k := 0; k < len(units); k++ {
			u := units[k]
			if k > fresh && size+u.chars > max {
				if !emit(k) {
					return
				}
				first, size = k, 0
				for first > fresh && size+units[first-1].chars <= overlap && size+units[first-1].chars+u.chars <= max {
					first--
					size += units[first].chars
				}
				fresh = k
			}
			size += u.chars
		}
		if len(units) > fresh {
			emit(len(units))
		}
	}
}

// Collect returns every chunk of text.
func (c *Chunker) Collect(document, text string) []entity.Chunk {
	var out []entity.Chunk
	for ch := range c.Chunks(document, text) {
		out = append(out, ch)
	}
	return out
}

// splitUnits cuts text into sentences and paragraphs. A unit ends after the
// whitespace that follows a sentence terminator, or at a blank line. The
// units cover text without gaps.
func splitUnits(text string) []unit {
	var out []unit
	start, i := 0, 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) {
			i += size
			continue
		}
		j, newlines := i, 0
		for j < len(text) {
			r2, s2 := utf8.DecodeRuneInString(text[j:])
			if !unicode.IsSpace(r2) {
				break
			}
			if r2 == '\n' {
				newlines++
			}
			j += s2
		}
		if i > start && (newlines >= 2 || endsSentence(text[start:i])) {
			out = append(out, unit{start: start, end: j, chars: utf8.RuneCountInString(text[start:j])})
			start = j
		}
		i = j
	}
	if start < len(text) {
		out = append(out, unit{start: start, end: len(text), chars: utf8.RuneCountInString(text[start:])})
	}
	return out
}

// abbreviations common in taxonomic and academic Spanish prose.
var abbreviations = map[string]struct{}{
	"sp.": {}, "spp.": {}, "var.": {}, "subsp.": {}, "ssp.": {}, "cf.": {}, "aff.": {},
	"fig.": {}, "figs.": {}, "p.": {}, "pp.": {}, "ej.": {}, "aprox.": {}, "ca.": {},
	"vol.": {}, "no.": {}, "núm.": {}, "al.": {}, "sr.": {}, "dr.": {},
}

func endsSentence(s string) bool {
	last, _ := utf8.DecodeLastRuneInString(s)
	switch last {
	case '.', '!', '?', '…':
	default:
		return false
	}
	word := s
	if k := strings.LastIndexFunc(s, unicode.IsSpace); k >= 0 {
		word = s[k+1:]
	}
	word = strings.TrimLeft(word, "(\"'¿¡")
	if last == '.' {
		// Abbreviated genus ("M. flexuosa") or initials.
		if n := utf8.RuneCountInString(word); n == 2 {
			if r, _ := utf8.DecodeRuneInString(word); unicode.IsUpper(r) {
				return false
			}
		}
		if _, ok := abbreviations[strings.ToLower(word)]; ok {
			return false
		}
	}
	return true
}
