// Package normalize cleans extracted page text before chunking.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultStopTerms are palynology morphology words that crowd scanned
// pollen studies and only distract the model.
var DefaultStopTerms = []string{
	"granos", "polínico", "polinico", "trilete",
	"monolete", "exina", "ornamentación", "pólenes",
	"fóveado", "estomatita", "tricolpado",
}

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reHyphenated = regexp.MustCompile(`(\p{L})[-\x{2010}\x{2011}][ \t]*\n[ \t]*(\p{Ll})`)
	reParagraph  = regexp.MustCompile(`\n[ \t]*\n`)
	rePageMarker = regexp.MustCompile(`(?i)\b(página|pagina|pág\.|page)\s*\d+\b`)
	reTable      = regexp.MustCompile(`(?i)\btabla\s*\d+(\.\d+)?\b`)
	reDimension  = regexp.MustCompile(`\b\d+\s*(x|×|–|—)\s*\d+\b`)
	reDecorative = regexp.MustCompile(`[_•·●■◆►▪\-]{2,}`)
)

// Normalizer is pure: the same input always yields the same output.
type Normalizer struct {
	stop map[string]struct{}
	lang *LanguageFilter
}

type Options struct {
	StopTerms []string        // nil means DefaultStopTerms
	Language  *LanguageFilter // nil disables language filtering
}

func New(opts Options) *Normalizer {
	terms := opts.StopTerms
	if terms == nil {
		terms = DefaultStopTerms
	}
	stop := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			stop[norm.NFKC.String(t)] = struct{}{}
		}
	}
	return &Normalizer{stop: stop, lang: opts.Language}
}

// Clean normalizes unicode, strips control characters, rejoins hyphenated
// line breaks, removes layout noise and collapses whitespace. Paragraphs are
// separated by a single blank line.
func (n *Normalizer) Clean(raw string) string {
	return strings.Join(n.paragraphs(raw), "\n\n")
}

// Normalize is Clean followed by the language filter. It returns the kept
// text and the number of paragraphs dropped for language.
func (n *Normalizer) Normalize(raw string) (string, int) {
	paras := n.paragraphs(raw)
	dropped := 0
	if n.lang != nil {
		paras, dropped = n.lang.Filter(paras)
	}
	return strings.Join(paras, "\n\n"), dropped
}

func (n *Normalizer) paragraphs(raw string) []string {
	if raw == "" {
		return nil
	}
	s := norm.NFKC.String(raw)
	s = reCRLF.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, "\f", "\n\n")
	s = strings.Map(dropControl, s)
	s = reHyphenated.ReplaceAllString(s, "$1$2")
	s = rePageMarker.ReplaceAllString(s, " ")
	s = reTable.ReplaceAllString(s, " ")
	s = reDimension.ReplaceAllString(s, " ")
	s = reDecorative.ReplaceAllString(s, " ")

	var out []string
	for _, p := range reParagraph.Split(s, -1) {
		if p = n.cleanParagraph(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (n *Normalizer) cleanParagraph(p string) string {
	words := strings.Fields(p)
	kept := words[:0]
	for _, w := range words {
		if n.isStopTerm(w) {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func (n *Normalizer) isStopTerm(w string) bool {
	if len(n.stop) == 0 {
		return false
	}
	key := strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return unicode.IsPunct(r)
	}))
	_, ok := n.stop[key]
	return ok
}

// dropControl removes control, private-use, replacement and zero-width
// runes. Tabs become spaces; newlines are kept.
func dropControl(r rune) rune {
	switch {
	case r == '\n':
		return r
	case r == '\t':
		return ' '
	case r == '\u00ad', r == '\u200b', r == '\u200c', r == '\u200d', r == '\ufeff':
		return -1
	case r == unicode.ReplacementChar:
		return -1
	case r >= 0xE000 && r <= 0xF8FF:
		return -1
	case unicode.IsControl(r):
		return -1
	}
	return r
}
