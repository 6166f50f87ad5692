package parser

import (
	"encoding/json"
	"io"
	"regexp"
	"sort"
	"strings"
)

type span struct{ start, end int } // end exclusive

func (s span) len() int { return s.end - s.start }

// scanSpans finds spans opened by open and closed by the matching close,
// ignoring brackets inside double-quoted strings. With topLevel only the
// outermost spans are reported. unclosed is the offset of the outermost
// opening bracket that was never closed, or -1.
func scanSpans(s string, open, close byte, topLevel bool) (spans []span, unclosed int) {
	var stack []int
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			case c == '\n' && len(stack) == 0:
				// A stray quote in prose must not swallow the rest of the answer.
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			stack = append(stack, i)
		case close:
			if len(stack) == 0 {
				continue
			}
			start := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !topLevel || len(stack) == 0 {
				spans = append(spans, span{start, i + 1})
			}
		}
	}
	unclosed = -1
	if len(stack) > 0 {
		unclosed = stack[0]
	}
	return spans, unclosed
}

// largestFirst orders spans by length, longest first, then by position.
func largestFirst(spans []span) []span {
	out := append([]span(nil), spans...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].len() != out[j].len() {
			return out[i].len() > out[j].len()
		}
		return out[i].start < out[j].start
	})
	return out
}

// decodeJSON decodes exactly one JSON value that spans all of text.
func decodeJSON(text string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return v, true
}

var (
	reTrailingComma = regexp.MustCompile(`,\s*([}\]])`)
	rePythonNull    = regexp.MustCompile(`:\s*None\b`)
)

// repair fixes the slips models make most often: trailing commas, smart
// quotes and Python's None.
func repair(text string) string {
	text = smartQuotes.Replace(text)
	text = reTrailingComma.ReplaceAllString(text, "$1")
	text = rePythonNull.ReplaceAllString(text, ": null")
	return text
}

// decodeLenient tries text as-is, then repaired.
func decodeLenient(text string) (any, bool) {
	if v, ok := decodeJSON(text); ok {
		return v, true
	}
	return decodeJSON(repair(text))
}

// closeTruncated turns a list cut off mid-answer into a parsable one by
// keeping every complete object and closing the list.
func closeTruncated(s string) (string, bool) {
	last := strings.LastIndexByte(s, '}')
	if last < 0 {
		return "", false
	}
	return s[:last+1] + "]", true
}
