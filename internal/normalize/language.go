package normalize

import (
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

// Detector identifies the language of a text as an ISO 639-1 code with a
// confidence in 0..1.
type Detector interface {
	Detect(text string) (lang string, confidence float64)
}

// WhatlangDetector detects languages with github.com/abadojack/whatlanggo.
type WhatlangDetector struct{}

func (WhatlangDetector) Detect(text string) (string, float64) {
	info := whatlanggo.Detect(text)
	return info.Lang.Iso6391(), info.Confidence
}

// minDetectRunes is the shortest segment the detector is trusted on.
const minDetectRunes = 40

// LanguageFilter drops segments confidently detected as a language outside
// the expected set. Segments that are short or detected with low confidence
// are kept.
type LanguageFilter struct {
	detector      Detector
	minConfidence float64
	expected      map[string]struct{}
}

// NewLanguageFilter returns nil when minConfidence <= 0, which disables filtering.
func NewLanguageFilter(d Detector, minConfidence float64, expected []string) *LanguageFilter {
	if minConfidence <= 0 || len(expected) == 0 {
		return nil
	}
	if d == nil {
		d = WhatlangDetector{}
	}
	exp := make(map[string]struct{}, len(expected))
	for _, l := range expected {
		exp[strings.ToLower(strings.TrimSpace(l))] = struct{}{}
	}
	return &LanguageFilter{detector: d, minConfidence: minConfidence, expected: exp}
}

// Keep reports whether a segment passes the filter.
func (f *LanguageFilter) Keep(text string) bool {
	if f == nil || utf8.RuneCountInString(text) < minDetectRunes {
		return true
	}
	lang, conf := f.detector.Detect(text)
	if conf < f.minConfidence {
		return true
	}
	_, ok := f.expected[lang]
	return ok
}

// Filter returns the kept segments in order and the number dropped.
func (f *LanguageFilter) Filter(segments []string) ([]string, int) {
	if f == nil {
		return segments, 0
	}
	kept := make([]string, 0, len(segments))
	for _, s := range segments {
		if f.Keep(s) {
			kept = append(kept, s)
		}
	}
	return kept, len(segments) - len(kept)
}
