package textextract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Quality describes how usable the embedded text of a page is.
type Quality struct {
	Chars          int
	PrintableRatio float64
}

// MeasureQuality counts non-space runes and the share of printable runes.
func MeasureQuality(text string) Quality {
	trimmed := strings.TrimSpace(text)
	q := Quality{PrintableRatio: printableRatio(trimmed)}
	for _, r := range trimmed {
		if !unicode.IsSpace(r) {
			q.Chars++
		}
	}
	return q
}

// NeedsOCR reports whether the page looks scanned or its text layer is garbage.
func (q Quality) NeedsOCR(minChars int, minPrintable float64) bool {
	return q.Chars < minChars || q.PrintableRatio < minPrintable
}

// printableRatio excludes PUA U+E000-U+F8FF, control chars below U+0020
// (except \n\r\t) and U+FFFD.
func printableRatio(text string) float64 {
	if text == "" {
		return 1.0
	}
	total := utf8.RuneCountInString(text)
	printable := 0
	for _, r := range text {
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	if r >= 0xE000 && r <= 0xF8FF {
		return true
	}
	if r == utf8.RuneError {
		return true
	}
	return r < 0x0020 && r != '\n' && r != '\r' && r != '\t'
}
