package ocr

import "strings"

// splitLangs turns tesseract's "spa+eng" into []string{"spa", "eng"}.
func splitLangs(lang string) []string {
	var out []string
	for _, l := range strings.Split(lang, "+") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
