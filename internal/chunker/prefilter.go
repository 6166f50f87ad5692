package chunker

import "regexp"

var (
	reBinomial = regexp.MustCompile(`[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+ [a-záéíóúñ]{2,}`)
	reUseCue   = regexp.MustCompile(`(?i)\b(aliment|comest|madera|medicin|ritual|tinte|textil|aroma|colorant|bebida|usaba|usad|usos?\b|utiliz|prepar|consum|ceremon|construc|fibra)`)
)

// Relevant reports whether a chunk is worth a model call: it must mention a
// binomial-shaped name and some cue of human use.
func Relevant(text string) bool {
	return reBinomial.MatchString(text) && reUseCue.MatchString(text)
}
