package parser

import (
	"regexp"
	"strings"
)

var (
	reThink      = regexp.MustCompile(`(?is)<think(?:ing)?>.*?</think(?:ing)?>`)
	reThinkOpen  = regexp.MustCompile(`(?is)^.*?</think(?:ing)?>`)
	reFenceStart = regexp.MustCompile("(?m)^[ \t]*```[a-zA-Z]*[ \t]*$")
	smartQuotes  = strings.NewReplacer("“", `"`, "”", `"`, "„", `"`)
)

// preprocess removes reasoning blocks and markdown code fences.
func preprocess(raw string) string {
	s := reThink.ReplaceAllString(raw, "")
	// A reasoning block whose opening tag was cut off.
	if strings.Contains(strings.ToLower(s), "</think") {
		s = reThinkOpen.ReplaceAllString(s, "")
	}
	if i := strings.Index(strings.ToLower(s), "<think"); i >= 0 {
		// Unterminated reasoning: keep what came before it.
		s = s[:i]
	}
	s = reFenceStart.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
