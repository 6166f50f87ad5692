package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/species-extractor/constants"
	"github.com/joseph-ayodele/species-extractor/internal/entity"
)

var (
	reBullet = regexp.MustCompile(`^\s*(?:[-*•·>]+|\d+[.)])\s*`)
	reLabel  = labelPattern(constants.Labels())
)

// labelPattern matches any known field label followed by ':' or '=', at the
// start of a segment or after a space, comma, semicolon or parenthesis.
func labelPattern(labels []string) *regexp.Regexp {
	alts := make([]string, len(labels))
	for i, l := range labels {
		alts[i] = labelExpr(l)
	}
	return regexp.MustCompile(`(?i)(?:^|[\s,;(])\**\s*(` + strings.Join(alts, "|") + `)\s*\**\s*[:=]`)
}

var accented = map[rune]string{
	'a': "[aá]", 'e': "[eé]", 'i': "[ií]", 'o': "[oó]", 'u': "[uúü]", 'n': "[nñ]",
}

// labelExpr turns a folded label back into a pattern that accepts accents and
// any separator between words.
func labelExpr(folded string) string {
	var b strings.Builder
	for _, r := range folded {
		switch {
		case r == '_':
			b.WriteString(`[\s_\-]+`)
		case accented[r] != "":
			b.WriteString(accented[r])
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

type labelled struct {
	field constants.Field
	value string
}

// labelledValues finds every label in seg; each value runs to the next label.
func labelledValues(seg string) []labelled {
	locs := reLabel.FindAllStringSubmatchIndex(seg, -1)
	out := make([]labelled, 0, len(locs))
	for i, loc := range locs {
		f, ok := constants.Canonicalize(seg[loc[2]:loc[3]])
		if !ok {
			continue
		}
		end := len(seg)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, labelled{field: f, value: trimProse(seg[loc[1]:end])})
	}
	return out
}

// parseLines reads "label: value" prose. A blank line, or a field seen
// twice, starts a new record.
func (p *Parser) parseLines(text string) ([]entity.CandidateRecord, int, bool) {
	var (
		records []entity.CandidateRecord
		current map[constants.Field]string
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		if _, ok := current[constants.EspecieCientifica]; ok || len(current) > 1 {
			records = append(records, lineRecord(current))
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		line = reBullet.ReplaceAllString(line, "")
		for _, seg := range splitSegments(line) {
			for _, lv := range labelledValues(seg) {
				if _, dup := current[lv.field]; dup {
					flush()
				}
				if current == nil {
					current = make(map[constants.Field]string, 4)
				}
				current[lv.field] = lv.value
			}
		}
	}
	flush()

	if len(records) == 0 {
		return nil, 0, false
	}
	return records, 0, true
}

func splitSegments(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool { return r == ';' || r == '|' })
}

// trimProse drops the separators a value cut out of a sentence ends with.
// A final period is kept after a one-letter token ("Zea mays L.").
func trimProse(s string) string {
	for {
		before := s
		s = strings.TrimRight(strings.TrimSpace(s), ",;:")
		if strings.HasSuffix(s, ".") && !endsWithInitial(s) {
			s = strings.TrimSuffix(s, ".")
		}
		if s == before {
			return s
		}
	}
}

// endsWithInitial reports whether s ends in a single letter and a period.
func endsWithInitial(s string) bool {
	body := strings.TrimSuffix(s, ".")
	tok := body[strings.LastIndexAny(body, " \t(")+1:]
	r, size := utf8.DecodeRuneInString(tok)
	return size > 0 && size == len(tok) && unicode.IsLetter(r)
}

func lineRecord(values map[constants.Field]string) entity.CandidateRecord {
	var rec entity.CandidateRecord
	for _, f := range []constants.Field{
		constants.EspecieCientifica, constants.NombreComun,
		constants.UsoPrecolombino, constants.Justificacion,
	} {
		s := values[f]
		if s == "" && f != constants.Justificacion {
			rec.Missing = append(rec.Missing, f)
		}
		rec.Set(f, s)
	}
	return rec
}
