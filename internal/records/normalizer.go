// Package records turns candidate records into the final, deduplicated set.
package records

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/species-extractor/constants"
	"github.com/joseph-ayodele/species-extractor/internal/entity"
)

// Reason a record was rejected.
type Reason string

const (
	RejectEmpty Reason = "empty"         // all three identity fields empty
	RejectShape Reason = "species_shape" // scientific name too short to be a binomial
	RejectNoUse Reason = "no_use"        // use required but missing
)

const defaultTokens = 2

type Config struct {
	MinSpeciesTokens int
	RequireUse       bool
}

// Stats counts what one Normalize or Merge call did with its input.
type Stats struct {
	Candidates int
	Accepted   int
	Duplicates int
	Rejected   map[Reason]int
}

func (s Stats) RejectedTotal() int {
	n := 0
	for _, c := range s.Rejected {
		n += c
	}
	return n
}

type Normalizer struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Normalizer {
	if cfg.MinSpeciesTokens <= 0 {
		cfg.MinSpeciesTokens = defaultTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{cfg: cfg, logger: logger}
}

// Normalize cleans, filters and deduplicates candidates. The first
// occurrence of a key is kept and later ones only add provenance.
func (n *Normalizer) Normalize(candidates []entity.CandidateRecord) ([]entity.FinalRecord, Stats) {
	acc := newAccumulator()
	stats := Stats{Rejected: map[Reason]int{}}
	for _, c := range candidates {
		n.add(acc, &stats, entity.FinalRecord{
			EspecieCientifica: c.EspecieCientifica,
			NombreComun:       c.NombreComun,
			UsoPrecolombino:   c.UsoPrecolombino,
			Justificacion:     c.Justificacion,
			Provenance:        c.Provenance,
		})
	}
	return acc.records, stats
}

// Merge runs final records from several documents through the same rules.
// Merge(Merge(x)) equals Merge(x).
func (n *Normalizer) Merge(sets ...[]entity.FinalRecord) ([]entity.FinalRecord, Stats) {
	acc := newAccumulator()
	stats := Stats{Rejected: map[Reason]int{}}
	for _, set := range sets {
		for _, r := range set {
			n.add(acc, &stats, r)
		}
	}
	return acc.records, stats
}

func (n *Normalizer) add(acc *accumulator, stats *Stats, r entity.FinalRecord) {
	stats.Candidates++
	r = Clean(r)
	if reason, ok := n.check(r); !ok {
		stats.Rejected[reason]++
		n.logger.Debug("records.rejected",
			"reason", reason,
			"especie", r.EspecieCientifica,
			"nombre", r.NombreComun,
		)
		return
	}
	if acc.add(r) {
		stats.Accepted++
	} else {
		stats.Duplicates++
	}
}

func (n *Normalizer) check(r entity.FinalRecord) (Reason, bool) {
	empty := true
	for _, f := range constants.RecordFields {
		if r.Get(f) != "" {
			empty = false
			break
		}
	}
	if empty {
		return RejectEmpty, false
	}
	if len(strings.Fields(r.EspecieCientifica)) < n.cfg.MinSpeciesTokens {
		return RejectShape, false
	}
	if n.cfg.RequireUse && r.UsoPrecolombino == "" {
		return RejectNoUse, false
	}
	return "", true
}

// Key is the dedup identity of a record: its lower-cased, whitespace
// collapsed triple.
func Key(r entity.FinalRecord) string {
	parts := make([]string, len(constants.RecordFields))
	for i, f := range constants.RecordFields {
		parts[i] = strings.ToLower(strings.Join(strings.Fields(r.Get(f)), " "))
	}
	return strings.Join(parts, "\x1f")
}

type accumulator struct {
	index   map[string]int
	records []entity.FinalRecord
}

func newAccumulator() *accumulator {
	return &accumulator{index: make(map[string]int)}
}

// add reports whether r was new.
func (a *accumulator) add(r entity.FinalRecord) bool {
	k := Key(r)
	i, seen := a.index[k]
	if !seen {
		r.Provenance = mergeProvenance(nil, r.Provenance)
		a.index[k] = len(a.records)
		a.records = append(a.records, r)
		return true
	}
	existing := &a.records[i]
	existing.Provenance = mergeProvenance(existing.Provenance, r.Provenance)
	if existing.Justificacion == "" {
		existing.Justificacion = r.Justificacion
	}
	return false
}

func mergeProvenance(dst, src []entity.Provenance) []entity.Provenance {
	for _, p := range src {
		dup := false
		for _, q := range dst {
			if p == q {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, p)
		}
	}
	return dst
}

var placeholders = map[string]struct{}{
	"":                {},
	"-":               {},
	"?":               {},
	"n/a":             {},
	"na":              {},
	"nd":              {},
	"n.d.":            {},
	"null":            {},
	"none":            {},
	"unknown":         {},
	"desconocido":     {},
	"desconocida":     {},
	"no especificado": {},
	"no especificada": {},
	"no disponible":   {},
	"no indicado":     {},
	"no mencionado":   {},
	"sin información": {},
	"sin informacion": {},
	"sin datos":       {},
	"no aplica":       {},
}

// Clean normalizes every field of r. Clean(Clean(r)) == Clean(r).
func Clean(r entity.FinalRecord) entity.FinalRecord {
	r.EspecieCientifica = speciesCase(cleanField(r.EspecieCientifica))
	r.NombreComun = textCase(cleanField(r.NombreComun))
	r.UsoPrecolombino = textCase(cleanField(r.UsoPrecolombino))
	r.Justificacion = cleanField(r.Justificacion)
	return r
}

func cleanField(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	for {
		before := s
		s = strings.Trim(s, "\"'`*_")
		s = strings.TrimRight(s, ",;:")
		if strings.HasSuffix(s, ".") && !endsWithInitial(s) {
			s = strings.TrimSuffix(s, ".")
		}
		s = strings.TrimSpace(s)
		if s == before {
			break
		}
	}
	if _, ok := placeholders[strings.ToLower(s)]; ok {
		return ""
	}
	return s
}

// endsWithInitial reports an abbreviated authority or initial at the end of
// s ("Zea mays L."), whose period belongs to the value.
func endsWithInitial(s string) bool {
	body := strings.TrimSuffix(s, ".")
	tok := body[strings.LastIndexAny(body, " (")+1:]
	r, size := utf8.DecodeRuneInString(tok)
	return size > 0 && size == len(tok) && unicode.IsLetter(r)
}

// speciesCase capitalizes the genus and lower-cases the epithet. Authority
// tokens after the epithet are left alone.
func speciesCase(s string) string {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return ""
	}
	tokens[0] = capitalize(tokens[0])
	if len(tokens) > 1 {
		tokens[1] = strings.ToLower(tokens[1])
	}
	return strings.Join(tokens, " ")
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// textCase lower-cases values written entirely in capitals.
func textCase(s string) string {
	hasUpper := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return s
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	if hasUpper && len([]rune(s)) > 1 {
		return strings.ToLower(s)
	}
	return s
}
