package parser

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/joseph-ayodele/species-extractor/constants"
	"github.com/joseph-ayodele/species-extractor/internal/entity"
)

// collector turns decoded JSON into candidate records.
type collector struct {
	validator *itemValidator
	records   []entity.CandidateRecord
	coerced   int
}

// value walks v and reports whether it is record-shaped: a list that is
// empty or holds records, an object with record fields, an empty object, or
// a wrapper object ({"especies": [...]}) around any of those.
func (c *collector) value(v any) bool {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return true
		}
		recognized := false
		for _, item := range t {
			switch it := item.(type) {
			case map[string]any:
				if c.object(it) {
					recognized = true
				}
			case []any:
				if c.value(it) {
					recognized = true
				}
			}
		}
		return recognized
	case map[string]any:
		if c.object(t) {
			return true
		}
		if len(t) == 0 {
			return true
		}
		recognized := false
		for _, k := range sortedKeys(t) {
			switch t[k].(type) {
			case []any, map[string]any:
				if c.value(t[k]) {
					recognized = true
				}
			}
		}
		return recognized
	}
	return false
}

// object extracts records from one JSON object. It returns false when no
// key of the object names a record field.
func (c *collector) object(m map[string]any) bool {
	fields := canonicalFields(m)
	if len(fields) == 0 {
		return false
	}
	if !c.validator.valid(m) {
		c.coerced++
	}

	rows := 1
	for _, v := range fields {
		if l, ok := v.([]any); ok && len(l) > rows {
			rows = len(l)
		}
	}

	for i := 0; i < rows; i++ {
		var rec entity.CandidateRecord
		for _, f := range []constants.Field{
			constants.EspecieCientifica, constants.NombreComun,
			constants.UsoPrecolombino, constants.Justificacion,
		} {
			v, present := fields[f]
			s := ""
			if present {
				if l, ok := v.([]any); ok {
					if i < len(l) {
						s = scalar(l[i])
					}
				} else {
					s = scalar(v)
				}
			}
			if strings.TrimSpace(s) == "" {
				s = ""
				if f != constants.Justificacion {
					rec.Missing = append(rec.Missing, f)
				}
			}
			rec.Set(f, s)
		}
		c.records = append(c.records, rec)
	}
	return true
}

// canonicalFields maps an object's keys to schema fields. When several keys
// map to one field the exact schema name wins, then the first in key order.
func canonicalFields(m map[string]any) map[constants.Field]any {
	out := make(map[constants.Field]any, 4)
	exact := make(map[constants.Field]bool, 4)
	for _, k := range sortedKeys(m) {
		f, ok := constants.Canonicalize(k)
		if !ok || nested(m[k]) {
			continue
		}
		isExact := constants.FoldLabel(k) == string(f)
		if _, seen := out[f]; seen && (exact[f] || !isExact) {
			continue
		}
		out[f] = m[k]
		exact[f] = isExact
	}
	return out
}

// nested reports values holding objects. {"especies": [{...}]} is a wrapper,
// not a record whose species is a list.
func nested(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		return true
	case []any:
		for _, e := range t {
			if nested(e) {
				return true
			}
		}
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// scalar renders a JSON value as text. Nested lists are joined; objects and
// booleans carry no usable text.
func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case []any:
		var parts []string
		for _, e := range t {
			if s := strings.TrimSpace(scalar(e)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}
