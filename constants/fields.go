package constants

import (
	"sort"
	"strings"
)

// Field is one of the keys of the extraction schema.
type Field string

const (
	EspecieCientifica Field = "especie_cientifica"
	NombreComun       Field = "nombre_comun"
	UsoPrecolombino   Field = "uso_precolombino"
	Justificacion     Field = "justificacion_del_uso"
)

// RecordFields are the three fields that make up a record's identity.
var RecordFields = []Field{
	EspecieCientifica,
	NombreComun,
	UsoPrecolombino,
}

var allFields = []Field{
	EspecieCientifica,
	NombreComun,
	UsoPrecolombino,
	Justificacion,
}

// AsStringSlice returns every schema key, identity fields first.
func AsStringSlice() []string {
	result := make([]string, len(allFields))
	for i, f := range allFields {
		result[i] = string(f)
	}
	return result
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

// labelSynonyms maps folded labels to schema fields. Models rename keys freely,
// in Spanish and English, with or without underscores.
var labelSynonyms = map[string]Field{
	"especie_cientifica":   EspecieCientifica,
	"especies_cientificas": EspecieCientifica,
	"especie":              EspecieCientifica,
	"especies":             EspecieCientifica,
	"nombre_cientifico":    EspecieCientifica,
	"scientific_name":      EspecieCientifica,
	"species":              EspecieCientifica,
	"taxon":                EspecieCientifica,

	"nombre_comun":    NombreComun,
	"nombres_comunes": NombreComun,
	"nombre_vulgar":   NombreComun,
	"nombre_local":    NombreComun,
	"common_name":     NombreComun,
	"vernacular_name": NombreComun,

	"uso_precolombino":   UsoPrecolombino,
	"usos_precolombinos": UsoPrecolombino,
	"uso":                UsoPrecolombino,
	"usos":               UsoPrecolombino,
	"uso_prehispanico":   UsoPrecolombino,
	"precolumbian_use":   UsoPrecolombino,
	"use":                UsoPrecolombino,
	"uses":               UsoPrecolombino,

	"justificacion_del_uso": Justificacion,
	"justificacion":         Justificacion,
	"justification":         Justificacion,
	"evidencia":             Justificacion,
}

// FoldLabel lowercases a key, strips accents and turns separators into underscores.
func FoldLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = accentFolder.Replace(s)
	s = strings.Trim(s, "\"'*_` ")
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.'
	}), "_")
	return s
}

// Canonicalize maps a label used by a model to a schema field.
func Canonicalize(label string) (Field, bool) {
	if label == "" {
		return "", false
	}
	f, ok := labelSynonyms[FoldLabel(label)]
	return f, ok
}

// Labels returns every folded label Canonicalize accepts, longest first.
func Labels() []string {
	out := make([]string, 0, len(labelSynonyms))
	for l := range labelSynonyms {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}
