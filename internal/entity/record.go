package entity

import (
	"github.com/joseph-ayodele/species-extractor/constants"
)

// Provenance identifies where a record was seen.
type Provenance struct {
	Document string `json:"document"`
	Chunk    int    `json:"chunk"`
}

// CandidateRecord is a record as recovered from one model response.
// Fields the response did not provide are listed in Missing.
type CandidateRecord struct {
	EspecieCientifica string            `json:"especie_cientifica"`
	NombreComun       string            `json:"nombre_comun"`
	UsoPrecolombino   string            `json:"uso_precolombino"`
	Justificacion     string            `json:"justificacion_del_uso,omitempty"`
	Missing           []constants.Field `json:"missing,omitempty"`
	Provenance        []Provenance      `json:"provenance,omitempty"`
}

// Set assigns the value of one schema field.
func (r *CandidateRecord) Set(f constants.Field, v string) {
	switch f {
	case constants.EspecieCientifica:
		r.EspecieCientifica = v
	case constants.NombreComun:
		r.NombreComun = v
	case constants.UsoPrecolombino:
		r.UsoPrecolombino = v
	case constants.Justificacion:
		r.Justificacion = v
	}
}

// IsMissing reports whether the field was absent from the model output.
func (r CandidateRecord) IsMissing(f constants.Field) bool {
	for _, m := range r.Missing {
		if m == f {
			return true
		}
	}
	return false
}

// FinalRecord is a normalized, accepted and deduplicated record.
type FinalRecord struct {
	EspecieCientifica string       `json:"especie_cientifica"`
	NombreComun       string       `json:"nombre_comun"`
	UsoPrecolombino   string       `json:"uso_precolombino"`
	Justificacion     string       `json:"justificacion_del_uso,omitempty"`
	Provenance        []Provenance `json:"provenance"`
}

// Get returns the value of one schema field.
func (r FinalRecord) Get(f constants.Field) string {
	switch f {
	case constants.EspecieCientifica:
		return r.EspecieCientifica
	case constants.NombreComun:
		return r.NombreComun
	case constants.UsoPrecolombino:
		return r.UsoPrecolombino
	case constants.Justificacion:
		return r.Justificacion
	}
	return ""
}

// Documents returns the distinct source documents in first-seen order.
func (r FinalRecord) Documents() []string {
	seen := make(map[string]struct{}, len(r.Provenance))
	var out []string
	for _, p := range r.Provenance {
		if _, ok := seen[p.Document]; ok {
			continue
		}
		seen[p.Document] = struct{}{}
		out = append(out, p.Document)
	}
	return out
}
