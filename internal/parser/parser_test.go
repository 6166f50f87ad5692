package parser

import (
	"io"
	"log/slog"
	"testing"

	"github.com/joseph-ayodele/species-extractor/constants"
)

const maize = `{"especie_cientifica": "Zea mays", "nombre_comun": "maíz", "uso_precolombino": "alimento", "justificacion_del_uso": "granos en vasijas"}`
const moriche = `{"especie_cientifica": "Mauritia flexuosa", "nombre_comun": "moriche", "uso_precolombino": "fibras"}`

func newTestParser() *Parser {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParse_Strategies(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		strategy Strategy
		species  []string
	}{
		{"valid json", "[" + maize + "]", StrategyStrict, []string{"Zea mays"}},
		{"code fence", "```json\n[" + maize + ", " + moriche + "]\n```", StrategyStrict, []string{"Zea mays", "Mauritia flexuosa"}},
		{"think block", "<think>veamos [no] {}</think>\n[" + maize + "]", StrategyStrict, []string{"Zea mays"}},
		{"wrapper object", `{"especies": [` + maize + `]}`, StrategyStrict, []string{"Zea mays"}},
		{"empty list", "[]", StrategyStrict, nil},
		{"prose around list", "Aquí está la lista [1]:\n[" + maize + "]\nEspero que sirva.", StrategyBracket, []string{"Zea mays"}},
		{"trailing comma", `[{"especie_cientifica": "Zea mays", "nombre_comun": "maíz", "uso_precolombino": "alimento",},]`, StrategyBracket, []string{"Zea mays"}},
		{"truncated list", "[" + maize + `, {"especie_cientifica": "Mauri`, StrategyBracket, []string{"Zea mays"}},
		{"objects without list", maize + "\n" + moriche, StrategyObjects, []string{"Zea mays", "Mauritia flexuosa"}},
		{
			"labelled prose",
			"1. Especie científica: Zea mays\n   Nombre común: maíz\n   Uso precolombino: alimento\n\n" +
				"2. **Especie científica**: Mauritia flexuosa; Nombre común: moriche; Uso precolombino: fibras",
			StrategyLines, []string{"Zea mays", "Mauritia flexuosa"},
		},
		{
			"labels inline with commas",
			"Especie científica: Zea mays, nombre común: maíz, uso precolombino: alimento",
			StrategyLines, []string{"Zea mays"},
		},
		{"labels inline after a sentence", "- Especie: Bixa orellana (achiote). Uso: tinte corporal", StrategyLines, []string{"Bixa orellana (achiote)"}},
		{"refusal", "Lo siento, no puedo ayudar con eso.", StrategyNone, nil},
		{"strings only", `["Zea mays", "Mauritia flexuosa"]`, StrategyNone, nil},
		{"empty", "   ", StrategyNone, nil},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Parse(tt.raw)
			if res.Strategy != tt.strategy {
				t.Fatalf("strategy = %q, want %q", res.Strategy, tt.strategy)
			}
			if len(res.Records) != len(tt.species) {
				t.Fatalf("got %d records, want %d: %+v", len(res.Records), len(tt.species), res.Records)
			}
			for i, want := range tt.species {
				if got := res.Records[i].EspecieCientifica; got != want {
					t.Errorf("record %d species = %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestParse_ExactRecovery(t *testing.T) {
	res := newTestParser().Parse("[" + maize + "]")
	if res.Coerced != 0 {
		t.Errorf("coerced = %d, want 0", res.Coerced)
	}
	r := res.Records[0]
	if r.NombreComun != "maíz" || r.UsoPrecolombino != "alimento" || r.Justificacion != "granos en vasijas" {
		t.Errorf("unexpected record: %+v", r)
	}
	if len(r.Missing) != 0 {
		t.Errorf("missing = %v, want none", r.Missing)
	}
}

func TestParse_MissingFieldsMarked(t *testing.T) {
	res := newTestParser().Parse(`[{"especie_cientifica": "Zea mays"}]`)
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	r := res.Records[0]
	if !r.IsMissing(constants.NombreComun) || !r.IsMissing(constants.UsoPrecolombino) {
		t.Errorf("missing = %v, want nombre_comun and uso_precolombino", r.Missing)
	}
	if r.IsMissing(constants.EspecieCientifica) {
		t.Error("species should not be missing")
	}
	if res.Coerced != 1 {
		t.Errorf("coerced = %d, want 1", res.Coerced)
	}
}

func TestParse_SynonymKeys(t *testing.T) {
	res := newTestParser().Parse(`[{"Scientific name": "Zea mays", "common_name": "maize", "Uso": "food"}]`)
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	r := res.Records[0]
	if r.EspecieCientifica != "Zea mays" || r.NombreComun != "maize" || r.UsoPrecolombino != "food" {
		t.Errorf("unexpected record: %+v", r)
	}
	if res.Coerced != 1 {
		t.Errorf("coerced = %d, want 1", res.Coerced)
	}
}

func TestParse_Columnar(t *testing.T) {
	raw := `{"especie_cientifica": ["Zea mays", "Mauritia flexuosa"], "nombre_comun": ["maíz", "moriche"], "uso_precolombino": ["alimento"]}`
	res := newTestParser().Parse(raw)
	if len(res.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(res.Records))
	}
	if res.Records[1].NombreComun != "moriche" {
		t.Errorf("second common name = %q", res.Records[1].NombreComun)
	}
	if !res.Records[1].IsMissing(constants.UsoPrecolombino) {
		t.Error("short column should leave the second use missing")
	}
}

func TestParse_KeepsValuesVerbatim(t *testing.T) {
	res := newTestParser().Parse(`[{"especie_cientifica": "Zea mays L.", "nombre_comun": "'maíz'", "uso_precolombino": "  "}]`)
	r := res.Records[0]
	if r.EspecieCientifica != "Zea mays L." || r.NombreComun != "'maíz'" {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.UsoPrecolombino != "" || !r.IsMissing(constants.UsoPrecolombino) {
		t.Errorf("blank use should be missing: %+v", r)
	}
}

func TestParse_InlineLabels(t *testing.T) {
	tests := []struct {
		raw     string
		want    [3]string
		missing []constants.Field
	}{
		{
			raw:  "Especie científica: Zea mays, nombre común: maíz, uso precolombino: alimento",
			want: [3]string{"Zea mays", "maíz", "alimento"},
		},
		{
			raw:     "- Especie: Bixa orellana (achiote). Uso: tinte corporal",
			want:    [3]string{"Bixa orellana (achiote)", "", "tinte corporal"},
			missing: []constants.Field{constants.NombreComun},
		},
		{
			raw:  "**Nombre científico**: Zea mays L. **Nombre común** = maíz. Uso: alimento.",
			want: [3]string{"Zea mays L.", "maíz", "alimento"},
		},
	}
	p := newTestParser()
	for _, tt := range tests {
		res := p.Parse(tt.raw)
		if res.Strategy != StrategyLines || len(res.Records) != 1 {
			t.Fatalf("%q: strategy %q, %d records", tt.raw, res.Strategy, len(res.Records))
		}
		r := res.Records[0]
		got := [3]string{r.EspecieCientifica, r.NombreComun, r.UsoPrecolombino}
		if got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.raw, got, tt.want)
		}
		if len(r.Missing) != len(tt.missing) {
			t.Errorf("%q: missing = %v, want %v", tt.raw, r.Missing, tt.missing)
		}
	}
}

func TestPreprocess(t *testing.T) {
	tests := []struct{ in, want string }{
		{"<think>a</think>b", "b"},
		{"razonamiento</think>[]", "[]"},
		{"[] <think>sin cerrar", "[]"},
		{"```json\n[]\n```", "[]"},
	}
	for _, tt := range tests {
		if got := preprocess(tt.in); got != tt.want {
			t.Errorf("preprocess(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
