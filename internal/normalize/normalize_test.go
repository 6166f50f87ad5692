package normalize

import (
	"strings"
	"testing"
)

func TestClean(t *testing.T) {
	n := New(Options{})
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"collapse whitespace", "La  especie\t Mauritia\nflexuosa  ", "La especie Mauritia flexuosa"},
		{"hyphenation rejoined", "se usa-\nba para preparar bebi-\n  das", "se usaba para preparar bebidas"},
		{"capitalized continuation not joined", "Norte-\nSur", "Norte- Sur"},
		{"control characters stripped", "moriche\x00\x07 palma\u00adreal\ufeff", "moriche palmareal"},
		{"paragraphs kept", "primer párrafo\n\n\n\nsegundo\npárrafo", "primer párrafo\n\nsegundo párrafo"},
		{"page markers removed", "texto Página 12 sigue page 3 fin", "texto sigue fin"},
		{"table captions removed", "ver Tabla 4.2 abajo", "ver abajo"},
		{"dimensions removed", "lámina de 12 x 30 cm", "lámina de cm"},
		{"decorative runs removed", "título\n•••••\n_____ cuerpo", "título\n\ncuerpo"},
		{"stop terms removed", "Granos trilete, exina lisa de Zea mays", "lisa de Zea mays"},
		{"nfkc ligature", "ﬁbra de palma", "fibra de palma"},
		{"form feed splits paragraphs", "página uno\ftexto dos", "página uno\n\ntexto dos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanIsDeterministicAndIdempotent(t *testing.T) {
	n := New(Options{})
	in := "La especie Mauritia flexuo-\nsa, conocida como moriche,\n\nse usaba  para preparar bebidas fermentadas.\fPágina 2"
	first := n.Clean(in)
	if again := n.Clean(in); again != first {
		t.Fatalf("not deterministic: %q vs %q", first, again)
	}
	if twice := n.Clean(first); twice != first {
		t.Fatalf("not idempotent: %q vs %q", first, twice)
	}
	if !strings.Contains(first, "Mauritia flexuosa") {
		t.Errorf("hyphenated binomial not rejoined: %q", first)
	}
}

func TestCustomStopTerms(t *testing.T) {
	n := New(Options{StopTerms: []string{"Polen"}})
	if got := n.Clean("polen trilete de maíz"); got != "trilete de maíz" {
		t.Fatalf("got %q", got)
	}
}

type fakeDetector map[string]struct {
	lang string
	conf float64
}

func (f fakeDetector) Detect(text string) (string, float64) {
	for prefix, r := range f {
		if strings.HasPrefix(text, prefix) {
			return r.lang, r.conf
		}
	}
	return "es", 1
}

func TestNormalizeLanguageFilter(t *testing.T) {
	long := strings.Repeat(" palabra", 10)
	det := fakeDetector{
		"Der":   {"de", 0.95},
		"Vague": {"fr", 0.2},
	}
	n := New(Options{Language: NewLanguageFilter(det, 0.5, []string{"es", "en"})})

	in := "Der Mais wurde" + long + "\n\nLa palma" + long + "\n\nVague texte" + long + "\n\nDer kurz"
	got, dropped := n.Normalize(in)
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	if strings.Contains(got, "Mais wurde") {
		t.Errorf("german paragraph kept: %q", got)
	}
	for _, want := range []string{"La palma", "Vague texte", "Der kurz"} {
		if !strings.Contains(got, want) {
			t.Errorf("%q missing from %q", want, got)
		}
	}
}

func TestLanguageFilterDisabled(t *testing.T) {
	if f := NewLanguageFilter(nil, 0, []string{"es"}); f != nil {
		t.Fatal("zero threshold should disable the filter")
	}
	var f *LanguageFilter
	segs, dropped := f.Filter([]string{"a", "b"})
	if len(segs) != 2 || dropped != 0 {
		t.Fatalf("nil filter changed input: %v %d", segs, dropped)
	}
}

func TestWhatlangDetector(t *testing.T) {
	lang, conf := WhatlangDetector{}.Detect("La especie conocida como moriche se usaba para preparar bebidas fermentadas en las comunidades indígenas de la región")
	if lang != "es" {
		t.Errorf("lang = %q (conf %.2f), want es", lang, conf)
	}
}
