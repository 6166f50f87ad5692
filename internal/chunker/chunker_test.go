package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

const sample = "La especie Mauritia flexuosa, conocida como moriche, se usaba para preparar bebidas fermentadas. " +
	"Los frutos de M. flexuosa eran consumidos frescos. " +
	"El cacao (Theobroma cacao) tenía un uso ceremonial.\n\n" +
	"En la región andina el maíz fue la base de la alimentación. " +
	"Zea mays aparece en contextos rituales y domésticos!\n\n" +
	"Bixa orellana, el achiote, servía como tinte corporal."

func reassemble(t *testing.T, c *Chunker, text string) string {
	t.Helper()
	var b strings.Builder
	for ch := range c.Chunks("doc.pdf", text) {
		b.WriteString(ch.Fresh())
	}
	return b.String()
}

func TestChunksReconstructText(t *testing.T) {
	for _, cfg := range []Config{
		{MaxChars: 4000},
		{MaxChars: 120},
		{MaxChars: 120, Overlap: 60},
		{MaxChars: 60, Overlap: 30},
		{MaxChars: 10},
	} {
		c := New(cfg)
		if got := reassemble(t, c, sample); got != sample {
			t.Errorf("cfg %+v: reassembled text differs\n got %q\nwant %q", cfg, got, sample)
		}
	}
}

func TestChunksRespectBound(t *testing.T) {
	c := New(Config{MaxChars: 120, Overlap: 50})
	units := splitUnits(sample)
	longest := 0
	for _, u := range units {
		if u.chars > longest {
			longest = u.chars
		}
	}
	if longest > 120 {
		t.Fatalf("fixture has a unit longer than the bound (%d)", longest)
	}
	n := 0
	for ch := range c.Chunks("doc.pdf", sample) {
		if got := utf8.RuneCountInString(ch.Text); got > 120 {
			t.Errorf("chunk %d has %d chars", ch.Index, got)
		}
		if ch.Overlap > 0 && utf8.RuneCountInString(ch.Text[:ch.Overlap]) > 50 {
			t.Errorf("chunk %d overlap too long: %q", ch.Index, ch.Text[:ch.Overlap])
		}
		if ch.Index != n {
			t.Errorf("index = %d, want %d", ch.Index, n)
		}
		if ch.Text != sample[ch.Start:ch.End] {
			t.Errorf("chunk %d text does not match its span", ch.Index)
		}
		n++
	}
	if n < 3 {
		t.Fatalf("expected several chunks, got %d", n)
	}
}

func TestChunksNeverSplitSentences(t *testing.T) {
	c := New(Config{MaxChars: 130})
	for ch := range c.Chunks("doc.pdf", sample) {
		trimmed := strings.TrimSpace(ch.Text)
		last, _ := utf8.DecodeLastRuneInString(trimmed)
		if !strings.ContainsRune(".!?", last) {
			t.Errorf("chunk %d ends mid-sentence: %q", ch.Index, trimmed)
		}
	}
}

func TestOversizedUnitEmittedAlone(t *testing.T) {
	long := strings.Repeat("palabra ", 30) + "fin."
	text := "Corta. " + long + " Otra corta."
	c := New(Config{MaxChars: 50, Overlap: 20})
	chunks := c.Collect("doc.pdf", text)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3: %+v", len(chunks), chunks)
	}
	if strings.TrimSpace(chunks[1].Text) != long || chunks[1].Overlap != 0 {
		t.Errorf("oversized unit not emitted alone: %+v", chunks[1])
	}
}

func TestChunksRestartable(t *testing.T) {
	c := New(Config{MaxChars: 100, Overlap: 40})
	seq := c.Chunks("doc.pdf", sample)
	var first, second []string
	for ch := range seq {
		first = append(first, ch.Text)
	}
	for ch := range seq {
		second = append(second, ch.Text)
	}
	if strings.Join(first, "|") != strings.Join(second, "|") {
		t.Fatal("second iteration differs from the first")
	}
}

func TestChunksEarlyBreak(t *testing.T) {
	c := New(Config{MaxChars: 60})
	n := 0
	for range c.Chunks("doc.pdf", sample) {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("n = %d", n)
	}
}

func TestChunksEmptyText(t *testing.T) {
	c := New(DefaultConfig())
	if got := c.Collect("doc.pdf", " \n\n "); len(got) != 0 {
		t.Fatalf("whitespace produced chunks: %+v", got)
	}
}

func TestOverlapClamped(t *testing.T) {
	c := New(Config{MaxChars: 100, Overlap: 500})
	if c.cfg.Overlap != 50 {
		t.Fatalf("overlap = %d, want 50", c.cfg.Overlap)
	}
}

func TestSplitUnitsKeepsAbbreviations(t *testing.T) {
	units := splitUnits("Los frutos de M. flexuosa y Bactris sp. eran comidos. Fin.")
	if len(units) != 2 {
		t.Fatalf("units = %d, want 2", len(units))
	}
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"La especie Mauritia flexuosa se usaba para preparar bebidas.", true},
		{"Bixa orellana servía como tinte corporal.", true},
		{"Granos de polen trilete de Alnus acuminata en el perfil.", false},
		{"el moriche se usaba para preparar bebidas.", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Relevant(tt.text); got != tt.want {
			t.Errorf("Relevant(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
