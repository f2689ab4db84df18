package content

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_BuiltIn(t *testing.T) {
	p, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Brand != "Babás do Futuro" {
		t.Fatalf("unexpected brand %q", p.Brand)
	}
	if len(p.Financials.Revenue) != 3 {
		t.Fatalf("expected 3 revenue lines, got %d", len(p.Financials.Revenue))
	}
	if !strings.HasPrefix(p.Chat.Welcome, "Olá! Sou o assistente virtual") {
		t.Fatalf("unexpected welcome %q", p.Chat.Welcome)
	}
	for _, id := range []string{SectionValueProp, SectionAudience, SectionMonetization, SectionFeatures} {
		if _, ok := p.Section(id); !ok {
			t.Fatalf("missing section %s", id)
		}
	}
}

func TestPitch_RevenueTotal(t *testing.T) {
	p, _ := Load()
	if got := p.RevenueTotal(); got != 1900 {
		t.Fatalf("expected 1900, got %v", got)
	}
}

func TestPitch_CloudCostRange(t *testing.T) {
	p, _ := Load()
	lo, hi := p.CloudCostRange()
	if lo != 400 || hi != 800 {
		t.Fatalf("expected 400-800, got %v-%v", lo, hi)
	}
}

func TestPitch_RecommendedTier(t *testing.T) {
	p, _ := Load()
	var rec []string
	for _, tier := range p.Marketing.Tiers {
		if tier.Recommended {
			rec = append(rec, tier.Name)
		}
	}
	if len(rec) != 1 || rec[0] != "Provável" {
		t.Fatalf("expected only Provável recommended, got %v", rec)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		v     float64
		cents bool
		want  string
	}{
		{1900, true, "1.900,00"},
		{9.2, true, "9,20"},
		{12000, false, "12.000"},
		{450, false, "450"},
		{1234567, false, "1.234.567"},
	}
	for _, c := range cases {
		if got := FormatAmount(c.v, c.cents); got != c.want {
			t.Errorf("FormatAmount(%v, %v) = %q, want %q", c.v, c.cents, got, c.want)
		}
	}
}

func TestLabels(t *testing.T) {
	c := CostItem{Category: "Computação", Min: 200, Max: 350}
	if c.Label() != "R$ 200-350" {
		t.Fatalf("unexpected cost label %q", c.Label())
	}
	r := Role{Min: 5000, Max: 12000, Unit: "mês"}
	if r.Label() != "R$ 5.000 - R$ 12.000 / mês" {
		t.Fatalf("unexpected role label %q", r.Label())
	}
}

func TestPitch_Bars(t *testing.T) {
	p, _ := Load()
	bars := p.Bars(300)
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	if bars[0].Height != 300 || bars[0].Y != 0 {
		t.Fatalf("largest bar should fill the chart: %+v", bars[0])
	}
	if bars[1].Height != 108 {
		t.Fatalf("expected 450/1250*300 = 108, got %d", bars[1].Height)
	}
	if bars[2].Color != barColors[2] {
		t.Fatalf("unexpected color %s", bars[2].Color)
	}
	if bars[1].X <= bars[0].X {
		t.Fatal("bars should advance left to right")
	}
	if p.Bars(0) != nil {
		t.Fatal("expected nil bars for zero height")
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("brand: x\nfinancials:\n  revenue: []\n"))
	if err == nil || !strings.Contains(err.Error(), "revenue") {
		t.Fatalf("expected revenue error, got %v", err)
	}
	if _, err := Parse([]byte("brand: [")); err == nil {
		t.Fatal("expected yaml error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pitch.yaml")
	data := "brand: Outro\nfinancials:\n  revenue:\n    - name: A\n      value: 10\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if p.Brand != "Outro" || p.RevenueTotal() != 10 {
		t.Fatalf("unexpected pitch %+v", p)
	}

	def, err := LoadFile("")
	if err != nil || def.Brand != "Babás do Futuro" {
		t.Fatalf("empty path should load built-in, got %v %v", def, err)
	}
}
