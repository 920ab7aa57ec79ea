package partycode_test

import (
	"testing"

	"github.com/dalemusser/moviematch/internal/app/system/partycode"
)

func TestNew_Shape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := partycode.New()
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if !partycode.Valid(code) {
			t.Fatalf("generated code %q is not valid", code)
		}
		seen[code] = true
	}
	// 100 draws from a 36^6 space should essentially never collide.
	if len(seen) < 95 {
		t.Errorf("too many duplicate codes: %d unique of 100", len(seen))
	}
}

func TestNew_UniformDistribution(t *testing.T) {
	// Draw enough characters that a modulo-biased generator (where the
	// first few charset entries are ~14% more likely) lands far outside
	// the tolerance, while a uniform one stays well inside it.
	const draws = 50000
	counts := make(map[byte]int)
	for i := 0; i < draws; i++ {
		code, err := partycode.New()
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		for j := 0; j < len(code); j++ {
			counts[code[j]]++
		}
	}

	total := draws * partycode.Length
	expected := float64(total) / 36
	for _, ch := range []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789") {
		got := float64(counts[ch])
		if got < expected*0.94 || got > expected*1.06 {
			t.Errorf("character %q: got %d occurrences, want within 6%% of %.0f", ch, counts[ch], expected)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := partycode.Normalize("  ab12cd "); got != "AB12CD" {
		t.Errorf("Normalize: got %q, want AB12CD", got)
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"AB12CD", true},
		{"ABCDEF", true},
		{"ab12cd", false},
		{"AB12C", false},
		{"AB12CDE", false},
		{"AB12C!", false},
		{"", false},
	}
	for _, c := range cases {
		if got := partycode.Valid(c.code); got != c.want {
			t.Errorf("Valid(%q): got %v, want %v", c.code, got, c.want)
		}
	}
}
