package engine

import (
	"testing"
)

var sampleTitles = []string{
	"Fester Tofu, 200g",
	"Bio Vollmilch 3,5% 1l",
	"Gut&Günstig Butter mild gesäuert 250g",
	"Vollkorn Toastbrot 500g",
	"Räuchertofu geräuchert 2x175g",
	"",
}

func TestLevenshteinSimilarity_IdentityAndSymmetry(t *testing.T) {
	for _, title := range sampleTitles {
		if got := LevenshteinSimilarity(title, title); got != 1.0 {
			t.Errorf("LevenshteinSimilarity(%q, same) = %g, want 1.0", title, got)
		}
	}

	for _, a := range sampleTitles {
		for _, b := range sampleTitles {
			ab := LevenshteinSimilarity(a, b)
			ba := LevenshteinSimilarity(b, a)
			if ab != ba {
				t.Errorf("LevenshteinSimilarity not symmetric for (%q, %q): %g vs %g", a, b, ab, ba)
			}
			if ab < 0 || ab > 1 {
				t.Errorf("LevenshteinSimilarity(%q, %q) = %g, out of [0,1]", a, b, ab)
			}
		}
	}
}

func TestLevenshteinSimilarity_KnownDistances(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1.0},
		{"tofu", "", 0.0},
		{"tofu", "tofu", 1.0},
		{"tofu", "tof", 0.75},
	}

	for _, tt := range tests {
		if got := LevenshteinSimilarity(tt.a, tt.b); got != tt.want {
			t.Errorf("LevenshteinSimilarity(%q, %q) = %g, want %g", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestJaroWinklerSimilarity_Bounds(t *testing.T) {
	pairs := [][2]string{
		{"martha", "marhta"},
		{"tofu", "tomate"},
		{"milch", "milchreis"},
		{"", "milch"},
		{"a", "a"},
	}

	for _, p := range pairs {
		got := JaroWinklerSimilarity(p[0], p[1])
		if got < 0 || got > 1 {
			t.Errorf("JaroWinklerSimilarity(%q, %q) = %g, out of [0,1]", p[0], p[1], got)
		}
	}
}

func TestJaroWinklerSimilarity_PrefixBonus(t *testing.T) {
	// A shared prefix must never score below plain Jaro.
	pairs := [][2]string{
		{"milch", "milchreis"},
		{"vollkorn", "vollmilch"},
		{"tofu", "tofuwurst"},
	}

	for _, p := range pairs {
		jaro := jaroSimilarity(p[0], p[1])
		jw := JaroWinklerSimilarity(p[0], p[1])
		if jw < jaro {
			t.Errorf("JaroWinkler(%q, %q) = %g below plain Jaro %g", p[0], p[1], jw, jaro)
		}
	}

	// Identical strings stay at exactly 1.0 despite the bonus.
	if got := JaroWinklerSimilarity("butter", "butter"); got != 1.0 {
		t.Errorf("JaroWinklerSimilarity(identical) = %g, want 1.0", got)
	}
}

func TestTrigramSimilarity(t *testing.T) {
	if got := TrigramSimilarity("tofu", "tofu"); got != 1.0 {
		t.Errorf("TrigramSimilarity(identical) = %g, want 1.0", got)
	}

	// Word order barely matters for trigram sets.
	straight := TrigramSimilarity("fester tofu", "tofu fester")
	if straight <= 0.3 {
		t.Errorf("TrigramSimilarity(reordered words) = %g, want > 0.3", straight)
	}

	if got := TrigramSimilarity("xyz", "abc"); got != 0 {
		t.Errorf("TrigramSimilarity(disjoint) = %g, want 0", got)
	}
}

func TestSubstringSimilarity(t *testing.T) {
	full := SubstringSimilarity("tofu", "tofu natur 200g")
	late := SubstringSimilarity("tofu", "geräucherter bio tofu")
	if full <= late {
		t.Errorf("earlier substring should score higher: start=%g late=%g", full, late)
	}
	if full < 0.5 {
		t.Errorf("contained query = %g, want >= 0.5", full)
	}

	// Partial fallback: half the terms found as substrings.
	partial := SubstringSimilarity("fester tofu", "tofuwurst")
	if partial != 0.25 {
		t.Errorf("partial term match = %g, want 0.25", partial)
	}

	if got := SubstringSimilarity("", "anything"); got != 0 {
		t.Errorf("empty query = %g, want 0", got)
	}
}

func TestFuzzyScore_Gate(t *testing.T) {
	// Weak similarity below the threshold collapses to zero.
	weak := FuzzyScore("zzzz", "Bio Vollmilch 3,5% 1l", 0.9)
	if weak != 0 {
		t.Errorf("gated fuzzy score = %g, want 0", weak)
	}

	strong := FuzzyScore("vollmilch", "Bio Vollmilch 3,5% 1l", 0.3)
	if strong == 0 {
		t.Errorf("fuzzy score above gate collapsed to 0")
	}
	if strong > 1 {
		t.Errorf("fuzzy score = %g, out of [0,1]", strong)
	}
}

func TestFuzzyScore_UnrelatedDocumentText(t *testing.T) {
	// Gibberish against a full document string must stay gated even
	// though Jaro-Winkler alone lands mid-range on unrelated text.
	docs := []string{
		"vollkorn toastbrot backwaren 500g",
		"bio vollmilch 3,5% milchprodukte 1l",
	}
	for _, doc := range docs {
		if got := FuzzyScore("xyzqwert", doc, 0.3); got != 0 {
			t.Errorf("FuzzyScore(unrelated, %q) = %g, want 0", doc, got)
		}
	}

	// A near-typo of one document word still clears the gate.
	if got := FuzzyScore("tofuu", "fester tofu natur 200g", 0.3); got < 0.3 {
		t.Errorf("FuzzyScore(typo) = %g, want >= 0.3", got)
	}
}

func TestTokenJaccard(t *testing.T) {
	if got := TokenJaccard("Fester Tofu 200g", "fester tofu 200g"); got != 1.0 {
		t.Errorf("TokenJaccard(case-insensitive identical) = %g, want 1.0", got)
	}

	near := TokenJaccard("Bio Tofu Natur 200g", "Bio Tofu Natur 400g")
	if near <= 0.5 {
		t.Errorf("TokenJaccard(near-identical titles) = %g, want > 0.5", near)
	}

	if got := TokenJaccard("tofu", "butter"); got != 0 {
		t.Errorf("TokenJaccard(disjoint) = %g, want 0", got)
	}
}
