package engine

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxQueryVariants caps how many expanded spellings of a query are tried.
const maxQueryVariants = 5

// variantDiscount scales scores of non-original query variants before
// merging, so a synonym hit never outranks the same hit on the original.
const variantDiscount = 0.8

// stripDiacritics removes combining marks after NFD decomposition, so
// "café" becomes "cafe". Umlaut digraph folds are handled separately
// because ä→ae has no decomposition path.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// umlautFolds are the German digraph spellings of accented characters.
var umlautFolds = [][2]string{
	{"ä", "ae"}, {"ö", "oe"}, {"ü", "ue"}, {"ß", "ss"},
}

// querySynonyms is a fixed bilingual synonym table. Keys and values are
// both tried so either spelling of an item finds catalog entries written
// in the other language.
var querySynonyms = map[string][]string{
	"tofu":        {"sojaquark"},
	"hackfleisch": {"ground beef", "faschiertes"},
	"sahne":       {"cream", "schlagobers"},
	"quark":       {"curd", "topfen"},
	"kartoffel":   {"potato", "erdapfel"},
	"potato":      {"kartoffel"},
	"zwiebel":     {"onion"},
	"onion":       {"zwiebel"},
	"knoblauch":   {"garlic"},
	"garlic":      {"knoblauch"},
	"milch":       {"milk"},
	"milk":        {"milch"},
	"käse":        {"cheese"},
	"cheese":      {"käse"},
	"brot":        {"bread"},
	"bread":       {"brot"},
	"butter":      {"margarine"},
	"mehl":        {"flour"},
	"flour":       {"mehl"},
	"zucker":      {"sugar"},
	"sugar":       {"zucker"},
	"ei":          {"eier", "egg"},
	"eier":        {"eggs", "ei"},
	"apfel":       {"apple"},
	"apple":       {"apfel"},
	"tomate":      {"tomato", "paradeiser"},
	"tomato":      {"tomate"},
	"gurke":       {"cucumber"},
	"cucumber":    {"gurke"},
	"paprika":     {"bell pepper"},
	"pilze":       {"mushrooms", "champignons"},
	"reis":        {"rice"},
	"rice":        {"reis"},
	"nudeln":      {"pasta", "teigwaren"},
	"pasta":       {"nudeln"},
	"hähnchen":    {"chicken", "huhn", "hendl"},
	"chicken":     {"hähnchen", "huhn"},
	"rindfleisch": {"beef"},
	"beef":        {"rindfleisch"},
	"fisch":       {"fish"},
	"fish":        {"fisch"},
	"joghurt":     {"yogurt", "yoghurt"},
	"yogurt":      {"joghurt"},
}

// QueryVariant is one expanded spelling of a query together with the
// confidence discount applied to scores it produces.
type QueryVariant struct {
	Text     string
	Discount float64
}

// NormalizeQuery lowercases, Unicode-normalizes and trims a query.
func NormalizeQuery(query string) string {
	normalized := norm.NFC.String(strings.ToLower(strings.TrimSpace(query)))
	return strings.Join(strings.Fields(normalized), " ")
}

// FoldUmlauts rewrites umlauts and sharp s into their digraph spellings
// ("müsli" → "muesli").
func FoldUmlauts(s string) string {
	for _, fold := range umlautFolds {
		s = strings.ReplaceAll(s, fold[0], fold[1])
	}
	return s
}

// UnfoldUmlauts rewrites digraph spellings back into umlauts
// ("muesli" → "müsli"). The inverse direction of FoldUmlauts, so both
// catalog spellings are reachable from either query spelling.
func UnfoldUmlauts(s string) string {
	for _, fold := range umlautFolds {
		s = strings.ReplaceAll(s, fold[1], fold[0])
	}
	return s
}

// StripDiacritics removes combining marks ("café" → "cafe").
func StripDiacritics(s string) string {
	out, _, err := transform.String(stripDiacritics, s)
	if err != nil {
		return s
	}
	return out
}

// ExpandQuery produces up to maxQueryVariants spellings of a query: the
// original, accent/umlaut folds in both directions, synonym substitutions
// from the bilingual table, and naive singular/plural toggles for terms
// longer than 4 characters. The original always comes first at full
// confidence; every other variant carries the variant discount.
func ExpandQuery(query string) []QueryVariant {
	original := NormalizeQuery(query)
	if original == "" {
		return nil
	}

	variants := []QueryVariant{{Text: original, Discount: 1.0}}
	seen := map[string]bool{original: true}

	add := func(text string) {
		if len(variants) >= maxQueryVariants {
			return
		}
		text = NormalizeQuery(text)
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		variants = append(variants, QueryVariant{Text: text, Discount: variantDiscount})
	}

	add(FoldUmlauts(original))
	add(UnfoldUmlauts(original))
	add(StripDiacritics(original))

	words := strings.Fields(original)
	for i, word := range words {
		for _, synonym := range querySynonyms[word] {
			replaced := make([]string, len(words))
			copy(replaced, words)
			replaced[i] = synonym
			add(strings.Join(replaced, " "))
		}
	}

	for i, word := range words {
		if len([]rune(word)) <= 4 {
			continue
		}
		toggled := make([]string, len(words))
		copy(toggled, words)
		if strings.HasSuffix(word, "s") {
			toggled[i] = strings.TrimSuffix(word, "s")
		} else {
			toggled[i] = word + "s"
		}
		add(strings.Join(toggled, " "))
	}

	return variants
}
