package engine

import (
	"strings"

	"github.com/cartmatch/backend/internal/domain"
)

// scorePrefilterEpsilon is the cheap pre-filter applied before full
// fusion: products whose best of {tfidf, fuzzy, exact} stays below it are
// discarded without further work.
const scorePrefilterEpsilon = 0.1

// attributeKeywords is the fixed attribute vocabulary. Each matched term
// contributes 0.2 to the attribute signal, capped at 1.0.
var attributeKeywords = map[string]bool{
	"bio": true, "organic": true,
	"frisch": true, "fresh": true,
	"vollkorn": true, "wholegrain": true,
	"premium": true, "natur": true, "natural": true,
	"fest": true, "firm": true,
	"mager": true, "light": true,
	"regional": true, "fairtrade": true,
	"vegan": true, "vegetarisch": true,
	"laktosefrei": true, "glutenfrei": true,
}

// semanticGroups is a fixed keyword-group co-occurrence table standing in
// for embedding similarity. A query and a product that hit the same group
// are semantically related even without shared tokens. This is a
// deliberate lightweight proxy, kept pluggable through semanticProxyScore.
var semanticGroups = [][]string{
	{"tofu", "soja", "sojaquark", "vegan", "vegetarisch", "seitan", "tempeh"},
	{"milch", "milk", "joghurt", "yogurt", "quark", "sahne", "butter", "käse", "cheese", "molkerei"},
	{"brot", "bread", "brötchen", "semmel", "toast", "baguette", "vollkorn"},
	{"apfel", "apple", "banane", "banana", "birne", "obst", "frucht", "beeren"},
	{"tomate", "tomato", "gurke", "cucumber", "salat", "paprika", "gemüse", "zucchini"},
	{"huhn", "hähnchen", "chicken", "pute", "rind", "beef", "schwein", "fleisch", "wurst", "schinken"},
	{"fisch", "fish", "lachs", "salmon", "thunfisch", "tuna", "forelle", "garnelen"},
	{"nudeln", "pasta", "spaghetti", "reis", "rice", "couscous", "quinoa"},
	{"mehl", "flour", "zucker", "sugar", "salz", "backen", "hefe", "backpulver"},
	{"wasser", "water", "saft", "juice", "limonade", "cola", "tee", "kaffee", "coffee"},
	{"schokolade", "chocolate", "keks", "cookie", "chips", "süßigkeiten", "bonbon", "riegel"},
	{"öl", "oil", "olivenöl", "essig", "vinegar", "senf", "ketchup", "sauce"},
}

// semanticGroupHit is the score contributed by each co-occurring keyword
// group, capped at 1.0 overall.
const semanticGroupHit = 0.5

// retrieveCandidates scores every product against the query and its
// expanded variants, merging by product identity with the maximum score
// across variants. Out-of-set products are scored too, with a weaker
// category signal; the post-fusion quality filter decides whether such
// outliers clear the override threshold or get dropped, so mislabeled
// catalog rows with a strong textual hit remain reachable.
func (e *Engine) retrieveCandidates(query string, categories []string) []domain.Candidate {
	variants := ExpandQuery(query)
	if len(variants) == 0 {
		return nil
	}

	categorySet := make(map[string]bool, len(categories))
	for _, c := range categories {
		categorySet[strings.ToLower(strings.TrimSpace(c))] = true
	}

	merged := make(map[int]domain.Candidate)

	for _, variant := range variants {
		queryTokens := tokenize(variant.Text)

		for i := range e.products {
			p := &e.products[i]

			categorySignal := 0.5
			if categorySet[strings.ToLower(p.Category)] {
				categorySignal = 1.0
			}

			breakdown := e.scoreProduct(variant.Text, queryTokens, i, categorySignal)

			maxSignal := breakdown.TFIDF
			if breakdown.Fuzzy > maxSignal {
				maxSignal = breakdown.Fuzzy
			}
			if breakdown.Exact > maxSignal {
				maxSignal = breakdown.Exact
			}
			if maxSignal < scorePrefilterEpsilon {
				continue
			}

			breakdown.Final = fuseSignals(breakdown) * variant.Discount

			existing, ok := merged[i]
			if !ok || breakdown.Final > existing.Score {
				merged[i] = domain.Candidate{
					Index:     i,
					Product:   p,
					Score:     breakdown.Final,
					Breakdown: breakdown,
				}
			}
		}
	}

	candidates := make([]domain.Candidate, 0, len(merged))
	for _, c := range merged {
		candidates = append(candidates, c)
	}
	return candidates
}

// scoreProduct computes the raw signal breakdown for one product. The
// category signal is 1.0 for in-set products and 0.5 otherwise.
func (e *Engine) scoreProduct(query string, queryTokens []string, i int, categorySignal float64) domain.ScoreBreakdown {
	docText := e.idx.DocText(i)

	return domain.ScoreBreakdown{
		TFIDF:         e.idx.TFIDFScore(queryTokens, i),
		Fuzzy:         FuzzyScore(query, docText, e.cfg.FuzzyMinThreshold),
		Exact:         e.exactMatchScore(query, queryTokens, i),
		Attribute:     attributeScore(queryTokens, docText),
		SemanticProxy: semanticProxyScore(queryTokens, docText),
		Category:      categorySignal,
	}
}

// exactMatchScore is the fraction of query terms found as exact catalog
// terms, plus a 0.5 bonus when the full query phrase appears as a
// substring, capped at 1.0.
func (e *Engine) exactMatchScore(query string, queryTokens []string, i int) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	found := 0
	for _, term := range queryTokens {
		if e.idx.HasTerm(i, term) {
			found++
		}
	}
	score := float64(found) / float64(len(queryTokens))

	if strings.Contains(e.idx.DocText(i), strings.ToLower(query)) {
		score += 0.5
	}

	if score > 1 {
		score = 1
	}
	return score
}

// attributeScore counts attribute-vocabulary terms shared by query and
// product text, 0.2 per match capped at 1.0.
func attributeScore(queryTokens []string, docText string) float64 {
	var score float64
	for _, term := range queryTokens {
		if !attributeKeywords[term] {
			continue
		}
		if strings.Contains(docText, term) {
			score += 0.2
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

// semanticProxyScore scores keyword-group co-occurrence between query and
// product text.
func semanticProxyScore(queryTokens []string, docText string) float64 {
	querySet := make(map[string]bool, len(queryTokens))
	for _, tok := range queryTokens {
		querySet[tok] = true
	}

	var score float64
	for _, group := range semanticGroups {
		queryHit := false
		docHit := false
		for _, keyword := range group {
			if querySet[keyword] {
				queryHit = true
			}
			if strings.Contains(docText, keyword) {
				docHit = true
			}
			if queryHit && docHit {
				break
			}
		}
		if queryHit && docHit {
			score += semanticGroupHit
		}
	}

	if score > 1 {
		score = 1
	}
	return score
}
