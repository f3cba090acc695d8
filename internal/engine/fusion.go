package engine

import (
	"sort"
	"strings"

	"github.com/cartmatch/backend/internal/domain"
)

// Fixed linear fusion weights over the signal breakdown.
const (
	weightExact         = 0.35
	weightTFIDF         = 0.25
	weightFuzzy         = 0.15
	weightSemanticProxy = 0.10
	weightAttribute     = 0.10
	weightCategory      = 0.05
)

// Post-fusion boosts.
const (
	titleSubstringBoost = 1.2
	brandTokenBoost     = 1.1
)

// Diversification parameters: the top candidates pass unconditionally,
// repeats are only dropped once enough diverse candidates are collected,
// and collection stops at the cap.
const (
	diversityTopKeep    = 3
	diversityMinBefore  = 10
	diversityDropScore  = 0.1
	diversityCandidates = 20
)

// Quality-filter thresholds.
const (
	qualityMinScore         = 0.05
	qualityCategoryOverride = 0.8
	qualityFuzzyFloor       = 0.3
)

// fuseSignals merges the signal breakdown into one score using the fixed
// linear weights.
func fuseSignals(b domain.ScoreBreakdown) float64 {
	return b.Exact*weightExact +
		b.TFIDF*weightTFIDF +
		b.Fuzzy*weightFuzzy +
		b.SemanticProxy*weightSemanticProxy +
		b.Attribute*weightAttribute +
		b.Category*weightCategory
}

// rankCandidates applies title and brand boosts, sorts by final score,
// diversifies across brands and categories, and runs the quality filter.
func (e *Engine) rankCandidates(query string, categories []string, candidates []domain.Candidate) []domain.Candidate {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	queryTokens := tokenize(queryLower)

	for i := range candidates {
		title := strings.ToLower(candidates[i].Product.Title)

		if queryLower != "" && strings.Contains(title, queryLower) {
			candidates[i].Score *= titleSubstringBoost
		}

		brand := brandToken(candidates[i].Product.Title)
		for _, tok := range queryTokens {
			if tok == brand {
				candidates[i].Score *= brandTokenBoost
				break
			}
		}

		candidates[i].Breakdown.Final = candidates[i].Score
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})

	diversified := e.diversify(candidates)
	return e.qualityFilter(queryLower, queryTokens, categories, diversified)
}

// diversify penalizes candidates repeating an already-seen brand or
// category. The first diversityTopKeep candidates always pass; a repeat is
// dropped only when its penalized score falls below the drop threshold and
// at least diversityMinBefore diverse candidates are already collected.
func (e *Engine) diversify(candidates []domain.Candidate) []domain.Candidate {
	seenBrands := make(map[string]bool)
	seenCategories := make(map[string]bool)

	kept := make([]domain.Candidate, 0, diversityCandidates)

	for _, c := range candidates {
		if len(kept) >= diversityCandidates {
			break
		}

		brand := brandToken(c.Product.Title)
		category := strings.ToLower(c.Product.Category)

		if len(kept) < diversityTopKeep {
			kept = append(kept, c)
			seenBrands[brand] = true
			seenCategories[category] = true
			continue
		}

		if seenBrands[brand] || seenCategories[category] {
			penalized := c.Score * (1.0 - e.cfg.DiversityFactor)
			if penalized < diversityDropScore && len(kept) >= diversityMinBefore {
				continue
			}
			c.Score = penalized
			c.Breakdown.Final = penalized
		}

		kept = append(kept, c)
		seenBrands[brand] = true
		seenCategories[category] = true
	}

	sort.SliceStable(kept, func(a, b int) bool {
		return kept[a].Score > kept[b].Score
	})
	return kept
}

// qualityFilter drops weak candidates after fusion: anything below the
// score floor, out-of-category candidates that do not clear the override
// threshold, and candidates with no literal query-term overlap and a weak
// fuzzy signal.
func (e *Engine) qualityFilter(queryLower string, queryTokens []string, categories []string, candidates []domain.Candidate) []domain.Candidate {
	categorySet := make(map[string]bool, len(categories))
	for _, c := range categories {
		categorySet[strings.ToLower(strings.TrimSpace(c))] = true
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.Score < qualityMinScore {
			continue
		}

		// High-scoring out-of-category entries are tolerated as likely
		// mislabeled catalog rows; everything else respects the target set.
		if len(categorySet) > 0 && !categorySet[strings.ToLower(c.Product.Category)] && c.Score < qualityCategoryOverride {
			continue
		}

		text := e.idx.DocText(c.Index)
		literalHit := false
		for _, tok := range queryTokens {
			if strings.Contains(text, tok) {
				literalHit = true
				break
			}
		}
		if !literalHit && c.Breakdown.Fuzzy <= qualityFuzzyFloor {
			continue
		}

		kept = append(kept, c)
	}

	return kept
}

// brandToken treats the leading title token as the brand. Grocery catalog
// titles lead with the brand name often enough for diversification.
func brandToken(title string) string {
	tokens := tokenize(title)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}
