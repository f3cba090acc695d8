package engine

import "strings"

// Similarity primitives. All are pure functions over two strings and
// return a score in [0,1]. The fuzzy signal used by retrieval is the
// maximum across all four, gated at a minimum threshold.

// LevenshteinSimilarity is 1 - editDistance/max(len). Symmetric, and 1.0
// when both strings are empty.
func LevenshteinSimilarity(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))

	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}

	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}

	return 1.0 - float64(levenshteinDistance(ra, rb))/float64(maxLen)
}

// levenshteinDistance calculates the edit distance between two rune slices.
func levenshteinDistance(r1, r2 []rune) int {
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	m := len(r1)
	n := len(r2)

	// Use two rows instead of full matrix for space efficiency
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// jaroWinklerPrefixLimit caps the common-prefix bonus at 4 characters.
const jaroWinklerPrefixLimit = 4

// jaroWinklerScaling is the standard Winkler prefix scaling factor.
const jaroWinklerScaling = 0.1

// JaroWinklerSimilarity is the standard Jaro similarity with a bonus for
// up to 4 matching leading characters. The prefix bonus rewards shared
// brand-name prefixes, which grocery titles lead with.
func JaroWinklerSimilarity(a, b string) float64 {
	jaro := jaroSimilarity(strings.ToLower(a), strings.ToLower(b))
	if jaro == 0 {
		return 0
	}

	prefix := 0
	la := []rune(strings.ToLower(a))
	lb := []rune(strings.ToLower(b))
	for prefix < len(la) && prefix < len(lb) && prefix < jaroWinklerPrefixLimit {
		if la[prefix] != lb[prefix] {
			break
		}
		prefix++
	}

	return jaro + float64(prefix)*jaroWinklerScaling*(1.0-jaro)
}

// jaroSimilarity computes plain Jaro similarity.
func jaroSimilarity(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	matchWindow := len(ra)
	if len(rb) > matchWindow {
		matchWindow = len(rb)
	}
	matchWindow = matchWindow/2 - 1
	if matchWindow < 0 {
		matchWindow = 0
	}

	aMatched := make([]bool, len(ra))
	bMatched := make([]bool, len(rb))

	matches := 0
	for i := range ra {
		start := i - matchWindow
		if start < 0 {
			start = 0
		}
		end := i + matchWindow + 1
		if end > len(rb) {
			end = len(rb)
		}
		for j := start; j < end; j++ {
			if bMatched[j] || ra[i] != rb[j] {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := range ra {
		if !aMatched[i] {
			continue
		}
		for !bMatched[k] {
			k++
		}
		if ra[i] != rb[k] {
			transpositions++
		}
		k++
	}
	transpositions /= 2

	m := float64(matches)
	return (m/float64(len(ra)) + m/float64(len(rb)) + (m-float64(transpositions))/m) / 3.0
}

// TrigramSimilarity is the Jaccard coefficient over character trigram
// sets. Robust to word-order differences. Strings shorter than three
// characters contribute themselves as a single gram.
func TrigramSimilarity(a, b string) float64 {
	gramsA := trigramSet(strings.ToLower(a))
	gramsB := trigramSet(strings.ToLower(b))

	if len(gramsA) == 0 && len(gramsB) == 0 {
		return 1.0
	}
	if len(gramsA) == 0 || len(gramsB) == 0 {
		return 0
	}

	intersection := 0
	for g := range gramsA {
		if gramsB[g] {
			intersection++
		}
	}
	union := len(gramsA) + len(gramsB) - intersection

	return float64(intersection) / float64(union)
}

// trigramSet collects the character trigrams of s.
func trigramSet(s string) map[string]bool {
	runes := []rune(s)
	grams := make(map[string]bool)
	if len(runes) == 0 {
		return grams
	}
	if len(runes) < 3 {
		grams[string(runes)] = true
		return grams
	}
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])] = true
	}
	return grams
}

// SubstringSimilarity rewards the query appearing as a contiguous
// substring of the target, weighted by position (earlier is better) and
// length ratio. When the query is not contained whole, it falls back to
// the fraction of individual query terms found as substrings, scaled
// below any whole-phrase score.
func SubstringSimilarity(query, target string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	t := strings.ToLower(target)

	if q == "" || t == "" {
		return 0
	}

	if idx := strings.Index(t, q); idx >= 0 {
		positionWeight := 1.0 - float64(idx)/float64(len(t))
		lengthRatio := float64(len(q)) / float64(len(t))
		if lengthRatio > 1 {
			lengthRatio = 1
		}
		score := 0.5 + 0.3*positionWeight + 0.2*lengthRatio
		if score > 1 {
			score = 1
		}
		return score
	}

	terms := strings.Fields(q)
	if len(terms) == 0 {
		return 0
	}
	found := 0
	for _, term := range terms {
		if strings.Contains(t, term) {
			found++
		}
	}

	return 0.5 * float64(found) / float64(len(terms))
}

// jaroWinklerMinSignal admits the Jaro-Winkler primitive into FuzzyScore
// only at near-match strength. Jaro-Winkler lands mid-range on entirely
// unrelated words, which would leak noise past the fuzzy gate.
const jaroWinklerMinSignal = 0.85

// FuzzyScore is the maximum across the similarity primitives, gated at
// minThreshold: anything below it scores 0 so weak fuzzy noise cannot
// dominate the weighted fusion. Trigram and substring similarity compare
// against the whole target; the edit-distance primitives compare against
// each target word and keep the best, since edit distance against a whole
// document string measures length, not relatedness.
func FuzzyScore(query, target string, minThreshold float64) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	t := strings.ToLower(target)

	best := TrigramSimilarity(q, t)
	if s := SubstringSimilarity(q, t); s > best {
		best = s
	}

	words := strings.Fields(t)
	if len(words) == 0 {
		words = []string{t}
	}
	for _, word := range words {
		if s := LevenshteinSimilarity(q, word); s > best {
			best = s
		}
		if s := JaroWinklerSimilarity(q, word); s >= jaroWinklerMinSignal && s > best {
			best = s
		}
	}

	if best < minThreshold {
		return 0
	}
	return best
}

// TokenJaccard is the Jaccard coefficient over lowercase word tokens.
// Used to collapse near-identical product titles during deduplication.
func TokenJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenize(s) {
		set[tok] = true
	}
	return set
}
