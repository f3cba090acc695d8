package domain

// Tier labels which search pass produced a candidate or match. It is a
// closed set: the three escalating search tiers plus the ai_smart label
// used when the purchase quantity had to be estimated rather than computed.
type Tier string

const (
	TierSpecific    Tier = "tier1"
	TierCategory    Tier = "tier2"
	TierAlternative Tier = "tier3"
	TierAISmart     Tier = "ai_smart"
)

// ScoreBreakdown records the individual relevance signals that went into a
// candidate's fused score.
type ScoreBreakdown struct {
	TFIDF         float64 `json:"tfidf"`
	Fuzzy         float64 `json:"fuzzy"`
	Exact         float64 `json:"exact"`
	Attribute     float64 `json:"attribute"`
	SemanticProxy float64 `json:"semanticProxy"`
	Category      float64 `json:"category"`
	Final         float64 `json:"final"`
}

// Candidate is a scored product under consideration for one shopping item.
// Candidates are ephemeral: produced and reordered during a single match
// operation, never persisted.
type Candidate struct {
	Index     int            `json:"index"` // position in the catalog
	Product   *Product       `json:"product"`
	Score     float64        `json:"score"`
	Tier      Tier           `json:"tier"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// Match is the final resolution for one shopping item.
// UnitsNeeded is always >= 1 and TotalPrice is exactly
// UnitsNeeded * Product.Price rounded to cents.
type Match struct {
	Item         ShoppingItem `json:"item"`
	Product      Product      `json:"product"`
	UnitsNeeded  int          `json:"unitsNeeded"`
	ActualAmount float64      `json:"actualAmount"`
	ActualUnit   Unit         `json:"actualUnit"`
	TotalPrice   float64      `json:"totalPrice"`
	Confidence   float64      `json:"confidence"`
	Tier         Tier         `json:"tier"`
	Reasoning    string       `json:"reasoning"`
}

// NotFoundItem records a shopping item that could not be matched, with the
// reason it fell through. Not-found outcomes are results, not errors.
type NotFoundItem struct {
	Item   ShoppingItem `json:"item"`
	Reason string       `json:"reason"`
}

// MatchResult is the complete outcome for one shopping list: every item
// lands either in Matches or in NotFound. TotalPrice is the exact sum of
// the individual match totals.
type MatchResult struct {
	Matches    []Match        `json:"matches"`
	NotFound   []NotFoundItem `json:"notFound"`
	TotalPrice float64        `json:"totalPrice"`
}

// SearchTerms holds the per-tier search vocabulary for one item.
// Tier1 and Tier2 are bounded at 6 terms, Tier3 at 4.
type SearchTerms struct {
	Tier1 []string `json:"tier1"`
	Tier2 []string `json:"tier2"`
	Tier3 []string `json:"tier3"`
}

// RankedRef is one entry of a reranked shortlist: the candidate's position
// in the shortlist that was sent out, plus the reranker's reasoning.
type RankedRef struct {
	Index     int    `json:"index"`
	Reasoning string `json:"reasoning,omitempty"`
}

// QuantityEstimate is the quantity-estimation collaborator's answer when
// deterministic unit conversion is impossible.
type QuantityEstimate struct {
	UnitsNeeded  int     `json:"unitsNeeded"`
	ActualAmount float64 `json:"actualAmount"`
	ActualUnit   Unit    `json:"actualUnit"`
	Reasoning    string  `json:"reasoning"`
}
