package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cartmatch/backend/internal/domain"
)

// Per-tier search thresholds and term bounds.
const (
	tier1Threshold = 0.8
	tier2Threshold = 0.5
	tier3Threshold = 0.3

	tier1MaxTerms = 6
	tier2MaxTerms = 6
	tier3MaxTerms = 4
)

// Tier escalation: tier2 runs only when tier1 under-produces, tier3 only
// when the cumulative candidate count is still too small.
const (
	tier2EscalationCount = 5
	tier3EscalationCount = 3
)

// Tier score multipliers.
const (
	tier1Multiplier = 3.0
	tier2Multiplier = 1.5
	tier3Multiplier = 0.8
)

// Keyword-scoring weights for the tier passes.
const (
	keywordExactWeight     = 2.0
	keywordCompoundWeight  = 1.5
	keywordSubstringWeight = 1.0
)

// Attribute and size bonuses applied on top of the tier score.
const (
	attributeStrongBonus = 1.0 // organic, whole-grain, firmness matches
	attributeFreshBonus  = 0.5
	sizeFitBonus         = 0.5
	sizeMismatchPenalty  = -1.0
	sizeFitRatioLow      = 0.5
	sizeFitRatioHigh     = 2.0
	sizeMismatchRatio    = 10.0
)

// titleDedupeJaccard collapses candidates with near-identical titles.
const titleDedupeJaccard = 0.8

// rerankShortlistMin is the candidate count above which the quality
// reranker is consulted; rerankShortlistMax bounds the shortlist sent out.
const (
	rerankShortlistMin = 10
	rerankShortlistMax = 10
)

// estimatedConfidenceFactor discounts the confidence of matches whose
// quantity was estimated rather than computed.
const estimatedConfidenceFactor = 0.75

// confidenceScale maps a tier score onto [0,1] confidence. A single exact
// keyword hit at tier 1 with both bonuses lands near the top of the scale.
const confidenceScale = 6.0

// Config holds the engine's tunable knobs. Zero values take defaults.
type Config struct {
	FuzzyMinThreshold  float64 // fuzzy gate, default 0.3
	DiversityFactor    float64 // repeat-brand/category penalty, default 0.3
	CacheTTL           time.Duration
	EnableDebugLogging bool
}

// Collaborators are the optional language-model services the engine
// consults. Any of them may be nil; the engine then uses its deterministic
// fallback for that stage.
type Collaborators struct {
	Parser     domain.ListParser
	Classifier domain.CategoryClassifier
	Terms      domain.TermGenerator
	Reranker   domain.QualityReranker
	Estimator  domain.QuantityEstimator
}

// Engine matches shopping-list items against a fixed product catalog. The
// catalog and index are read-only for the engine's lifetime, so concurrent
// queries against one instance are safe without synchronization.
type Engine struct {
	products []domain.Product
	idx      *Index
	cfg      Config
	collab   Collaborators
	cache    domain.CacheRepository
	cacheTTL time.Duration
}

// New builds an engine over a catalog. An empty catalog is the one fatal
// construction error: there is no implicit empty-catalog path.
func New(products []domain.Product, cache domain.CacheRepository, collab Collaborators, cfg Config) (*Engine, error) {
	if len(products) == 0 {
		return nil, domain.ErrInvalidCatalog
	}

	if cfg.FuzzyMinThreshold <= 0 {
		cfg.FuzzyMinThreshold = 0.3
	}
	if cfg.DiversityFactor <= 0 {
		cfg.DiversityFactor = 0.3
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}

	return &Engine{
		products: products,
		idx:      NewIndex(products),
		cfg:      cfg,
		collab:   collab,
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
	}, nil
}

// MatchList parses free shopping-list text and matches every item.
// Items are processed sequentially; cancelling the context abandons the
// in-flight item but already completed matches stay in the result.
func (e *Engine) MatchList(ctx context.Context, freeText string) (*domain.MatchResult, error) {
	if strings.TrimSpace(freeText) == "" {
		return nil, domain.ErrInvalidRequest
	}

	items := e.parseList(ctx, freeText)
	return e.MatchItems(ctx, items)
}

// MatchItems matches a pre-parsed list of shopping items.
func (e *Engine) MatchItems(ctx context.Context, items []domain.ShoppingItem) (*domain.MatchResult, error) {
	if len(items) == 0 {
		return nil, domain.ErrInvalidRequest
	}

	result := &domain.MatchResult{
		Matches:  []domain.Match{},
		NotFound: []domain.NotFoundItem{},
	}

	for _, item := range items {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		match, notFound := e.MatchItem(ctx, item)
		if match != nil {
			result.Matches = append(result.Matches, *match)
			result.TotalPrice = roundPrice(result.TotalPrice + match.TotalPrice)
		} else {
			result.NotFound = append(result.NotFound, *notFound)
		}
	}

	return result, nil
}

// MatchItem resolves one shopping item: classify, expand search terms, run
// the tiered search, rerank the shortlist, then compute the purchase
// quantity for the top candidate. The outcome is either a Match or a
// not-found record; degraded collaborator stages never abort the item.
func (e *Engine) MatchItem(ctx context.Context, item domain.ShoppingItem) (*domain.Match, *domain.NotFoundItem) {
	item = normalizeItem(item)
	if item.Name == "" {
		return nil, &domain.NotFoundItem{Item: item, Reason: "empty item name"}
	}

	if cached := e.cachedMatch(ctx, item); cached != nil {
		return cached, nil
	}

	categories := e.classify(ctx, item)
	terms := e.expandTerms(ctx, item)

	candidates := e.searchTiers(ctx, item, terms, categories)
	if len(candidates) == 0 {
		return nil, &domain.NotFoundItem{Item: item, Reason: "no candidates survived filtering"}
	}

	candidates = e.rerank(ctx, item, candidates)

	match, reason := e.resolveQuantity(ctx, item, candidates[0])
	if match == nil {
		return nil, &domain.NotFoundItem{Item: item, Reason: reason}
	}

	e.storeMatch(ctx, item, match)
	return match, nil
}

// searchTiers runs the escalating search passes. Results from all tiers
// accumulate; later tiers only run when earlier ones under-produce.
func (e *Engine) searchTiers(ctx context.Context, item domain.ShoppingItem, terms domain.SearchTerms, categories []string) []domain.Candidate {
	merged := make(map[int]domain.Candidate)

	e.searchTier(ctx, item, boundTerms(terms.Tier1, tier1MaxTerms), categories, tier1Threshold, tier1Multiplier, domain.TierSpecific, merged)
	if e.cfg.EnableDebugLogging {
		log.Printf("[TIER] %q: tier1 candidates=%d", item.Name, len(merged))
	}

	if len(merged) < tier2EscalationCount {
		e.searchTier(ctx, item, boundTerms(terms.Tier2, tier2MaxTerms), categories, tier2Threshold, tier2Multiplier, domain.TierCategory, merged)
		if e.cfg.EnableDebugLogging {
			log.Printf("[TIER] %q: after tier2 candidates=%d", item.Name, len(merged))
		}
	}

	if len(merged) < tier3EscalationCount {
		e.searchTier(ctx, item, boundTerms(terms.Tier3, tier3MaxTerms), categories, tier3Threshold, tier3Multiplier, domain.TierAlternative, merged)
		if e.cfg.EnableDebugLogging {
			log.Printf("[TIER] %q: after tier3 candidates=%d", item.Name, len(merged))
		}
	}

	candidates := make([]domain.Candidate, 0, len(merged))
	for _, c := range merged {
		candidates = append(candidates, c)
	}

	candidates = e.dedupeByTitle(candidates)

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})

	return candidates
}

// searchTier runs one search pass: each term goes through the retrieval
// and fusion pipeline, survivors are gated by category-aware keyword
// scoring against the tier threshold, and admitted candidates get the tier
// multiplier plus attribute and size bonuses.
func (e *Engine) searchTier(ctx context.Context, item domain.ShoppingItem, terms []string, categories []string, threshold, multiplier float64, tier domain.Tier, merged map[int]domain.Candidate) {
	for _, term := range terms {
		select {
		case <-ctx.Done():
			return
		default:
		}

		retrieved := e.rankCandidates(term, categories, e.retrieveCandidates(term, categories))

		for _, c := range retrieved {
			kw := e.keywordScore(term, c.Index)
			if kw < threshold {
				continue
			}

			score := kw*multiplier +
				e.attributeBonus(item, c.Index) +
				e.sizeBonus(item, c.Product)

			existing, ok := merged[c.Index]
			if ok && existing.Score >= score {
				continue
			}

			c.Score = score
			c.Tier = tier
			c.Breakdown.Final = score
			merged[c.Index] = c
		}
	}
}

// keywordScore scores one search term against a document: exact word
// matches weigh 2.0, containment inside a compound word 1.5, plain
// substring presence 1.0, summed over the term's words. Summing keeps a
// solid hit above the tier thresholds no matter how many extra words the
// term carries.
func (e *Engine) keywordScore(term string, docIdx int) float64 {
	words := tokenize(term)
	if len(words) == 0 {
		return 0
	}

	docText := e.idx.DocText(docIdx)

	var sum float64
	for _, word := range words {
		switch {
		case e.idx.HasTerm(docIdx, word):
			sum += keywordExactWeight
		case containsCompound(docText, word):
			sum += keywordCompoundWeight
		case strings.Contains(docText, word):
			sum += keywordSubstringWeight
		}
	}

	return sum
}

// containsCompound reports whether word appears inside a longer document
// token, e.g. "tofu" inside "räuchertofu".
func containsCompound(docText, word string) bool {
	for _, tok := range strings.Fields(docText) {
		if len(tok) > len(word) && strings.Contains(tok, word) {
			return true
		}
	}
	return false
}

// strongAttributeTerms trigger the full attribute bonus.
var strongAttributeTerms = map[string]bool{
	"bio": true, "organic": true,
	"vollkorn": true, "wholegrain": true,
	"fest": true, "firm": true,
}

// freshAttributeTerms trigger the smaller freshness bonus.
var freshAttributeTerms = map[string]bool{
	"frisch": true, "fresh": true,
}

// attributeBonus rewards products matching the item's requested
// attributes: organic/whole-grain/firmness matches weigh 1.0, freshness 0.5.
func (e *Engine) attributeBonus(item domain.ShoppingItem, docIdx int) float64 {
	docText := e.idx.DocText(docIdx)

	var bonus float64
	for _, attr := range item.Attributes {
		attrLower := strings.ToLower(strings.TrimSpace(attr))
		if attrLower == "" || !strings.Contains(docText, attrLower) {
			continue
		}
		if strongAttributeTerms[attrLower] {
			bonus += attributeStrongBonus
		} else if freshAttributeTerms[attrLower] {
			bonus += attributeFreshBonus
		}
	}

	return bonus
}

// sizeBonus rates how well a product's package size fits the requested
// amount: a ratio within [0.5, 2.0] earns a bonus, a package more than ten
// times off is penalized. Items without comparable units stay neutral.
func (e *Engine) sizeBonus(item domain.ShoppingItem, product *domain.Product) float64 {
	if item.Amount <= 0 {
		return 0
	}

	pack := ParseVolume(product.Volume)
	if pack == nil {
		return 0
	}

	target, ok := ConvertToComparable(item.Amount, item.Unit)
	if !ok {
		return 0
	}
	packSize, ok := ConvertToComparable(pack.Amount, pack.Unit)
	if !ok || packSize == 0 {
		return 0
	}

	ratio := target / packSize

	switch {
	case ratio >= sizeFitRatioLow && ratio <= sizeFitRatioHigh:
		return sizeFitBonus
	case ratio > sizeMismatchRatio || 1/ratio > sizeMismatchRatio:
		return sizeMismatchPenalty
	default:
		return 0
	}
}

// dedupeByTitle collapses candidates whose titles are near-identical
// (token Jaccard above the dedupe threshold), keeping the higher score.
func (e *Engine) dedupeByTitle(candidates []domain.Candidate) []domain.Candidate {
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})

	kept := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		duplicate := false
		for _, k := range kept {
			if TokenJaccard(c.Product.Title, k.Product.Title) > titleDedupeJaccard {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, c)
		}
	}
	return kept
}

// rerank consults the quality reranker when the candidate list is long
// enough to benefit. A failing or absent reranker is not an error: the
// locally fused ranking is used unchanged.
func (e *Engine) rerank(ctx context.Context, item domain.ShoppingItem, candidates []domain.Candidate) []domain.Candidate {
	if e.collab.Reranker == nil || len(candidates) <= rerankShortlistMin {
		return candidates
	}

	shortlist := candidates
	if len(shortlist) > rerankShortlistMax {
		shortlist = shortlist[:rerankShortlistMax]
	}

	refs, err := e.collab.Reranker.Rerank(ctx, item, shortlist)
	if err != nil || len(refs) == 0 {
		if e.cfg.EnableDebugLogging {
			log.Printf("[TIER] %q: reranker unavailable, keeping local order: %v", item.Name, err)
		}
		return candidates
	}

	reordered := make([]domain.Candidate, 0, len(refs))
	seen := make(map[int]bool)
	for _, ref := range refs {
		if ref.Index < 0 || ref.Index >= len(shortlist) || seen[ref.Index] {
			continue
		}
		seen[ref.Index] = true
		reordered = append(reordered, shortlist[ref.Index])
	}

	if len(reordered) == 0 {
		return candidates
	}
	return reordered
}

// resolveQuantity computes the purchase quantity for the chosen candidate.
// Deterministic unit conversion is tried first; when units are not
// comparable the quantity estimator takes over, marking the match ai_smart
// with discounted confidence. Returns (nil, reason) if both modes fail.
func (e *Engine) resolveQuantity(ctx context.Context, item domain.ShoppingItem, candidate domain.Candidate) (*domain.Match, string) {
	product := *candidate.Product
	confidence := confidenceFromScore(candidate.Score)

	targetAmount := item.Amount
	targetUnit := item.Unit
	if targetAmount <= 0 {
		targetAmount = 1
		targetUnit = domain.UnitPiece
	}

	pack := ParseVolume(product.Volume)
	if pack != nil {
		if units, ok := UnitsNeeded(targetAmount, targetUnit, pack.Amount, pack.Unit); ok {
			if units < 1 {
				units = 1
			}
			actualAmount, actualUnit := NormalizeAmount(float64(units)*pack.Amount, pack.Unit)
			return &domain.Match{
				Item:         item,
				Product:      product,
				UnitsNeeded:  units,
				ActualAmount: actualAmount,
				ActualUnit:   actualUnit,
				TotalPrice:   roundPrice(float64(units) * product.Price),
				Confidence:   confidence,
				Tier:         candidate.Tier,
				Reasoning:    fmt.Sprintf("%d x %s covers %g %s", units, product.Volume, targetAmount, targetUnit),
			}, ""
		}
	}

	if e.collab.Estimator == nil {
		return e.assumePackagePerPiece(item, candidate, targetAmount, targetUnit, pack, confidence,
			"units not comparable and no quantity estimator available")
	}

	estimate, err := e.collab.Estimator.Estimate(ctx, item, product)
	if err != nil || estimate.UnitsNeeded < 1 {
		if e.cfg.EnableDebugLogging {
			log.Printf("[QTY] %q: estimation failed: %v", item.Name, err)
		}
		return e.assumePackagePerPiece(item, candidate, targetAmount, targetUnit, pack, confidence,
			"quantity estimation failed")
	}

	actualAmount, actualUnit := NormalizeAmount(estimate.ActualAmount, estimate.ActualUnit)
	return &domain.Match{
		Item:         item,
		Product:      product,
		UnitsNeeded:  estimate.UnitsNeeded,
		ActualAmount: actualAmount,
		ActualUnit:   actualUnit,
		TotalPrice:   roundPrice(float64(estimate.UnitsNeeded) * product.Price),
		Confidence:   confidence * estimatedConfidenceFactor,
		Tier:         domain.TierAISmart,
		Reasoning:    estimate.Reasoning,
	}, ""
}

// assumePackagePerPiece is the degraded last resort when the estimator is
// unavailable: a piece-denominated request buys one package per requested
// piece. Requests by weight or volume against piece-denominated packs have
// no safe assumption and stay unresolved.
func (e *Engine) assumePackagePerPiece(item domain.ShoppingItem, candidate domain.Candidate, targetAmount float64, targetUnit domain.Unit, pack *domain.ParsedQuantity, confidence float64, reason string) (*domain.Match, string) {
	if targetUnit != domain.UnitPiece {
		return nil, reason
	}

	units := int(math.Ceil(targetAmount))
	if units < 1 {
		units = 1
	}

	actualAmount := float64(units)
	actualUnit := domain.UnitPiece
	if pack != nil {
		actualAmount, actualUnit = NormalizeAmount(float64(units)*pack.Amount, pack.Unit)
	}

	product := *candidate.Product
	return &domain.Match{
		Item:         item,
		Product:      product,
		UnitsNeeded:  units,
		ActualAmount: actualAmount,
		ActualUnit:   actualUnit,
		TotalPrice:   roundPrice(float64(units) * product.Price),
		Confidence:   confidence * estimatedConfidenceFactor,
		Tier:         candidate.Tier,
		Reasoning:    fmt.Sprintf("assuming one package per piece (%d x %s)", units, product.Volume),
	}, ""
}

// normalizeItem trims an item's text fields and defaults the unit.
func normalizeItem(item domain.ShoppingItem) domain.ShoppingItem {
	item.Name = strings.TrimSpace(item.Name)
	if item.RawText == "" {
		item.RawText = item.Name
	}
	if item.Unit == "" {
		item.Unit = domain.UnitPiece
	}
	return item
}

// boundTerms trims, dedupes and bounds a term list.
func boundTerms(terms []string, limit int) []string {
	seen := make(map[string]bool, len(terms))
	bounded := make([]string, 0, limit)
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" || seen[strings.ToLower(term)] {
			continue
		}
		seen[strings.ToLower(term)] = true
		bounded = append(bounded, term)
		if len(bounded) == limit {
			break
		}
	}
	return bounded
}

// confidenceFromScore maps a tier score onto [0,1].
func confidenceFromScore(score float64) float64 {
	confidence := score / confidenceScale
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}

// roundPrice rounds to the currency's minor unit.
func roundPrice(price float64) float64 {
	return math.Round(price*100) / 100
}
