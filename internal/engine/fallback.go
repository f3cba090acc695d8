package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/cartmatch/backend/internal/domain"
)

// Deterministic fallbacks for the collaborator stages. Each wrapper below
// tries its collaborator first and degrades to the rule-based path when
// the collaborator is absent or fails; degradation skips enhancement, it
// never aborts the item.

// defaultCategoryPair is the last resort when no category rule applies.
var defaultCategoryPair = []string{"Obst & Gemüse", "Sonstiges"}

// keywordCategories maps item keywords onto catalog categories.
var keywordCategories = map[string]string{
	"tofu": "Fleisch & Fisch", "fleisch": "Fleisch & Fisch", "wurst": "Fleisch & Fisch",
	"hähnchen": "Fleisch & Fisch", "huhn": "Fleisch & Fisch", "fisch": "Fleisch & Fisch",
	"lachs": "Fleisch & Fisch", "schinken": "Fleisch & Fisch", "hackfleisch": "Fleisch & Fisch",
	"milch": "Milchprodukte", "joghurt": "Milchprodukte", "käse": "Milchprodukte",
	"quark": "Milchprodukte", "butter": "Milchprodukte", "sahne": "Milchprodukte",
	"brot": "Backwaren", "brötchen": "Backwaren", "semmel": "Backwaren", "toast": "Backwaren",
	"apfel": "Obst & Gemüse", "banane": "Obst & Gemüse", "tomate": "Obst & Gemüse",
	"gurke": "Obst & Gemüse", "salat": "Obst & Gemüse", "zwiebel": "Obst & Gemüse",
	"kartoffel": "Obst & Gemüse", "paprika": "Obst & Gemüse", "obst": "Obst & Gemüse",
	"wasser": "Getränke", "saft": "Getränke", "cola": "Getränke", "bier": "Getränke",
	"kaffee": "Getränke", "tee": "Getränke",
	"mehl": "Grundnahrungsmittel", "zucker": "Grundnahrungsmittel", "reis": "Grundnahrungsmittel",
	"nudeln": "Grundnahrungsmittel", "salz": "Grundnahrungsmittel", "öl": "Grundnahrungsmittel",
	"schokolade": "Süßwaren & Snacks", "chips": "Süßwaren & Snacks", "keks": "Süßwaren & Snacks",
}

// itemTypeCategories maps item-type classifications onto default categories.
var itemTypeCategories = map[string][]string{
	"produce": {"Obst & Gemüse"},
	"dairy":   {"Milchprodukte"},
	"meat":    {"Fleisch & Fisch"},
	"bakery":  {"Backwaren"},
	"drink":   {"Getränke"},
	"staple":  {"Grundnahrungsmittel"},
	"snack":   {"Süßwaren & Snacks"},
}

// parseList turns free text into shopping items, falling back to a naive
// line splitter when the list parser is unavailable.
func (e *Engine) parseList(ctx context.Context, freeText string) []domain.ShoppingItem {
	if e.collab.Parser != nil {
		items, err := e.collab.Parser.Parse(ctx, freeText)
		if err == nil && len(items) > 0 {
			return items
		}
		if e.cfg.EnableDebugLogging {
			log.Printf("[LLM] list parser unavailable, using line split: %v", err)
		}
	}
	return LineSplitParse(freeText)
}

// LineSplitParse is the degraded list parser: each non-empty line is one
// item, quantity 1 piece. Leading list markers are stripped.
func LineSplitParse(freeText string) []domain.ShoppingItem {
	var items []domain.ShoppingItem
	for _, line := range strings.Split(freeText, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• \t")
		if line == "" {
			continue
		}
		items = append(items, domain.ShoppingItem{
			Name:    line,
			Amount:  1,
			Unit:    domain.UnitPiece,
			RawText: line,
		})
	}
	return items
}

// classify resolves the item's target category set: collaborator first,
// then the static keyword table, then item-type defaults, then the
// hard-coded default pair.
func (e *Engine) classify(ctx context.Context, item domain.ShoppingItem) []string {
	if e.collab.Classifier != nil {
		categories, err := e.collab.Classifier.Classify(ctx, item)
		if err == nil && len(categories) > 0 {
			if len(categories) > 2 {
				categories = categories[:2]
			}
			return categories
		}
		if e.cfg.EnableDebugLogging {
			log.Printf("[LLM] classifier unavailable for %q: %v", item.Name, err)
		}
	}
	return FallbackCategories(item)
}

// FallbackCategories is the deterministic category chain.
func FallbackCategories(item domain.ShoppingItem) []string {
	names := append([]string{item.Name}, item.Alternatives...)
	for _, name := range names {
		for _, tok := range tokenize(name) {
			if category, ok := keywordCategories[tok]; ok {
				return []string{category}
			}
		}
	}

	if categories, ok := itemTypeCategories[strings.ToLower(item.ItemType)]; ok {
		return categories
	}

	return defaultCategoryPair
}

// expandTerms resolves the per-tier search terms: collaborator first, then
// the rule-based generator. Bounds are enforced either way.
func (e *Engine) expandTerms(ctx context.Context, item domain.ShoppingItem) domain.SearchTerms {
	if e.collab.Terms != nil {
		terms, err := e.collab.Terms.Expand(ctx, item)
		if err == nil && len(terms.Tier1) > 0 {
			return boundSearchTerms(terms)
		}
		if e.cfg.EnableDebugLogging {
			log.Printf("[LLM] term generator unavailable for %q: %v", item.Name, err)
		}
	}
	return RuleBasedTerms(item)
}

// RuleBasedTerms is the deterministic term generator: the base phrase with
// attribute combinations and umlaut-folded spellings at tier 1, single
// words and reversed word order at tier 2, alternative names at tier 3.
func RuleBasedTerms(item domain.ShoppingItem) domain.SearchTerms {
	base := NormalizeQuery(item.Name)

	terms := domain.SearchTerms{}

	terms.Tier1 = append(terms.Tier1, base)
	for _, attr := range item.Attributes {
		terms.Tier1 = append(terms.Tier1, NormalizeQuery(attr+" "+base))
	}
	if folded := FoldUmlauts(base); folded != base {
		terms.Tier1 = append(terms.Tier1, folded)
	}
	if stripped := StripDiacritics(base); stripped != base {
		terms.Tier1 = append(terms.Tier1, stripped)
	}

	words := strings.Fields(base)
	terms.Tier2 = append(terms.Tier2, words...)
	if len(words) > 1 {
		reversed := make([]string, len(words))
		for i, w := range words {
			reversed[len(words)-1-i] = w
		}
		terms.Tier2 = append(terms.Tier2, strings.Join(reversed, " "))
	}

	for _, alt := range item.Alternatives {
		terms.Tier3 = append(terms.Tier3, NormalizeQuery(alt))
	}

	return boundSearchTerms(terms)
}

// boundSearchTerms enforces the 6/6/4 per-tier term bounds.
func boundSearchTerms(terms domain.SearchTerms) domain.SearchTerms {
	return domain.SearchTerms{
		Tier1: boundTerms(terms.Tier1, tier1MaxTerms),
		Tier2: boundTerms(terms.Tier2, tier2MaxTerms),
		Tier3: boundTerms(terms.Tier3, tier3MaxTerms),
	}
}

// matchCacheKey builds a normalized cache key for an item.
func matchCacheKey(item domain.ShoppingItem) string {
	return fmt.Sprintf("match:%s:%g:%s", NormalizeQuery(item.Name), item.Amount, item.Unit)
}

// cachedMatch returns a previously resolved match for an equivalent item.
// Cache problems are non-fatal; a miss just means full resolution.
func (e *Engine) cachedMatch(ctx context.Context, item domain.ShoppingItem) *domain.Match {
	if e.cache == nil {
		return nil
	}

	value, err := e.cache.Get(ctx, matchCacheKey(item))
	if err != nil {
		return nil
	}

	raw, ok := value.(string)
	if !ok {
		return nil
	}

	var match domain.Match
	if err := json.Unmarshal([]byte(raw), &match); err != nil {
		return nil
	}
	match.Item = item
	return &match
}

// storeMatch caches a completed match. Failures are logged, not returned.
func (e *Engine) storeMatch(ctx context.Context, item domain.ShoppingItem, match *domain.Match) {
	if e.cache == nil {
		return
	}

	raw, err := json.Marshal(match)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, matchCacheKey(item), string(raw), e.cacheTTL); err != nil && e.cfg.EnableDebugLogging {
		log.Printf("[MATCH] cache store failed for %q: %v", item.Name, err)
	}
}
