package domain

import (
	"context"
	"time"
)

// The interfaces below form the collaborator boundary: services the engine
// consumes but does not implement. Every collaborator is optional at
// runtime: each has a deterministic fallback in the engine, so a failing
// or absent implementation degrades matching quality without aborting it.

// ListParser turns free shopping-list text into normalized items.
type ListParser interface {
	Parse(ctx context.Context, freeText string) ([]ShoppingItem, error)
}

// CategoryClassifier assigns one or two catalog categories to an item,
// drawn from a fixed closed category vocabulary.
type CategoryClassifier interface {
	Classify(ctx context.Context, item ShoppingItem) ([]string, error)
}

// TermGenerator expands an item into per-tier search terms.
type TermGenerator interface {
	Expand(ctx context.Context, item ShoppingItem) (SearchTerms, error)
}

// QualityReranker reorders and prunes a candidate shortlist. The returned
// refs index into the shortlist that was passed in.
type QualityReranker interface {
	Rerank(ctx context.Context, item ShoppingItem, shortlist []Candidate) ([]RankedRef, error)
}

// QuantityEstimator resolves the purchase quantity when deterministic unit
// conversion is impossible (e.g. a piece-denominated product needed in grams).
type QuantityEstimator interface {
	Estimate(ctx context.Context, item ShoppingItem, product Product) (QuantityEstimate, error)
}

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
