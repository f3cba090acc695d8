package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/cartmatch/backend/internal/domain"
)

type stubEstimator struct {
	estimate domain.QuantityEstimate
	err      error
	calls    int
}

func (s *stubEstimator) Estimate(ctx context.Context, item domain.ShoppingItem, product domain.Product) (domain.QuantityEstimate, error) {
	s.calls++
	return s.estimate, s.err
}

type capturingReranker struct {
	shortlist []domain.Candidate
	refs      []domain.RankedRef
	err       error
}

func (r *capturingReranker) Rerank(ctx context.Context, item domain.ShoppingItem, shortlist []domain.Candidate) ([]domain.RankedRef, error) {
	r.shortlist = shortlist
	return r.refs, r.err
}

type fakeCache struct {
	values map[string]interface{}
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]interface{})}
}

func (c *fakeCache) Get(ctx context.Context, key string) (interface{}, error) {
	value, ok := c.values[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return value, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.values[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	delete(c.values, key)
	return nil
}

func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := c.values[key]
	return ok, nil
}

func TestNew_EmptyCatalog(t *testing.T) {
	if _, err := New(nil, nil, Collaborators{}, Config{}); !errors.Is(err, domain.ErrInvalidCatalog) {
		t.Errorf("New(empty catalog) error = %v, want ErrInvalidCatalog", err)
	}
}

func TestMatchList_BlankText(t *testing.T) {
	e := newTestEngine(t, testCatalog())

	if _, err := e.MatchList(context.Background(), "   \n  "); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("MatchList(blank) error = %v, want ErrInvalidRequest", err)
	}
}

func TestMatchItem_FirmTofu(t *testing.T) {
	e := newTestEngine(t, testCatalog())

	item := domain.ShoppingItem{Name: "firm tofu", Amount: 1, Unit: domain.UnitPiece}
	match, notFound := e.MatchItem(context.Background(), item)
	if match == nil {
		t.Fatalf("MatchItem(firm tofu) not found: %+v", notFound)
	}

	if match.Product.Title != "Fester Tofu, 200g" {
		t.Errorf("matched %q, want the tofu product", match.Product.Title)
	}
	if match.UnitsNeeded != 1 {
		t.Errorf("UnitsNeeded = %d, want 1", match.UnitsNeeded)
	}
	if match.TotalPrice != 1.49 {
		t.Errorf("TotalPrice = %g, want 1.49", match.TotalPrice)
	}
	if match.Tier != domain.TierSpecific {
		t.Errorf("Tier = %q, want %q", match.Tier, domain.TierSpecific)
	}
	if match.ActualAmount != 200 || match.ActualUnit != domain.UnitGram {
		t.Errorf("actual quantity = %g %s, want 200 g", match.ActualAmount, match.ActualUnit)
	}
	// One package per requested piece carries the estimation discount.
	if match.Confidence <= 0 || match.Confidence >= 1 {
		t.Errorf("Confidence = %g, want within (0,1)", match.Confidence)
	}
}

func TestMatchItem_WeightConversion(t *testing.T) {
	e := newTestEngine(t, []domain.Product{
		{Category: "Fleisch & Fisch", Title: "Tofu Natur", Price: 2.29, Volume: "500g"},
	})

	item := domain.ShoppingItem{Name: "tofu", Amount: 650, Unit: domain.UnitGram}
	match, notFound := e.MatchItem(context.Background(), item)
	if match == nil {
		t.Fatalf("MatchItem(650g tofu) not found: %+v", notFound)
	}

	if match.UnitsNeeded != 2 {
		t.Errorf("UnitsNeeded = %d, want 2 (650g over 500g packs)", match.UnitsNeeded)
	}
	if match.ActualAmount != 1 || match.ActualUnit != domain.UnitKilogram {
		t.Errorf("actual quantity = %g %s, want 1 kg", match.ActualAmount, match.ActualUnit)
	}
	if match.TotalPrice != 4.58 {
		t.Errorf("TotalPrice = %g, want 4.58", match.TotalPrice)
	}
	if match.Tier != domain.TierSpecific {
		t.Errorf("Tier = %q, want %q", match.Tier, domain.TierSpecific)
	}
}

func TestMatchItems_TotalPriceIsSum(t *testing.T) {
	e := newTestEngine(t, []domain.Product{
		{Category: "Fleisch & Fisch", Title: "Tofu Natur", Price: 2.29, Volume: "500g"},
		{Category: "Milchprodukte", Title: "Vollmilch 3,5%", Price: 1.19, Volume: "1l"},
	})

	items := []domain.ShoppingItem{
		{Name: "tofu", Amount: 650, Unit: domain.UnitGram},
		{Name: "milch", Amount: 1, Unit: domain.UnitLiter},
	}

	result, err := e.MatchItems(context.Background(), items)
	if err != nil {
		t.Fatalf("MatchItems() error = %v", err)
	}
	if len(result.Matches) != 2 {
		t.Fatalf("got %d matches (notFound: %+v), want 2", len(result.Matches), result.NotFound)
	}

	var sum float64
	for _, m := range result.Matches {
		sum += m.TotalPrice
	}
	if math.Abs(result.TotalPrice-roundPrice(sum)) > 1e-9 {
		t.Errorf("TotalPrice = %g, want exact sum %g", result.TotalPrice, roundPrice(sum))
	}
	if result.TotalPrice != 5.77 {
		t.Errorf("TotalPrice = %g, want 5.77", result.TotalPrice)
	}
}

func TestMatchItems_ContextCancelled(t *testing.T) {
	e := newTestEngine(t, testCatalog())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.MatchItems(ctx, []domain.ShoppingItem{{Name: "tofu", Amount: 1, Unit: domain.UnitPiece}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("MatchItems(cancelled) error = %v, want context.Canceled", err)
	}
	if result == nil {
		t.Fatal("cancelled MatchItems returned nil result, want partial result")
	}
	if len(result.Matches) != 0 {
		t.Errorf("cancelled before first item but got %d matches", len(result.Matches))
	}
}

func TestMatchItem_MislabeledCategoryMatch(t *testing.T) {
	// An exact-title product filed under the wrong catalog category is
	// still matchable: the quality filter tolerates high-scoring
	// out-of-category entries as likely mislabeled rows.
	e := newTestEngine(t, []domain.Product{
		{Category: "Sonstiges", Title: "Bio Tofu Natur, 200g", Price: 2.49, Volume: "200g"},
		{Category: "Fleisch & Fisch", Title: "Hähnchenbrustfilet", Price: 4.99, Volume: "400g"},
		{Category: "Milchprodukte", Title: "Bio Vollmilch 3,5%", Price: 1.19, Volume: "1l"},
	})

	item := domain.ShoppingItem{Name: "bio tofu natur", Amount: 1, Unit: domain.UnitPiece}
	match, notFound := e.MatchItem(context.Background(), item)
	if match == nil {
		t.Fatalf("MatchItem(mislabeled product) not found: %+v", notFound)
	}
	if match.Product.Title != "Bio Tofu Natur, 200g" {
		t.Errorf("matched %q, want the mislabeled product", match.Product.Title)
	}
}

func TestMatchItem_NotFound(t *testing.T) {
	e := newTestEngine(t, testCatalog())

	match, notFound := e.MatchItem(context.Background(), domain.ShoppingItem{Name: "zzyzx", Amount: 1, Unit: domain.UnitPiece})
	if match != nil {
		t.Fatalf("MatchItem(nonsense) = %+v, want not found", match)
	}
	if notFound == nil || notFound.Reason == "" {
		t.Errorf("notFound = %+v, want a populated reason", notFound)
	}
}

func TestMatchItem_EstimatorResolvesIncomparableUnits(t *testing.T) {
	estimator := &stubEstimator{
		estimate: domain.QuantityEstimate{
			UnitsNeeded:  2,
			ActualAmount: 400,
			ActualUnit:   domain.UnitGram,
			Reasoning:    "two blocks cover 300g",
		},
	}
	products := []domain.Product{
		{Category: "Fleisch & Fisch", Title: "Tofu im Stück", Price: 1.99, Volume: "1 stk"},
	}
	e, err := New(products, nil, Collaborators{Estimator: estimator}, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	item := domain.ShoppingItem{Name: "tofu", Amount: 300, Unit: domain.UnitGram}
	match, notFound := e.MatchItem(context.Background(), item)
	if match == nil {
		t.Fatalf("MatchItem() not found: %+v", notFound)
	}

	if estimator.calls != 1 {
		t.Errorf("estimator called %d times, want 1", estimator.calls)
	}
	if match.Tier != domain.TierAISmart {
		t.Errorf("Tier = %q, want %q", match.Tier, domain.TierAISmart)
	}
	if match.UnitsNeeded != 2 {
		t.Errorf("UnitsNeeded = %d, want 2", match.UnitsNeeded)
	}
	if match.ActualAmount != 400 || match.ActualUnit != domain.UnitGram {
		t.Errorf("actual quantity = %g %s, want 400 g", match.ActualAmount, match.ActualUnit)
	}
	if match.TotalPrice != 3.98 {
		t.Errorf("TotalPrice = %g, want 3.98", match.TotalPrice)
	}
	if match.Reasoning != "two blocks cover 300g" {
		t.Errorf("Reasoning = %q, want the estimator's reasoning", match.Reasoning)
	}
}

func TestMatchItem_EstimatorFailureWithoutFallback(t *testing.T) {
	estimator := &stubEstimator{err: domain.ErrLLMFailure}
	products := []domain.Product{
		{Category: "Fleisch & Fisch", Title: "Tofu im Stück", Price: 1.99, Volume: "1 stk"},
	}
	e, err := New(products, nil, Collaborators{Estimator: estimator}, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// A request by weight against a piece-denominated pack has no safe
	// assumption left once estimation fails.
	item := domain.ShoppingItem{Name: "tofu", Amount: 300, Unit: domain.UnitGram}
	match, notFound := e.MatchItem(context.Background(), item)
	if match != nil {
		t.Fatalf("MatchItem() = %+v, want not found", match)
	}
	if notFound == nil || notFound.Reason == "" {
		t.Error("want a populated not-found reason")
	}
}

func rerankCatalog() []domain.Product {
	flavors := []string{"Natur", "Geräuchert", "Basilikum", "Mandel", "Curry", "Paprika", "Oliven", "Kräuter", "Chili", "Sesam", "Ingwer", "Tomate"}
	products := make([]domain.Product, 0, len(flavors))
	for i, flavor := range flavors {
		products = append(products, domain.Product{
			Category: "Fleisch & Fisch",
			Title:    fmt.Sprintf("Tofu %s", flavor),
			Price:    1.99 + float64(i)*0.1,
			Volume:   "200g",
		})
	}
	return products
}

func TestMatchItem_RerankerPicksTopCandidate(t *testing.T) {
	reranker := &capturingReranker{refs: []domain.RankedRef{{Index: 5, Reasoning: "best quality"}}}
	e, err := New(rerankCatalog(), nil, Collaborators{Reranker: reranker}, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	item := domain.ShoppingItem{Name: "tofu", Amount: 1, Unit: domain.UnitPiece}
	match, notFound := e.MatchItem(context.Background(), item)
	if match == nil {
		t.Fatalf("MatchItem() not found: %+v", notFound)
	}

	if len(reranker.shortlist) != rerankShortlistMax {
		t.Fatalf("reranker saw %d candidates, want %d", len(reranker.shortlist), rerankShortlistMax)
	}
	if match.Product.Title != reranker.shortlist[5].Product.Title {
		t.Errorf("matched %q, want reranker pick %q", match.Product.Title, reranker.shortlist[5].Product.Title)
	}
}

func TestMatchItem_RerankerFailureKeepsLocalOrder(t *testing.T) {
	reranker := &capturingReranker{err: domain.ErrLLMFailure}
	e, err := New(rerankCatalog(), nil, Collaborators{Reranker: reranker}, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	item := domain.ShoppingItem{Name: "tofu", Amount: 1, Unit: domain.UnitPiece}
	match, notFound := e.MatchItem(context.Background(), item)
	if match == nil {
		t.Fatalf("MatchItem() not found: %+v", notFound)
	}
	if match.Tier != domain.TierSpecific {
		t.Errorf("Tier = %q, want %q", match.Tier, domain.TierSpecific)
	}
}

func TestMatchItem_CacheHit(t *testing.T) {
	cache := newFakeCache()
	e, err := New(testCatalog(), cache, Collaborators{}, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	item := domain.ShoppingItem{Name: "tofu", Amount: 1, Unit: domain.UnitPiece}

	// Prime the cache with a match the catalog search would never produce.
	primed := domain.Match{
		Product:     domain.Product{Category: "Sonstiges", Title: "Cached Only", Price: 9.99, Volume: "1 stk"},
		UnitsNeeded: 1,
		TotalPrice:  9.99,
		Confidence:  0.9,
		Tier:        domain.TierSpecific,
	}
	raw, _ := json.Marshal(primed)
	cache.values[matchCacheKey(item)] = string(raw)

	match, notFound := e.MatchItem(context.Background(), item)
	if match == nil {
		t.Fatalf("MatchItem() not found: %+v", notFound)
	}
	if match.Product.Title != "Cached Only" {
		t.Errorf("matched %q, want the cached match", match.Product.Title)
	}
	if match.Item.Name != "tofu" {
		t.Errorf("cached match item = %+v, want the live request item", match.Item)
	}
}

func TestMatchItem_StoresResultInCache(t *testing.T) {
	cache := newFakeCache()
	e, err := New(testCatalog(), cache, Collaborators{}, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	item := domain.ShoppingItem{Name: "firm tofu", Amount: 1, Unit: domain.UnitPiece}
	if match, notFound := e.MatchItem(context.Background(), item); match == nil {
		t.Fatalf("MatchItem() not found: %+v", notFound)
	}

	if _, ok := cache.values[matchCacheKey(item)]; !ok {
		t.Error("completed match was not stored in the cache")
	}
}

func TestKeywordScore(t *testing.T) {
	e := newTestEngine(t, []domain.Product{
		{Category: "Fleisch & Fisch", Title: "Räuchertofu Classic", Volume: "200g", Price: 2.49},
	})

	tests := []struct {
		term string
		want float64
	}{
		{"classic", keywordExactWeight},
		{"tofu", keywordCompoundWeight}, // inside the compound "räuchertofu"
		{"fisch", keywordExactWeight},   // category text is indexed too
		{"tofu classic", keywordCompoundWeight + keywordExactWeight},
		{"wurst", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := e.keywordScore(tt.term, 0); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("keywordScore(%q) = %g, want %g", tt.term, got, tt.want)
		}
	}
}

func TestKeywordScore_MultiWordTermKeepsHitWeight(t *testing.T) {
	e := newTestEngine(t, []domain.Product{
		{Category: "Fleisch & Fisch", Title: "Tofu Natur", Volume: "200g", Price: 1.99},
	})

	// Word hits accumulate; extra non-matching words in a term must not
	// dilute a solid hit below the strictest tier threshold.
	got := e.keywordScore("frisch mariniert tof", 0)
	if got != keywordCompoundWeight {
		t.Errorf("keywordScore(three words, one compound hit) = %g, want %g", got, keywordCompoundWeight)
	}
	if got < tier1Threshold {
		t.Errorf("keywordScore = %g fell below the tier 1 threshold %g", got, tier1Threshold)
	}
}

func TestDedupeByTitle(t *testing.T) {
	e := newTestEngine(t, []domain.Product{
		{Category: "Milchprodukte", Title: "Bio Vollmilch 1l Flasche", Volume: "1l", Price: 1.49},
		{Category: "Milchprodukte", Title: "Bio Vollmilch 1l Flasche ", Volume: "1l", Price: 1.39},
		{Category: "Milchprodukte", Title: "Haltbare Magermilch", Volume: "1l", Price: 0.99},
	})

	candidates := []domain.Candidate{
		candidateFor(e, 0, 0.9),
		candidateFor(e, 1, 0.8),
		candidateFor(e, 2, 0.7),
	}

	kept := e.dedupeByTitle(candidates)
	if len(kept) != 2 {
		t.Fatalf("dedupeByTitle kept %d candidates, want 2", len(kept))
	}
	if kept[0].Index != 0 {
		t.Errorf("dedupe kept index %d first, want the higher-scoring duplicate", kept[0].Index)
	}
}

func TestBoundTerms(t *testing.T) {
	got := boundTerms([]string{" tofu ", "tofu", "TOFU", "", "milch", "brot", "käse"}, 3)
	want := []string{"tofu", "milch", "brot"}
	if len(got) != len(want) {
		t.Fatalf("boundTerms() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("boundTerms()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConfidenceFromScore(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{0, 0},
		{3.0, 0.5},
		{confidenceScale, 1.0},
		{confidenceScale * 2, 1.0},
		{-1, 0},
	}

	for _, tt := range tests {
		if got := confidenceFromScore(tt.score); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("confidenceFromScore(%g) = %g, want %g", tt.score, got, tt.want)
		}
	}
}
