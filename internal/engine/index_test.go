package engine

import (
	"reflect"
	"strings"
	"testing"

	"github.com/cartmatch/backend/internal/domain"
)

func testCatalog() []domain.Product {
	return []domain.Product{
		{Category: "Fleisch & Fisch", Title: "Fester Tofu, 200g", Price: 1.49, Volume: "200g", URL: "https://shop.example/tofu"},
		{Category: "Milchprodukte", Title: "Bio Vollmilch 3,5%", Price: 1.19, Volume: "1l", URL: "https://shop.example/milch"},
		{Category: "Milchprodukte", Title: "Vollmilch haltbar", Price: 0.99, Volume: "1l", URL: "https://shop.example/hmilch"},
		{Category: "Backwaren", Title: "Vollkorn Toastbrot", Price: 1.79, Volume: "500g", URL: "https://shop.example/toast"},
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"Fester Tofu, 200g", []string{"fester", "tofu", "200g"}},
		{"Bio Vollmilch 3,5%", []string{"bio", "vollmilch"}},
		{"a b c", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got := tokenize(tt.input)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("tokenize(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewIndex_Postings(t *testing.T) {
	idx := NewIndex(testCatalog())

	postings := idx.Postings("vollmilch")
	if !reflect.DeepEqual(postings, []int{1, 2}) {
		t.Errorf("Postings(vollmilch) = %v, want [1 2]", postings)
	}

	if got := idx.Postings("kaviar"); len(got) != 0 {
		t.Errorf("Postings(unknown term) = %v, want empty", got)
	}

	if !idx.HasTerm(0, "tofu") {
		t.Error("HasTerm(0, tofu) = false, want true")
	}
	if idx.HasTerm(1, "tofu") {
		t.Error("HasTerm(1, tofu) = true, want false")
	}
}

func TestIndex_DocTextIncludesCategoryAndVolume(t *testing.T) {
	idx := NewIndex(testCatalog())

	text := idx.DocText(0)
	for _, part := range []string{"fester tofu", "fleisch & fisch", "200g"} {
		if !strings.Contains(text, part) {
			t.Errorf("DocText(0) = %q, missing %q", text, part)
		}
	}
}

func TestIndex_TFIDFScore(t *testing.T) {
	idx := NewIndex(testCatalog())
	query := tokenize("vollmilch")

	// A document containing the query term beats one that doesn't.
	hit := idx.TFIDFScore(query, 1)
	miss := idx.TFIDFScore(query, 0)
	if hit <= miss {
		t.Errorf("TFIDF hit=%g should exceed miss=%g", hit, miss)
	}
	if miss != 0 {
		t.Errorf("TFIDF score without term = %g, want 0", miss)
	}

	// Rare terms outweigh common ones: "tofu" appears once in the catalog,
	// "milchprodukte" twice.
	rare := idx.TFIDFScore(tokenize("tofu"), 0)
	common := idx.TFIDFScore(tokenize("milchprodukte"), 1)
	if rare <= 0 || common <= 0 {
		t.Fatalf("expected positive scores, got rare=%g common=%g", rare, common)
	}

	if got := idx.TFIDFScore(nil, 0); got != 0 {
		t.Errorf("TFIDF with empty query = %g, want 0", got)
	}
}
