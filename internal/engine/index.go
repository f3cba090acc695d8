package engine

import (
	"math"
	"regexp"
	"strings"

	"github.com/cartmatch/backend/internal/domain"
)

// Package-level compiled regex pattern for performance
var nonWordRegex = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// tokenize splits a string into normalized lowercase tokens.
// Splits on non-word characters and drops tokens of length 1 or less.
func tokenize(s string) []string {
	words := nonWordRegex.Split(strings.ToLower(s), -1)

	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if len([]rune(word)) <= 1 {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// document is the indexed form of one catalog product.
type document struct {
	text     string
	termFreq map[string]int
	length   int
}

// Index is an inverted index with term-frequency and document-frequency
// tables over the full catalog. It is built once at construction and is
// read-only afterwards; concurrent queries need no synchronization.
// Rebuilding requires constructing a new engine.
type Index struct {
	products  []domain.Product
	docs      []document
	docFreq   map[string]int
	postings  map[string][]int
	totalDocs int
}

// NewIndex builds the lexical index over a catalog. The document string
// for each product is its title, category and volume text combined.
func NewIndex(products []domain.Product) *Index {
	idx := &Index{
		products:  products,
		docs:      make([]document, 0, len(products)),
		docFreq:   make(map[string]int),
		postings:  make(map[string][]int),
		totalDocs: len(products),
	}

	for i, p := range products {
		text := strings.ToLower(p.Title + " " + p.Category + " " + p.Volume)
		tokens := tokenize(text)

		termFreq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			termFreq[tok]++
		}

		for term := range termFreq {
			idx.docFreq[term]++
			idx.postings[term] = append(idx.postings[term], i)
		}

		idx.docs = append(idx.docs, document{
			text:     text,
			termFreq: termFreq,
			length:   len(tokens),
		})
	}

	return idx
}

// Products returns the catalog the index was built over.
func (idx *Index) Products() []domain.Product {
	return idx.products
}

// DocText returns the lowercase document string for a product.
func (idx *Index) DocText(i int) string {
	return idx.docs[i].text
}

// HasTerm reports whether a document contains the exact term.
func (idx *Index) HasTerm(i int, term string) bool {
	return idx.docs[i].termFreq[term] > 0
}

// Postings returns the indices of all documents containing the term.
func (idx *Index) Postings(term string) []int {
	return idx.postings[term]
}

// TFIDFScore scores a tokenized query against one document: term
// frequency normalized by document length times inverse document
// frequency, then length-normalized by 1/sqrt(docLength).
func (idx *Index) TFIDFScore(queryTokens []string, i int) float64 {
	doc := idx.docs[i]
	if doc.length == 0 || len(queryTokens) == 0 {
		return 0
	}

	var score float64
	for _, term := range queryTokens {
		tf := doc.termFreq[term]
		if tf == 0 {
			continue
		}
		idf := math.Log(1.0 + float64(idx.totalDocs)/float64(1+idx.docFreq[term]))
		score += (float64(tf) / float64(doc.length)) * idf
	}

	score /= math.Sqrt(float64(doc.length))

	if score > 1 {
		score = 1
	}
	return score
}
