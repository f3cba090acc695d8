package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cartmatch/backend/internal/domain"
)

// The five collaborator operations. Every prompt demands strict JSON so
// responses parse deterministically; a malformed response is an error the
// engine degrades around, never a crash.

const parseSystemPrompt = `You convert free-text shopping lists into structured items.
Respond with valid JSON only, no commentary:
{"items":[{"name":"base item name","amount":1,"unit":"g|kg|ml|l|piece","rawText":"original line","attributes":["bio"],"alternatives":["other name"],"itemType":"produce|dairy|meat|bakery|drink|staple|snack|other"}]}`

// Parse implements domain.ListParser.
func (c *Client) Parse(ctx context.Context, freeText string) ([]domain.ShoppingItem, error) {
	content, err := c.complete(ctx, parseSystemPrompt,
		fmt.Sprintf("Parse this shopping list:\n%s", freeText))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Items []domain.ShoppingItem `json:"items"`
	}
	if err := json.Unmarshal(extractJSON(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: unparsable list response: %v", domain.ErrLLMFailure, err)
	}
	if len(parsed.Items) == 0 {
		return nil, fmt.Errorf("%w: empty item list", domain.ErrLLMFailure)
	}
	return parsed.Items, nil
}

const classifySystemPrompt = `You assign grocery catalog categories. The closed category vocabulary is:
"Obst & Gemüse", "Fleisch & Fisch", "Milchprodukte", "Backwaren", "Getränke", "Grundnahrungsmittel", "Süßwaren & Snacks", "Tiefkühl", "Sonstiges".
Respond with valid JSON only: {"categories":["...","..."]} with one or two values from the vocabulary.`

// Classify implements domain.CategoryClassifier.
func (c *Client) Classify(ctx context.Context, item domain.ShoppingItem) ([]string, error) {
	content, err := c.complete(ctx, classifySystemPrompt,
		fmt.Sprintf("Item: %q (attributes: %s)", item.Name, strings.Join(item.Attributes, ", ")))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal(extractJSON(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: unparsable classification: %v", domain.ErrLLMFailure, err)
	}
	if len(parsed.Categories) == 0 {
		return nil, fmt.Errorf("%w: no categories returned", domain.ErrLLMFailure)
	}
	if len(parsed.Categories) > 2 {
		parsed.Categories = parsed.Categories[:2]
	}
	return parsed.Categories, nil
}

const expandSystemPrompt = `You generate search terms for matching a grocery item against a German product catalog.
Respond with valid JSON only:
{"tier1":["up to 6 specific terms: item name, native and anglicized spellings, attribute combinations"],
"tier2":["up to 6 broader category terms"],
"tier3":["up to 4 substitute terms"]}`

// Expand implements domain.TermGenerator.
func (c *Client) Expand(ctx context.Context, item domain.ShoppingItem) (domain.SearchTerms, error) {
	content, err := c.complete(ctx, expandSystemPrompt,
		fmt.Sprintf("Item: %q, attributes: %s, alternatives: %s",
			item.Name, strings.Join(item.Attributes, ", "), strings.Join(item.Alternatives, ", ")))
	if err != nil {
		return domain.SearchTerms{}, err
	}

	var terms domain.SearchTerms
	if err := json.Unmarshal(extractJSON(content), &terms); err != nil {
		return domain.SearchTerms{}, fmt.Errorf("%w: unparsable search terms: %v", domain.ErrLLMFailure, err)
	}
	return terms, nil
}

const rerankSystemPrompt = `You judge which catalog products best satisfy a shopping-list item.
Given a numbered shortlist, respond with valid JSON only:
{"ranked":[{"index":0,"reasoning":"why"}]} as an ordered subset of at most 10 shortlist indices, best first.`

// Rerank implements domain.QualityReranker.
func (c *Client) Rerank(ctx context.Context, item domain.ShoppingItem, shortlist []domain.Candidate) ([]domain.RankedRef, error) {
	var sb strings.Builder
	for i, cand := range shortlist {
		fmt.Fprintf(&sb, "%d: %s (%s, %s, %.2f EUR)\n",
			i, cand.Product.Title, cand.Product.Category, cand.Product.Volume, cand.Product.Price)
	}

	content, err := c.complete(ctx, rerankSystemPrompt,
		fmt.Sprintf("Item: %q (amount: %g %s)\nShortlist:\n%s", item.Name, item.Amount, item.Unit, sb.String()))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Ranked []domain.RankedRef `json:"ranked"`
	}
	if err := json.Unmarshal(extractJSON(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: unparsable rerank response: %v", domain.ErrLLMFailure, err)
	}
	if len(parsed.Ranked) > 10 {
		parsed.Ranked = parsed.Ranked[:10]
	}
	return parsed.Ranked, nil
}

const estimateSystemPrompt = `You estimate how many packages of a grocery product satisfy a requested quantity when units are not directly convertible (for example pieces requested by weight).
Respond with valid JSON only:
{"unitsNeeded":1,"actualAmount":500,"actualUnit":"g|kg|ml|l|piece","reasoning":"short explanation"}
unitsNeeded must be an integer of at least 1.`

// Estimate implements domain.QuantityEstimator.
func (c *Client) Estimate(ctx context.Context, item domain.ShoppingItem, product domain.Product) (domain.QuantityEstimate, error) {
	content, err := c.complete(ctx, estimateSystemPrompt,
		fmt.Sprintf("Requested: %g %s of %q.\nProduct: %q, package size %q, price %.2f EUR.",
			item.Amount, item.Unit, item.Name, product.Title, product.Volume, product.Price))
	if err != nil {
		return domain.QuantityEstimate{}, err
	}

	var estimate domain.QuantityEstimate
	if err := json.Unmarshal(extractJSON(content), &estimate); err != nil {
		return domain.QuantityEstimate{}, fmt.Errorf("%w: unparsable estimate: %v", domain.ErrLLMFailure, err)
	}
	if estimate.UnitsNeeded < 1 {
		return domain.QuantityEstimate{}, fmt.Errorf("%w: estimate below one unit", domain.ErrLLMFailure)
	}
	return estimate, nil
}

// extractJSON strips markdown code fences some models wrap around JSON.
func extractJSON(content string) []byte {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
	}
	return []byte(strings.TrimSpace(content))
}
