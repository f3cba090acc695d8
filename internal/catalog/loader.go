package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cartmatch/backend/internal/domain"
)

// validationSampleSize is how many leading records are structurally
// checked before the catalog is accepted.
const validationSampleSize = 5

// rawProduct mirrors domain.Product with pointer fields so missing keys
// can be told apart from zero values during validation.
type rawProduct struct {
	Category *string  `json:"category"`
	Title    *string  `json:"title"`
	Price    *float64 `json:"price"`
	Volume   *string  `json:"volume"`
	URL      *string  `json:"url"`
}

// Load reads a product catalog from a JSON file. A malformed catalog fails
// closed: any structural problem in the sample prefix rejects the whole
// file, and an empty catalog is an error, never a silently empty engine.
func Load(path string) ([]domain.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a JSON catalog.
func Parse(data []byte) ([]domain.Product, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: not a JSON array: %v", domain.ErrInvalidCatalog, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no products", domain.ErrInvalidCatalog)
	}

	sample := len(records)
	if sample > validationSampleSize {
		sample = validationSampleSize
	}
	for i := 0; i < sample; i++ {
		if err := validateRecord(records[i]); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", domain.ErrInvalidCatalog, i, err)
		}
	}

	products := make([]domain.Product, 0, len(records))
	for i, rec := range records {
		var p domain.Product
		if err := json.Unmarshal(rec, &p); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", domain.ErrInvalidCatalog, i, err)
		}
		products = append(products, p)
	}

	return products, nil
}

// validateRecord checks field presence and types on a single record.
func validateRecord(rec json.RawMessage) error {
	var raw rawProduct
	if err := json.Unmarshal(rec, &raw); err != nil {
		return err
	}
	if raw.Category == nil || *raw.Category == "" {
		return fmt.Errorf("missing category")
	}
	if raw.Title == nil || *raw.Title == "" {
		return fmt.Errorf("missing title")
	}
	if raw.Price == nil {
		return fmt.Errorf("missing price")
	}
	if *raw.Price < 0 {
		return fmt.Errorf("negative price")
	}
	if raw.Volume == nil {
		return fmt.Errorf("missing volume")
	}
	if raw.URL == nil {
		return fmt.Errorf("missing url")
	}
	return nil
}
