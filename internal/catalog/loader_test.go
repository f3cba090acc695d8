package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cartmatch/backend/internal/domain"
)

const validCatalogJSON = `[
	{"category": "Fleisch & Fisch", "title": "Fester Tofu, 200g", "price": 1.49, "volume": "200g", "url": "https://shop.example/tofu"},
	{"category": "Milchprodukte", "title": "Bio Vollmilch", "price": 1.19, "volume": "1l", "url": "https://shop.example/milch"}
]`

func TestParse_Valid(t *testing.T) {
	products, err := Parse([]byte(validCatalogJSON))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("Parse() returned %d products, want 2", len(products))
	}
	want := domain.Product{
		Category: "Fleisch & Fisch",
		Title:    "Fester Tofu, 200g",
		Price:    1.49,
		Volume:   "200g",
		URL:      "https://shop.example/tofu",
	}
	if products[0] != want {
		t.Errorf("products[0] = %+v, want %+v", products[0], want)
	}
}

func TestParse_FailsClosed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not an array", `{"category": "x"}`},
		{"not JSON", `tofu`},
		{"empty array", `[]`},
		{"missing title", `[{"category": "Backwaren", "price": 1.0, "volume": "500g", "url": "u"}]`},
		{"missing price", `[{"category": "Backwaren", "title": "Brot", "volume": "500g", "url": "u"}]`},
		{"negative price", `[{"category": "Backwaren", "title": "Brot", "price": -1, "volume": "500g", "url": "u"}]`},
		{"wrong price type", `[{"category": "Backwaren", "title": "Brot", "price": "1,49", "volume": "500g", "url": "u"}]`},
		{"empty category", `[{"category": "", "title": "Brot", "price": 1.0, "volume": "500g", "url": "u"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); !errors.Is(err, domain.ErrInvalidCatalog) {
				t.Errorf("Parse() error = %v, want ErrInvalidCatalog", err)
			}
		})
	}
}

func TestParse_BadRecordRejectsWholeFile(t *testing.T) {
	data := `[
		{"category": "Backwaren", "title": "Brot", "price": 1.79, "volume": "500g", "url": "u"},
		{"category": "Backwaren", "title": "Brötchen", "volume": "6 stk", "url": "u"}
	]`
	if products, err := Parse([]byte(data)); err == nil {
		t.Errorf("Parse() accepted a catalog with a broken record, returned %d products", len(products))
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(validCatalogJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	products, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(products) != 2 {
		t.Errorf("Load() returned %d products, want 2", len(products))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Load(missing file) succeeded, want error")
	}
}
