package domain

// Product is an immutable catalog entry. The catalog is a fixed ordered
// sequence; a product's index in that sequence is its identity.
type Product struct {
	Category string  `json:"category"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Volume   string  `json:"volume"` // free-text size/weight descriptor, e.g. "500g", "2x100ml"
	URL      string  `json:"url"`
}

// Unit is a canonical quantity unit. Mass and volume units are treated as
// numerically interchangeable for grocery approximation; pieces are not
// convertible to either.
type Unit string

const (
	UnitGram       Unit = "g"
	UnitKilogram   Unit = "kg"
	UnitMilliliter Unit = "ml"
	UnitLiter      Unit = "l"
	UnitPiece      Unit = "piece"
)

// ParsedQuantity is the result of parsing a free-text volume descriptor.
type ParsedQuantity struct {
	Amount float64 `json:"amount"`
	Unit   Unit    `json:"unit"`
}

// ShoppingItem is one normalized shopping-list request. Created once per
// list entry and never mutated afterwards.
type ShoppingItem struct {
	Name         string   `json:"name"`
	Amount       float64  `json:"amount"`
	Unit         Unit     `json:"unit"`
	RawText      string   `json:"rawText"`
	Attributes   []string `json:"attributes,omitempty"`   // e.g. "bio", "vollkorn", "fest"
	Alternatives []string `json:"alternatives,omitempty"` // substitute names
	ItemType     string   `json:"itemType,omitempty"`     // e.g. "produce", "dairy", "staple"
}
