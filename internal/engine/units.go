package engine

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/cartmatch/backend/internal/domain"
)

// unitToken matches every unit spelling the parser understands. Longer
// spellings come first so the regex alternation prefers them.
const unitToken = `kilogramm|kilo|kg|gramm|gr|g|milliliter|ml|liter|lt|l|stück|stueck|stk|st|pcs|pc|pieces|piece`

// Volume extraction patterns, tried in fixed priority order so ambiguous
// text resolves deterministically. The plain pattern is anchored at the
// start of the string; otherwise "2x100ml" would resolve to 100ml.
var (
	plainPattern = regexp.MustCompile(`(?i)^\s*(\d+(?:[.,]\d+)?)\s*(` + unitToken + `)\b`)
	packPattern  = regexp.MustCompile(`(?i)(\d+)\s*[x×]\s*(\d+(?:[.,]\d+)?)\s*(` + unitToken + `)\b`)
	circaPattern = regexp.MustCompile(`(?i)ca\.?\s*(\d+(?:[.,]\d+)?)\s*(` + unitToken + `)\b`)
	loosePattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s+(` + unitToken + `)\b`)
)

// unitSynonyms folds every recognized unit spelling onto the canonical set.
var unitSynonyms = map[string]domain.Unit{
	"g":          domain.UnitGram,
	"gr":         domain.UnitGram,
	"gramm":      domain.UnitGram,
	"kg":         domain.UnitKilogram,
	"kilo":       domain.UnitKilogram,
	"kilogramm":  domain.UnitKilogram,
	"ml":         domain.UnitMilliliter,
	"milliliter": domain.UnitMilliliter,
	"l":          domain.UnitLiter,
	"lt":         domain.UnitLiter,
	"liter":      domain.UnitLiter,
	"stk":        domain.UnitPiece,
	"st":         domain.UnitPiece,
	"stück":      domain.UnitPiece,
	"stueck":     domain.UnitPiece,
	"pc":         domain.UnitPiece,
	"pcs":        domain.UnitPiece,
	"piece":      domain.UnitPiece,
	"pieces":     domain.UnitPiece,
}

// NormalizeUnit folds a unit spelling onto the canonical set.
// Returns false for unrecognized tokens.
func NormalizeUnit(token string) (domain.Unit, bool) {
	u, ok := unitSynonyms[strings.ToLower(strings.TrimSpace(token))]
	return u, ok
}

// ParseVolume extracts an (amount, unit) pair from a free-text volume
// descriptor like "500g", "2x100ml", "ca. 3kg" or "0,5 l". The first
// pattern that matches wins; nil means no pattern matched.
func ParseVolume(text string) *domain.ParsedQuantity {
	if text == "" {
		return nil
	}

	if m := plainPattern.FindStringSubmatch(text); m != nil {
		if q := buildQuantity(m[1], m[2], 1); q != nil {
			return q
		}
	}

	if m := packPattern.FindStringSubmatch(text); m != nil {
		count, err := strconv.Atoi(m[1])
		if err == nil && count > 0 {
			if q := buildQuantity(m[2], m[3], float64(count)); q != nil {
				return q
			}
		}
	}

	if m := circaPattern.FindStringSubmatch(text); m != nil {
		if q := buildQuantity(m[1], m[2], 1); q != nil {
			return q
		}
	}

	if m := loosePattern.FindStringSubmatch(text); m != nil {
		if q := buildQuantity(m[1], m[2], 1); q != nil {
			return q
		}
	}

	return nil
}

// buildQuantity converts a number token and a unit token into a
// ParsedQuantity, scaling by multiplier for pack notation.
func buildQuantity(number, unit string, multiplier float64) *domain.ParsedQuantity {
	amount, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", "."), 64)
	if err != nil || amount <= 0 {
		return nil
	}
	u, ok := NormalizeUnit(unit)
	if !ok {
		return nil
	}
	return &domain.ParsedQuantity{Amount: amount * multiplier, Unit: u}
}

// ConvertToComparable maps an amount onto the shared gram/milliliter scale:
// g and ml are 1, kg and l are 1000. Pieces have no comparable conversion.
func ConvertToComparable(amount float64, unit domain.Unit) (float64, bool) {
	switch unit {
	case domain.UnitGram, domain.UnitMilliliter:
		return amount, true
	case domain.UnitKilogram, domain.UnitLiter:
		return amount * 1000, true
	default:
		return 0, false
	}
}

// UnitsNeeded computes how many packages satisfy a target quantity, using
// ceiling division. Returns false when the two quantities cannot be
// compared (one side in pieces, the other by weight or volume); the
// caller must then use the quantity-estimation fallback.
func UnitsNeeded(targetAmount float64, targetUnit domain.Unit, packAmount float64, packUnit domain.Unit) (int, bool) {
	if targetAmount <= 0 || packAmount <= 0 {
		return 0, false
	}

	if targetUnit == domain.UnitPiece && packUnit == domain.UnitPiece {
		return int(math.Ceil(targetAmount / packAmount)), true
	}

	target, ok := ConvertToComparable(targetAmount, targetUnit)
	if !ok {
		return 0, false
	}
	pack, ok := ConvertToComparable(packAmount, packUnit)
	if !ok {
		return 0, false
	}

	units := int(math.Ceil(target / pack))
	if units < 1 {
		units = 1
	}
	return units, true
}

// NormalizeAmount re-expresses gram/milliliter amounts of 1000 or more in
// kg/l. Other units pass through unchanged.
func NormalizeAmount(amount float64, unit domain.Unit) (float64, domain.Unit) {
	if amount >= 1000 {
		switch unit {
		case domain.UnitGram:
			return amount / 1000, domain.UnitKilogram
		case domain.UnitMilliliter:
			return amount / 1000, domain.UnitLiter
		}
	}
	return amount, unit
}
