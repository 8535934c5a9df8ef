// Package pricing resolves the unit price of a cart or order line.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/electronicjova/storefront-backend/pkg/db/models"
	"github.com/electronicjova/storefront-backend/pkg/types"
)

const (
	tier50Threshold  = 50
	tier100Threshold = 100
)

// TierPrice picks the quantity tier: up to 50 units pays price, 51 to 100
// pays price50, anything above pays price100.
func TierPrice(product models.Product, qty int) decimal.Decimal {
	switch {
	case qty <= tier50Threshold:
		return product.Price
	case qty <= tier100Threshold:
		return product.Price50
	default:
		return product.Price100
	}
}

// UnitPrice is the tier price plus the surcharge of every selected option.
func UnitPrice(product models.Product, qty int, options types.OptionSnapshots) decimal.Decimal {
	return TierPrice(product, qty).Add(options.Surcharge())
}

// UnitPriceFromJSON prices a line whose options are still serialized. A
// snapshot that does not parse adds no surcharge.
func UnitPriceFromJSON(product models.Product, qty int, rawOptions string) decimal.Decimal {
	return UnitPrice(product, qty, types.ParseOptions(rawOptions))
}

// LineTotal is unit price times quantity.
func LineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}
