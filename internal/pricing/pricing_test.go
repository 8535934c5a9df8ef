package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/electronicjova/storefront-backend/pkg/db/models"
	"github.com/electronicjova/storefront-backend/pkg/types"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func testProduct() models.Product {
	return models.Product{Price: dec("10"), Price50: dec("9"), Price100: dec("8")}
}

func TestTierBoundaries(t *testing.T) {
	p := testProduct()
	cases := []struct {
		qty  int
		want string
	}{
		{1, "10"},
		{50, "10"},
		{51, "9"},
		{100, "9"},
		{101, "8"},
		{1000, "8"},
	}
	for _, tc := range cases {
		got := UnitPrice(p, tc.qty, nil)
		assert.True(t, got.Equal(dec(tc.want)), "qty %d: got %s want %s", tc.qty, got, tc.want)
	}
}

func TestOptionSurchargeIsAdditive(t *testing.T) {
	got := UnitPriceFromJSON(testProduct(), 1, `[{"name":"color","value":"red","additionalPrice":5},{"name":"size","value":"xl","additionalPrice":15}]`)
	assert.True(t, got.Equal(dec("30")), "got %s", got)
}

func TestOptionWithoutPriceCountsAsZero(t *testing.T) {
	five := dec("5")
	opts := types.OptionSnapshots{
		{Name: "color", Value: "red", AdditionalPrice: &five},
		{Name: "engraving", Value: "none"},
	}
	assert.True(t, UnitPrice(testProduct(), 60, opts).Equal(dec("14")))
}

func TestMalformedSnapshotFallsBackToBase(t *testing.T) {
	for _, raw := range []string{"not json", `{"name":"x"}`, `[{"additionalPrice":"abc"}]`, ""} {
		got := UnitPriceFromJSON(testProduct(), 1, raw)
		assert.True(t, got.Equal(dec("10")), "raw %q: got %s", raw, got)
	}
}

func TestLineTotal(t *testing.T) {
	unit := UnitPrice(testProduct(), 60, nil)
	assert.True(t, LineTotal(unit, 60).Equal(dec("540")))
}
