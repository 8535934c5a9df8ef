package enums

import "fmt"

// StockAdjustmentReason explains why a product's stock moved.
type StockAdjustmentReason string

const (
	StockReasonOrderPaid      StockAdjustmentReason = "order_paid"
	StockReasonOrderCancelled StockAdjustmentReason = "order_cancelled"
	StockReasonManual         StockAdjustmentReason = "manual"
)

var validStockAdjustmentReasons = []StockAdjustmentReason{
	StockReasonOrderPaid,
	StockReasonOrderCancelled,
	StockReasonManual,
}

func (r StockAdjustmentReason) String() string {
	return string(r)
}

func (r StockAdjustmentReason) IsValid() bool {
	for _, candidate := range validStockAdjustmentReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

func ParseStockAdjustmentReason(value string) (StockAdjustmentReason, error) {
	for _, candidate := range validStockAdjustmentReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock adjustment reason %q", value)
}
