package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// OptionSnapshot is a frozen copy of one selected product option.
type OptionSnapshot struct {
	Name            string           `json:"name"`
	Value           string           `json:"value"`
	AdditionalPrice *decimal.Decimal `json:"additionalPrice,omitempty"`
}

// OptionSnapshots is the list of options selected on a cart or order line.
// It is stored as a JSON array and never references live ProductOption rows.
type OptionSnapshots []OptionSnapshot

// ParseOptions decodes a serialized snapshot. Blank or malformed input
// yields an empty list instead of an error.
func ParseOptions(raw string) OptionSnapshots {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return OptionSnapshots{}
	}
	var out OptionSnapshots
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return OptionSnapshots{}
	}
	if out == nil {
		return OptionSnapshots{}
	}
	return out
}

// Surcharge sums every additional price, counting missing ones as zero.
func (o OptionSnapshots) Surcharge() decimal.Decimal {
	total := decimal.Zero
	for _, opt := range o {
		if opt.AdditionalPrice != nil {
			total = total.Add(*opt.AdditionalPrice)
		}
	}
	return total
}

// JSON serializes the snapshot; an empty list becomes "[]".
func (o OptionSnapshots) JSON() string {
	if len(o) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// Key is an order-independent identity used to merge identical cart lines.
func (o OptionSnapshots) Key() string {
	if len(o) == 0 {
		return ""
	}
	parts := make([]string, 0, len(o))
	for _, opt := range o {
		parts = append(parts, strings.ToLower(strings.TrimSpace(opt.Name))+"="+strings.ToLower(strings.TrimSpace(opt.Value)))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// Value implements driver.Valuer.
func (o OptionSnapshots) Value() (driver.Value, error) {
	return o.JSON(), nil
}

// Scan implements sql.Scanner. Unparseable rows scan as an empty list.
func (o *OptionSnapshots) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*o = OptionSnapshots{}
	case string:
		*o = ParseOptions(v)
	case []byte:
		*o = ParseOptions(string(v))
	default:
		return fmt.Errorf("unsupported option snapshot source %T", src)
	}
	return nil
}
