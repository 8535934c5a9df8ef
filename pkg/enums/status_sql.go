package enums

import (
	"database/sql/driver"
	"fmt"
	"strconv"
)

// Value stores the status as its integer code.
func (s OrderStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *OrderStatus) Scan(src any) error {
	v, err := scanStatusCode(src)
	if err != nil {
		return fmt.Errorf("scan order status: %w", err)
	}
	*s = OrderStatus(v)
	return nil
}

func (p PaymentStatus) Value() (driver.Value, error) {
	return int64(p), nil
}

func (p *PaymentStatus) Scan(src any) error {
	v, err := scanStatusCode(src)
	if err != nil {
		return fmt.Errorf("scan payment status: %w", err)
	}
	*p = PaymentStatus(v)
	return nil
}

func scanStatusCode(src any) (int64, error) {
	switch v := src.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	case nil:
		return 0, fmt.Errorf("null status")
	default:
		return 0, fmt.Errorf("unsupported type %T", src)
	}
}
