package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// OrderEventRow mirrors the order_events BigQuery schema. One row is written
// per delivered event; columns that do not apply to the event type are null.
type OrderEventRow struct {
	EventID        string             `bigquery:"event_id"`
	EventType      string             `bigquery:"event_type"`
	OccurredAt     time.Time          `bigquery:"occurred_at"`
	OrderID        *string            `bigquery:"order_id"`
	ProductID      *string            `bigquery:"product_id"`
	UserID         *string            `bigquery:"user_id"`
	ActorID        *string            `bigquery:"actor_id"`
	FromStatus     *string            `bigquery:"from_status"`
	ToStatus       *string            `bigquery:"to_status"`
	TotalCents     *int64             `bigquery:"total_cents"`
	LineCount      *int64             `bigquery:"line_count"`
	Quantity       *int64             `bigquery:"quantity"`
	ResultingStock *int64             `bigquery:"resulting_stock"`
	Refunded       *bool              `bigquery:"refunded"`
	Payload        cbigquery.NullJSON `bigquery:"payload"`
}
