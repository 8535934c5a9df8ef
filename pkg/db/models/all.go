package models

// All lists every persisted model, in dependency order, for AutoMigrate in
// tests and SQLite dev runs.
func All() []any {
	return []any{
		&Product{},
		&ProductOption{},
		&ShoppingCartLine{},
		&OrderHeader{},
		&OrderDetail{},
		&OrderStatusLog{},
		&StockAdjustment{},
		&OutboxEvent{},
	}
}
