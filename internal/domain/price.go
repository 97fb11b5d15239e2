package domain

import "github.com/shopspring/decimal"

// Tick is the latest known price of a symbol.
type Tick struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"ts"`
}
