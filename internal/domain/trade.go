package domain

import "github.com/shopspring/decimal"

// Side is the direction of a trade or order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is an executed spot fill.
type Trade struct {
	Symbol    string          `json:"symbol"`
	Asset     string          `json:"asset"`
	OrderID   string          `json:"order_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Side      Side            `json:"side"`
	Timestamp int64           `json:"ts"`
}
