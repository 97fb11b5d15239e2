package domain

import "github.com/shopspring/decimal"

// Order is an open order.
type Order struct {
	Symbol       string          `json:"symbol"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	Side         Side            `json:"side"`
	PositionSide PositionSide    `json:"position_side"`
	Type         string          `json:"type"`
}
