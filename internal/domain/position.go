package domain

import "github.com/shopspring/decimal"

// PositionSide represents the direction of a position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// Position is an open position as reported by the exchange.
type Position struct {
	Symbol           string          `json:"symbol"`
	EntryPrice       decimal.Decimal `json:"entry_price"`
	Size             decimal.Decimal `json:"size"`
	Side             PositionSide    `json:"side"`
	UnrealizedProfit decimal.Decimal `json:"unrealized_profit"`
	InitialMargin    decimal.Decimal `json:"initial_margin"`
}

// PositionSideFromSigned returns the side for a signed size together with its magnitude.
func PositionSideFromSigned(size decimal.Decimal) (PositionSide, decimal.Decimal) {
	if size.IsNegative() {
		return PositionSideShort, size.Abs()
	}
	return PositionSideLong, size
}
