package domain

import "github.com/shopspring/decimal"

// AssetBalance is a single asset line of an account balance.
type AssetBalance struct {
	Asset            string          `json:"asset"`
	Balance          decimal.Decimal `json:"balance"`
	UnrealizedProfit decimal.Decimal `json:"unrealized_profit"`
}

// Balance is the account-wide wallet state.
type Balance struct {
	TotalBalance          decimal.Decimal `json:"total_balance"`
	TotalUnrealizedProfit decimal.Decimal `json:"total_unrealized_profit"`
	Assets                []AssetBalance  `json:"assets"`
}
