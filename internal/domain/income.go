package domain

import "github.com/shopspring/decimal"

// IncomeTypeRealizedPnL is the income type for closed position results.
const IncomeTypeRealizedPnL = "REALIZED_PNL"

// Income is a realized cash flow (PnL, funding, commission) in USD terms.
type Income struct {
	Symbol        string          `json:"symbol"`
	Asset         string          `json:"asset"`
	Type          string          `json:"type"`
	Income        decimal.Decimal `json:"income"`
	Timestamp     int64           `json:"ts"`
	TransactionID string          `json:"transaction_id"`
}
