package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyBalance is the reconstructed wallet balance at the start of a UTC day.
type DailyBalance struct {
	Day                time.Time       `json:"day"`
	TotalWalletBalance decimal.Decimal `json:"total_wallet_balance"`
}

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
