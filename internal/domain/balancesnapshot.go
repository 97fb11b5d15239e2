package domain

import "time"

// BalanceSnapshot is a journaled account balance observation.
// Amounts are strings to avoid float precision issues in web consumers.
type BalanceSnapshot struct {
	Timestamp             time.Time `json:"ts"`
	Account               string    `json:"account"`
	Exchange              string    `json:"exchange"`
	TotalBalance          string    `json:"total_balance"`
	TotalUnrealizedProfit string    `json:"total_unrealized_profit"`
	Positions             int       `json:"positions"`
}

// NewBalanceSnapshot creates a snapshot of a balance for an account.
func NewBalanceSnapshot(ts time.Time, account string, exchange Exchange, b Balance, positions int) BalanceSnapshot {
	return BalanceSnapshot{
		Timestamp:             ts,
		Account:               account,
		Exchange:              exchange.String(),
		TotalBalance:          b.TotalBalance.String(),
		TotalUnrealizedProfit: b.TotalUnrealizedProfit.String(),
		Positions:             positions,
	}
}

// BalanceSnapshotRecord bundles a snapshot with its journal index.
type BalanceSnapshotRecord struct {
	Index    uint64
	Snapshot BalanceSnapshot
}
