package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type incomeRow struct {
	ID            uint            `gorm:"primaryKey"`
	Account       string          `gorm:"not null;uniqueIndex:idx_incomes_tx;index:idx_incomes_time,priority:1"`
	TransactionID string          `gorm:"not null;uniqueIndex:idx_incomes_tx"`
	Symbol        string          `gorm:"index"`
	Asset         string
	Type          string
	Income        decimal.Decimal `gorm:"type:decimal(36,18)"`
	Timestamp     int64           `gorm:"column:ts;not null;index:idx_incomes_time,priority:2"`
}

func (incomeRow) TableName() string { return "incomes" }

type tradeRow struct {
	ID        uint            `gorm:"primaryKey"`
	Account   string          `gorm:"not null;uniqueIndex:idx_trades_order;index:idx_trades_symbol_time,priority:1"`
	OrderID   string          `gorm:"not null;uniqueIndex:idx_trades_order"`
	Symbol    string          `gorm:"not null;index:idx_trades_symbol_time,priority:2"`
	Asset     string
	Quantity  decimal.Decimal `gorm:"type:decimal(36,18)"`
	Price     decimal.Decimal `gorm:"type:decimal(36,18)"`
	Side      string
	Timestamp int64           `gorm:"column:ts;not null;index:idx_trades_symbol_time,priority:3"`
}

func (tradeRow) TableName() string { return "trades" }

type positionRow struct {
	ID               uint            `gorm:"primaryKey"`
	Account          string          `gorm:"not null;index"`
	Symbol           string
	EntryPrice       decimal.Decimal `gorm:"type:decimal(36,18)"`
	Size             decimal.Decimal `gorm:"type:decimal(36,18)"`
	Side             string
	UnrealizedProfit decimal.Decimal `gorm:"type:decimal(36,18)"`
	InitialMargin    decimal.Decimal `gorm:"type:decimal(36,18)"`
}

func (positionRow) TableName() string { return "positions" }

type balanceRow struct {
	Account               string          `gorm:"primaryKey"`
	TotalBalance          decimal.Decimal `gorm:"type:decimal(36,18)"`
	TotalUnrealizedProfit decimal.Decimal `gorm:"type:decimal(36,18)"`
	UpdatedAt             time.Time
}

func (balanceRow) TableName() string { return "balances" }

type assetBalanceRow struct {
	ID               uint            `gorm:"primaryKey"`
	Account          string          `gorm:"not null;index"`
	Asset            string
	Balance          decimal.Decimal `gorm:"type:decimal(36,18)"`
	UnrealizedProfit decimal.Decimal `gorm:"type:decimal(36,18)"`
}

func (assetBalanceRow) TableName() string { return "asset_balances" }

type orderRow struct {
	ID           uint            `gorm:"primaryKey"`
	Account      string          `gorm:"not null;index"`
	Symbol       string
	Price        decimal.Decimal `gorm:"type:decimal(36,18)"`
	Quantity     decimal.Decimal `gorm:"type:decimal(36,18)"`
	Side         string
	PositionSide string
	Type         string
}

func (orderRow) TableName() string { return "orders" }

type priceRow struct {
	Account   string          `gorm:"primaryKey"`
	Symbol    string          `gorm:"primaryKey"`
	Price     decimal.Decimal `gorm:"type:decimal(36,18)"`
	Timestamp int64           `gorm:"column:ts"`
}

func (priceRow) TableName() string { return "current_prices" }

type tradedSymbolRow struct {
	Account              string     `gorm:"primaryKey"`
	Symbol               string     `gorm:"primaryKey"`
	LastTradesDownloaded *time.Time
}

func (tradedSymbolRow) TableName() string { return "traded_symbols" }

type symbolCheckRow struct {
	Account     string    `gorm:"primaryKey"`
	Symbol      string    `gorm:"primaryKey"`
	LastChecked time.Time
}

func (symbolCheckRow) TableName() string { return "symbol_checks" }

type dailyBalanceRow struct {
	ID                 uint            `gorm:"primaryKey"`
	Account            string          `gorm:"not null;index:idx_daily_balance_day,priority:1"`
	Day                time.Time       `gorm:"not null;index:idx_daily_balance_day,priority:2"`
	TotalWalletBalance decimal.Decimal `gorm:"type:decimal(36,18)"`
}

func (dailyBalanceRow) TableName() string { return "daily_balances" }

func allModels() []any {
	return []any{
		&incomeRow{},
		&tradeRow{},
		&positionRow{},
		&balanceRow{},
		&assetBalanceRow{},
		&orderRow{},
		&priceRow{},
		&tradedSymbolRow{},
		&symbolCheckRow{},
		&dailyBalanceRow{},
	}
}
