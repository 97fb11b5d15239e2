// Package gateway adapts exchange SDKs to the capabilities the sync engines consume.
package gateway

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/exscraper/internal/domain"
)

var (
	// ErrUnsupported is returned when an exchange lacks a capability.
	ErrUnsupported = errors.New("operation not supported by exchange")
	// ErrUnknownSymbol is returned for symbols the exchange does not list.
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// DefaultPageLimit is the page size requested when a query leaves Limit unset.
const DefaultPageLimit = 1000

// Query selects one page of history. Zero StartTime/EndTime mean unbounded,
// an empty Cursor means first page.
type Query struct {
	Symbol    string
	StartTime int64
	EndTime   int64
	Limit     int
	Cursor    string
}

// PageLimit returns the requested page size or the default.
func (q Query) PageLimit() int {
	if q.Limit <= 0 {
		return DefaultPageLimit
	}
	return q.Limit
}

// Page is one batch of history records. Next is an opaque continuation
// cursor, empty when the exchange has nothing more for the query.
type Page[T any] struct {
	Records []T
	Next    string
}

// IncomeRecord is an exchange-native income line before USD conversion.
type IncomeRecord struct {
	Symbol        string
	Asset         string
	Type          string
	Amount        decimal.Decimal
	Timestamp     int64
	TransactionID string
}

// TradeRecord is an exchange-native spot fill.
type TradeRecord struct {
	Symbol    string
	OrderID   string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	IsBuyer   bool
	Timestamp int64
}

// Holding is a raw spot asset quantity that still needs valuation.
type Holding struct {
	Asset    string
	Quantity decimal.Decimal
}

// AccountSnapshot is the account state returned in a single round trip.
// Derivatives gateways fill Balance and Positions; spot gateways fill Holdings.
type AccountSnapshot struct {
	Balance   domain.Balance
	Positions []domain.Position
	Holdings  []Holding
}

// Gateway is implemented by every exchange.
type Gateway interface {
	Exchange() domain.Exchange
	AccountSnapshot(ctx context.Context) (*AccountSnapshot, error)
	RecentPrice(ctx context.Context, symbol string) (domain.Tick, error)
	// HistoricalClose returns the close of the one-minute candle covering ts (ms).
	HistoricalClose(ctx context.Context, symbol string, ts int64) (decimal.Decimal, error)
}

// OrderLister is implemented by exchanges exposing open orders.
type OrderLister interface {
	OpenOrders(ctx context.Context) ([]domain.Order, error)
}

// IncomeHistory is implemented by derivatives exchanges with an account income stream.
type IncomeHistory interface {
	IncomeHistory(ctx context.Context, q Query) (Page[IncomeRecord], error)
}

// SpotHistory is implemented by spot exchanges whose history is per-symbol fills.
type SpotHistory interface {
	TradeHistory(ctx context.Context, q Query) (Page[TradeRecord], error)
	Symbols(ctx context.Context) ([]domain.SymbolInfo, error)
	Prices(ctx context.Context) (map[string]decimal.Decimal, error)
}

func parseDecimal(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %s %q", field, s)
	}
	return d, nil
}
