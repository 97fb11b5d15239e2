// Package normalizer maps exchange-native records onto ledger entities in USD terms.
package normalizer

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/exscraper/internal/domain"
	"github.com/vadiminshakov/exscraper/internal/metrics"
	"github.com/vadiminshakov/exscraper/internal/services/gateway"
	"github.com/vadiminshakov/exscraper/pkg/retrier"
)

const conversionQuote = "USDT"

type closeSource interface {
	HistoricalClose(ctx context.Context, symbol string, ts int64) (decimal.Decimal, error)
}

// Normalizer converts incomes to USD-equivalent using historical candle closes.
type Normalizer struct {
	prices  closeSource
	retrier *retrier.Retrier
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates a Normalizer. Retry options tune the price lookup policy.
func New(prices closeSource, logger *zap.Logger, opts ...retrier.Option) *Normalizer {
	opts = append([]retrier.Option{
		retrier.WithMaxRetries(2),
		retrier.WithInitialInterval(500 * time.Millisecond),
	}, opts...)

	return &Normalizer{
		prices:  prices,
		retrier: retrier.New(opts...),
		logger:  logger,
	}
}

// WithMetrics counts failed conversions on m.
func (n *Normalizer) WithMetrics(m *metrics.Metrics) *Normalizer {
	n.metrics = m
	return n
}

// Incomes maps raw income records and converts non-USD amounts.
func (n *Normalizer) Incomes(ctx context.Context, records []gateway.IncomeRecord) []domain.Income {
	incomes := make([]domain.Income, 0, len(records))
	for _, r := range records {
		incomes = append(incomes, domain.Income{
			Symbol:        r.Symbol,
			Asset:         r.Asset,
			Type:          r.Type,
			Income:        r.Amount,
			Timestamp:     domain.NormalizeTimestamp(r.Timestamp),
			TransactionID: r.TransactionID,
		})
	}
	return n.ToUSD(ctx, incomes)
}

// ToUSD converts incomes denominated in non-USD assets. A failed price lookup
// leaves the income in its native asset.
func (n *Normalizer) ToUSD(ctx context.Context, incomes []domain.Income) []domain.Income {
	closes := make(map[string]decimal.Decimal)
	for i := range incomes {
		in := &incomes[i]
		if in.Asset == "" || domain.IsUSDAsset(in.Asset) {
			continue
		}

		symbol := strings.ToUpper(in.Asset) + conversionQuote
		key := symbol + "@" + time.UnixMilli(in.Timestamp).UTC().Truncate(time.Minute).Format(time.RFC3339)
		price, ok := closes[key]
		if !ok {
			var err error
			price, err = retrier.DoWithData(n.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
				p, err := n.prices.HistoricalClose(ctx, symbol, in.Timestamp)
				if errors.Is(err, gateway.ErrUnknownSymbol) || errors.Is(err, gateway.ErrUnsupported) {
					return p, retrier.Permanent(err)
				}
				return p, err
			})
			if err != nil {
				n.metrics.ConversionFailed(in.Asset)
				n.logger.Warn("failed to convert income to USD, keeping native asset",
					zap.String("asset", in.Asset),
					zap.String("transaction_id", in.TransactionID),
					zap.Error(err))
				continue
			}
			closes[key] = price
		}

		in.Income = in.Income.Mul(price)
		in.Asset = conversionQuote
	}
	return incomes
}

// Trades maps raw fills of one symbol. asset is the currency the fills are
// priced in.
func (n *Normalizer) Trades(records []gateway.TradeRecord, asset string) []domain.Trade {
	trades := make([]domain.Trade, 0, len(records))
	for _, r := range records {
		side := domain.SideSell
		if r.IsBuyer {
			side = domain.SideBuy
		}
		trades = append(trades, domain.Trade{
			Symbol:    r.Symbol,
			Asset:     asset,
			OrderID:   r.OrderID,
			Quantity:  r.Quantity.Abs(),
			Price:     r.Price,
			Side:      side,
			Timestamp: domain.NormalizeTimestamp(r.Timestamp),
		})
	}
	return trades
}
