package historysync

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vadiminshakov/exscraper/internal/domain"
	"github.com/vadiminshakov/exscraper/internal/events"
	"github.com/vadiminshakov/exscraper/internal/metrics"
	"github.com/vadiminshakov/exscraper/internal/services/gateway"
	"github.com/vadiminshakov/exscraper/internal/services/normalizer"
)

const DefaultSymbolsPerCycle = 10

type tradeHistory interface {
	TradeHistory(ctx context.Context, q gateway.Query) (gateway.Page[gateway.TradeRecord], error)
}

type quoteResolver interface {
	QuoteAsset(ctx context.Context, symbol string) (string, error)
}

type tradeNormalizer interface {
	Trades(records []gateway.TradeRecord, asset string) []domain.Trade
	ToUSD(ctx context.Context, incomes []domain.Income) []domain.Income
}

type tradeStore interface {
	InsertTrades(ctx context.Context, account string, trades []domain.Trade) (int64, error)
	TradeBounds(ctx context.Context, account, symbol string) (oldest, newest int64, ok bool, err error)
	Trades(ctx context.Context, account, symbol string) ([]domain.Trade, error)
	InsertIncomes(ctx context.Context, account string, incomes []domain.Income) (int64, error)
	StoredIncomeIDs(ctx context.Context, account string, ids []string) (map[string]bool, error)
	NextTradedSymbols(ctx context.Context, account string, limit int) ([]domain.TradedSymbol, error)
	MarkTradesDownloaded(ctx context.Context, account, symbol string, at time.Time) error
}

// TradeSync walks per-symbol fill history of a spot account and derives
// realized PnL incomes once a symbol's history is complete.
type TradeSync struct {
	account         string
	floor           int64
	history         tradeHistory
	quotes          quoteResolver
	norm            tradeNormalizer
	store           tradeStore
	opts            Options
	symbolsPerCycle int
	logger          *zap.Logger
	metrics         *metrics.Metrics
	bus             *events.Broadcaster
	now             func() time.Time

	walkers map[string]*walker[gateway.TradeRecord]
	// clean marks symbols whose stored fills are all reflected in incomes.
	clean map[string]bool
}

func NewTradeSync(
	account string,
	exchange domain.Exchange,
	history tradeHistory,
	quotes quoteResolver,
	norm tradeNormalizer,
	store tradeStore,
	opts Options,
	symbolsPerCycle int,
	logger *zap.Logger,
	m *metrics.Metrics,
	bus *events.Broadcaster,
) *TradeSync {
	if symbolsPerCycle <= 0 {
		symbolsPerCycle = DefaultSymbolsPerCycle
	}
	return &TradeSync{
		account:         account,
		floor:           exchange.EpochFloor().UnixMilli(),
		history:         history,
		quotes:          quotes,
		norm:            norm,
		store:           store,
		opts:            opts,
		symbolsPerCycle: symbolsPerCycle,
		logger:          logger,
		metrics:         m,
		bus:             bus,
		now:             time.Now,
		walkers:         make(map[string]*walker[gateway.TradeRecord]),
		clean:           make(map[string]bool),
	}
}

// Cycle syncs the least recently downloaded traded symbols. A failing symbol
// does not stop the others.
func (s *TradeSync) Cycle(ctx context.Context) error {
	symbols, err := s.store.NextTradedSymbols(ctx, s.account, s.symbolsPerCycle)
	if err != nil {
		return errors.Wrap(err, "load traded symbols")
	}

	var errs error
	for _, ts := range symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.store.MarkTradesDownloaded(ctx, s.account, ts.Symbol, s.now().UTC()); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "mark %s downloaded", ts.Symbol))
			continue
		}
		if err := s.syncSymbol(ctx, ts.Symbol); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "symbol %s", ts.Symbol))
		}
	}
	return errs
}

func (s *TradeSync) syncSymbol(ctx context.Context, symbol string) error {
	w, err := s.walkerFor(ctx, symbol)
	if err != nil {
		return err
	}

	res, err := w.cycle(ctx)
	if err != nil {
		return err
	}
	if res.Stored > 0 {
		s.logger.Info("Trades synced",
			zap.String("symbol", symbol),
			zap.Int64("stored", res.Stored),
			zap.Bool("first_reached", res.FirstReached),
			zap.Bool("caught_up", res.CaughtUp))
	}

	if res.FirstReached && res.CaughtUp && !s.clean[symbol] {
		if err := s.deriveIncomes(ctx, symbol); err != nil {
			return err
		}
		s.clean[symbol] = true
	}
	return nil
}

// deriveIncomes replays every stored fill of symbol and inserts the realized
// PnL of sells not yet in the ledger. Only those are converted to USD.
func (s *TradeSync) deriveIncomes(ctx context.Context, symbol string) error {
	trades, err := s.store.Trades(ctx, s.account, symbol)
	if err != nil {
		return errors.Wrap(err, "load trades")
	}
	incomes, err := s.unstored(ctx, normalizer.RealizedIncomes(trades))
	if err != nil {
		return err
	}
	if len(incomes) == 0 {
		return nil
	}
	incomes = s.norm.ToUSD(ctx, incomes)

	n, err := s.store.InsertIncomes(ctx, s.account, incomes)
	if err != nil {
		return errors.Wrap(err, "insert realized incomes")
	}
	s.metrics.AddRecords(s.account, "incomes", n)
	if n > 0 {
		s.bus.Publish(events.LedgerEvent{
			Account: s.account,
			Kind:    events.KindIncomes,
			Symbol:  symbol,
			Count:   n,
			Total:   sumIncomes(incomes).String(),
		})
	}
	return nil
}

func (s *TradeSync) unstored(ctx context.Context, incomes []domain.Income) ([]domain.Income, error) {
	if len(incomes) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(incomes))
	for _, in := range incomes {
		ids = append(ids, in.TransactionID)
	}
	stored, err := s.store.StoredIncomeIDs(ctx, s.account, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load stored realized incomes")
	}

	fresh := incomes[:0]
	for _, in := range incomes {
		if !stored[in.TransactionID] {
			fresh = append(fresh, in)
		}
	}
	return fresh, nil
}

func (s *TradeSync) walkerFor(ctx context.Context, symbol string) (*walker[gateway.TradeRecord], error) {
	if w, ok := s.walkers[symbol]; ok {
		return w, nil
	}

	quote, err := s.quotes.QuoteAsset(ctx, symbol)
	if err != nil {
		return nil, errors.Wrap(err, "resolve quote asset")
	}

	src := stream[gateway.TradeRecord]{
		name:   "trades",
		symbol: symbol,
		floor:  s.floor,
		bounds: func(ctx context.Context) (int64, int64, bool, error) {
			return s.store.TradeBounds(ctx, s.account, symbol)
		},
		fetch: s.history.TradeHistory,
		store: func(ctx context.Context, records []gateway.TradeRecord) (int64, error) {
			n, err := s.store.InsertTrades(ctx, s.account, s.norm.Trades(records, quote))
			if err != nil {
				return 0, err
			}
			s.metrics.AddRecords(s.account, "trades", n)
			if n > 0 {
				delete(s.clean, symbol)
				s.bus.Publish(events.LedgerEvent{
					Account: s.account,
					Kind:    events.KindTrades,
					Symbol:  symbol,
					Count:   n,
				})
			}
			return n, nil
		},
	}

	w := newWalker(s.account, src, s.opts, s.logger.With(zap.String("symbol", symbol)), s.metrics)
	w.now = s.now
	s.walkers[symbol] = w
	return w, nil
}
