// Package snapshot refreshes the point-in-time account state: balance,
// positions, open orders and prices of active symbols.
package snapshot

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vadiminshakov/exscraper/internal/domain"
	"github.com/vadiminshakov/exscraper/internal/events"
	"github.com/vadiminshakov/exscraper/internal/metrics"
	"github.com/vadiminshakov/exscraper/internal/services/gateway"
)

type snapshotStore interface {
	ReplaceBalance(ctx context.Context, account string, b domain.Balance) error
	ReplacePositions(ctx context.Context, account string, positions []domain.Position) error
	ReplaceOrders(ctx context.Context, account string, orders []domain.Order) error
	Orders(ctx context.Context, account string) ([]domain.Order, error)
	UpsertPrice(ctx context.Context, account string, tick domain.Tick) error
	Trades(ctx context.Context, account, symbol string) ([]domain.Trade, error)
}

type balanceJournal interface {
	Append(snapshot domain.BalanceSnapshot) error
}

type priceLister interface {
	Prices(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Syncer owns the snapshot tasks of one account.
type Syncer struct {
	account string
	gw      gateway.Gateway
	store   snapshotStore
	active  *ActiveSymbols
	journal balanceJournal
	logger  *zap.Logger
	metrics *metrics.Metrics
	bus     *events.Broadcaster
	now     func() time.Time
}

// New creates a Syncer. journal may be nil.
func New(
	account string,
	gw gateway.Gateway,
	store snapshotStore,
	active *ActiveSymbols,
	journal balanceJournal,
	logger *zap.Logger,
	m *metrics.Metrics,
	bus *events.Broadcaster,
) *Syncer {
	return &Syncer{
		account: account,
		gw:      gw,
		store:   store,
		active:  active,
		journal: journal,
		logger:  logger,
		metrics: m,
		bus:     bus,
		now:     time.Now,
	}
}

// SyncAccount replaces balance and positions and marks position symbols active.
func (s *Syncer) SyncAccount(ctx context.Context) error {
	snap, err := s.gw.AccountSnapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "account snapshot")
	}

	balance, positions := snap.Balance, snap.Positions
	if s.gw.Exchange().IsSpot() {
		balance, positions, err = s.valueHoldings(ctx, snap.Holdings)
		if err != nil {
			return err
		}
	}

	if err := s.store.ReplaceBalance(ctx, s.account, balance); err != nil {
		return errors.Wrap(err, "replace balance")
	}
	if err := s.store.ReplacePositions(ctx, s.account, positions); err != nil {
		return errors.Wrap(err, "replace positions")
	}

	for _, p := range positions {
		if !p.Size.IsZero() && s.active.Add(p.Symbol) {
			s.logger.Info("Tracking price of position symbol", zap.String("symbol", p.Symbol))
		}
	}
	s.metrics.SetActiveSymbols(s.account, s.active.Len())

	total, _ := balance.TotalBalance.Float64()
	s.metrics.SetWalletTotal(s.account, total)

	if s.journal != nil {
		record := domain.NewBalanceSnapshot(s.now().UTC(), s.account, s.gw.Exchange(), balance, len(positions))
		if err := s.journal.Append(record); err != nil {
			s.logger.Warn("failed to journal balance", zap.Error(err))
		}
	}
	s.bus.Publish(events.LedgerEvent{
		Account: s.account,
		Kind:    events.KindBalance,
		Count:   int64(len(positions)),
		Total:   balance.TotalBalance.String(),
	})

	s.logger.Debug("Synced account",
		zap.String("total_balance", balance.TotalBalance.String()),
		zap.Int("positions", len(positions)))
	return nil
}

// SyncOrders replaces the open orders. It returns gateway.ErrUnsupported for
// exchanges without an open orders endpoint.
func (s *Syncer) SyncOrders(ctx context.Context) error {
	lister, ok := s.gw.(gateway.OrderLister)
	if !ok {
		return errors.Wrapf(gateway.ErrUnsupported, "open orders on %s", s.gw.Exchange())
	}

	orders, err := lister.OpenOrders(ctx)
	if err != nil {
		return errors.Wrap(err, "open orders")
	}
	if err := s.store.ReplaceOrders(ctx, s.account, orders); err != nil {
		return errors.Wrap(err, "replace orders")
	}
	return nil
}

// SyncTicks upserts the recent price of every active symbol. A failing symbol
// does not stop the rest.
func (s *Syncer) SyncTicks(ctx context.Context) error {
	var errs error
	for _, symbol := range s.active.List() {
		if err := ctx.Err(); err != nil {
			return err
		}
		tick, err := s.gw.RecentPrice(ctx, symbol)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "price of %s", symbol))
			continue
		}
		if err := s.store.UpsertPrice(ctx, s.account, tick); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "store price of %s", symbol))
		}
	}
	return errs
}
