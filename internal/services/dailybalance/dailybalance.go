// Package dailybalance reconstructs a per-day wallet balance series from the
// current balance and the income history.
package dailybalance

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vadiminshakov/exscraper/internal/domain"
)

type store interface {
	Balance(ctx context.Context, account string) (*domain.Balance, error)
	IncomesSince(ctx context.Context, account string, since int64) ([]domain.Income, error)
	ReplaceDailyBalances(ctx context.Context, account string, series []domain.DailyBalance) error
}

// Aggregator rebuilds the series of every configured account.
type Aggregator struct {
	store    store
	accounts []string
	logger   *zap.Logger
	now      func() time.Time
}

func New(s store, accounts []string, logger *zap.Logger) *Aggregator {
	return &Aggregator{store: s, accounts: accounts, logger: logger, now: time.Now}
}

// Cycle rebuilds all accounts; one failing account does not stop the others.
func (a *Aggregator) Cycle(ctx context.Context) error {
	var errs error
	for _, account := range a.accounts {
		if err := a.Rebuild(ctx, account); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "account %s", account))
		}
	}
	return errs
}

// Rebuild replaces the series of one account.
func (a *Aggregator) Rebuild(ctx context.Context, account string) error {
	current := decimal.Zero
	b, err := a.store.Balance(ctx, account)
	if err != nil {
		return err
	}
	if b != nil {
		current = b.TotalBalance
	}

	incomes, err := a.store.IncomesSince(ctx, account, 0)
	if err != nil {
		return err
	}

	series := Series(current, incomes, a.now())
	if err := a.store.ReplaceDailyBalances(ctx, account, series); err != nil {
		return err
	}
	a.logger.Debug("Rebuilt daily balance", zap.String("account", account), zap.Int("days", len(series)))
	return nil
}

// Series returns, for every UTC day from the day of the oldest income through
// today, the current balance minus all income received since that day began.
// incomes must be sorted by timestamp.
func Series(current decimal.Decimal, incomes []domain.Income, now time.Time) []domain.DailyBalance {
	if len(incomes) == 0 {
		return nil
	}

	perDay := make(map[time.Time]decimal.Decimal)
	since := decimal.Zero
	for _, in := range incomes {
		day := domain.DayStart(time.UnixMilli(in.Timestamp))
		perDay[day] = perDay[day].Add(in.Income)
		since = since.Add(in.Income)
	}

	today := domain.DayStart(now)
	var series []domain.DailyBalance
	for day := domain.DayStart(time.UnixMilli(incomes[0].Timestamp)); !day.After(today); day = day.AddDate(0, 0, 1) {
		series = append(series, domain.DailyBalance{Day: day, TotalWalletBalance: current.Sub(since)})
		since = since.Sub(perDay[day])
	}
	return series
}
