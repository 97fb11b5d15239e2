package historysync

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/exscraper/internal/domain"
	"github.com/vadiminshakov/exscraper/internal/events"
	"github.com/vadiminshakov/exscraper/internal/metrics"
	"github.com/vadiminshakov/exscraper/internal/services/gateway"
)

type incomeNormalizer interface {
	Incomes(ctx context.Context, records []gateway.IncomeRecord) []domain.Income
}

type incomeStore interface {
	InsertIncomes(ctx context.Context, account string, incomes []domain.Income) (int64, error)
	IncomeBounds(ctx context.Context, account string) (oldest, newest int64, ok bool, err error)
}

// IncomeSync keeps the account-wide income history of a derivatives account
// complete and current.
type IncomeSync struct {
	account string
	walker  *walker[gateway.IncomeRecord]
	logger  *zap.Logger
}

// NewIncomeSync wires a walker over the gateway's income stream.
func NewIncomeSync(
	account string,
	exchange domain.Exchange,
	history gateway.IncomeHistory,
	norm incomeNormalizer,
	store incomeStore,
	opts Options,
	logger *zap.Logger,
	m *metrics.Metrics,
	bus *events.Broadcaster,
) *IncomeSync {
	src := stream[gateway.IncomeRecord]{
		name:  "incomes",
		floor: exchange.EpochFloor().UnixMilli(),
		bounds: func(ctx context.Context) (int64, int64, bool, error) {
			return store.IncomeBounds(ctx, account)
		},
		fetch: history.IncomeHistory,
		store: func(ctx context.Context, records []gateway.IncomeRecord) (int64, error) {
			incomes := norm.Incomes(ctx, records)
			n, err := store.InsertIncomes(ctx, account, incomes)
			if err != nil {
				return 0, err
			}
			m.AddRecords(account, "incomes", n)
			if n > 0 {
				bus.Publish(events.LedgerEvent{
					Account: account,
					Kind:    events.KindIncomes,
					Count:   n,
					Total:   sumIncomes(incomes).String(),
				})
			}
			return n, nil
		},
	}

	return &IncomeSync{
		account: account,
		walker:  newWalker(account, src, opts, logger, m),
		logger:  logger,
	}
}

// Cycle runs one bounded round of both cursors.
func (s *IncomeSync) Cycle(ctx context.Context) (CycleResult, error) {
	res, err := s.walker.cycle(ctx)
	if err != nil {
		return res, errors.Wrap(err, "income sync")
	}
	if res.Stored > 0 {
		s.logger.Info("Incomes synced",
			zap.Int64("stored", res.Stored),
			zap.Bool("first_reached", res.FirstReached),
			zap.Bool("caught_up", res.CaughtUp))
	}
	return res, nil
}

func sumIncomes(incomes []domain.Income) decimal.Decimal {
	total := decimal.Zero
	for _, in := range incomes {
		total = total.Add(in.Income)
	}
	return total
}
