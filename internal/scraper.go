package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/exscraper/config"
	"github.com/vadiminshakov/exscraper/internal/domain"
	"github.com/vadiminshakov/exscraper/internal/events"
	"github.com/vadiminshakov/exscraper/internal/metrics"
	"github.com/vadiminshakov/exscraper/internal/services/dailybalance"
	"github.com/vadiminshakov/exscraper/internal/services/discovery"
	"github.com/vadiminshakov/exscraper/internal/services/gateway"
	"github.com/vadiminshakov/exscraper/internal/services/historysync"
	"github.com/vadiminshakov/exscraper/internal/services/normalizer"
	"github.com/vadiminshakov/exscraper/internal/services/snapshot"
	"github.com/vadiminshakov/exscraper/internal/storage/balancesnapshots"
	"github.com/vadiminshakov/exscraper/internal/storage/ledger"
)

// Task is one independently scheduled responsibility of an account.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Account is a configured exchange account with its tasks.
type Account struct {
	Alias  string
	Active *snapshot.ActiveSymbols
	Tasks  []Task
}

// Scraper runs every account task plus the daily balance aggregation.
type Scraper struct {
	conf     config.Config
	store    *ledger.Store
	journal  *balancesnapshots.Journal
	bus      *events.Broadcaster
	metrics  *metrics.Metrics
	logger   *zap.Logger
	accounts []*Account
	daily    *dailybalance.Aggregator
}

// NewScraper builds clients, gateways and tasks for all configured accounts.
func NewScraper(
	conf config.Config,
	store *ledger.Store,
	journal *balancesnapshots.Journal,
	bus *events.Broadcaster,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*Scraper, error) {
	s := &Scraper{conf: conf, store: store, journal: journal, bus: bus, metrics: m, logger: logger}

	aliases := make([]string, 0, len(conf.Accounts))
	for _, acc := range conf.Accounts {
		client, err := NewClient(acc)
		if err != nil {
			return nil, errors.Wrapf(err, "account %s", acc.Alias)
		}
		gw, err := NewGateway(client)
		if err != nil {
			return nil, errors.Wrapf(err, "account %s", acc.Alias)
		}
		s.accounts = append(s.accounts, s.NewAccount(acc, gw))
		aliases = append(aliases, acc.Alias)
	}
	s.daily = dailybalance.New(store, aliases, logger.With(zap.String("task", "daily_balance")))

	return s, nil
}

// NewAccount wires the tasks an exchange's capabilities allow.
func (s *Scraper) NewAccount(acc config.Account, gw gateway.Gateway) *Account {
	logger := s.logger.With(zap.String("account", acc.Alias), zap.String("exchange", acc.Exchange.String()))
	active := snapshot.NewActiveSymbols(acc.Symbols...)
	iv := s.conf.Intervals
	opts := historysync.Options{
		MaxFetchesPerCycle: s.conf.History.MaxFetchesPerCycle,
		MaxCursorPages:     s.conf.History.MaxCursorPages,
		PageLimit:          s.conf.History.PageLimit,
	}
	norm := normalizer.New(gw, logger).WithMetrics(s.metrics)

	snap := snapshot.New(acc.Alias, gw, s.store, active, journalOrNil(s.journal),
		logger.With(zap.String("task", "snapshot")), s.metrics, s.bus)

	a := &Account{Alias: acc.Alias, Active: active}
	a.Tasks = append(a.Tasks,
		Task{Name: "account", Interval: iv.Account, Run: snap.SyncAccount},
		Task{Name: "orders", Interval: iv.Orders, Run: snap.SyncOrders},
		Task{Name: "ticks", Interval: iv.Ticks, Run: snap.SyncTicks},
	)

	if h, ok := gw.(gateway.IncomeHistory); ok {
		incomes := historysync.NewIncomeSync(acc.Alias, acc.Exchange, h, norm, s.store, opts,
			logger.With(zap.String("task", "history")), s.metrics, s.bus)
		a.Tasks = append(a.Tasks, Task{Name: "history", Interval: iv.History, Run: func(ctx context.Context) error {
			_, err := incomes.Cycle(ctx)
			return err
		}})
	}

	if spot, ok := gw.(gateway.SpotHistory); ok {
		catalog := discovery.NewCatalog(spot)
		prober := discovery.NewProber(acc.Alias, catalog, spot, s.store, s.conf.History.ProbesPerCycle,
			logger.With(zap.String("task", "discovery")), s.metrics)
		trades := historysync.NewTradeSync(acc.Alias, acc.Exchange, spot, catalog, norm, s.store, opts,
			s.conf.History.SymbolsPerCycle, logger.With(zap.String("task", "history")), s.metrics, s.bus)

		a.Tasks = append(a.Tasks,
			Task{Name: "discovery", Interval: iv.Discovery, Run: func(ctx context.Context) error {
				_, err := prober.Cycle(ctx)
				return err
			}},
			Task{Name: "history", Interval: iv.History, Run: trades.Cycle},
		)
	}

	return a
}

// journalOrNil keeps a missing journal a nil interface.
func journalOrNil(j *balancesnapshots.Journal) interface {
	Append(domain.BalanceSnapshot) error
} {
	if j == nil {
		return nil
	}
	return j
}

// Accounts returns the configured accounts in config order.
func (s *Scraper) Accounts() []*Account {
	return s.accounts
}

// Run starts every task and blocks until ctx is cancelled.
func (s *Scraper) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, a := range s.accounts {
		for _, t := range a.Tasks {
			logger := s.logger.With(zap.String("account", a.Alias), zap.String("task", t.Name))
			g.Go(func() error {
				return RunLoop(ctx, t, a.Alias, logger, s.metrics)
			})
		}
		s.logger.Info("Started account", zap.String("account", a.Alias), zap.Int("tasks", len(a.Tasks)))
	}

	daily := Task{Name: "daily_balance", Interval: s.conf.Intervals.DailyBalance, Run: s.daily.Cycle}
	g.Go(func() error {
		return RunLoop(ctx, daily, "", s.logger.With(zap.String("task", daily.Name)), s.metrics)
	})

	return g.Wait()
}

// RunLoop runs t, then sleeps its interval, until ctx is cancelled. A failed
// or panicking cycle is logged and retried after the interval. A task whose
// exchange lacks the capability stops for good.
func RunLoop(ctx context.Context, t Task, account string, logger *zap.Logger, m *metrics.Metrics) error {
	for {
		started := time.Now()
		err := runCycle(ctx, t, logger)
		m.ObserveTask(account, t.Name, started, err)

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, gateway.ErrUnsupported) {
				logger.Info("Task not supported by exchange, stopping", zap.Error(err))
				return nil
			}
			logger.Error("Task cycle failed", zap.Error(err), zap.Duration("retry_in", t.Interval))
		}

		select {
		case <-ctx.Done():
			logger.Debug("Context done, stopping task loop")
			return nil
		case <-time.After(t.Interval):
		}
	}
}

// runCycle turns a panic in one cycle into an error so the loop survives it.
func runCycle(ctx context.Context, t Task, logger *zap.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Task cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = errors.Errorf("task %s panicked: %v", t.Name, r)
		}
	}()
	return t.Run(ctx)
}
