package discovery

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/exscraper/internal/domain"
	"github.com/vadiminshakov/exscraper/internal/metrics"
	"github.com/vadiminshakov/exscraper/internal/services/gateway"
)

const DefaultProbesPerCycle = 3

type tradeProbe interface {
	TradeHistory(ctx context.Context, q gateway.Query) (gateway.Page[gateway.TradeRecord], error)
}

type probeStore interface {
	SymbolChecks(ctx context.Context, account string) (map[string]time.Time, error)
	TradedSymbols(ctx context.Context, account string) ([]domain.TradedSymbol, error)
	MarkSymbolChecked(ctx context.Context, account, symbol string, at time.Time) error
	AddTradedSymbol(ctx context.Context, account, symbol string) error
}

// Prober checks a few never-checked symbols per cycle for account trades.
// A symbol is checked once; one that had no trades at that time is not
// looked at again.
type Prober struct {
	account        string
	catalog        *Catalog
	probe          tradeProbe
	store          probeStore
	probesPerCycle int
	logger         *zap.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
}

func NewProber(
	account string,
	catalog *Catalog,
	probe tradeProbe,
	store probeStore,
	probesPerCycle int,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Prober {
	if probesPerCycle <= 0 {
		probesPerCycle = DefaultProbesPerCycle
	}
	return &Prober{
		account:        account,
		catalog:        catalog,
		probe:          probe,
		store:          store,
		probesPerCycle: probesPerCycle,
		logger:         logger,
		metrics:        m,
		now:            time.Now,
	}
}

// Cycle probes up to probesPerCycle symbols and returns how many were probed.
// A failed probe ends the cycle without marking its symbol.
func (p *Prober) Cycle(ctx context.Context) (int, error) {
	symbols, err := p.catalog.Symbols(ctx)
	if err != nil {
		return 0, err
	}

	checked, err := p.store.SymbolChecks(ctx, p.account)
	if err != nil {
		return 0, errors.Wrap(err, "load symbol checks")
	}
	traded, err := p.tradedSet(ctx)
	if err != nil {
		return 0, err
	}

	probed := 0
	for _, s := range symbols {
		if probed >= p.probesPerCycle {
			break
		}
		if _, ok := checked[s.Symbol]; ok {
			continue
		}
		if _, ok := traded[s.Symbol]; ok {
			continue
		}

		found, err := p.probeSymbol(ctx, s.Symbol)
		if err != nil {
			return probed, errors.Wrapf(err, "probe %s", s.Symbol)
		}
		probed++

		if err := p.store.MarkSymbolChecked(ctx, p.account, s.Symbol, p.now().UTC()); err != nil {
			return probed, errors.Wrapf(err, "mark %s checked", s.Symbol)
		}
		if found {
			p.logger.Info("Trades found, adding symbol to sync list", zap.String("symbol", s.Symbol))
			if err := p.store.AddTradedSymbol(ctx, p.account, s.Symbol); err != nil {
				return probed, errors.Wrapf(err, "add traded symbol %s", s.Symbol)
			}
		}
	}

	if probed > 0 {
		p.logger.Debug("Updated new traded symbols", zap.Int("probed", probed))
	}
	return probed, nil
}

func (p *Prober) probeSymbol(ctx context.Context, symbol string) (bool, error) {
	page, err := p.probe.TradeHistory(ctx, gateway.Query{Symbol: symbol, Limit: 1})
	if err != nil {
		p.metrics.SymbolProbed(p.account, "error")
		return false, err
	}
	if len(page.Records) == 0 {
		p.metrics.SymbolProbed(p.account, "empty")
		return false, nil
	}
	p.metrics.SymbolProbed(p.account, "traded")
	return true, nil
}

func (p *Prober) tradedSet(ctx context.Context) (map[string]struct{}, error) {
	traded, err := p.store.TradedSymbols(ctx, p.account)
	if err != nil {
		return nil, errors.Wrap(err, "load traded symbols")
	}
	set := make(map[string]struct{}, len(traded))
	for _, t := range traded {
		set[t.Symbol] = struct{}{}
	}
	return set, nil
}
