// Command exscraper mirrors exchange account history into a local ledger.
// It keeps trade and income history complete in both directions, tracks
// balances, positions, orders and prices, and serves the ledger over HTTP.
//
// Usage:
//
//	exscraper --config config.yaml
//	exscraper --setup
//
// Secrets may be referenced from the config as ${ENV_VAR}.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/exscraper/config"
	"github.com/vadiminshakov/exscraper/internal"
	"github.com/vadiminshakov/exscraper/internal/events"
	"github.com/vadiminshakov/exscraper/internal/metrics"
	"github.com/vadiminshakov/exscraper/internal/setup"
	"github.com/vadiminshakov/exscraper/internal/storage/balancesnapshots"
	"github.com/vadiminshakov/exscraper/internal/storage/ledger"
	"github.com/vadiminshakov/exscraper/internal/web"
)

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	configPath := flags.ConfigPath
	if flags.Setup {
		if configPath, err = setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
	}

	conf, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(conf.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, logger); err != nil {
		logger.Fatal("scraper stopped", zap.Error(err))
	}
	logger.Info("Context done, scraper stopped")
}

func run(ctx context.Context, conf config.Config, logger *zap.Logger) error {
	store, err := ledger.Open(conf.Database.Driver, conf.Database.DSN)
	if err != nil {
		return errors.Wrap(err, "open ledger")
	}
	defer store.Close()

	journal, err := balancesnapshots.Open(conf.WALDir)
	if err != nil {
		return errors.Wrap(err, "open balance journal")
	}
	defer journal.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	bus := events.NewBroadcaster(256)

	scraper, err := internal.NewScraper(conf, store, journal, bus, m, logger)
	if err != nil {
		return err
	}

	aliases := make([]string, 0, len(conf.Accounts))
	for _, acc := range conf.Accounts {
		aliases = append(aliases, acc.Alias)
	}
	server := web.NewServer(conf.HTTPAddr, store, journal, bus,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), aliases, logger.Named("web"))

	g, ctx := errgroup.WithContext(ctx)

	if conf.NATSURL != "" {
		publisher, err := events.ConnectNATS(ctx, conf.NATSURL, logger.Named("nats"))
		if err != nil {
			return errors.Wrap(err, "connect nats")
		}
		defer publisher.Close()
		g.Go(func() error { return publisher.Run(ctx, bus) })
	}

	g.Go(func() error { return server.Start(ctx) })
	g.Go(func() error { return scraper.Run(ctx) })

	logger.Info("scraper started", zap.Int("accounts", len(conf.Accounts)), zap.String("http", conf.HTTPAddr))
	return g.Wait()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "parse log level %s", level)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
