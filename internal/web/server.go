// Package web serves the ledger over HTTP: a JSON read API, server-sent event
// streams of balances and ledger events, and Prometheus metrics.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/exscraper/internal/domain"
	"github.com/vadiminshakov/exscraper/internal/events"
)

const snapshotPollInterval = 2 * time.Second

type ledgerReader interface {
	Balance(ctx context.Context, account string) (*domain.Balance, error)
	Positions(ctx context.Context, account string) ([]domain.Position, error)
	Orders(ctx context.Context, account string) ([]domain.Order, error)
	IncomesSince(ctx context.Context, account string, since int64) ([]domain.Income, error)
	DailyBalances(ctx context.Context, account string) ([]domain.DailyBalance, error)
	Prices(ctx context.Context, account string) ([]domain.Tick, error)
}

type balanceJournal interface {
	After(index uint64, account string) ([]domain.BalanceSnapshotRecord, error)
}

// Server exposes the HTTP endpoints.
type Server struct {
	Addr     string
	Ledger   ledgerReader
	Journal  balanceJournal
	Events   *events.Broadcaster
	Metrics  http.Handler
	Accounts []string
	Logger   *zap.Logger
}

// NewServer creates a new web server instance. journal, bus and metrics may be nil.
func NewServer(addr string, ledger ledgerReader, journal balanceJournal, bus *events.Broadcaster,
	metrics http.Handler, accounts []string, logger *zap.Logger) *Server {
	return &Server{
		Addr:     addr,
		Ledger:   ledger,
		Journal:  journal,
		Events:   bus,
		Metrics:  metrics,
		Accounts: accounts,
		Logger:   logger,
	}
}

// Handler returns the routed endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/accounts", s.handleAccounts)
	mux.HandleFunc("GET /api/accounts/{alias}/balance", s.withAccount(s.handleBalance))
	mux.HandleFunc("GET /api/accounts/{alias}/positions", s.withAccount(s.handlePositions))
	mux.HandleFunc("GET /api/accounts/{alias}/orders", s.withAccount(s.handleOrders))
	mux.HandleFunc("GET /api/accounts/{alias}/incomes", s.withAccount(s.handleIncomes))
	mux.HandleFunc("GET /api/accounts/{alias}/daily-balance", s.withAccount(s.handleDailyBalance))
	mux.HandleFunc("GET /api/accounts/{alias}/prices", s.withAccount(s.handlePrices))
	mux.HandleFunc("GET /balance/stream", s.handleBalanceStream)
	mux.HandleFunc("GET /events/stream", s.handleEventStream)
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics)
	}
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.Logger.Info("HTTP server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
