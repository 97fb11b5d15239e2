package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the scraper's Prometheus collectors. All methods are nil-safe
// so services can run without metrics in tests.
type Metrics struct {
	// history
	RecordsStored  *prometheus.CounterVec
	PagesFetched   *prometheus.CounterVec
	HistoryDone    *prometheus.GaugeVec
	CursorChaseCap *prometheus.CounterVec

	// snapshots
	TaskRuns     *prometheus.CounterVec
	TaskErrors   *prometheus.CounterVec
	TaskDuration *prometheus.HistogramVec
	WalletTotal  *prometheus.GaugeVec

	// discovery
	SymbolsProbed  *prometheus.CounterVec
	ActiveSymbols  *prometheus.GaugeVec
	ConversionMiss *prometheus.CounterVec
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		RecordsStored: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_records_stored_total",
			Help: "History records newly inserted into the ledger",
		}, []string{"account", "kind"}),

		PagesFetched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_pages_fetched_total",
			Help: "History pages requested from the exchange",
		}, []string{"account", "direction"}),

		HistoryDone: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scraper_history_complete",
			Help: "1 when the cursor has reached its end for the stream",
		}, []string{"account", "stream", "direction"}),

		CursorChaseCap: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_cursor_chase_capped_total",
			Help: "Logical pages cut short by the cursor chase cap",
		}, []string{"account"}),

		TaskRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_task_runs_total",
			Help: "Completed task iterations",
		}, []string{"account", "task"}),

		TaskErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_task_errors_total",
			Help: "Task iterations that ended with an error",
		}, []string{"account", "task"}),

		TaskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_task_duration_seconds",
			Help:    "Wall time of a single task iteration",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"account", "task"}),

		WalletTotal: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scraper_wallet_total_usd",
			Help: "Last observed total wallet balance in USD",
		}, []string{"account"}),

		SymbolsProbed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_symbols_probed_total",
			Help: "Spot symbols probed for trades, by outcome",
		}, []string{"account", "outcome"}),

		ActiveSymbols: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scraper_active_symbols",
			Help: "Symbols currently tracked for price ticks",
		}, []string{"account"}),

		ConversionMiss: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_usd_conversion_failures_total",
			Help: "Income amounts kept in their native asset",
		}, []string{"asset"}),
	}
}

func (m *Metrics) AddRecords(account, kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsStored.WithLabelValues(account, kind).Add(float64(n))
}

func (m *Metrics) PageFetched(account, direction string) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(account, direction).Inc()
}

func (m *Metrics) SetHistoryDone(account, stream, direction string, done bool) {
	if m == nil {
		return
	}
	v := 0.0
	if done {
		v = 1
	}
	m.HistoryDone.WithLabelValues(account, stream, direction).Set(v)
}

func (m *Metrics) ChaseCapped(account string) {
	if m == nil {
		return
	}
	m.CursorChaseCap.WithLabelValues(account).Inc()
}

// ObserveTask records one task iteration.
func (m *Metrics) ObserveTask(account, task string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.TaskRuns.WithLabelValues(account, task).Inc()
	m.TaskDuration.WithLabelValues(account, task).Observe(time.Since(started).Seconds())
	if err != nil {
		m.TaskErrors.WithLabelValues(account, task).Inc()
	}
}

func (m *Metrics) SetWalletTotal(account string, v float64) {
	if m == nil {
		return
	}
	m.WalletTotal.WithLabelValues(account).Set(v)
}

func (m *Metrics) SymbolProbed(account, outcome string) {
	if m == nil {
		return
	}
	m.SymbolsProbed.WithLabelValues(account, outcome).Inc()
}

func (m *Metrics) SetActiveSymbols(account string, n int) {
	if m == nil {
		return
	}
	m.ActiveSymbols.WithLabelValues(account).Set(float64(n))
}

func (m *Metrics) ConversionFailed(asset string) {
	if m == nil {
		return
	}
	m.ConversionMiss.WithLabelValues(asset).Inc()
}
