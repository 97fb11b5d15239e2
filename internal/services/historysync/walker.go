// Package historysync backfills and then follows exchange history with two
// independent cursors per stream.
package historysync

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vadiminshakov/exscraper/internal/metrics"
	"github.com/vadiminshakov/exscraper/internal/services/gateway"
)

const (
	DefaultMaxFetchesPerCycle = 3
	DefaultMaxCursorPages     = 20
)

// Direction identifies one of the two cursors.
type Direction string

const (
	Backward Direction = "backward"
	Forward  Direction = "forward"
)

// Options bound the per-cycle work of a walker.
type Options struct {
	// MaxFetchesPerCycle is the number of logical pages each cursor may fetch per cycle.
	MaxFetchesPerCycle int
	// MaxCursorPages caps requests made while chasing one logical page's cursor.
	MaxCursorPages int
	// PageLimit is passed to the exchange as the page size.
	PageLimit int
}

func (o Options) withDefaults() Options {
	if o.MaxFetchesPerCycle <= 0 {
		o.MaxFetchesPerCycle = DefaultMaxFetchesPerCycle
	}
	if o.MaxCursorPages <= 0 {
		o.MaxCursorPages = DefaultMaxCursorPages
	}
	if o.PageLimit <= 0 {
		o.PageLimit = gateway.DefaultPageLimit
	}
	return o
}

// CycleResult reports where both cursors stand after a cycle.
type CycleResult struct {
	FirstReached bool
	CaughtUp     bool
	Stored       int64
}

// stream binds a walker to one record kind: where its stored bounds come from,
// how a page is fetched and how records are persisted.
type stream[T any] struct {
	name   string
	symbol string
	floor  int64
	bounds func(ctx context.Context) (oldest, newest int64, ok bool, err error)
	fetch  func(ctx context.Context, q gateway.Query) (gateway.Page[T], error)
	store  func(ctx context.Context, records []T) (int64, error)
}

type walker[T any] struct {
	account string
	src     stream[T]
	opts    Options
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Metrics

	// firstReached lives for the process lifetime; a restart re-walks from the
	// stored oldest row and ends on the first empty page.
	firstReached bool
	pending      map[Direction]*gateway.Query
}

func newWalker[T any](account string, src stream[T], opts Options, logger *zap.Logger, m *metrics.Metrics) *walker[T] {
	return &walker[T]{
		account: account,
		src:     src,
		opts:    opts.withDefaults(),
		now:     time.Now,
		logger:  logger,
		metrics: m,
		pending: make(map[Direction]*gateway.Query),
	}
}

// cycle runs the backward cursor until history is backfilled, then the forward
// cursor until it is caught up, each within the fetch budget. A failure in one
// direction does not skip the other.
func (w *walker[T]) cycle(ctx context.Context) (CycleResult, error) {
	var (
		res  CycleResult
		errs error
	)

	for i := 0; i < w.opts.MaxFetchesPerCycle && !w.firstReached; i++ {
		n, exhausted, err := w.logicalPage(ctx, Backward)
		res.Stored += n
		if err != nil {
			errs = multierr.Append(errs, errors.Wrap(err, "backward"))
			break
		}
		if exhausted {
			w.firstReached = true
			w.logger.Info("History backfilled",
				zap.String("stream", w.src.name),
				zap.String("symbol", w.src.symbol))
		}
	}
	res.FirstReached = w.firstReached

	for i := 0; i < w.opts.MaxFetchesPerCycle; i++ {
		n, exhausted, err := w.logicalPage(ctx, Forward)
		res.Stored += n
		if err != nil {
			errs = multierr.Append(errs, errors.Wrap(err, "forward"))
			break
		}
		if exhausted {
			res.CaughtUp = true
			break
		}
	}

	w.metrics.SetHistoryDone(w.account, w.src.name, string(Backward), res.FirstReached)
	w.metrics.SetHistoryDone(w.account, w.src.name, string(Forward), res.CaughtUp)

	return res, errs
}

// logicalPage issues one query and chases its continuation cursor. It reports
// exhausted when the whole logical page held no records and no cursor is left.
// If the chase cap is hit the query is parked so the next call resumes it.
func (w *walker[T]) logicalPage(ctx context.Context, dir Direction) (stored int64, exhausted bool, err error) {
	q, err := w.nextQuery(ctx, dir)
	if err != nil {
		return 0, false, err
	}

	records := 0
	for req := 0; req < w.opts.MaxCursorPages; req++ {
		page, err := w.src.fetch(ctx, q)
		if err != nil {
			w.park(dir, q)
			return stored, false, errors.Wrapf(err, "fetch %s page", w.src.name)
		}
		w.metrics.PageFetched(w.account, string(dir))

		if len(page.Records) > 0 {
			records += len(page.Records)
			n, err := w.src.store(ctx, page.Records)
			if err != nil {
				w.park(dir, q)
				return stored, false, errors.Wrapf(err, "store %s page", w.src.name)
			}
			stored += n
		}

		if page.Next == "" {
			return stored, records == 0, nil
		}
		q.Cursor = page.Next
	}

	w.park(dir, q)
	w.metrics.ChaseCapped(w.account)
	w.logger.Debug("Cursor chase capped, resuming next fetch",
		zap.String("stream", w.src.name),
		zap.String("direction", string(dir)),
		zap.Int("records", records))
	return stored, false, nil
}

// nextQuery returns a parked query for dir, or builds one from the stored
// bounds. Backward pages end 1ms before the oldest row and forward pages start
// 1ms after the newest so boundary records are not fetched twice.
func (w *walker[T]) nextQuery(ctx context.Context, dir Direction) (gateway.Query, error) {
	if q, ok := w.pending[dir]; ok {
		delete(w.pending, dir)
		return *q, nil
	}

	oldest, newest, ok, err := w.src.bounds(ctx)
	if err != nil {
		return gateway.Query{}, errors.Wrapf(err, "read %s bounds", w.src.name)
	}

	q := gateway.Query{Symbol: w.src.symbol, Limit: w.opts.PageLimit}
	switch dir {
	case Backward:
		if ok {
			q.EndTime = oldest - 1
		} else {
			q.EndTime = w.now().UnixMilli()
		}
	case Forward:
		if ok {
			q.StartTime = newest + 1
		} else {
			q.StartTime = w.src.floor
		}
	}
	return q, nil
}

// park keeps a query only when it carries a cursor; a cursorless query is
// rebuilt from the store anyway.
func (w *walker[T]) park(dir Direction, q gateway.Query) {
	if q.Cursor == "" {
		return
	}
	w.pending[dir] = &q
}
