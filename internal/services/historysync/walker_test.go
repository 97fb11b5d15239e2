package historysync

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/exscraper/internal/services/gateway"
)

const testFloor = int64(1_500_000_000_000)

// memLedger stores bare timestamps; duplicates are dropped like the real store.
type memLedger struct {
	ts map[int64]struct{}
}

func newMemLedger(ts ...int64) *memLedger {
	l := &memLedger{ts: make(map[int64]struct{})}
	for _, t := range ts {
		l.ts[t] = struct{}{}
	}
	return l
}

func (l *memLedger) bounds(context.Context) (int64, int64, bool, error) {
	if len(l.ts) == 0 {
		return 0, 0, false, nil
	}
	sorted := l.sorted()
	return sorted[0], sorted[len(sorted)-1], true, nil
}

func (l *memLedger) store(_ context.Context, records []int64) (int64, error) {
	var n int64
	for _, r := range records {
		if _, ok := l.ts[r]; !ok {
			l.ts[r] = struct{}{}
			n++
		}
	}
	return n, nil
}

func (l *memLedger) sorted() []int64 {
	out := make([]int64, 0, len(l.ts))
	for t := range l.ts {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// scripted records every query and answers it with fn.
type scripted struct {
	queries []gateway.Query
	fn      func(q gateway.Query) (gateway.Page[int64], error)
}

func (s *scripted) fetch(_ context.Context, q gateway.Query) (gateway.Page[int64], error) {
	s.queries = append(s.queries, q)
	return s.fn(q)
}

func (s *scripted) count(dir Direction) int {
	n := 0
	for _, q := range s.queries {
		if dir == Backward && q.EndTime > 0 || dir == Forward && q.StartTime > 0 {
			n++
		}
	}
	return n
}

func newTestWalker(l *memLedger, s *scripted, opts Options) *walker[int64] {
	w := newWalker("main", stream[int64]{
		name:   "test",
		floor:  testFloor,
		bounds: l.bounds,
		fetch:  s.fetch,
		store:  l.store,
	}, opts, zap.NewNop(), nil)
	w.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return w
}

func empty(gateway.Query) (gateway.Page[int64], error) {
	return gateway.Page[int64]{}, nil
}

func TestWalker_BackwardTerminatesOnFirstEmptyPage(t *testing.T) {
	l := newMemLedger(1_600_000_000_000)
	s := &scripted{fn: empty}
	w := newTestWalker(l, s, Options{})

	res, err := w.cycle(context.Background())
	require.NoError(t, err)

	assert.True(t, res.FirstReached)
	assert.True(t, res.CaughtUp)
	assert.Equal(t, 1, s.count(Backward))
	assert.Equal(t, 1, s.count(Forward))

	// backward stays done for the process lifetime
	_, err = w.cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.count(Backward))
	assert.Equal(t, 2, s.count(Forward))
}

func TestWalker_EmptyStoreQueries(t *testing.T) {
	l := newMemLedger()
	s := &scripted{fn: empty}
	w := newTestWalker(l, s, Options{PageLimit: 500})

	_, err := w.cycle(context.Background())
	require.NoError(t, err)
	require.Len(t, s.queries, 2)

	assert.Equal(t, int64(1_700_000_000_000), s.queries[0].EndTime, "backward starts at now")
	assert.Zero(t, s.queries[0].StartTime)
	assert.Equal(t, testFloor, s.queries[1].StartTime, "forward starts at the epoch floor")
	assert.Zero(t, s.queries[1].EndTime)
	assert.Equal(t, 500, s.queries[1].Limit)
}

func TestWalker_BoundariesShiftByOneMillisecond(t *testing.T) {
	l := newMemLedger(1_600_000_000_100, 1_600_000_000_200)
	s := &scripted{fn: empty}
	w := newTestWalker(l, s, Options{})

	_, err := w.cycle(context.Background())
	require.NoError(t, err)
	require.Len(t, s.queries, 2)

	assert.Equal(t, int64(1_600_000_000_099), s.queries[0].EndTime)
	assert.Equal(t, int64(1_600_000_000_201), s.queries[1].StartTime)
}

func TestWalker_BudgetPerCursor(t *testing.T) {
	l := newMemLedger(1_600_000_000_000)
	// every page holds one record just past the requested boundary, and is
	// short, so only the budget can stop the walk
	s := &scripted{fn: func(q gateway.Query) (gateway.Page[int64], error) {
		if q.EndTime > 0 {
			return gateway.Page[int64]{Records: []int64{q.EndTime - 10}}, nil
		}
		return gateway.Page[int64]{Records: []int64{q.StartTime + 10}}, nil
	}}
	w := newTestWalker(l, s, Options{MaxFetchesPerCycle: 3})

	res, err := w.cycle(context.Background())
	require.NoError(t, err)

	assert.False(t, res.FirstReached)
	assert.False(t, res.CaughtUp)
	assert.Equal(t, int64(6), res.Stored)
	assert.Equal(t, 3, s.count(Backward))
	assert.Equal(t, 3, s.count(Forward))

	// each query reflects rows committed by the previous page
	assert.Equal(t, int64(1_600_000_000_000-1), s.queries[0].EndTime)
	assert.Equal(t, int64(1_600_000_000_000-1-10-1), s.queries[1].EndTime)
	assert.Equal(t, int64(1_600_000_000_000+1), s.queries[3].StartTime)
	assert.Equal(t, int64(1_600_000_000_000+1+10+1), s.queries[4].StartTime)
}

func TestWalker_CursorChaseIsOneLogicalPage(t *testing.T) {
	l := newMemLedger()
	s := &scripted{fn: func(q gateway.Query) (gateway.Page[int64], error) {
		if q.StartTime == 0 {
			return gateway.Page[int64]{}, nil
		}
		n, _ := strconv.Atoi(q.Cursor)
		if n == 4 {
			return gateway.Page[int64]{}, nil
		}
		return gateway.Page[int64]{
			Records: []int64{q.StartTime + int64(n)},
			Next:    strconv.Itoa(n + 1),
		}, nil
	}}
	w := newTestWalker(l, s, Options{MaxFetchesPerCycle: 1})

	res, err := w.cycle(context.Background())
	require.NoError(t, err)

	// five forward requests fit into the single allowed logical page
	assert.Equal(t, 5, s.count(Forward))
	assert.Equal(t, int64(4), res.Stored)
	assert.False(t, res.CaughtUp, "the logical page had records")
}

func TestWalker_ChaseCapParksCursor(t *testing.T) {
	l := newMemLedger(1_600_000_000_000)
	s := &scripted{fn: func(q gateway.Query) (gateway.Page[int64], error) {
		if q.EndTime > 0 {
			return gateway.Page[int64]{}, nil
		}
		n, _ := strconv.Atoi(q.Cursor)
		return gateway.Page[int64]{Next: strconv.Itoa(n + 1)}, nil
	}}
	w := newTestWalker(l, s, Options{MaxFetchesPerCycle: 1, MaxCursorPages: 2})

	res, err := w.cycle(context.Background())
	require.NoError(t, err)
	assert.False(t, res.CaughtUp)
	require.Contains(t, w.pending, Forward)
	assert.Equal(t, "2", w.pending[Forward].Cursor)

	_, err = w.cycle(context.Background())
	require.NoError(t, err)

	last := s.queries[len(s.queries)-2]
	assert.Equal(t, "2", last.Cursor, "resumed from the parked cursor")
	assert.Equal(t, int64(1_600_000_000_001), last.StartTime)
	assert.Equal(t, "4", w.pending[Forward].Cursor)
}

func TestWalker_BackwardFailureStillRunsForward(t *testing.T) {
	l := newMemLedger(1_600_000_000_000)
	s := &scripted{fn: func(q gateway.Query) (gateway.Page[int64], error) {
		if q.EndTime > 0 {
			return gateway.Page[int64]{}, errors.New("rate limited")
		}
		return gateway.Page[int64]{}, nil
	}}
	w := newTestWalker(l, s, Options{})

	res, err := w.cycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.False(t, res.FirstReached)
	assert.True(t, res.CaughtUp)
	assert.Equal(t, 1, s.count(Backward))
}
