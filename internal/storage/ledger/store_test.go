package ledger

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/exscraper/internal/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNew_NilDB(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, ErrNilDatabase)
}

func TestInsertIncomes_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	incomes := []domain.Income{
		{Symbol: "BTCUSDT", Asset: "USDT", Type: "REALIZED_PNL", Income: decimal.NewFromInt(10), Timestamp: 1000, TransactionID: "1"},
		{Symbol: "BTCUSDT", Asset: "USDT", Type: "FUNDING_FEE", Income: decimal.NewFromFloat(-0.5), Timestamp: 2000, TransactionID: "2"},
	}

	n, err := store.InsertIncomes(ctx, "main", incomes)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.InsertIncomes(ctx, "main", incomes)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	stored, err := store.IncomesSince(ctx, "main", 0)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.True(t, stored[1].Income.Equal(decimal.NewFromFloat(-0.5)))

	// the same transaction id under another account is a different record
	n, err = store.InsertIncomes(ctx, "other", incomes[:1])
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIncomeBounds(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, _, ok, err := store.IncomeBounds(ctx, "main")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.InsertIncomes(ctx, "main", []domain.Income{
		{TransactionID: "a", Timestamp: 300, Income: decimal.NewFromInt(1)},
		{TransactionID: "b", Timestamp: 100, Income: decimal.NewFromInt(1)},
		{TransactionID: "c", Timestamp: 200, Income: decimal.NewFromInt(1)},
	})
	require.NoError(t, err)

	oldest, newest, ok, err := store.IncomeBounds(ctx, "main")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(100), oldest)
	assert.Equal(t, int64(300), newest)
}

func TestInsertTrades_IdempotentAndOrdered(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	trades := []domain.Trade{
		{Symbol: "ETHUSDT", Asset: "ETH", OrderID: "2", Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(200), Side: domain.SideBuy, Timestamp: 20},
		{Symbol: "ETHUSDT", Asset: "ETH", OrderID: "1", Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(100), Side: domain.SideBuy, Timestamp: 10},
	}
	n, err := store.InsertTrades(ctx, "spot", trades)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.InsertTrades(ctx, "spot", trades)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	stored, err := store.Trades(ctx, "spot", "ETHUSDT")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "1", stored[0].OrderID)
	assert.Equal(t, domain.SideBuy, stored[0].Side)

	oldest, newest, ok, err := store.TradeBounds(ctx, "spot", "ETHUSDT")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(10), oldest)
	assert.Equal(t, int64(20), newest)
}

func TestReplaceBalance(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	b, err := store.Balance(ctx, "main")
	require.NoError(t, err)
	assert.Nil(t, b)

	require.NoError(t, store.ReplaceBalance(ctx, "main", domain.Balance{
		TotalBalance: decimal.NewFromInt(1000),
		Assets:       []domain.AssetBalance{{Asset: "USDT", Balance: decimal.NewFromInt(1000)}},
	}))
	require.NoError(t, store.ReplaceBalance(ctx, "main", domain.Balance{
		TotalBalance:          decimal.NewFromInt(1200),
		TotalUnrealizedProfit: decimal.NewFromInt(5),
		Assets: []domain.AssetBalance{
			{Asset: "BNB", Balance: decimal.NewFromInt(200)},
			{Asset: "USDT", Balance: decimal.NewFromInt(1000)},
		},
	}))

	b, err = store.Balance(ctx, "main")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, b.TotalBalance.Equal(decimal.NewFromInt(1200)))
	require.Len(t, b.Assets, 2)
	assert.Equal(t, "BNB", b.Assets[0].Asset)

	accounts, err := store.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, accounts)
}

func TestReplacePositions_ConcurrentReadersSeeWholeSets(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	makeSet := func(n int) []domain.Position {
		out := make([]domain.Position, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, domain.Position{
				Symbol:     "SYM" + string(rune('A'+i)),
				EntryPrice: decimal.NewFromInt(100),
				Size:       decimal.NewFromInt(1),
				Side:       domain.PositionSideLong,
			})
		}
		return out
	}
	small, large := makeSet(2), makeSet(5)
	require.NoError(t, store.ReplacePositions(ctx, "main", small))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			set := small
			if i%2 == 0 {
				set = large
			}
			assert.NoError(t, store.ReplacePositions(ctx, "main", set))
		}
	}()

	for i := 0; i < 50; i++ {
		got, err := store.Positions(ctx, "main")
		require.NoError(t, err)
		assert.Contains(t, []int{len(small), len(large)}, len(got))
	}
	wg.Wait()
}

func TestReplaceOrders(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceOrders(ctx, "main", []domain.Order{
		{Symbol: "BTCUSDT", Price: decimal.NewFromInt(50000), Quantity: decimal.NewFromFloat(0.1), Side: domain.SideBuy, PositionSide: domain.PositionSideLong, Type: "LIMIT"},
	}))
	require.NoError(t, store.ReplaceOrders(ctx, "main", nil))

	orders, err := store.Orders(ctx, "main")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestUpsertPrice(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertPrice(ctx, "main", domain.Tick{Symbol: "BTCUSDT", Price: decimal.NewFromInt(1), Timestamp: 1}))
	require.NoError(t, store.UpsertPrice(ctx, "main", domain.Tick{Symbol: "BTCUSDT", Price: decimal.NewFromInt(2), Timestamp: 2}))

	ticks, err := store.Prices(ctx, "main")
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.True(t, ticks[0].Price.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, int64(2), ticks[0].Timestamp)
}

func TestTradedSymbols(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, s := range []string{"BTCUSDT", "ETHUSDT", "BNBUSDT"} {
		require.NoError(t, store.AddTradedSymbol(ctx, "spot", s))
	}
	require.NoError(t, store.AddTradedSymbol(ctx, "spot", "BTCUSDT"))

	now := time.Now()
	require.NoError(t, store.MarkTradesDownloaded(ctx, "spot", "BNBUSDT", now))
	require.NoError(t, store.MarkTradesDownloaded(ctx, "spot", "BTCUSDT", now.Add(-time.Hour)))

	next, err := store.NextTradedSymbols(ctx, "spot", 2)
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.Equal(t, "ETHUSDT", next[0].Symbol)
	assert.Nil(t, next[0].LastTradesDownloaded)
	assert.Equal(t, "BTCUSDT", next[1].Symbol)

	all, err := store.TradedSymbols(ctx, "spot")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSymbolChecks(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MarkSymbolChecked(ctx, "spot", "XRPUSDT", time.Now()))
	require.NoError(t, store.MarkSymbolChecked(ctx, "spot", "XRPUSDT", time.Now()))

	checks, err := store.SymbolChecks(ctx, "spot")
	require.NoError(t, err)
	assert.Len(t, checks, 1)
	assert.Contains(t, checks, "XRPUSDT")
}

func TestReplaceDailyBalances(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.ReplaceDailyBalances(ctx, "main", []domain.DailyBalance{
		{Day: day.AddDate(0, 0, -1), TotalWalletBalance: decimal.NewFromInt(950)},
		{Day: day, TotalWalletBalance: decimal.NewFromInt(1000)},
	}))
	require.NoError(t, store.ReplaceDailyBalances(ctx, "main", []domain.DailyBalance{
		{Day: day, TotalWalletBalance: decimal.NewFromInt(1000)},
	}))

	series, err := store.DailyBalances(ctx, "main")
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.True(t, series[0].Day.Equal(day))
}

func TestBalance_ConcurrentReadersSeeWholeReplace(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	single := domain.Balance{
		TotalBalance: decimal.NewFromInt(1000),
		Assets:       []domain.AssetBalance{{Asset: "USDT", Balance: decimal.NewFromInt(1000)}},
	}
	double := domain.Balance{
		TotalBalance: decimal.NewFromInt(1500),
		Assets: []domain.AssetBalance{
			{Asset: "BNB", Balance: decimal.NewFromInt(500)},
			{Asset: "USDT", Balance: decimal.NewFromInt(1000)},
		},
	}
	require.NoError(t, store.ReplaceBalance(ctx, "main", single))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			b := single
			if i%2 == 0 {
				b = double
			}
			assert.NoError(t, store.ReplaceBalance(ctx, "main", b))
		}
	}()

	for i := 0; i < 50; i++ {
		b, err := store.Balance(ctx, "main")
		require.NoError(t, err)
		require.NotNil(t, b)

		sum := decimal.Zero
		for _, a := range b.Assets {
			sum = sum.Add(a.Balance)
		}
		assert.True(t, sum.Equal(b.TotalBalance), "total %s, assets sum %s", b.TotalBalance, sum)
	}
	wg.Wait()
}

func TestStoredIncomeIDs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.InsertIncomes(ctx, "spot", []domain.Income{
		{Symbol: "ETHBTC", Asset: "USDT", Type: domain.IncomeTypeRealizedPnL, Income: decimal.NewFromInt(3), Timestamp: 1000, TransactionID: "7"},
	})
	require.NoError(t, err)

	ids := []string{"7", "8"}
	for i := 0; i < 1200; i++ {
		ids = append(ids, "x"+strconv.Itoa(i))
	}
	stored, err := store.StoredIncomeIDs(ctx, "spot", ids)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"7": true}, stored)

	other, err := store.StoredIncomeIDs(ctx, "main", []string{"7"})
	require.NoError(t, err)
	assert.Empty(t, other)
}
