package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/exscraper/internal/domain"
	"github.com/vadiminshakov/exscraper/internal/services/gateway"
	"github.com/vadiminshakov/exscraper/internal/storage/ledger"
)

type mockSpot struct {
	mock.Mock
}

func (m *mockSpot) Symbols(ctx context.Context) ([]domain.SymbolInfo, error) {
	args := m.Called()
	return args.Get(0).([]domain.SymbolInfo), args.Error(1)
}

func (m *mockSpot) TradeHistory(ctx context.Context, q gateway.Query) (gateway.Page[gateway.TradeRecord], error) {
	args := m.Called(q.Symbol)
	return args.Get(0).(gateway.Page[gateway.TradeRecord]), args.Error(1)
}

var listing = []domain.SymbolInfo{
	{Symbol: "ETHBTC", BaseAsset: "ETH", QuoteAsset: "BTC"},
	{Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT"},
	{Symbol: "BNBETH", BaseAsset: "BNB", QuoteAsset: "ETH"},
	{Symbol: "ETHUSDC", BaseAsset: "ETH", QuoteAsset: "USDC"},
	{Symbol: "PAXGUSDP", BaseAsset: "PAXG", QuoteAsset: "USDP"},
}

func setupStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(ledger.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCatalog_USDQuotedFirst(t *testing.T) {
	spot := new(mockSpot)
	spot.On("Symbols").Return(listing, nil).Once()

	c := NewCatalog(spot)
	symbols, err := c.Symbols(context.Background())
	require.NoError(t, err)

	var names []string
	for _, s := range symbols {
		names = append(names, s.Symbol)
	}
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDC", "PAXGUSDP", "ETHBTC", "BNBETH"}, names)

	quote, err := c.QuoteAsset(context.Background(), "BNBETH")
	require.NoError(t, err)
	assert.Equal(t, "ETH", quote)

	_, err = c.QuoteAsset(context.Background(), "NOPE")
	assert.True(t, errors.Is(err, gateway.ErrUnknownSymbol))

	spot.AssertExpectations(t)
}

func TestCatalog_ReloadsAfterFailure(t *testing.T) {
	spot := new(mockSpot)
	spot.On("Symbols").Return([]domain.SymbolInfo(nil), errors.New("timeout")).Once()
	spot.On("Symbols").Return(listing, nil).Once()

	c := NewCatalog(spot)
	_, err := c.Symbols(context.Background())
	require.Error(t, err)

	symbols, err := c.Symbols(context.Background())
	require.NoError(t, err)
	assert.Len(t, symbols, len(listing))
}

func TestProber_ProbesThreePerCycleAndNeverReprobes(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	// checked by an earlier process run
	require.NoError(t, store.MarkSymbolChecked(ctx, "spot", "BTCUSDT", time.Now()))

	spot := new(mockSpot)
	spot.On("Symbols").Return(listing, nil)
	spot.On("TradeHistory", "ETHUSDC").Return(gateway.Page[gateway.TradeRecord]{
		Records: []gateway.TradeRecord{{Symbol: "ETHUSDC", OrderID: "1"}},
	}, nil).Once()
	spot.On("TradeHistory", "PAXGUSDP").Return(gateway.Page[gateway.TradeRecord]{}, nil).Once()
	spot.On("TradeHistory", "ETHBTC").Return(gateway.Page[gateway.TradeRecord]{}, nil).Once()
	spot.On("TradeHistory", "BNBETH").Return(gateway.Page[gateway.TradeRecord]{}, nil).Once()

	p := NewProber("spot", NewCatalog(spot), spot, store, 0, zap.NewNop(), nil)

	probed, err := p.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, probed)

	traded, err := store.TradedSymbols(ctx, "spot")
	require.NoError(t, err)
	require.Len(t, traded, 1)
	assert.Equal(t, "ETHUSDC", traded[0].Symbol)

	probed, err = p.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, probed)

	probed, err = p.Cycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, probed)

	spot.AssertNotCalled(t, "TradeHistory", "BTCUSDT")
	spot.AssertExpectations(t)
}

func TestProber_FailedProbeIsNotMarked(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	spot := new(mockSpot)
	spot.On("Symbols").Return(listing[:1], nil)
	spot.On("TradeHistory", "ETHBTC").Return(gateway.Page[gateway.TradeRecord]{}, errors.New("429")).Once()
	spot.On("TradeHistory", "ETHBTC").Return(gateway.Page[gateway.TradeRecord]{}, nil).Once()

	p := NewProber("spot", NewCatalog(spot), spot, store, 3, zap.NewNop(), nil)

	_, err := p.Cycle(ctx)
	require.Error(t, err)

	checks, err := store.SymbolChecks(ctx, "spot")
	require.NoError(t, err)
	assert.Empty(t, checks)

	probed, err := p.Cycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, probed)
}
