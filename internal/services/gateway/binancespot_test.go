package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSpotTestGateway(t *testing.T, handler http.HandlerFunc) *BinanceSpot {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := binance.NewClient("key", "secret")
	client.BaseURL = srv.URL
	return NewBinanceSpot(client)
}

const twoTrades = `[
  {"symbol":"ETHUSDT","id":11,"orderId":101,"price":"1800.5","qty":"2","quoteQty":"3601","commission":"0","commissionAsset":"ETH","time":1650000002000,"isBuyer":true,"isMaker":false,"isBestMatch":true},
  {"symbol":"ETHUSDT","id":12,"orderId":102,"price":"1900","qty":"1","quoteQty":"1900","commission":"0","commissionAsset":"USDT","time":1650000003000,"isBuyer":false,"isMaker":false,"isBestMatch":true}
]`

func TestBinanceSpot_TradeHistoryBackward(t *testing.T) {
	var gotEnd string
	g := newSpotTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/myTrades", r.URL.Path)
		gotEnd = r.URL.Query().Get("endTime")
		_, _ = w.Write([]byte(twoTrades))
	})

	page, err := g.TradeHistory(context.Background(), Query{Symbol: "ETHUSDT", EndTime: 1_650_000_004_999, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, "1650000004999", gotEnd)
	require.Len(t, page.Records, 2)
	assert.Empty(t, page.Next)

	first := page.Records[0]
	assert.Equal(t, "101", first.OrderID)
	assert.True(t, first.IsBuyer)
	assert.Equal(t, "1800.5", first.Price.String())
	assert.Equal(t, int64(1_650_000_002_000), first.Timestamp)
}

func TestBinanceSpot_TradeHistoryForwardFiltersAndChases(t *testing.T) {
	g := newSpotTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(twoTrades))
	})

	// a full page entirely after the start may hide older fills
	page, err := g.TradeHistory(context.Background(), Query{Symbol: "ETHUSDT", StartTime: 1_650_000_001_500, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Records, 2)
	assert.Equal(t, "1650000001999", page.Next)

	// start falls inside the page: gap closed
	page, err = g.TradeHistory(context.Background(), Query{Symbol: "ETHUSDT", StartTime: 1_650_000_002_500, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "102", page.Records[0].OrderID)
	assert.Empty(t, page.Next)
}

func TestBinanceSpot_TradeHistoryRequiresSymbol(t *testing.T) {
	g := NewBinanceSpot(binance.NewClient("", ""))
	_, err := g.TradeHistory(context.Background(), Query{})
	require.Error(t, err)
}

func TestBinanceSpot_InvalidSymbolMapsToUnknownSymbol(t *testing.T) {
	g := newSpotTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})

	_, err := g.HistoricalClose(context.Background(), "FOOUSDT", 1_650_000_000_000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownSymbol))

	_, err = g.TradeHistory(context.Background(), Query{Symbol: "FOOUSDT"})
	assert.True(t, errors.Is(err, ErrUnknownSymbol))
}
