package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBybitTestGateway(t *testing.T, now int64, handler http.HandlerFunc) *Bybit {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g := NewBybit(bybit.NewClient().WithAuth("key", "secret").WithBaseURL(srv.URL))
	g.now = func() time.Time { return time.UnixMilli(now) }
	return g
}

const oneClosedPnL = `{"retCode":0,"retMsg":"OK","retExtInfo":{},"time":1700000100000,"result":{
  "category":"linear","nextPageCursor":"",
  "list":[{"symbol":"BTCUSDT","orderId":"o-1","side":"Sell","qty":"0.01","orderPrice":"30000","orderType":"Market",
    "execType":"Trade","closedSize":"0.01","cumEntryValue":"290","avgEntryPrice":"29000","cumExitValue":"300",
    "avgExitPrice":"30000","closedPnl":"10.5","fillCount":"1","leverage":"10",
    "createdTime":"1699999990000","updatedTime":"1699999990000"}]}}`

func TestBybit_IncomeHistorySendsMillisecondWindow(t *testing.T) {
	var got url.Values
	g := newBybitTestGateway(t, 1_700_000_100_000, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/position/closed-pnl", r.URL.Path)
		got = r.URL.Query()
		_, _ = w.Write([]byte(oneClosedPnL))
	})

	end := int64(1_700_000_000_000)
	page, err := g.IncomeHistory(context.Background(), Query{EndTime: end, Limit: 1000})
	require.NoError(t, err)

	assert.Equal(t, "linear", got.Get("category"))
	assert.Equal(t, strconv.FormatInt(end, 10), got.Get("endTime"))
	assert.Equal(t, strconv.FormatInt(end-bybitWindow.Milliseconds(), 10), got.Get("startTime"))
	assert.Equal(t, "100", got.Get("limit"))

	require.Len(t, page.Records, 1)
	rec := page.Records[0]
	assert.Equal(t, "o-1", rec.TransactionID)
	assert.Equal(t, "BTCUSDT", rec.Symbol)
	assert.Equal(t, "10.5", rec.Amount.String())
	assert.Equal(t, int64(1_699_999_990_000), rec.Timestamp)
	assert.Empty(t, page.Next)
}

func TestBybit_IncomeHistoryStepsOverEmptyForwardWindow(t *testing.T) {
	var got url.Values
	g := newBybitTestGateway(t, 1_700_000_100_000, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","retExtInfo":{},"time":1700000100000,
			"result":{"category":"linear","nextPageCursor":"","list":[]}}`))
	})

	start := int64(1_690_000_000_000)
	page, err := g.IncomeHistory(context.Background(), Query{StartTime: start})
	require.NoError(t, err)
	assert.Empty(t, page.Records)

	end := start + bybitWindow.Milliseconds()
	assert.Equal(t, strconv.FormatInt(start, 10), got.Get("startTime"))
	assert.Equal(t, strconv.FormatInt(end, 10), got.Get("endTime"))
	assert.Equal(t, encodeWindowCursor(end+1, ""), page.Next)
}
