package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/exscraper/internal/domain"
)

const symbolStatusTrading = "TRADING"

// BinanceSpot reads a spot account, where history is a per-symbol fill list.
type BinanceSpot struct {
	client *binance.Client
	now    func() time.Time
}

func NewBinanceSpot(client *binance.Client) *BinanceSpot {
	return &BinanceSpot{client: client, now: time.Now}
}

func (g *BinanceSpot) Exchange() domain.Exchange { return domain.ExchangeBinanceSpot }

// TradeHistory pages fills of q.Symbol.
//
// The exchange serves at most 24h when a start time is given, but returns the
// latest fills before an end time without that restriction. Backward queries
// use EndTime directly. Forward queries read the latest fills and keep those
// at or after StartTime; when the whole page qualifies there may be a gap
// behind it, and Next carries the end time to continue from.
func (g *BinanceSpot) TradeHistory(ctx context.Context, q Query) (Page[TradeRecord], error) {
	if q.Symbol == "" {
		return Page[TradeRecord]{}, errors.New("binance spot trade history requires a symbol")
	}
	limit := q.PageLimit()
	svc := g.client.NewListTradesService().Symbol(q.Symbol).Limit(limit)

	forward := q.StartTime > 0
	endTime := q.EndTime
	if q.Cursor != "" {
		end, err := strconv.ParseInt(q.Cursor, 10, 64)
		if err != nil {
			return Page[TradeRecord]{}, errors.Wrapf(err, "invalid trade cursor %q", q.Cursor)
		}
		endTime = end
	}
	if endTime > 0 {
		svc = svc.EndTime(endTime)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return Page[TradeRecord]{}, binanceErr(err, "binance spot trades for %s", q.Symbol)
	}

	records := make([]TradeRecord, 0, len(res))
	oldest := int64(0)
	reachedStart := false
	for _, t := range res {
		ts := domain.NormalizeTimestamp(t.Time)
		if forward && ts < q.StartTime {
			reachedStart = true
			continue
		}
		rec, err := spotTradeRecord(t.Symbol, t.OrderID, t.Price, t.Quantity, t.IsBuyer, ts)
		if err != nil {
			return Page[TradeRecord]{}, err
		}
		records = append(records, rec)
		if oldest == 0 || ts < oldest {
			oldest = ts
		}
	}

	page := Page[TradeRecord]{Records: records}
	if forward && !reachedStart && len(res) >= limit && oldest > q.StartTime {
		page.Next = strconv.FormatInt(oldest-1, 10)
	}
	return page, nil
}

func spotTradeRecord(symbol string, orderID int64, price, qty string, isBuyer bool, ts int64) (TradeRecord, error) {
	p, err := parseDecimal(price, "trade price")
	if err != nil {
		return TradeRecord{}, err
	}
	q, err := parseDecimal(qty, "trade quantity")
	if err != nil {
		return TradeRecord{}, err
	}
	return TradeRecord{
		Symbol:    symbol,
		OrderID:   strconv.FormatInt(orderID, 10),
		Quantity:  q,
		Price:     p,
		IsBuyer:   isBuyer,
		Timestamp: ts,
	}, nil
}

// Symbols lists symbols currently open for trading.
func (g *BinanceSpot) Symbols(ctx context.Context) ([]domain.SymbolInfo, error) {
	info, err := g.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "binance exchange info")
	}
	out := make([]domain.SymbolInfo, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != symbolStatusTrading {
			continue
		}
		out = append(out, domain.SymbolInfo{Symbol: s.Symbol, BaseAsset: s.BaseAsset, QuoteAsset: s.QuoteAsset})
	}
	return out, nil
}

// Prices returns the last price of every symbol.
func (g *BinanceSpot) Prices(ctx context.Context) (map[string]decimal.Decimal, error) {
	res, err := g.client.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "binance prices")
	}
	prices := make(map[string]decimal.Decimal, len(res))
	for _, p := range res {
		price, err := parseDecimal(p.Price, "price")
		if err != nil {
			return nil, err
		}
		prices[p.Symbol] = price
	}
	return prices, nil
}

// AccountSnapshot returns raw asset quantities; valuation happens against
// stored trades and current prices.
func (g *BinanceSpot) AccountSnapshot(ctx context.Context) (*AccountSnapshot, error) {
	acc, err := g.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "binance spot account")
	}

	snap := &AccountSnapshot{}
	for _, b := range acc.Balances {
		free, err := parseDecimal(b.Free, "free balance")
		if err != nil {
			return nil, err
		}
		locked, err := parseDecimal(b.Locked, "locked balance")
		if err != nil {
			return nil, err
		}
		qty := free.Add(locked)
		if !qty.IsPositive() {
			continue
		}
		snap.Holdings = append(snap.Holdings, Holding{Asset: b.Asset, Quantity: qty})
	}
	return snap, nil
}

func (g *BinanceSpot) OpenOrders(ctx context.Context) ([]domain.Order, error) {
	res, err := g.client.NewListOpenOrdersService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "binance spot open orders")
	}
	orders := make([]domain.Order, 0, len(res))
	for _, o := range res {
		price, err := parseDecimal(o.Price, "order price")
		if err != nil {
			return nil, err
		}
		qty, err := parseDecimal(o.OrigQuantity, "order quantity")
		if err != nil {
			return nil, err
		}
		side := domain.Side(strings.ToUpper(string(o.Side)))
		orders = append(orders, domain.Order{
			Symbol:       o.Symbol,
			Price:        price,
			Quantity:     qty,
			Side:         side,
			PositionSide: domain.PositionSideLong,
			Type:         string(o.Type),
		})
	}
	return orders, nil
}

func (g *BinanceSpot) RecentPrice(ctx context.Context, symbol string) (domain.Tick, error) {
	res, err := g.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return domain.Tick{}, binanceErr(err, "binance price for %s", symbol)
	}
	if len(res) == 0 {
		return domain.Tick{}, fmt.Errorf("binance API returned empty prices for %s", symbol)
	}
	price, err := parseDecimal(res[0].Price, "price")
	if err != nil {
		return domain.Tick{}, err
	}
	return domain.Tick{Symbol: symbol, Price: price, Timestamp: g.now().UnixMilli()}, nil
}

func (g *BinanceSpot) HistoricalClose(ctx context.Context, symbol string, ts int64) (decimal.Decimal, error) {
	klines, err := g.client.NewKlinesService().
		Symbol(symbol).
		Interval("1m").
		StartTime(ts - 1000).
		Limit(1).
		Do(ctx)
	if err != nil {
		return decimal.Zero, binanceErr(err, "binance kline for %s", symbol)
	}
	if len(klines) == 0 {
		return decimal.Zero, fmt.Errorf("no kline for %s at %d", symbol, ts)
	}
	return parseDecimal(klines[len(klines)-1].Close, "kline close")
}
