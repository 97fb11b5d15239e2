package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/exscraper/internal/domain"
)

const (
	// closed PnL queries are limited to a seven day range
	bybitWindow        = 7*24*time.Hour - time.Millisecond
	bybitClosedPnLPage = 100
)

// Bybit reads a unified account's USDT linear derivatives.
type Bybit struct {
	client *bybit.Client
	now    func() time.Time
}

func NewBybit(client *bybit.Client) *Bybit {
	return &Bybit{client: client, now: time.Now}
}

func (g *Bybit) Exchange() domain.Exchange { return domain.ExchangeBybitDerivatives }

// IncomeHistory returns closed PnL records. Each request covers one seven day
// window; the cursor carries the window bound and Bybit's page cursor so an
// empty window can be stepped over instead of ending the walk.
func (g *Bybit) IncomeHistory(ctx context.Context, q Query) (Page[IncomeRecord], error) {
	now := g.now().UnixMilli()
	floor := domain.ExchangeBybitDerivatives.EpochFloor().UnixMilli()
	forward := q.StartTime > 0

	bound, pageCursor, err := decodeWindowCursor(q.Cursor)
	if err != nil {
		return Page[IncomeRecord]{}, err
	}

	var start, end int64
	if forward {
		start = q.StartTime
		if bound > 0 {
			start = bound
		}
		if start > now {
			return Page[IncomeRecord]{}, nil
		}
		end = min(start+bybitWindow.Milliseconds(), now)
	} else {
		end = q.EndTime
		if end <= 0 {
			end = now
		}
		if bound > 0 {
			end = bound
		}
		if end < floor {
			return Page[IncomeRecord]{}, nil
		}
		start = max(end-bybitWindow.Milliseconds(), floor)
	}

	limit := min(q.PageLimit(), bybitClosedPnLPage)
	param := bybit.V5GetClosedPnLParam{
		Category:  bybit.CategoryV5Linear,
		StartTime: &start,
		EndTime:   &end,
		Limit:     &limit,
	}
	if q.Symbol != "" {
		symbol := bybit.SymbolV5(q.Symbol)
		param.Symbol = &symbol
	}
	if pageCursor != "" {
		param.Cursor = &pageCursor
	}

	res, err := g.client.V5().Position().GetClosedPnL(param)
	if err != nil {
		return Page[IncomeRecord]{}, errors.Wrap(err, "bybit closed pnl")
	}

	records := make([]IncomeRecord, 0, len(res.Result.List))
	for _, item := range res.Result.List {
		pnl, err := parseDecimal(item.ClosedPnl, "closed pnl")
		if err != nil {
			return Page[IncomeRecord]{}, err
		}
		created, err := strconv.ParseInt(item.CreatedTime, 10, 64)
		if err != nil {
			return Page[IncomeRecord]{}, errors.Wrapf(err, "parse created time %q", item.CreatedTime)
		}
		records = append(records, IncomeRecord{
			Symbol:        string(item.Symbol),
			Asset:         "USDT",
			Type:          domain.IncomeTypeRealizedPnL,
			Amount:        pnl,
			Timestamp:     domain.NormalizeTimestamp(created),
			TransactionID: item.OrderID,
		})
	}

	page := Page[IncomeRecord]{Records: records}
	switch {
	case res.Result.NextPageCursor != "":
		windowBound := end
		if forward {
			windowBound = start
		}
		page.Next = encodeWindowCursor(windowBound, res.Result.NextPageCursor)
	case len(records) == 0 && forward && end < now:
		page.Next = encodeWindowCursor(end+1, "")
	case len(records) == 0 && !forward && start > floor:
		page.Next = encodeWindowCursor(start-1, "")
	}
	return page, nil
}

func encodeWindowCursor(bound int64, pageCursor string) string {
	return strconv.FormatInt(bound, 10) + "|" + pageCursor
}

func decodeWindowCursor(cursor string) (int64, string, error) {
	if cursor == "" {
		return 0, "", nil
	}
	boundStr, pageCursor, ok := strings.Cut(cursor, "|")
	if !ok {
		return 0, "", fmt.Errorf("invalid window cursor %q", cursor)
	}
	bound, err := strconv.ParseInt(boundStr, 10, 64)
	if err != nil {
		return 0, "", errors.Wrapf(err, "invalid window cursor %q", cursor)
	}
	return bound, pageCursor, nil
}

// AccountSnapshot reads the unified wallet and USDT-settled positions. The
// account has no single total, so USDT is taken as the total balance.
func (g *Bybit) AccountSnapshot(ctx context.Context) (*AccountSnapshot, error) {
	wallet, err := g.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5UNIFIED, nil)
	if err != nil {
		return nil, errors.Wrap(err, "bybit wallet balance")
	}

	snap := &AccountSnapshot{}
	for _, acc := range wallet.Result.List {
		for _, c := range acc.Coin {
			bal, err := parseDecimal(c.WalletBalance, "wallet balance")
			if err != nil {
				return nil, err
			}
			upnl, err := parseDecimal(c.UnrealisedPnl, "unrealised pnl")
			if err != nil {
				return nil, err
			}
			snap.Balance.Assets = append(snap.Balance.Assets, domain.AssetBalance{
				Asset:            string(c.Coin),
				Balance:          bal,
				UnrealizedProfit: upnl,
			})
			if string(c.Coin) == "USDT" {
				snap.Balance.TotalBalance = snap.Balance.TotalBalance.Add(bal)
				snap.Balance.TotalUnrealizedProfit = snap.Balance.TotalUnrealizedProfit.Add(upnl)
			}
		}
	}

	settle := bybit.CoinUSDT
	positions, err := g.client.V5().Position().GetPositionInfo(bybit.V5GetPositionInfoParam{
		Category:   bybit.CategoryV5Linear,
		SettleCoin: &settle,
	})
	if err != nil {
		return nil, errors.Wrap(err, "bybit positions")
	}
	for _, p := range positions.Result.List {
		size, err := parseDecimal(p.Size, "position size")
		if err != nil {
			return nil, err
		}
		if size.IsZero() {
			continue
		}
		entry, err := parseDecimal(p.AvgPrice, "average price")
		if err != nil {
			return nil, err
		}
		upnl, err := parseDecimal(p.UnrealisedPnl, "unrealised pnl")
		if err != nil {
			return nil, err
		}
		margin, err := parseDecimal(p.PositionIM, "position margin")
		if err != nil {
			return nil, err
		}
		side := domain.PositionSideLong
		if p.Side == bybit.SideSell {
			side = domain.PositionSideShort
		}
		snap.Positions = append(snap.Positions, domain.Position{
			Symbol:           string(p.Symbol),
			EntryPrice:       entry,
			Size:             size.Abs(),
			Side:             side,
			UnrealizedProfit: upnl,
			InitialMargin:    margin,
		})
	}
	return snap, nil
}

// OpenOrders lists USDT linear orders. Bybit has no position side on orders,
// so it is inferred from the order side.
func (g *Bybit) OpenOrders(ctx context.Context) ([]domain.Order, error) {
	settle := bybit.CoinUSDT
	res, err := g.client.V5().Order().GetOpenOrders(bybit.V5GetOpenOrdersParam{
		Category:   bybit.CategoryV5Linear,
		SettleCoin: &settle,
	})
	if err != nil {
		return nil, errors.Wrap(err, "bybit open orders")
	}

	orders := make([]domain.Order, 0, len(res.Result.List))
	for _, o := range res.Result.List {
		price, err := parseDecimal(o.Price, "order price")
		if err != nil {
			return nil, err
		}
		qty, err := parseDecimal(o.Qty, "order quantity")
		if err != nil {
			return nil, err
		}
		side := domain.SideBuy
		if o.Side == bybit.SideSell {
			side = domain.SideSell
		}
		orders = append(orders, domain.Order{
			Symbol:       string(o.Symbol),
			Price:        price,
			Quantity:     qty,
			Side:         side,
			PositionSide: futuresPositionSide("", side),
			Type:         string(o.OrderType),
		})
	}
	return orders, nil
}

func (g *Bybit) RecentPrice(ctx context.Context, symbol string) (domain.Tick, error) {
	s := bybit.SymbolV5(symbol)
	res, err := g.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Linear,
		Symbol:   &s,
	})
	if err != nil {
		return domain.Tick{}, errors.Wrapf(err, "bybit ticker for %s", symbol)
	}
	if res.Result.LinearInverse == nil || len(res.Result.LinearInverse.List) == 0 {
		return domain.Tick{}, fmt.Errorf("bybit API returned empty prices for %s", symbol)
	}
	price, err := parseDecimal(res.Result.LinearInverse.List[0].LastPrice, "last price")
	if err != nil {
		return domain.Tick{}, err
	}
	return domain.Tick{Symbol: symbol, Price: price, Timestamp: g.now().UnixMilli()}, nil
}

func (g *Bybit) HistoricalClose(ctx context.Context, symbol string, ts int64) (decimal.Decimal, error) {
	start := ts - 60_000
	limit := 1
	res, err := g.client.V5().Market().GetKline(bybit.V5GetKlineParam{
		Category: bybit.CategoryV5Linear,
		Symbol:   bybit.SymbolV5(symbol),
		Interval: bybit.Interval("1"),
		Start:    &start,
		Limit:    &limit,
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "bybit kline for %s", symbol)
	}
	if len(res.Result.List) == 0 {
		return decimal.Zero, fmt.Errorf("no kline for %s at %d", symbol, ts)
	}
	return parseDecimal(res.Result.List[0].Close, "kline close")
}
