package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/exscraper/internal/domain"
)

// binanceInvalidSymbol is the API error code for an unlisted symbol.
const binanceInvalidSymbol = -1121

// BinanceFutures reads a USDⓈ-M futures account.
type BinanceFutures struct {
	client *futures.Client
}

func NewBinanceFutures(client *futures.Client) *BinanceFutures {
	return &BinanceFutures{client: client}
}

func (g *BinanceFutures) Exchange() domain.Exchange { return domain.ExchangeBinanceFutures }

// IncomeHistory returns income lines within the query window. The endpoint has
// no continuation token, so Next is always empty.
func (g *BinanceFutures) IncomeHistory(ctx context.Context, q Query) (Page[IncomeRecord], error) {
	svc := g.client.NewGetIncomeHistoryService().Limit(int64(q.PageLimit()))
	if q.StartTime > 0 {
		svc = svc.StartTime(q.StartTime)
	}
	if q.EndTime > 0 {
		svc = svc.EndTime(q.EndTime)
	}
	if q.Symbol != "" {
		svc = svc.Symbol(q.Symbol)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return Page[IncomeRecord]{}, errors.Wrap(err, "binance futures income history")
	}

	records := make([]IncomeRecord, 0, len(res))
	for _, in := range res {
		amount, err := parseDecimal(in.Income, "income")
		if err != nil {
			return Page[IncomeRecord]{}, err
		}
		records = append(records, IncomeRecord{
			Symbol:        in.Symbol,
			Asset:         in.Asset,
			Type:          in.IncomeType,
			Amount:        amount,
			Timestamp:     domain.NormalizeTimestamp(in.Time),
			TransactionID: strconv.FormatInt(in.TranID, 10),
		})
	}
	return Page[IncomeRecord]{Records: records}, nil
}

// AccountSnapshot returns wallet and positions. Totals only count USD-class
// margin assets; positions are kept when they have a nonzero amount.
func (g *BinanceFutures) AccountSnapshot(ctx context.Context) (*AccountSnapshot, error) {
	acc, err := g.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "binance futures account")
	}

	snap := &AccountSnapshot{}
	for _, a := range acc.Assets {
		wallet, err := parseDecimal(a.WalletBalance, "wallet balance")
		if err != nil {
			return nil, err
		}
		upnl, err := parseDecimal(a.UnrealizedProfit, "unrealized profit")
		if err != nil {
			return nil, err
		}
		snap.Balance.Assets = append(snap.Balance.Assets, domain.AssetBalance{
			Asset:            a.Asset,
			Balance:          wallet,
			UnrealizedProfit: upnl,
		})
		if domain.IsUSDAsset(a.Asset) {
			snap.Balance.TotalBalance = snap.Balance.TotalBalance.Add(wallet)
			snap.Balance.TotalUnrealizedProfit = snap.Balance.TotalUnrealizedProfit.Add(upnl)
		}
	}

	for _, p := range acc.Positions {
		amt, err := parseDecimal(p.PositionAmt, "position amount")
		if err != nil {
			return nil, err
		}
		if amt.IsZero() {
			continue
		}
		entry, err := parseDecimal(p.EntryPrice, "entry price")
		if err != nil {
			return nil, err
		}
		upnl, err := parseDecimal(p.UnrealizedProfit, "unrealized profit")
		if err != nil {
			return nil, err
		}
		margin, err := parseDecimal(p.InitialMargin, "initial margin")
		if err != nil {
			return nil, err
		}

		side, size := domain.PositionSideFromSigned(amt)
		switch strings.ToUpper(string(p.PositionSide)) {
		case "LONG":
			side = domain.PositionSideLong
		case "SHORT":
			side = domain.PositionSideShort
		}
		snap.Positions = append(snap.Positions, domain.Position{
			Symbol:           p.Symbol,
			EntryPrice:       entry,
			Size:             size,
			Side:             side,
			UnrealizedProfit: upnl,
			InitialMargin:    margin,
		})
	}
	return snap, nil
}

func (g *BinanceFutures) OpenOrders(ctx context.Context) ([]domain.Order, error) {
	res, err := g.client.NewListOpenOrdersService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "binance futures open orders")
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
		orders = append(orders, domain.Order{
			Symbol:       o.Symbol,
			Price:        price,
			Quantity:     qty,
			Side:         domain.Side(strings.ToUpper(string(o.Side))),
			PositionSide: futuresPositionSide(string(o.PositionSide), domain.Side(o.Side)),
			Type:         string(o.Type),
		})
	}
	return orders, nil
}

// RecentPrice returns the mark price, which is what positions are valued at.
func (g *BinanceFutures) RecentPrice(ctx context.Context, symbol string) (domain.Tick, error) {
	res, err := g.client.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return domain.Tick{}, binanceErr(err, "binance futures mark price for %s", symbol)
	}
	if len(res) == 0 {
		return domain.Tick{}, fmt.Errorf("binance API returned empty mark price for %s", symbol)
	}
	price, err := parseDecimal(res[0].MarkPrice, "mark price")
	if err != nil {
		return domain.Tick{}, err
	}
	return domain.Tick{Symbol: symbol, Price: price, Timestamp: domain.NormalizeTimestamp(res[0].Time)}, nil
}

func (g *BinanceFutures) HistoricalClose(ctx context.Context, symbol string, ts int64) (decimal.Decimal, error) {
	klines, err := g.client.NewKlinesService().
		Symbol(symbol).
		Interval("1m").
		StartTime(ts - 1000).
		Limit(1).
		Do(ctx)
	if err != nil {
		return decimal.Zero, binanceErr(err, "binance futures kline for %s", symbol)
	}
	if len(klines) == 0 {
		return decimal.Zero, fmt.Errorf("no kline for %s at %d", symbol, ts)
	}
	return parseDecimal(klines[len(klines)-1].Close, "kline close")
}

// futuresPositionSide maps the exchange position side; one-way mode reports
// BOTH, in which case the order side decides.
func futuresPositionSide(positionSide string, side domain.Side) domain.PositionSide {
	switch strings.ToUpper(positionSide) {
	case "LONG":
		return domain.PositionSideLong
	case "SHORT":
		return domain.PositionSideShort
	}
	if strings.EqualFold(string(side), string(domain.SideSell)) {
		return domain.PositionSideShort
	}
	return domain.PositionSideLong
}

// binanceErr wraps an SDK error, mapping "invalid symbol" to ErrUnknownSymbol.
func binanceErr(err error, format string, args ...any) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && apiErr.Code == binanceInvalidSymbol {
		return errors.Wrapf(ErrUnknownSymbol, "%s: %s", fmt.Sprintf(format, args...), apiErr.Message)
	}
	return errors.Wrapf(err, format, args...)
}
