package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/exscraper/internal/domain"
)

// Hyperliquid reads perpetuals state of an account address. It has no income
// stream or open order capability.
type Hyperliquid struct {
	info        *hyperliquid.Info
	accountAddr string
	now         func() time.Time
}

func NewHyperliquid(info *hyperliquid.Info, accountAddr string) *Hyperliquid {
	return &Hyperliquid{info: info, accountAddr: accountAddr, now: time.Now}
}

func (g *Hyperliquid) Exchange() domain.Exchange { return domain.ExchangeHyperliquid }

func (g *Hyperliquid) AccountSnapshot(ctx context.Context) (*AccountSnapshot, error) {
	st, err := g.info.UserState(ctx, g.accountAddr)
	if err != nil {
		return nil, errors.Wrap(err, "get user state")
	}

	total := decimal.Zero
	if st.MarginSummary.TotalRawUsd != "" {
		total, err = parseDecimal(st.MarginSummary.TotalRawUsd, "total raw usd")
	} else {
		total, err = parseDecimal(st.Withdrawable, "withdrawable")
	}
	if err != nil {
		return nil, err
	}

	mids, err := g.info.AllMids(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get mids")
	}

	snap := &AccountSnapshot{}
	upnlTotal := decimal.Zero
	for _, ap := range st.AssetPositions {
		szi, err := parseDecimal(strings.TrimSpace(ap.Position.Szi), "position size")
		if err != nil {
			return nil, err
		}
		if szi.IsZero() {
			continue
		}
		var entry decimal.Decimal
		if ap.Position.EntryPx != nil {
			if entry, err = parseDecimal(*ap.Position.EntryPx, "entry price"); err != nil {
				return nil, err
			}
		}
		upnl := decimal.Zero
		if mid := mids[ap.Position.Coin]; mid != "" && !entry.IsZero() {
			price, err := parseDecimal(mid, "mid price")
			if err != nil {
				return nil, err
			}
			upnl = price.Sub(entry).Mul(szi)
		}
		upnlTotal = upnlTotal.Add(upnl)

		side, size := domain.PositionSideFromSigned(szi)
		snap.Positions = append(snap.Positions, domain.Position{
			Symbol:           ap.Position.Coin,
			EntryPrice:       entry,
			Size:             size,
			Side:             side,
			UnrealizedProfit: upnl,
		})
	}

	snap.Balance = domain.Balance{
		TotalBalance:          total,
		TotalUnrealizedProfit: upnlTotal,
		Assets: []domain.AssetBalance{
			{Asset: "USDC", Balance: total, UnrealizedProfit: upnlTotal},
		},
	}
	return snap, nil
}

func (g *Hyperliquid) RecentPrice(ctx context.Context, symbol string) (domain.Tick, error) {
	mids, err := g.info.AllMids(ctx)
	if err != nil {
		return domain.Tick{}, errors.Wrap(err, "get mids")
	}
	coin := hyperliquidCoin(symbol)
	mid, ok := mids[coin]
	if !ok || mid == "" {
		return domain.Tick{}, fmt.Errorf("hyperliquid API returned empty mid price for %s", coin)
	}
	price, err := parseDecimal(mid, "mid price")
	if err != nil {
		return domain.Tick{}, err
	}
	return domain.Tick{Symbol: symbol, Price: price, Timestamp: g.now().UnixMilli()}, nil
}

func (g *Hyperliquid) HistoricalClose(ctx context.Context, symbol string, ts int64) (decimal.Decimal, error) {
	coin := hyperliquidCoin(symbol)
	candles, err := g.info.CandlesSnapshot(ctx, coin, "1m", ts-60_000, ts+60_000)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "hyperliquid candles for %s", coin)
	}
	for i := len(candles) - 1; i >= 0; i-- {
		if candles[i].TimeOpen <= ts {
			return parseDecimal(candles[i].Close, "candle close")
		}
	}
	return decimal.Zero, fmt.Errorf("no candle for %s at %d", coin, ts)
}

// hyperliquidCoin maps BTCUSDT style symbols to the coin names Hyperliquid keys by.
func hyperliquidCoin(symbol string) string {
	s := strings.ToUpper(symbol)
	for _, quote := range []string{"USDT", "USDC", "USD"} {
		if base, ok := strings.CutSuffix(s, quote); ok && base != "" {
			return base
		}
	}
	return s
}
