package snapshot

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/exscraper/internal/domain"
	"github.com/vadiminshakov/exscraper/internal/services/gateway"
	"github.com/vadiminshakov/exscraper/internal/services/normalizer"
)

// spotQuotes are the markets a held asset may be valued against, in order of preference.
var spotQuotes = []string{"USDT", "BUSD", "USDC", "USDP"}

type spotMarket struct {
	symbol    string
	price     decimal.Decimal
	trades    []domain.Trade
	hasOrders bool
}

// latest is the timestamp of the newest fill, trades being sorted ascending.
func (m spotMarket) latest() int64 {
	if len(m.trades) == 0 {
		return 0
	}
	return m.trades[len(m.trades)-1].Timestamp
}

// valueHoldings turns raw spot quantities into a USD balance. Stablecoins count
// at face value. Other assets are valued at their weighted-average entry from
// stored fills and become one LONG position each; assets never traded here are
// valued at the current price without a position.
func (s *Syncer) valueHoldings(ctx context.Context, holdings []gateway.Holding) (domain.Balance, []domain.Position, error) {
	lister, ok := s.gw.(priceLister)
	if !ok {
		return domain.Balance{}, nil, errors.Wrap(gateway.ErrUnsupported, "spot prices")
	}
	prices, err := lister.Prices(ctx)
	if err != nil {
		return domain.Balance{}, nil, errors.Wrap(err, "spot prices")
	}
	orders, err := s.store.Orders(ctx, s.account)
	if err != nil {
		return domain.Balance{}, nil, errors.Wrap(err, "load open orders")
	}
	withOrders := make(map[string]bool, len(orders))
	for _, o := range orders {
		withOrders[o.Symbol] = true
	}

	var (
		balance   domain.Balance
		positions []domain.Position
	)
	for _, h := range holdings {
		if !h.Quantity.IsPositive() {
			continue
		}
		if domain.IsUSDQuote(h.Asset) {
			balance.TotalBalance = balance.TotalBalance.Add(h.Quantity)
			balance.Assets = append(balance.Assets, domain.AssetBalance{Asset: h.Asset, Balance: h.Quantity})
			continue
		}

		market, ok, err := s.pickMarket(ctx, h.Asset, prices, withOrders)
		if err != nil {
			return domain.Balance{}, nil, err
		}
		if !ok {
			s.logger.Debug("No USD price for asset", zap.String("asset", h.Asset))
			continue
		}

		if len(market.trades) == 0 {
			value := h.Quantity.Mul(market.price)
			balance.TotalBalance = balance.TotalBalance.Add(value)
			balance.Assets = append(balance.Assets, domain.AssetBalance{Asset: h.Asset, Balance: value})
			continue
		}

		_, entry := normalizer.AverageEntry(market.trades)
		if entry.IsZero() {
			entry = market.price
		}
		upnl := market.price.Sub(entry).Mul(h.Quantity)
		cost := h.Quantity.Mul(entry)

		balance.TotalBalance = balance.TotalBalance.Add(cost)
		balance.TotalUnrealizedProfit = balance.TotalUnrealizedProfit.Add(upnl)
		balance.Assets = append(balance.Assets, domain.AssetBalance{Asset: h.Asset, Balance: cost, UnrealizedProfit: upnl})
		positions = append(positions, domain.Position{
			Symbol:           market.symbol,
			EntryPrice:       entry,
			Size:             h.Quantity,
			Side:             domain.PositionSideLong,
			UnrealizedProfit: upnl,
			InitialMargin:    decimal.Zero,
		})
	}

	return balance, positions, nil
}

// pickMarket chooses the USD market an asset is valued in. Markets with fills
// win over markets without; among those a market with open orders wins, then
// the one traded most recently.
func (s *Syncer) pickMarket(ctx context.Context, asset string, prices map[string]decimal.Decimal, withOrders map[string]bool) (spotMarket, bool, error) {
	var (
		best  spotMarket
		found bool
	)
	for _, quote := range spotQuotes {
		symbol := asset + quote
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		trades, err := s.store.Trades(ctx, s.account, symbol)
		if err != nil {
			return spotMarket{}, false, errors.Wrapf(err, "load trades of %s", symbol)
		}

		m := spotMarket{symbol: symbol, price: price, trades: trades, hasOrders: withOrders[symbol]}
		if !found || better(m, best) {
			best, found = m, true
		}
	}
	return best, found, nil
}

func better(a, b spotMarket) bool {
	if (len(a.trades) > 0) != (len(b.trades) > 0) {
		return len(a.trades) > 0
	}
	if a.hasOrders != b.hasOrders {
		return a.hasOrders
	}
	return a.latest() > b.latest()
}
