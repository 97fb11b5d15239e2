package normalizer

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/exscraper/internal/domain"
)

// RealizedIncomes replays trades with the weighted-average-cost model and
// returns one income per sell that closes part of a long position. The
// income's transaction id is the sell's order id. Sells with no open size
// produce nothing; short positions are not modelled.
func RealizedIncomes(trades []domain.Trade) []domain.Income {
	var incomes []domain.Income
	replay(trades, func(t domain.Trade, size, entry decimal.Decimal) {
		if t.Side != domain.SideSell || !size.IsPositive() {
			return
		}
		incomes = append(incomes, domain.Income{
			Symbol:        t.Symbol,
			Asset:         t.Asset,
			Type:          domain.IncomeTypeRealizedPnL,
			Income:        t.Quantity.Abs().Mul(t.Price.Sub(entry)),
			Timestamp:     t.Timestamp,
			TransactionID: t.OrderID,
		})
	})
	return incomes
}

// AverageEntry returns the open long size and its weighted average entry price.
func AverageEntry(trades []domain.Trade) (size, entry decimal.Decimal) {
	return replay(trades, nil)
}

// replay walks trades in time order. onTrade sees the position state before
// the trade is applied.
func replay(trades []domain.Trade, onTrade func(t domain.Trade, size, entry decimal.Decimal)) (decimal.Decimal, decimal.Decimal) {
	sorted := make([]domain.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	size, entry := decimal.Zero, decimal.Zero
	for _, t := range sorted {
		if onTrade != nil {
			onTrade(t, size, entry)
		}
		qty := t.Quantity.Abs()
		switch t.Side {
		case domain.SideBuy:
			newSize := size.Add(qty)
			if newSize.IsPositive() {
				entry = entry.Mul(size).Add(t.Price.Mul(qty)).Div(newSize)
			}
			size = newSize
		case domain.SideSell:
			size = decimal.Max(decimal.Zero, size.Sub(qty))
		}
	}
	return size, entry
}
