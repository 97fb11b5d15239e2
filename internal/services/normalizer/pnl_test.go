package normalizer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/exscraper/internal/domain"
)

func trade(orderID string, side domain.Side, qty, price int64, ts int64) domain.Trade {
	return domain.Trade{
		Symbol:    "ETHUSDT",
		Asset:     "USDT",
		OrderID:   orderID,
		Quantity:  decimal.NewFromInt(qty),
		Price:     decimal.NewFromInt(price),
		Side:      side,
		Timestamp: ts,
	}
}

func TestRealizedIncomes_WeightedAverageCost(t *testing.T) {
	trades := []domain.Trade{
		trade("1", domain.SideBuy, 1, 100, 1),
		trade("2", domain.SideBuy, 1, 200, 2),
		trade("3", domain.SideSell, 1, 250, 3),
	}

	incomes := RealizedIncomes(trades)
	require.Len(t, incomes, 1)
	assert.True(t, incomes[0].Income.Equal(decimal.NewFromInt(100)), incomes[0].Income.String())
	assert.Equal(t, "3", incomes[0].TransactionID)
	assert.Equal(t, domain.IncomeTypeRealizedPnL, incomes[0].Type)
	assert.Equal(t, "USDT", incomes[0].Asset)

	size, entry := AverageEntry(trades)
	assert.True(t, size.Equal(decimal.NewFromInt(1)))
	assert.True(t, entry.Equal(decimal.NewFromInt(150)), entry.String())
}

func TestRealizedIncomes_SortsByTime(t *testing.T) {
	trades := []domain.Trade{
		trade("3", domain.SideSell, 1, 250, 3),
		trade("1", domain.SideBuy, 1, 100, 1),
		trade("2", domain.SideBuy, 1, 200, 2),
	}
	incomes := RealizedIncomes(trades)
	require.Len(t, incomes, 1)
	assert.True(t, incomes[0].Income.Equal(decimal.NewFromInt(100)))
}

func TestRealizedIncomes_SellWithoutPosition(t *testing.T) {
	incomes := RealizedIncomes([]domain.Trade{
		trade("1", domain.SideSell, 1, 250, 1),
		trade("2", domain.SideBuy, 2, 100, 2),
		trade("3", domain.SideSell, 3, 120, 3),
		trade("4", domain.SideSell, 1, 130, 4),
	})
	// only the sell against an open long realizes, size floors at zero after it
	require.Len(t, incomes, 1)
	assert.Equal(t, "3", incomes[0].TransactionID)
	assert.True(t, incomes[0].Income.Equal(decimal.NewFromInt(60)))
}

func TestAverageEntry_Empty(t *testing.T) {
	size, entry := AverageEntry(nil)
	assert.True(t, size.IsZero())
	assert.True(t, entry.IsZero())
}
