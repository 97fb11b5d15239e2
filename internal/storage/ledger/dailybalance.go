package ledger

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/vadiminshakov/exscraper/internal/domain"
)

// ReplaceDailyBalances swaps the whole daily balance series of an account.
func (s *Store) ReplaceDailyBalances(ctx context.Context, account string, series []domain.DailyBalance) error {
	err := s.write(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("account = ?", account).Delete(&dailyBalanceRow{}).Error; err != nil {
			return err
		}
		if len(series) == 0 {
			return nil
		}
		rows := make([]dailyBalanceRow, 0, len(series))
		for _, d := range series {
			rows = append(rows, dailyBalanceRow{
				Account:            account,
				Day:                d.Day.UTC(),
				TotalWalletBalance: d.TotalWalletBalance,
			})
		}
		return tx.CreateInBatches(&rows, 500).Error
	})
	return errors.Wrap(err, "replace daily balances")
}

// DailyBalances returns the series oldest day first.
func (s *Store) DailyBalances(ctx context.Context, account string) ([]domain.DailyBalance, error) {
	var rows []dailyBalanceRow
	if err := s.read(ctx).Where("account = ?", account).Order("day ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load daily balances")
	}
	out := make([]domain.DailyBalance, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.DailyBalance{Day: r.Day.UTC(), TotalWalletBalance: r.TotalWalletBalance})
	}
	return out, nil
}
