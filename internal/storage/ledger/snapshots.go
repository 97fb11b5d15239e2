package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vadiminshakov/exscraper/internal/domain"
)

// ReplaceBalance swaps the account balance and its asset lines in one transaction.
func (s *Store) ReplaceBalance(ctx context.Context, account string, b domain.Balance) error {
	err := s.write(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("account = ?", account).Delete(&balanceRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account = ?", account).Delete(&assetBalanceRow{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&balanceRow{
			Account:               account,
			TotalBalance:          b.TotalBalance,
			TotalUnrealizedProfit: b.TotalUnrealizedProfit,
			UpdatedAt:             time.Now().UTC(),
		}).Error; err != nil {
			return err
		}
		if len(b.Assets) == 0 {
			return nil
		}
		rows := make([]assetBalanceRow, 0, len(b.Assets))
		for _, a := range b.Assets {
			rows = append(rows, assetBalanceRow{
				Account:          account,
				Asset:            a.Asset,
				Balance:          a.Balance,
				UnrealizedProfit: a.UnrealizedProfit,
			})
		}
		return tx.Create(&rows).Error
	})
	return errors.Wrap(err, "replace balance")
}

// Balance returns the stored balance, or nil when none was recorded yet. The
// total and its asset lines always come from the same replace.
func (s *Store) Balance(ctx context.Context, account string) (*domain.Balance, error) {
	var (
		row    balanceRow
		assets []assetBalanceRow
		found  bool
	)
	err := s.readConsistent(ctx, func(db *gorm.DB) error {
		res := db.Where("account = ?", account).Limit(1).Find(&row)
		if res.Error != nil {
			return errors.Wrap(res.Error, "load balance")
		}
		if found = res.RowsAffected > 0; !found {
			return nil
		}
		return errors.Wrap(db.Where("account = ?", account).Order("asset ASC").Find(&assets).Error, "load asset balances")
	})
	if err != nil || !found {
		return nil, err
	}

	b := &domain.Balance{
		TotalBalance:          row.TotalBalance,
		TotalUnrealizedProfit: row.TotalUnrealizedProfit,
		Assets:                make([]domain.AssetBalance, 0, len(assets)),
	}
	for _, a := range assets {
		b.Assets = append(b.Assets, domain.AssetBalance{
			Asset:            a.Asset,
			Balance:          a.Balance,
			UnrealizedProfit: a.UnrealizedProfit,
		})
	}
	return b, nil
}

// Accounts lists aliases that have a stored balance.
func (s *Store) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	err := s.read(ctx).Model(&balanceRow{}).Order("account ASC").Pluck("account", &accounts).Error
	return accounts, errors.Wrap(err, "list accounts")
}

// ReplacePositions swaps the full position set of an account.
func (s *Store) ReplacePositions(ctx context.Context, account string, positions []domain.Position) error {
	err := s.write(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("account = ?", account).Delete(&positionRow{}).Error; err != nil {
			return err
		}
		if len(positions) == 0 {
			return nil
		}
		rows := make([]positionRow, 0, len(positions))
		for _, p := range positions {
			rows = append(rows, positionRow{
				Account:          account,
				Symbol:           p.Symbol,
				EntryPrice:       p.EntryPrice,
				Size:             p.Size,
				Side:             string(p.Side),
				UnrealizedProfit: p.UnrealizedProfit,
				InitialMargin:    p.InitialMargin,
			})
		}
		return tx.Create(&rows).Error
	})
	return errors.Wrap(err, "replace positions")
}

// Positions returns the stored positions of an account.
func (s *Store) Positions(ctx context.Context, account string) ([]domain.Position, error) {
	var rows []positionRow
	if err := s.read(ctx).Where("account = ?", account).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load positions")
	}
	positions := make([]domain.Position, 0, len(rows))
	for _, r := range rows {
		positions = append(positions, domain.Position{
			Symbol:           r.Symbol,
			EntryPrice:       r.EntryPrice,
			Size:             r.Size,
			Side:             domain.PositionSide(r.Side),
			UnrealizedProfit: r.UnrealizedProfit,
			InitialMargin:    r.InitialMargin,
		})
	}
	return positions, nil
}

// ReplaceOrders swaps the open orders of an account.
func (s *Store) ReplaceOrders(ctx context.Context, account string, orders []domain.Order) error {
	err := s.write(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("account = ?", account).Delete(&orderRow{}).Error; err != nil {
			return err
		}
		if len(orders) == 0 {
			return nil
		}
		rows := make([]orderRow, 0, len(orders))
		for _, o := range orders {
			rows = append(rows, orderRow{
				Account:      account,
				Symbol:       o.Symbol,
				Price:        o.Price,
				Quantity:     o.Quantity,
				Side:         string(o.Side),
				PositionSide: string(o.PositionSide),
				Type:         o.Type,
			})
		}
		return tx.Create(&rows).Error
	})
	return errors.Wrap(err, "replace orders")
}

// Orders returns the stored open orders of an account.
func (s *Store) Orders(ctx context.Context, account string) ([]domain.Order, error) {
	var rows []orderRow
	if err := s.read(ctx).Where("account = ?", account).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load orders")
	}
	orders := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, domain.Order{
			Symbol:       r.Symbol,
			Price:        r.Price,
			Quantity:     r.Quantity,
			Side:         domain.Side(r.Side),
			PositionSide: domain.PositionSide(r.PositionSide),
			Type:         r.Type,
		})
	}
	return orders, nil
}

// UpsertPrice records the latest price of a symbol.
func (s *Store) UpsertPrice(ctx context.Context, account string, tick domain.Tick) error {
	err := s.write(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account"}, {Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"price", "ts"}),
		}).Create(&priceRow{
			Account:   account,
			Symbol:    tick.Symbol,
			Price:     tick.Price,
			Timestamp: tick.Timestamp,
		}).Error
	})
	return errors.Wrapf(err, "upsert price for %s", tick.Symbol)
}

// Prices returns the latest prices of an account keyed by symbol.
func (s *Store) Prices(ctx context.Context, account string) ([]domain.Tick, error) {
	var rows []priceRow
	if err := s.read(ctx).Where("account = ?", account).Order("symbol ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load prices")
	}
	ticks := make([]domain.Tick, 0, len(rows))
	for _, r := range rows {
		ticks = append(ticks, domain.Tick{Symbol: r.Symbol, Price: r.Price, Timestamp: r.Timestamp})
	}
	return ticks, nil
}
