package ledger

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vadiminshakov/exscraper/internal/domain"
)

// idLookupBatch keeps IN lists under SQLite's bound parameter limit.
const idLookupBatch = 500

// InsertIncomes stores incomes, silently skipping transaction ids already present.
// Returns the number of new rows.
func (s *Store) InsertIncomes(ctx context.Context, account string, incomes []domain.Income) (int64, error) {
	if len(incomes) == 0 {
		return 0, nil
	}
	rows := make([]incomeRow, 0, len(incomes))
	for _, in := range incomes {
		rows = append(rows, incomeRow{
			Account:       account,
			TransactionID: in.TransactionID,
			Symbol:        in.Symbol,
			Asset:         in.Asset,
			Type:          in.Type,
			Income:        in.Income,
			Timestamp:     in.Timestamp,
		})
	}

	var inserted int64
	err := s.write(ctx, func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
		inserted = res.RowsAffected
		return res.Error
	})
	return inserted, errors.Wrap(err, "insert incomes")
}

// InsertTrades stores trades, silently skipping order ids already present.
func (s *Store) InsertTrades(ctx context.Context, account string, trades []domain.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	rows := make([]tradeRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, tradeRow{
			Account:   account,
			OrderID:   t.OrderID,
			Symbol:    t.Symbol,
			Asset:     t.Asset,
			Quantity:  t.Quantity,
			Price:     t.Price,
			Side:      string(t.Side),
			Timestamp: t.Timestamp,
		})
	}

	var inserted int64
	err := s.write(ctx, func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
		inserted = res.RowsAffected
		return res.Error
	})
	return inserted, errors.Wrap(err, "insert trades")
}

// IncomeBounds returns the oldest and newest income timestamps of the account.
// ok is false when the account has no incomes.
func (s *Store) IncomeBounds(ctx context.Context, account string) (oldest, newest int64, ok bool, err error) {
	return s.bounds(ctx, &incomeRow{}, s.read(ctx).Where("account = ?", account))
}

// TradeBounds returns the oldest and newest trade timestamps of a symbol.
func (s *Store) TradeBounds(ctx context.Context, account, symbol string) (oldest, newest int64, ok bool, err error) {
	return s.bounds(ctx, &tradeRow{}, s.read(ctx).Where("account = ? AND symbol = ?", account, symbol))
}

func (s *Store) bounds(_ context.Context, model any, scope *gorm.DB) (int64, int64, bool, error) {
	var res struct {
		Cnt    int64
		Oldest int64
		Newest int64
	}
	err := scope.Model(model).
		Select("COUNT(*) AS cnt, COALESCE(MIN(ts), 0) AS oldest, COALESCE(MAX(ts), 0) AS newest").
		Scan(&res).Error
	if err != nil {
		return 0, 0, false, errors.Wrap(err, "query history bounds")
	}
	return res.Oldest, res.Newest, res.Cnt > 0, nil
}

// Trades returns every stored trade of a symbol in ascending time order.
func (s *Store) Trades(ctx context.Context, account, symbol string) ([]domain.Trade, error) {
	var rows []tradeRow
	err := s.read(ctx).
		Where("account = ? AND symbol = ?", account, symbol).
		Order("ts ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(err, "load trades for %s", symbol)
	}

	trades := make([]domain.Trade, 0, len(rows))
	for _, r := range rows {
		trades = append(trades, domain.Trade{
			Symbol:    r.Symbol,
			Asset:     r.Asset,
			OrderID:   r.OrderID,
			Quantity:  r.Quantity,
			Price:     r.Price,
			Side:      domain.Side(r.Side),
			Timestamp: r.Timestamp,
		})
	}
	return trades, nil
}

// IncomesSince returns incomes with timestamp >= since, oldest first.
func (s *Store) IncomesSince(ctx context.Context, account string, since int64) ([]domain.Income, error) {
	var rows []incomeRow
	err := s.read(ctx).
		Where("account = ? AND ts >= ?", account, since).
		Order("ts ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "load incomes")
	}

	incomes := make([]domain.Income, 0, len(rows))
	for _, r := range rows {
		incomes = append(incomes, domain.Income{
			Symbol:        r.Symbol,
			Asset:         r.Asset,
			Type:          r.Type,
			Income:        r.Income,
			Timestamp:     r.Timestamp,
			TransactionID: r.TransactionID,
		})
	}
	return incomes, nil
}

// StoredIncomeIDs reports which of ids are already stored for the account.
func (s *Store) StoredIncomeIDs(ctx context.Context, account string, ids []string) (map[string]bool, error) {
	stored := make(map[string]bool, len(ids))
	for start := 0; start < len(ids); start += idLookupBatch {
		end := min(start+idLookupBatch, len(ids))

		var found []string
		err := s.read(ctx).Model(&incomeRow{}).
			Where("account = ? AND transaction_id IN ?", account, ids[start:end]).
			Pluck("transaction_id", &found).Error
		if err != nil {
			return nil, errors.Wrap(err, "look up stored incomes")
		}
		for _, id := range found {
			stored[id] = true
		}
	}
	return stored, nil
}
