package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vadiminshakov/exscraper/internal/domain"
)

// AddTradedSymbol registers a spot symbol as traded. Re-adding is a no-op.
func (s *Store) AddTradedSymbol(ctx context.Context, account, symbol string) error {
	err := s.write(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&tradedSymbolRow{Account: account, Symbol: symbol}).Error
	})
	return errors.Wrapf(err, "add traded symbol %s", symbol)
}

// TradedSymbols lists all traded symbols of an account.
func (s *Store) TradedSymbols(ctx context.Context, account string) ([]domain.TradedSymbol, error) {
	return s.tradedSymbols(ctx, account, 0)
}

// NextTradedSymbols returns up to limit symbols, never-downloaded first, then
// least recently downloaded.
func (s *Store) NextTradedSymbols(ctx context.Context, account string, limit int) ([]domain.TradedSymbol, error) {
	return s.tradedSymbols(ctx, account, limit)
}

func (s *Store) tradedSymbols(ctx context.Context, account string, limit int) ([]domain.TradedSymbol, error) {
	q := s.read(ctx).
		Where("account = ?", account).
		Order("last_trades_downloaded IS NOT NULL, last_trades_downloaded ASC, symbol ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []tradedSymbolRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load traded symbols")
	}
	out := make([]domain.TradedSymbol, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.TradedSymbol{Symbol: r.Symbol, LastTradesDownloaded: r.LastTradesDownloaded})
	}
	return out, nil
}

// MarkTradesDownloaded stamps the last time trades of a symbol were pulled.
func (s *Store) MarkTradesDownloaded(ctx context.Context, account, symbol string, at time.Time) error {
	at = at.UTC()
	err := s.write(ctx, func(tx *gorm.DB) error {
		return tx.Model(&tradedSymbolRow{}).
			Where("account = ? AND symbol = ?", account, symbol).
			Update("last_trades_downloaded", &at).Error
	})
	return errors.Wrapf(err, "mark trades downloaded for %s", symbol)
}

// SymbolChecks returns the persisted set of probed symbols.
func (s *Store) SymbolChecks(ctx context.Context, account string) (map[string]time.Time, error) {
	var rows []symbolCheckRow
	if err := s.read(ctx).Where("account = ?", account).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load symbol checks")
	}
	checks := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		checks[r.Symbol] = r.LastChecked
	}
	return checks, nil
}

// MarkSymbolChecked records a probe of a symbol.
func (s *Store) MarkSymbolChecked(ctx context.Context, account, symbol string, at time.Time) error {
	err := s.write(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account"}, {Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_checked"}),
		}).Create(&symbolCheckRow{Account: account, Symbol: symbol, LastChecked: at.UTC()}).Error
	})
	return errors.Wrapf(err, "mark symbol %s checked", symbol)
}
