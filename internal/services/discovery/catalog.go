// Package discovery finds the spot symbols an account has ever traded.
package discovery

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/exscraper/internal/domain"
	"github.com/vadiminshakov/exscraper/internal/services/gateway"
)

type symbolLister interface {
	Symbols(ctx context.Context) ([]domain.SymbolInfo, error)
}

// Catalog caches the exchange's tradable symbols. A failed or empty load is
// retried on the next call.
type Catalog struct {
	lister symbolLister

	mu      sync.Mutex
	symbols []domain.SymbolInfo
	bySym   map[string]domain.SymbolInfo
}

func NewCatalog(lister symbolLister) *Catalog {
	return &Catalog{lister: lister}
}

// Symbols returns every tradable symbol, USD-quoted markets first.
func (c *Catalog) Symbols(ctx context.Context) ([]domain.SymbolInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(ctx); err != nil {
		return nil, err
	}
	return c.symbols, nil
}

// QuoteAsset returns the currency symbol is priced in.
func (c *Catalog) QuoteAsset(ctx context.Context, symbol string) (string, error) {
	info, err := c.Lookup(ctx, symbol)
	if err != nil {
		return "", err
	}
	return info.QuoteAsset, nil
}

// Lookup returns the listing of symbol.
func (c *Catalog) Lookup(ctx context.Context, symbol string) (domain.SymbolInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(ctx); err != nil {
		return domain.SymbolInfo{}, err
	}
	info, ok := c.bySym[symbol]
	if !ok {
		return domain.SymbolInfo{}, errors.Wrap(gateway.ErrUnknownSymbol, symbol)
	}
	return info, nil
}

func (c *Catalog) loadLocked(ctx context.Context) error {
	if len(c.symbols) > 0 {
		return nil
	}

	symbols, err := c.lister.Symbols(ctx)
	if err != nil {
		return errors.Wrap(err, "load exchange symbols")
	}

	sorted := make([]domain.SymbolInfo, len(symbols))
	copy(sorted, symbols)
	sort.SliceStable(sorted, func(i, j int) bool {
		return domain.IsUSDQuote(sorted[i].QuoteAsset) && !domain.IsUSDQuote(sorted[j].QuoteAsset)
	})

	c.bySym = make(map[string]domain.SymbolInfo, len(sorted))
	for _, s := range sorted {
		c.bySym[s.Symbol] = s
	}
	c.symbols = sorted
	return nil
}
