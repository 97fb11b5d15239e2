package snapshot

import (
	"sort"
	"strings"
	"sync"
)

// DefaultTickSymbol is always tracked.
const DefaultTickSymbol = "BTCUSDT"

// ActiveSymbols is the per-account set of symbols whose prices are tracked.
// Symbols are added when a position is seen and never removed.
type ActiveSymbols struct {
	mu  sync.RWMutex
	set map[string]struct{}
}

// NewActiveSymbols seeds the set with the configured symbols and BTCUSDT.
func NewActiveSymbols(seed ...string) *ActiveSymbols {
	a := &ActiveSymbols{set: map[string]struct{}{DefaultTickSymbol: {}}}
	for _, s := range seed {
		a.Add(s)
	}
	return a
}

// Add registers symbol and reports whether it was new.
func (a *ActiveSymbols) Add(symbol string) bool {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.set[symbol]; ok {
		return false
	}
	a.set[symbol] = struct{}{}
	return true
}

// List returns the symbols in lexical order.
func (a *ActiveSymbols) List() []string {
	a.mu.RLock()
	out := make([]string, 0, len(a.set))
	for s := range a.set {
		out = append(out, s)
	}
	a.mu.RUnlock()

	sort.Strings(out)
	return out
}

func (a *ActiveSymbols) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.set)
}
