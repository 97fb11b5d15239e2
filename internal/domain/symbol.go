package domain

import "time"

// SymbolInfo describes a tradable exchange symbol.
type SymbolInfo struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string
}

// TradedSymbol is a spot symbol the account has traded at least once.
type TradedSymbol struct {
	Symbol               string
	LastTradesDownloaded *time.Time
}

// SymbolCheck records that a symbol was probed for account activity.
type SymbolCheck struct {
	Symbol      string
	LastChecked time.Time
}
