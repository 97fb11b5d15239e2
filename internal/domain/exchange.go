// Package domain defines the ledger entities shared by gateways, sync engines and storage.
package domain

import (
	"fmt"
	"time"
)

// Exchange identifies an exchange account kind.
type Exchange string

const (
	ExchangeBinanceFutures   Exchange = "binance_futures"
	ExchangeBinanceSpot      Exchange = "binance_spot"
	ExchangeBybitDerivatives Exchange = "bybit_derivatives"
	ExchangeHyperliquid      Exchange = "hyperliquid"
)

var (
	binanceEpoch = time.Date(2017, time.September, 1, 0, 0, 0, 0, time.UTC)
	bybitEpoch   = time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// String returns the string representation.
func (e Exchange) String() string {
	return string(e)
}

// IsValid checks if the exchange is supported.
func (e Exchange) IsValid() bool {
	switch e {
	case ExchangeBinanceFutures, ExchangeBinanceSpot, ExchangeBybitDerivatives, ExchangeHyperliquid:
		return true
	}
	return false
}

// IsSpot reports whether history for this exchange is per-symbol trade history
// rather than an account-wide income stream.
func (e Exchange) IsSpot() bool {
	return e == ExchangeBinanceSpot
}

// EpochFloor is the earliest instant the exchange can hold account history for.
// Forward walks over an empty ledger start here.
func (e Exchange) EpochFloor() time.Time {
	switch e {
	case ExchangeBybitDerivatives:
		return bybitEpoch
	default:
		return binanceEpoch
	}
}

// ParseExchange validates a configured exchange name.
func ParseExchange(s string) (Exchange, error) {
	e := Exchange(s)
	if !e.IsValid() {
		return "", fmt.Errorf("unsupported exchange: %s", s)
	}
	return e, nil
}
