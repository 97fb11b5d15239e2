package domain

import "strings"

// secondsThreshold separates second-resolution timestamps from millisecond ones.
const secondsThreshold = 2_000_000_000

var usdAssets = map[string]struct{}{
	"USD":  {},
	"USDT": {},
	"USDC": {},
	"BUSD": {},
}

// IsUSDAsset reports whether the asset is treated as one US dollar.
func IsUSDAsset(asset string) bool {
	_, ok := usdAssets[strings.ToUpper(asset)]
	return ok
}

// IsUSDQuote reports whether a quote asset makes a symbol USD-quoted.
func IsUSDQuote(quote string) bool {
	return IsUSDAsset(quote) || strings.EqualFold(quote, "USDP")
}

// NormalizeTimestamp converts exchange timestamps to milliseconds.
// Values at or below 2e9 are taken to be seconds.
func NormalizeTimestamp(ts int64) int64 {
	if ts > 0 && ts <= secondsThreshold {
		return ts * 1000
	}
	return ts
}
