package clients

import (
	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	binanceSpotTestnetURL    = "https://testnet.binance.vision"
	binanceFuturesTestnetURL = "https://testnet.binancefuture.com"
)

func NewBinanceClient(apiKey, apiSecret string, testnet bool) *binance.Client {
	client := binance.NewClient(apiKey, apiSecret)
	if testnet {
		client.BaseURL = binanceSpotTestnetURL
	}
	return client
}

func NewBinanceFuturesClient(apiKey, apiSecret string, testnet bool) *futures.Client {
	client := binance.NewFuturesClient(apiKey, apiSecret)
	if testnet {
		client.BaseURL = binanceFuturesTestnetURL
	}
	return client
}
