package internal

import (
	"fmt"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/exscraper/config"
	"github.com/vadiminshakov/exscraper/internal/clients"
	"github.com/vadiminshakov/exscraper/internal/domain"
	"github.com/vadiminshakov/exscraper/internal/services/gateway"
)

// NewClient builds the SDK client for an account.
func NewClient(acc config.Account) (any, error) {
	switch acc.Exchange {
	case domain.ExchangeBinanceSpot:
		return clients.NewBinanceClient(acc.APIKey, acc.APISecret, acc.TestNet), nil
	case domain.ExchangeBinanceFutures:
		return clients.NewBinanceFuturesClient(acc.APIKey, acc.APISecret, acc.TestNet), nil
	case domain.ExchangeBybitDerivatives:
		return clients.NewBybitClient(acc.APIKey, acc.APISecret, acc.TestNet), nil
	case domain.ExchangeHyperliquid:
		c, err := clients.NewHyperliquidClient(acc.APISecret, acc.APIKey, acc.TestNet)
		if err != nil {
			return nil, errors.Wrap(err, "hyperliquid client")
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", acc.Exchange)
	}
}

// NewGateway wraps a client in its gateway. This is the single point of
// dispatch to exchange-specific implementations.
func NewGateway(client any) (gateway.Gateway, error) {
	switch c := client.(type) {
	case *binance.Client:
		return gateway.NewBinanceSpot(c), nil
	case *futures.Client:
		return gateway.NewBinanceFutures(c), nil
	case *bybit.Client:
		return gateway.NewBybit(c), nil
	case *clients.HyperliquidClient:
		return gateway.NewHyperliquid(c.Info(), c.AccountAddress()), nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}
