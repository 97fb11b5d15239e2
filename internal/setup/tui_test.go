package setup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/exscraper/config"
	"github.com/vadiminshakov/exscraper/internal/domain"
)

func TestBuildYAML(t *testing.T) {
	answers := Answers{
		Driver: "sqlite",
		DSN:    "data/test.sqlite",
		Accounts: []config.AccountTmp{
			{Alias: "main", Exchange: "binance_futures", APIKey: "k", APISecret: "s"},
			{Alias: "hl", Exchange: "hyperliquid", APISecret: "0xabc", TestNet: true},
		},
	}

	data, err := BuildYAML(answers)
	require.NoError(t, err)

	conf, err := config.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "data/test.sqlite", conf.Database.DSN)
	require.Len(t, conf.Accounts, 2)
	assert.Equal(t, domain.ExchangeBinanceFutures, conf.Accounts[0].Exchange)
	assert.Equal(t, domain.ExchangeHyperliquid, conf.Accounts[1].Exchange)
	assert.True(t, conf.Accounts[1].TestNet)

	assert.NotContains(t, string(data), "intervals:")
	assert.NotContains(t, string(data), "history:")
}

func TestBuildYAML_Invalid(t *testing.T) {
	_, err := BuildYAML(Answers{
		Driver:   "sqlite",
		DSN:      "x.sqlite",
		Accounts: []config.AccountTmp{{Alias: "main", Exchange: "binance_futures", APIKey: "k"}},
	})
	require.Error(t, err)
}

func TestSummary_HidesSecrets(t *testing.T) {
	s := Summary(Answers{
		Driver:   "postgres",
		DSN:      "postgres://localhost/x",
		Accounts: []config.AccountTmp{{Alias: "main", Exchange: "bybit_derivatives", APIKey: "key", APISecret: "topsecret"}},
	})
	assert.Contains(t, s, "Account: main on bybit_derivatives (mainnet)")
	assert.NotContains(t, s, "topsecret")
}
