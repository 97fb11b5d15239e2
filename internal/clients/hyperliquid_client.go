package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

const (
	hyperliquidMainnetURL = "https://api.hyperliquid.xyz"
	hyperliquidTestnetURL = "https://api.hyperliquid-testnet.xyz"
)

type HyperliquidClient struct {
	exchange    *hyperliquid.Exchange
	accountAddr string
}

// NewHyperliquidClient builds a client from an API wallet key. accountAddr
// overrides the address derived from the key, which is needed when the key
// belongs to an agent wallet acting for a main account.
func NewHyperliquidClient(privateKeyHex, accountAddr string, testnet bool) (*HyperliquidClient, error) {
	key := strings.TrimPrefix(strings.TrimPrefix(privateKeyHex, "0x"), "0X")

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, err
	}

	if accountAddr == "" {
		pubECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("error casting public key to ECDSA")
		}
		accountAddr = crypto.PubkeyToAddress(*pubECDSA).Hex()
	}

	baseURL := hyperliquidMainnetURL
	if testnet {
		baseURL = hyperliquidTestnetURL
	}

	// Info and SpotMeta are fetched lazily by the SDK
	ex := hyperliquid.NewExchange(
		context.Background(),
		privateKey,
		baseURL,
		nil,
		"",
		accountAddr,
		nil,
	)

	return &HyperliquidClient{exchange: ex, accountAddr: accountAddr}, nil
}

func (c *HyperliquidClient) Info() *hyperliquid.Info { return c.exchange.Info() }
func (c *HyperliquidClient) AccountAddress() string  { return c.accountAddr }
