// Package config loads the scraper configuration from YAML.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/exscraper/internal/domain"
)

// Config is the validated scraper configuration.
type Config struct {
	Database  Database
	WALDir    string
	LogLevel  string
	HTTPAddr  string
	NATSURL   string
	Intervals Intervals
	History   History
	Accounts  []Account
}

type Database struct {
	Driver string
	DSN    string
}

// Intervals are the sleep times between task cycles.
type Intervals struct {
	History      time.Duration
	Discovery    time.Duration
	Account      time.Duration
	Orders       time.Duration
	Ticks        time.Duration
	DailyBalance time.Duration
}

// History bounds the work of the sync engines per cycle.
type History struct {
	MaxFetchesPerCycle int
	MaxCursorPages     int
	PageLimit          int
	SymbolsPerCycle    int
	ProbesPerCycle     int
}

// Account is one exchange account to scrape.
type Account struct {
	Alias         string
	Exchange      domain.Exchange
	APIKey        string
	APISecret     string
	APIPassphrase string
	TestNet       bool
	Symbols       []string
}

// ConfigTmp mirrors the YAML layout before defaults and validation.
type ConfigTmp struct {
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	WALDir   string `yaml:"wal_dir,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`
	HTTP     struct {
		Addr string `yaml:"addr"`
	} `yaml:"http,omitempty"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats,omitempty"`
	Intervals struct {
		History      time.Duration `yaml:"history"`
		Discovery    time.Duration `yaml:"discovery"`
		Account      time.Duration `yaml:"account"`
		Orders       time.Duration `yaml:"orders"`
		Ticks        time.Duration `yaml:"ticks"`
		DailyBalance time.Duration `yaml:"daily_balance"`
	} `yaml:"intervals,omitempty"`
	History struct {
		MaxFetchesPerCycle int `yaml:"max_fetches_per_cycle"`
		MaxCursorPages     int `yaml:"max_cursor_pages"`
		PageLimit          int `yaml:"page_limit"`
		SymbolsPerCycle    int `yaml:"symbols_per_cycle"`
		ProbesPerCycle     int `yaml:"probes_per_cycle"`
	} `yaml:"history,omitempty"`
	Accounts []AccountTmp `yaml:"accounts"`
}

type AccountTmp struct {
	Alias         string   `yaml:"alias"`
	Exchange      string   `yaml:"exchange"`
	APIKey        string   `yaml:"api_key"`
	APISecret     string   `yaml:"api_secret"`
	APIPassphrase string   `yaml:"api_passphrase,omitempty"`
	TestNet       bool     `yaml:"test_net,omitempty"`
	Symbols       []string `yaml:"symbols,omitempty"`
}

// Load reads path, expands ${ENV} references, applies defaults and validates.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse builds a Config from YAML bytes.
func Parse(raw []byte) (Config, error) {
	var tmp ConfigTmp
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &tmp); err != nil {
		return Config{}, fmt.Errorf("parse yaml config: %w", err)
	}

	conf := Config{
		Database:  Database{Driver: tmp.Database.Driver, DSN: tmp.Database.DSN},
		WALDir:    tmp.WALDir,
		LogLevel:  tmp.LogLevel,
		HTTPAddr:  tmp.HTTP.Addr,
		NATSURL:   tmp.NATS.URL,
		Intervals: Intervals(tmp.Intervals),
		History:   History(tmp.History),
	}

	seen := make(map[string]bool, len(tmp.Accounts))
	for i, a := range tmp.Accounts {
		alias := strings.TrimSpace(a.Alias)
		if alias == "" {
			return Config{}, fmt.Errorf("account #%d: 'alias' is required", i+1)
		}
		if seen[alias] {
			return Config{}, fmt.Errorf("account %s: duplicate alias", alias)
		}
		seen[alias] = true

		exchange, err := domain.ParseExchange(a.Exchange)
		if err != nil {
			return Config{}, fmt.Errorf("account %s: incorrect 'exchange' param: %w", alias, err)
		}
		// hyperliquid signs with a wallet key; api_key optionally names the main account address
		if a.APISecret == "" || exchange != domain.ExchangeHyperliquid && a.APIKey == "" {
			return Config{}, fmt.Errorf("account %s: 'api_key' and 'api_secret' are required", alias)
		}

		symbols := make([]string, 0, len(a.Symbols))
		for _, s := range a.Symbols {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				symbols = append(symbols, s)
			}
		}

		conf.Accounts = append(conf.Accounts, Account{
			Alias:         alias,
			Exchange:      exchange,
			APIKey:        a.APIKey,
			APISecret:     a.APISecret,
			APIPassphrase: a.APIPassphrase,
			TestNet:       a.TestNet,
			Symbols:       symbols,
		})
	}
	if len(conf.Accounts) == 0 {
		return Config{}, fmt.Errorf("no accounts configured")
	}

	conf.applyDefaults()
	return conf, conf.validate()
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "data/exchanges.sqlite"
	}
	if c.WALDir == "" {
		c.WALDir = "./wal/balance"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}

	setDuration(&c.Intervals.History, 60*time.Second)
	setDuration(&c.Intervals.Discovery, 20*time.Second)
	setDuration(&c.Intervals.Account, 20*time.Second)
	setDuration(&c.Intervals.Orders, 30*time.Second)
	setDuration(&c.Intervals.Ticks, 5*time.Second)
	setDuration(&c.Intervals.DailyBalance, 60*time.Second)

	setInt(&c.History.MaxFetchesPerCycle, 3)
	setInt(&c.History.MaxCursorPages, 20)
	setInt(&c.History.PageLimit, 1000)
	setInt(&c.History.SymbolsPerCycle, 10)
	setInt(&c.History.ProbesPerCycle, 3)
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("incorrect 'database.driver' param: %s (sqlite or postgres)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("'database.dsn' is required for %s", c.Database.Driver)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("incorrect 'log_level' param: %s", c.LogLevel)
	}
	if c.History.PageLimit > 1000 {
		return fmt.Errorf("incorrect 'history.page_limit' param: %d (max 1000)", c.History.PageLimit)
	}
	return nil
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

func setInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}
