// Package setup is an interactive wizard that writes a scraper config file.
package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/exscraper/config"
	"github.com/vadiminshakov/exscraper/internal/domain"
)

// OutputFile is where RunTUI writes the generated config.
const OutputFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers is everything the wizard collects.
type Answers struct {
	Driver   string
	DSN      string
	Accounts []config.AccountTmp
}

// RunTUI launches the terminal configuration wizard and returns the written path.
func RunTUI() (string, error) {
	answers := Answers{Driver: "sqlite", DSN: "data/exchanges.sqlite"}

	screen("STEP 1: STORAGE")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Where should the ledger live?\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Database driver").
				Options(
					huh.NewOption("SQLite (single file)", "sqlite"),
					huh.NewOption("PostgreSQL", "postgres"),
				).
				Value(&answers.Driver),
			huh.NewInput().
				Title("DSN").
				Description("File path for sqlite, connection string for postgres").
				Value(&answers.DSN).
				Validate(notEmpty("dsn")),
		),
	).Run()
	if err != nil {
		return "", err
	}

	for step := 2; ; step++ {
		acc, err := askAccount(step, answers.Accounts)
		if err != nil {
			return "", err
		}
		answers.Accounts = append(answers.Accounts, acc)

		var more bool
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Add another account?").
					Value(&more),
			),
		).Run()
		if err != nil {
			return "", err
		}
		if !more {
			break
		}
	}

	screen("FINAL CONFIRMATION")
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(Summary(answers)))

	var confirm bool
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if !confirm {
		return "", errors.New("setup cancelled by user")
	}

	data, err := BuildYAML(answers)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(OutputFile, data, 0600); err != nil {
		return "", errors.Wrap(err, "failed to save config file")
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting scraper...", OutputFile)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return OutputFile, nil
}

func askAccount(step int, existing []config.AccountTmp) (config.AccountTmp, error) {
	var acc config.AccountTmp

	screen(fmt.Sprintf("STEP %d: ACCOUNT #%d", step, len(existing)+1))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Exchange").
				Options(
					huh.NewOption("Binance Futures", string(domain.ExchangeBinanceFutures)),
					huh.NewOption("Binance Spot", string(domain.ExchangeBinanceSpot)),
					huh.NewOption("Bybit Derivatives", string(domain.ExchangeBybitDerivatives)),
					huh.NewOption("Hyperliquid", string(domain.ExchangeHyperliquid)),
				).
				Value(&acc.Exchange),
			huh.NewInput().
				Title("Alias").
				Description("Unique name for this account (e.g. main)").
				Value(&acc.Alias).
				Validate(func(s string) error {
					s = strings.TrimSpace(s)
					if s == "" {
						return errors.New("alias cannot be empty")
					}
					for _, a := range existing {
						if a.Alias == s {
							return errors.Errorf("alias %s is already used", s)
						}
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return acc, err
	}

	keyTitle, secretTitle := "API Key", "API Secret"
	if domain.Exchange(acc.Exchange) == domain.ExchangeHyperliquid {
		keyTitle, secretTitle = "Wallet address (optional)", "Private key"
	}
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(keyTitle).
				Value(&acc.APIKey),
			huh.NewInput().
				Title(secretTitle).
				Value(&acc.APISecret).
				EchoMode(huh.EchoModePassword).
				Validate(notEmpty("secret")),
			huh.NewConfirm().
				Title("Use testnet?").
				Value(&acc.TestNet),
		),
	).Run()
	if err != nil {
		return acc, err
	}

	acc.Alias = strings.TrimSpace(acc.Alias)
	return acc, nil
}

// BuildYAML renders the answers and checks the result loads as a valid config.
func BuildYAML(a Answers) ([]byte, error) {
	var tmp config.ConfigTmp
	tmp.Database.Driver = a.Driver
	tmp.Database.DSN = a.DSN
	tmp.Accounts = a.Accounts

	data, err := yaml.Marshal(tmp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate yaml")
	}
	if _, err := config.Parse(data); err != nil {
		return nil, errors.Wrap(err, "generated config is invalid")
	}
	return data, nil
}

// Summary lists the answers without secrets.
func Summary(a Answers) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Database: %s (%s)\n", a.Driver, a.DSN)
	for _, acc := range a.Accounts {
		net := "mainnet"
		if acc.TestNet {
			net = "testnet"
		}
		fmt.Fprintf(&b, "Account: %s on %s (%s)\n", acc.Alias, acc.Exchange, net)
	}
	return b.String()
}

func screen(step string) {
	fmt.Print("\033[H\033[2J") // clear screen
	fmt.Println(headerStyle.Render("EXSCRAPER CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

func notEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}
