package config

import (
	"flag"
	"fmt"
)

// Flags are the command line options.
type Flags struct {
	ConfigPath string
	Setup      bool
}

// ParseFlags parses args (without the program name).
func ParseFlags(args []string) (Flags, error) {
	fs := flag.NewFlagSet("exscraper", flag.ContinueOnError)
	path := fs.String("config", "config.yaml", "path to yaml config")
	setup := fs.Bool("setup", false, "run the interactive configuration wizard")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	if *path == "" && !*setup {
		return Flags{}, fmt.Errorf("--config must not be empty")
	}
	return Flags{ConfigPath: *path, Setup: *setup}, nil
}
