// Package seed parses seed command flags and runs the demo seeder.
package seed

import (
	"context"
	"flag"
	"io"
	"strings"

	"github.com/louisbranch/legacyvault/internal/seed"
)

// Config holds seed command configuration.
type Config struct {
	SeedConfig seed.Config
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	seedCfg := seed.DefaultConfig()
	seedCfg.BaseURL = envOrDefault(lookup, "LEGACY_VAULT_SEED_BASE_URL", seedCfg.BaseURL)

	fs.StringVar(&seedCfg.BaseURL, "base-url", seedCfg.BaseURL, "vault API base URL")
	fs.BoolVar(&seedCfg.Verbose, "v", false, "verbose output")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	return Config{SeedConfig: seedCfg}, nil
}

// Run executes the seed command.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	return seed.Run(ctx, cfg.SeedConfig, out)
}

func envOrDefault(lookup EnvLookup, key, fallback string) string {
	if lookup == nil {
		return fallback
	}
	if value, ok := lookup(key); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
