package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type entrypointEnv struct {
	Port int `env:"LEGACY_VAULT_ENTRYPOINT_TEST_PORT" envDefault:"8080"`
}

func TestParseConfigLoadsEnvDefaults(t *testing.T) {
	var cfg entrypointEnv
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Port)
	}
}

func TestParseConfigRejectsNil(t *testing.T) {
	if err := ParseConfig[entrypointEnv](nil); err == nil {
		t.Fatal("expected error for nil config target")
	}
}

func TestParseArgsOverridesFlags(t *testing.T) {
	var cfg entrypointEnv
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "server port")
	if err := ParseArgs(fs, []string{"-port", "9999"}); err != nil {
		t.Fatalf("parse args: %v", err)
	}
	if cfg.Port != 9999 {
		t.Fatalf("port = %d, want flag override 9999", cfg.Port)
	}
}

func TestRunWithTelemetryRequiresService(t *testing.T) {
	err := RunWithTelemetry(context.Background(), "  ", func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for empty service name")
	}
}

func TestRunWithTelemetryRunsLoop(t *testing.T) {
	t.Setenv("LEGACY_VAULT_OTEL_ENDPOINT", "")
	wantErr := errors.New("loop done")
	err := RunWithTelemetry(context.Background(), ServiceVault, func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want loop error", err)
	}
}
