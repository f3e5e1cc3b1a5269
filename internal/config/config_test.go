package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
sampling:
  min_amount: 1000
  bank: privat
persistence:
  driver: none
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("P2PWATCHER_SAMPLING_INTERVAL", "45s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sampling.MinAmount != 1000 || cfg.Sampling.Bank != "privat" {
		t.Fatalf("file values not applied: %+v", cfg.Sampling)
	}
	if cfg.Sampling.Interval != 45*time.Second {
		t.Fatalf("env override not applied: %s", cfg.Sampling.Interval)
	}
	if cfg.Sampling.HistoryCapacity != 5000 || cfg.Persistence.SnapshotEvery != 10 {
		t.Fatalf("defaults missing: %+v %+v", cfg.Sampling, cfg.Persistence)
	}
	if cfg.Bybit.PaymentMethods["oschadbank"] != "90" {
		t.Fatalf("payment method defaults missing: %v", cfg.Bybit.PaymentMethods)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Bybit:       BybitConfig{PaymentMethods: map[string]string{"mono": "43"}},
			Sampling:    SamplingConfig{Interval: time.Second, MinAmount: 5000, HistoryCapacity: 10},
			Persistence: PersistenceConfig{Driver: DriverNone, SnapshotEvery: 1},
			Export:      ExportConfig{MaxDataPoints: 10},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero amount", func(c *Config) { c.Sampling.MinAmount = 0 }, "min_amount"},
		{"unknown driver", func(c *Config) { c.Persistence.Driver = "s3" }, "unknown persistence.driver"},
		{"postgres without dsn", func(c *Config) { c.Persistence.Driver = DriverPostgres }, "database.dsn"},
		{"unknown bank", func(c *Config) { c.Sampling.Bank = "privat" }, "payment_methods"},
		{"bad timezone", func(c *Config) { c.App.Timezone = "Mars/Olympus" }, "app.timezone"},
		{"telegram without token", func(c *Config) { c.Alerting.Telegram.Enabled = true }, "bot_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLocationDefaultsToLocal(t *testing.T) {
	cfg := Config{}
	loc, err := cfg.Location()
	if err != nil || loc != time.Local {
		t.Fatalf("expected time.Local, got %v (%v)", loc, err)
	}
	if got := cfg.ResolveMaxPoints(7); got != 7 {
		t.Fatalf("override ignored: %d", got)
	}
}
