package config

import (
	"strings"
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

func TestUnmarshalExact_RejectsUnknownKey(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")

	configYAML := `
server:
  port: 8080
  graphiql: true
`

	if err := v.ReadConfig(strings.NewReader(configYAML)); err != nil {
		t.Fatalf("failed to read config yaml: %v", err)
	}

	var cfg Config
	err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	)
	if err == nil {
		t.Fatal("expected unmarshal error for misspelled graphiql key")
	}
	if !strings.Contains(err.Error(), "graphiql") {
		t.Fatalf("expected error to mention graphiql, got: %v", err)
	}
}

func TestUnmarshalExact_AcceptsKnownKeys(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")

	configYAML := `
database:
  dialect: postgres
  dsn: postgres://app@localhost:5432/app
  pool:
    max_open: 10
    max_idle: 2
    max_lifetime: 10m
treesync:
  max_depth: 4
  delete_orphans: false
server:
  port: 8081
  graphiql_enabled: true
  cors_allowed_origins: https://a.example.com,https://b.example.com
`

	if err := v.ReadConfig(strings.NewReader(configYAML)); err != nil {
		t.Fatalf("failed to read config yaml: %v", err)
	}

	var cfg Config
	err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	)
	if err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}

	if cfg.Database.Dialect != "postgres" {
		t.Errorf("dialect = %q, want postgres", cfg.Database.Dialect)
	}
	if cfg.Database.Pool.MaxOpen != 10 {
		t.Errorf("pool.max_open = %d, want 10", cfg.Database.Pool.MaxOpen)
	}
	if cfg.TreeSync.MaxDepth != 4 {
		t.Errorf("treesync.max_depth = %d, want 4", cfg.TreeSync.MaxDepth)
	}
	if !cfg.Server.GraphiQLEnabled {
		t.Error("server.graphiql_enabled = false, want true")
	}
	if len(cfg.Server.CORSAllowedOrigins) != 2 {
		t.Errorf("cors_allowed_origins = %v, want 2 entries", cfg.Server.CORSAllowedOrigins)
	}
}
