package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if errWrite := os.WriteFile(path, []byte(content), 0o600); errWrite != nil {
		t.Fatalf("write config file: %v", errWrite)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfigFile(t, `
database-dsn: "file:app.db"
jwt:
  secret: "s3cret"
  expiry: 12h
openai:
  api-key: "sk-test"
  base-url: "https://upstream.example.com"
  timeout: 30s
pricing:
  per-image: 25
  models:
    fast-tier:
      input-per-million: 111
      output-per-million: 222
generate:
  min-tokens: 80
  novelty-cap: 5
  rate-per-second: 3
payment:
  webhook-secret: "whsec_test"
redis:
  addr: "localhost:6379"
`)

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("Load returned error: %v", errLoad)
	}
	if cfg.DSN() != "file:app.db" {
		t.Fatalf("DSN = %q", cfg.DSN())
	}
	if cfg.JWT.Secret != "s3cret" || cfg.JWT.Expiry != 12*time.Hour {
		t.Fatalf("unexpected jwt config %+v", cfg.JWT)
	}
	if cfg.Upstream.APIKey != "sk-test" || cfg.Upstream.BaseURL != "https://upstream.example.com" {
		t.Fatalf("unexpected upstream config %+v", cfg.Upstream)
	}
	if cfg.Upstream.Timeout != 30*time.Second {
		t.Fatalf("upstream timeout = %v", cfg.Upstream.Timeout)
	}
	if rate := cfg.Pricing.Models["fast-tier"]; rate.InputPerMillion != 111 || rate.OutputPerMillion != 222 {
		t.Fatalf("unexpected fast-tier rate %+v", rate)
	}
	if cfg.Pricing.PerImage != 25 {
		t.Fatalf("per-image = %d", cfg.Pricing.PerImage)
	}
	if cfg.Generate.MinTokens != 80 || cfg.Generate.NoveltyCap != 5 || cfg.Generate.RatePerSecond != 3 {
		t.Fatalf("unexpected generate config %+v", cfg.Generate)
	}
	if cfg.Payment.WebhookSecret != "whsec_test" {
		t.Fatalf("webhook secret = %q", cfg.Payment.WebhookSecret)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("redis addr = %q", cfg.Redis.Addr)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
database-dsn: "file:app.db"
`)

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("Load returned error: %v", errLoad)
	}
	if cfg.JWT.Expiry != 30*24*time.Hour {
		t.Fatalf("default jwt expiry = %v", cfg.JWT.Expiry)
	}
	if cfg.Upstream.BaseURL != "https://api.openai.com" {
		t.Fatalf("default upstream base url = %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.Timeout != 120*time.Second {
		t.Fatalf("default upstream timeout = %v", cfg.Upstream.Timeout)
	}
	if _, ok := cfg.Pricing.Models[ModelFastTier]; !ok {
		t.Fatal("default rate table should price the fast tier")
	}
	if _, ok := cfg.Pricing.Models[ModelPremiumTier]; !ok {
		t.Fatal("default rate table should price the premium tier")
	}
	if cfg.Pricing.PerImage != 40 {
		t.Fatalf("default per-image = %d", cfg.Pricing.PerImage)
	}
	if cfg.Generate.MinTokens != 50 || cfg.Generate.MaxTokensLimit != 8192 {
		t.Fatalf("unexpected generate defaults %+v", cfg.Generate)
	}
	if cfg.Generate.TextSharePct != 75 || cfg.Generate.MaxImageCount != 10 {
		t.Fatalf("unexpected generate defaults %+v", cfg.Generate)
	}
	if cfg.Payment.CheckoutBaseURL == "" {
		t.Fatal("default checkout base url should be applied")
	}
}

func TestLoadNestedDatabaseSection(t *testing.T) {
	path := writeConfigFile(t, `
database:
  dsn: "file:nested.db"
`)

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("Load returned error: %v", errLoad)
	}
	if cfg.DSN() != "file:nested.db" {
		t.Fatalf("DSN = %q, want nested value", cfg.DSN())
	}
}

func TestDSNPrefersFlatKey(t *testing.T) {
	var cfg ServerConfig
	cfg.DatabaseDSN = "file:flat.db"
	cfg.Database.DSN = "file:nested.db"
	if cfg.DSN() != "file:flat.db" {
		t.Fatalf("DSN = %q, want flat key to win", cfg.DSN())
	}
}

func TestLoadMissingDSN(t *testing.T) {
	path := writeConfigFile(t, `
jwt:
  secret: "s3cret"
`)
	if _, errLoad := Load(path); !errors.Is(errLoad, ErrMissingDatabaseDSN) {
		t.Fatalf("expected ErrMissingDatabaseDSN, got %v", errLoad)
	}
}

func TestLoadMissingFileStillAppliesEnv(t *testing.T) {
	t.Setenv(EnvDBConnection, "file:env.db")
	t.Setenv(EnvJWTSecret, "env-secret")
	t.Setenv(EnvOpenAIAPIKey, "sk-env")

	cfg, errLoad := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if errLoad != nil {
		t.Fatalf("Load returned error: %v", errLoad)
	}
	if cfg.DSN() != "file:env.db" {
		t.Fatalf("DSN = %q, want env value", cfg.DSN())
	}
	if cfg.JWT.Secret != "env-secret" || cfg.Upstream.APIKey != "sk-env" {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.JWT, cfg.Upstream)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
database-dsn: "file:file.db"
jwt:
  secret: "file-secret"
`)
	t.Setenv(EnvDBConnection, "file:env.db")
	t.Setenv(EnvJWTSecret, "env-secret")
	t.Setenv(EnvJWTExpiry, "2h")

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("Load returned error: %v", errLoad)
	}
	if cfg.DSN() != "file:env.db" {
		t.Fatalf("DSN = %q, want env override", cfg.DSN())
	}
	if cfg.JWT.Secret != "env-secret" {
		t.Fatalf("jwt secret = %q, want env override", cfg.JWT.Secret)
	}
	if cfg.JWT.Expiry != 2*time.Hour {
		t.Fatalf("jwt expiry = %v, want 2h", cfg.JWT.Expiry)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "database-dsn: [broken")
	if _, errLoad := Load(path); errLoad == nil {
		t.Fatal("expected parse error")
	}
}

func TestResolveConfigPath(t *testing.T) {
	if got := ResolveConfigPath("  "); !filepath.IsAbs(got) {
		t.Fatalf("default path should be absolute, got %q", got)
	}
	got := ResolveConfigPath("conf/app.yaml")
	if !filepath.IsAbs(got) {
		t.Fatalf("resolved path should be absolute, got %q", got)
	}
}
