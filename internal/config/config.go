package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by the loader. Values set in the
// environment override the config file.
const (
	EnvConfigPath    = "CONFIG_PATH"
	EnvDBConnection  = "DB_CONNECTION"
	EnvJWTSecret     = "JWT_SECRET"
	EnvJWTExpiry     = "JWT_EXPIRY"
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvWebhookSecret = "PAYMENT_WEBHOOK_SECRET"
	EnvRedisAddr     = "REDIS_ADDR"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// ErrMissingUpstreamKey indicates no completion API key is configured.
var ErrMissingUpstreamKey = errors.New("missing completion api key (set `openai.api-key` or env OPENAI_API_KEY)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// UpstreamConfig holds completion API client settings.
type UpstreamConfig struct {
	APIKey  string        `yaml:"api-key"`
	BaseURL string        `yaml:"base-url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ModelRate prices one model tier in credits per million tokens.
type ModelRate struct {
	InputPerMillion  int64 `yaml:"input-per-million"`
	OutputPerMillion int64 `yaml:"output-per-million"`
}

// PricingConfig holds the credit rate table.
type PricingConfig struct {
	Models   map[string]ModelRate `yaml:"models"`
	PerImage int64                `yaml:"per-image"`
}

// GenerateConfig holds generation workflow settings.
type GenerateConfig struct {
	MinTokens      int `yaml:"min-tokens"`
	NoveltyCap     int `yaml:"novelty-cap"`
	ImageAttempts  int `yaml:"image-attempts"`
	RatePerSecond  int `yaml:"rate-per-second"`
	TextSharePct   int `yaml:"text-share-pct"`
	MaxImageCount  int `yaml:"max-image-count"`
	MaxTokensLimit int `yaml:"max-tokens-limit"`
}

// PaymentConfig holds payment bridge settings.
type PaymentConfig struct {
	WebhookSecret   string `yaml:"webhook-secret"`
	CheckoutBaseURL string `yaml:"checkout-base-url"`
	SuccessURL      string `yaml:"success-url"`
	CancelURL       string `yaml:"cancel-url"`
}

// RedisConfig holds optional Redis settings for the rate limiter.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ServerConfig aggregates every runtime section of the config file.
type ServerConfig struct {
	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	JWT      JWTConfig      `yaml:"jwt"`
	Upstream UpstreamConfig `yaml:"openai"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Generate GenerateConfig `yaml:"generate"`
	Payment  PaymentConfig  `yaml:"payment"`
	Redis    RedisConfig    `yaml:"redis"`
}

// Model tier names recognized by the default rate table.
const (
	ModelFastTier    = "fast-tier"
	ModelPremiumTier = "premium-tier"
)

// Defaults applied when the config file omits a value.
const (
	defaultJWTExpiry       = 30 * 24 * time.Hour
	defaultUpstreamBaseURL = "https://api.openai.com"
	defaultUpstreamTimeout = 120 * time.Second
	defaultPerImageCredits = 40
	defaultMinTokens       = 50
	defaultNoveltyCap      = 20
	defaultImageAttempts   = 2
	defaultTextSharePct    = 75
	defaultMaxImageCount   = 10
	defaultMaxTokensLimit  = 8192
	defaultCheckoutBaseURL = "https://pay.blogforge.dev/session"
)

// defaultModelRates prices the built-in tiers in credits per million tokens.
func defaultModelRates() map[string]ModelRate {
	return map[string]ModelRate{
		ModelFastTier:    {InputPerMillion: 500, OutputPerMillion: 1500},
		ModelPremiumTier: {InputPerMillion: 10000, OutputPerMillion: 30000},
	}
}

// Load reads the server config from the YAML file and applies environment
// overrides and defaults.
func Load(configPath string) (ServerConfig, error) {
	var cfg ServerConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return ServerConfig{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	} else if !os.IsNotExist(errRead) {
		return ServerConfig{}, fmt.Errorf("read config file: %w", errRead)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if strings.TrimSpace(cfg.DSN()) == "" {
		return ServerConfig{}, ErrMissingDatabaseDSN
	}
	return cfg, nil
}

// DSN returns the effective database DSN.
func (c ServerConfig) DSN() string {
	if dsn := strings.TrimSpace(c.DatabaseDSN); dsn != "" {
		return dsn
	}
	return strings.TrimSpace(c.Database.DSN)
}

func applyEnvOverrides(cfg *ServerConfig) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.JWT.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			cfg.JWT.Expiry = expiry
		}
	}
	if key := strings.TrimSpace(os.Getenv(EnvOpenAIAPIKey)); key != "" {
		cfg.Upstream.APIKey = key
	}
	if base := strings.TrimSpace(os.Getenv(EnvOpenAIBaseURL)); base != "" {
		cfg.Upstream.BaseURL = base
	}
	if secret := strings.TrimSpace(os.Getenv(EnvWebhookSecret)); secret != "" {
		cfg.Payment.WebhookSecret = secret
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		cfg.Redis.Addr = addr
	}
}

func applyDefaults(cfg *ServerConfig) {
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = defaultJWTExpiry
	}
	if strings.TrimSpace(cfg.Upstream.BaseURL) == "" {
		cfg.Upstream.BaseURL = defaultUpstreamBaseURL
	}
	if cfg.Upstream.Timeout <= 0 {
		cfg.Upstream.Timeout = defaultUpstreamTimeout
	}
	if len(cfg.Pricing.Models) == 0 {
		cfg.Pricing.Models = defaultModelRates()
	}
	if cfg.Pricing.PerImage <= 0 {
		cfg.Pricing.PerImage = defaultPerImageCredits
	}
	if cfg.Generate.MinTokens <= 0 {
		cfg.Generate.MinTokens = defaultMinTokens
	}
	if cfg.Generate.NoveltyCap <= 0 {
		cfg.Generate.NoveltyCap = defaultNoveltyCap
	}
	if cfg.Generate.ImageAttempts <= 0 {
		cfg.Generate.ImageAttempts = defaultImageAttempts
	}
	if cfg.Generate.TextSharePct <= 0 || cfg.Generate.TextSharePct > 100 {
		cfg.Generate.TextSharePct = defaultTextSharePct
	}
	if cfg.Generate.MaxImageCount <= 0 {
		cfg.Generate.MaxImageCount = defaultMaxImageCount
	}
	if cfg.Generate.MaxTokensLimit <= 0 {
		cfg.Generate.MaxTokensLimit = defaultMaxTokensLimit
	}
	if strings.TrimSpace(cfg.Payment.CheckoutBaseURL) == "" {
		cfg.Payment.CheckoutBaseURL = defaultCheckoutBaseURL
	}
}
