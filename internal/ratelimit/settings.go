package ratelimit

import (
	"context"
	"errors"
	"strings"

	"github.com/blogforge/blogforge/internal/config"
	"github.com/blogforge/blogforge/internal/models"

	"gorm.io/gorm"
)

// DefaultRedisPrefix namespaces limiter keys in a shared Redis.
const DefaultRedisPrefix = "blogforge:ratelimit"

// SettingsConfig is the limiter backend configuration snapshot.
type SettingsConfig struct {
	Limit         int
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// SettingsFromConfig derives limiter settings from the server config. Redis
// is enabled whenever an address is configured.
func SettingsFromConfig(gen config.GenerateConfig, redisCfg config.RedisConfig) SettingsConfig {
	cfg := SettingsConfig{
		Limit:         gen.RatePerSecond,
		RedisAddr:     strings.TrimSpace(redisCfg.Addr),
		RedisPassword: strings.TrimSpace(redisCfg.Password),
		RedisDB:       redisCfg.DB,
		RedisPrefix:   strings.TrimSpace(redisCfg.Prefix),
	}
	cfg.RedisEnabled = cfg.RedisAddr != ""
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = DefaultRedisPrefix
	}
	if cfg.RedisDB < 0 {
		cfg.RedisDB = 0
	}
	if cfg.Limit < 0 {
		cfg.Limit = 0
	}
	return cfg
}

// StaticProvider returns a SettingsProvider serving a fixed snapshot.
func StaticProvider(cfg SettingsConfig) SettingsProvider {
	return func() SettingsConfig { return cfg }
}

// ResolveLimit returns the effective per-second limit for a user: the user
// row's own positive limit wins over the configured default. A zero result
// disables limiting for the user.
func ResolveLimit(ctx context.Context, db *gorm.DB, userID uint64, defaultLimit int) (int, error) {
	if db == nil || userID == 0 {
		return defaultLimit, nil
	}
	var row struct {
		RateLimit int
	}
	if errFind := db.WithContext(ctx).
		Model(&models.User{}).
		Select("rate_limit").
		Where("id = ?", userID).
		Take(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return defaultLimit, nil
		}
		return 0, errFind
	}
	if row.RateLimit > 0 {
		return row.RateLimit, nil
	}
	return defaultLimit, nil
}
