package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blogforge/blogforge/internal/config"
	"github.com/blogforge/blogforge/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Unix(1000, 0)

	for i := 0; i < 3; i++ {
		result, errAllow := l.Allow(context.Background(), "u:1", 3, now)
		if errAllow != nil {
			t.Fatalf("Allow returned error: %v", errAllow)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if result.Remaining != 3-i-1 {
			t.Fatalf("remaining = %d, want %d", result.Remaining, 3-i-1)
		}
	}

	result, errAllow := l.Allow(context.Background(), "u:1", 3, now)
	if errAllow != nil {
		t.Fatalf("Allow returned error: %v", errAllow)
	}
	if result.Allowed {
		t.Fatal("fourth request in the same second should be denied")
	}

	result, errAllow = l.Allow(context.Background(), "u:1", 3, now.Add(time.Second))
	if errAllow != nil {
		t.Fatalf("Allow returned error: %v", errAllow)
	}
	if !result.Allowed {
		t.Fatal("request in the next window should be allowed")
	}
}

func TestMemoryLimiterIsolatesKeys(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Unix(1000, 0)

	if result, _ := l.Allow(context.Background(), "u:1", 1, now); !result.Allowed {
		t.Fatal("first user should be allowed")
	}
	if result, _ := l.Allow(context.Background(), "u:1", 1, now); result.Allowed {
		t.Fatal("first user should be throttled")
	}
	if result, _ := l.Allow(context.Background(), "u:2", 1, now); !result.Allowed {
		t.Fatal("second user should be unaffected")
	}
}

func TestMemoryLimiterZeroLimitDisables(t *testing.T) {
	l := NewMemoryLimiter()
	for i := 0; i < 10; i++ {
		result, errAllow := l.Allow(context.Background(), "u:1", 0, time.Now())
		if errAllow != nil || !result.Allowed {
			t.Fatalf("zero limit should always allow, got %+v err=%v", result, errAllow)
		}
	}
}

func TestManagerFallsBackToMemoryWithoutRedis(t *testing.T) {
	m := NewManager(StaticProvider(SettingsConfig{Limit: 2}), func() time.Time { return time.Unix(1000, 0) }, nil)

	for i := 0; i < 2; i++ {
		result, errAllow := m.Allow(context.Background(), "u:1", 2)
		if errAllow != nil || !result.Allowed {
			t.Fatalf("request %d: got %+v err=%v", i, result, errAllow)
		}
	}
	result, errAllow := m.Allow(context.Background(), "u:1", 2)
	if errAllow != nil {
		t.Fatalf("Allow returned error: %v", errAllow)
	}
	if result.Allowed {
		t.Fatal("third request should be denied")
	}
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := SettingsFromConfig(
		config.GenerateConfig{RatePerSecond: 5},
		config.RedisConfig{Addr: " localhost:6379 ", DB: -1},
	)
	if cfg.Limit != 5 {
		t.Fatalf("limit = %d, want 5", cfg.Limit)
	}
	if !cfg.RedisEnabled || cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("unexpected redis settings %+v", cfg)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("negative redis db should clamp to 0, got %d", cfg.RedisDB)
	}
	if cfg.RedisPrefix != DefaultRedisPrefix {
		t.Fatalf("unexpected prefix %q", cfg.RedisPrefix)
	}

	disabled := SettingsFromConfig(config.GenerateConfig{RatePerSecond: 5}, config.RedisConfig{})
	if disabled.RedisEnabled {
		t.Fatal("redis should stay disabled without an address")
	}
}

var testDBSeq atomic.Int64

func TestResolveLimitPrefersUserOverride(t *testing.T) {
	dsn := fmt.Sprintf("file:ratelimit_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if errOpen != nil {
		t.Fatalf("open test db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.User{}); errMigrate != nil {
		t.Fatalf("migrate test db: %v", errMigrate)
	}

	limited := &models.User{Username: "limited", Email: "limited@example.com", Titles: models.TitleList{}, RateLimit: 7, Active: true}
	plain := &models.User{Username: "plain", Email: "plain@example.com", Titles: models.TitleList{}, Active: true}
	for _, user := range []*models.User{limited, plain} {
		if errCreate := db.Create(user).Error; errCreate != nil {
			t.Fatalf("seed user: %v", errCreate)
		}
	}

	limit, errResolve := ResolveLimit(context.Background(), db, limited.ID, 3)
	if errResolve != nil || limit != 7 {
		t.Fatalf("ResolveLimit(limited) = %d, %v; want 7", limit, errResolve)
	}
	limit, errResolve = ResolveLimit(context.Background(), db, plain.ID, 3)
	if errResolve != nil || limit != 3 {
		t.Fatalf("ResolveLimit(plain) = %d, %v; want default 3", limit, errResolve)
	}
	limit, errResolve = ResolveLimit(context.Background(), db, plain.ID+50, 3)
	if errResolve != nil || limit != 3 {
		t.Fatalf("ResolveLimit(missing) = %d, %v; want default 3", limit, errResolve)
	}
}

func TestKeyForUser(t *testing.T) {
	if got := KeyForUser(42); got != "u:42" {
		t.Fatalf("KeyForUser(42) = %q", got)
	}
	if got := KeyForUser(0); got != "" {
		t.Fatalf("KeyForUser(0) = %q, want empty", got)
	}
}
