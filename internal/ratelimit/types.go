// Package ratelimit throttles generation requests per user with a
// fixed-window counter, backed by Redis when available and by process
// memory otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

// KeyForUser builds the limiter key for one user's generation traffic.
func KeyForUser(userID uint64) string {
	if userID == 0 {
		return ""
	}
	return fmt.Sprintf("u:%d", userID)
}
