package models

import "time"

// PaymentEvent marks a processed payment webhook event. The unique event ID
// makes crediting idempotent: replayed deliveries insert-conflict and are
// dropped.
type PaymentEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	EventID string `gorm:"type:text;not null;uniqueIndex"` // Provider event ID.
	Type    string `gorm:"type:varchar(64);not null"`      // Provider event type.

	UserID  *uint64 `gorm:"index"`              // Credited user, if resolved.
	Credits int64   `gorm:"not null;default:0"` // Credits granted.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Processing timestamp.
}
