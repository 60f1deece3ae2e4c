package models

import (
	"time"

	"gorm.io/datatypes"
)

// Product represents a purchasable credit pack mirrored from the payment
// provider's catalog.
type Product struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:varchar(255);not null;uniqueIndex"` // Display name.
	Description string `gorm:"type:text"`                              // Display description.

	PriceCents int64  `gorm:"not null;default:0"`                  // Unit price in minor units.
	Currency   string `gorm:"type:varchar(8);not null;default:''"` // ISO currency code.
	Credits    int64  `gorm:"not null;default:0"`                  // Credits granted on purchase.

	ExternalPriceID string `gorm:"type:text"` // Payment provider price reference.

	Metadata datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Provider metadata payload.

	IsEnabled bool `gorm:"not null;default:true"` // Whether the pack is purchasable.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
