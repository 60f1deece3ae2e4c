package models

import "time"

// APIKey stores a user-issued capability credential for the generation API.
type APIKey struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"` // Owning user record.

	Name  string `gorm:"type:text"`                      // Display name.
	Token string `gorm:"type:text;not null;uniqueIndex"` // Opaque high-entropy token.

	Active bool `gorm:"not null;default:true"` // Whether the key resolves.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
