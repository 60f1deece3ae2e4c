package models

import "time"

// Generation records one completed article. Rows are immutable after creation.
type Generation struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"` // Owning user record.

	Title    string `gorm:"type:text;not null"` // Derived article title.
	Document string `gorm:"type:text;not null"` // Full rendered HTML document.

	Model        string `gorm:"type:varchar(64);not null"` // Model tier used.
	InputTokens  int    `gorm:"not null;default:0"`        // Prompt token count.
	OutputTokens int    `gorm:"not null;default:0"`        // Generated token count.
	ImageCount   int    `gorm:"not null;default:0"`        // Images billed for.
	CostCredits  int64  `gorm:"not null;default:0"`        // Credits charged at settle.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
