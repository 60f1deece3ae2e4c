package models

import "time"

// CreditEntryKind identifies the balance mutation recorded by an entry.
type CreditEntryKind int

// CreditEntryKind constants define ledger journal entry kinds.
const (
	// CreditEntryReserve holds credits for an in-flight generation.
	CreditEntryReserve CreditEntryKind = 1
	// CreditEntrySettle returns the unused part of a reservation.
	CreditEntrySettle CreditEntryKind = 2
	// CreditEntryRefund returns a full reservation after upstream failure.
	CreditEntryRefund CreditEntryKind = 3
	// CreditEntryPurchase credits a paid top-up.
	CreditEntryPurchase CreditEntryKind = 4
)

// CreditEntry journals one credit balance mutation. Amount is signed:
// negative entries debit the balance, positive entries credit it.
type CreditEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Affected user ID.
	User   User   `gorm:"foreignKey:UserID"` // Affected user record.

	Kind   CreditEntryKind `gorm:"not null"`           // Mutation kind.
	Amount int64           `gorm:"not null"`           // Signed credit delta.
	Remain int64           `gorm:"not null;default:0"` // Balance after the mutation.

	Reference string `gorm:"type:text;not null;index"` // Reservation or payment event ID.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
