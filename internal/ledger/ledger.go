// Package ledger owns the user credit balance. Every mutation is a single
// all-or-nothing transaction and is journaled to credit_entries for manual
// reconciliation.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/blogforge/blogforge/internal/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInsufficientCredits indicates the balance cannot cover the reservation.
var ErrInsufficientCredits = errors.New("ledger: insufficient credits")

// Reservation is a hold on a user's balance for one in-flight generation.
// The amount is already debited; Settle or Refund must reconcile it before
// the request completes.
type Reservation struct {
	ID     string // Opaque reservation reference.
	UserID uint64 // Owning user.
	Amount int64  // Credits withheld.
}

// Ledger mutates user credit balances.
type Ledger struct {
	db *gorm.DB
}

// New constructs a Ledger backed by GORM.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Reserve atomically checks and debits the balance. Concurrent reservations
// against the same user serialize on the row lock, so a balance of B admits
// at most floor(B/amount) holds of the same size.
func (l *Ledger) Reserve(ctx context.Context, userID uint64, amount int64) (Reservation, error) {
	if l == nil || l.db == nil {
		return Reservation{}, fmt.Errorf("ledger: not initialized")
	}
	if amount <= 0 {
		return Reservation{}, fmt.Errorf("ledger: reserve amount must be positive, got %d", amount)
	}

	res := Reservation{ID: uuid.NewString(), UserID: userID, Amount: amount}
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, userID).Error; errFind != nil {
			return fmt.Errorf("ledger: load user %d: %w", userID, errFind)
		}
		if user.Credits < amount {
			return ErrInsufficientCredits
		}

		result := tx.Model(&models.User{}).
			Where("id = ? AND credits >= ?", userID, amount).
			Update("credits", gorm.Expr("credits - ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrInsufficientCredits
		}

		return journal(tx, models.CreditEntry{
			UserID:    userID,
			Kind:      models.CreditEntryReserve,
			Amount:    -amount,
			Remain:    user.Credits - amount,
			Reference: res.ID,
		})
	})
	if errTx != nil {
		return Reservation{}, errTx
	}

	log.WithFields(log.Fields{
		"user_id":     userID,
		"reservation": res.ID,
		"amount":      amount,
	}).Debug("credits reserved")
	return res, nil
}

// Settle converts a reservation into a final charge. The unused part of the
// hold returns to the balance; a charge above the reserved amount is capped
// at the reservation, so the overage is absorbed rather than debited extra.
func (l *Ledger) Settle(ctx context.Context, res Reservation, actualCost int64) (int64, error) {
	if l == nil || l.db == nil {
		return 0, fmt.Errorf("ledger: not initialized")
	}
	if actualCost < 0 {
		actualCost = 0
	}

	charged := actualCost
	if charged > res.Amount {
		log.WithFields(log.Fields{
			"user_id":     res.UserID,
			"reservation": res.ID,
			"reserved":    res.Amount,
			"actual":      actualCost,
		}).Warn("actual cost exceeds reservation, capping charge")
		charged = res.Amount
	}
	release := res.Amount - charged

	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		remain, errReturn := returnCredits(tx, res.UserID, release)
		if errReturn != nil {
			return errReturn
		}
		return journal(tx, models.CreditEntry{
			UserID:    res.UserID,
			Kind:      models.CreditEntrySettle,
			Amount:    release,
			Remain:    remain,
			Reference: res.ID,
		})
	})
	if errTx != nil {
		return 0, errTx
	}

	log.WithFields(log.Fields{
		"user_id":     res.UserID,
		"reservation": res.ID,
		"charged":     charged,
		"released":    release,
	}).Info("reservation settled")
	return charged, nil
}

// Refund returns the entire reserved amount; used when generation failed
// before producing any billable output.
func (l *Ledger) Refund(ctx context.Context, res Reservation) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("ledger: not initialized")
	}

	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		remain, errReturn := returnCredits(tx, res.UserID, res.Amount)
		if errReturn != nil {
			return errReturn
		}
		return journal(tx, models.CreditEntry{
			UserID:    res.UserID,
			Kind:      models.CreditEntryRefund,
			Amount:    res.Amount,
			Remain:    remain,
			Reference: res.ID,
		})
	})
	if errTx != nil {
		return errTx
	}

	log.WithFields(log.Fields{
		"user_id":     res.UserID,
		"reservation": res.ID,
		"amount":      res.Amount,
	}).Info("reservation refunded")
	return nil
}

// Credit adds purchased credits to the balance, journaled against the
// payment reference.
func (l *Ledger) Credit(ctx context.Context, userID uint64, amount int64, reference string) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("ledger: not initialized")
	}
	if amount <= 0 {
		return fmt.Errorf("ledger: credit amount must be positive, got %d", amount)
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return l.CreditInTx(tx, userID, amount, reference)
	})
}

// CreditInTx is Credit running inside a caller-owned transaction; used by
// the payment bridge to make event recording and crediting one atomic unit.
func (l *Ledger) CreditInTx(tx *gorm.DB, userID uint64, amount int64, reference string) error {
	if l == nil {
		return fmt.Errorf("ledger: not initialized")
	}
	if amount <= 0 {
		return fmt.Errorf("ledger: credit amount must be positive, got %d", amount)
	}
	remain, errReturn := returnCredits(tx, userID, amount)
	if errReturn != nil {
		return errReturn
	}
	return journal(tx, models.CreditEntry{
		UserID:    userID,
		Kind:      models.CreditEntryPurchase,
		Amount:    amount,
		Remain:    remain,
		Reference: reference,
	})
}

// Balance returns the user's current credit balance.
func (l *Ledger) Balance(ctx context.Context, userID uint64) (int64, error) {
	if l == nil || l.db == nil {
		return 0, fmt.Errorf("ledger: not initialized")
	}
	var user models.User
	if errFind := l.db.WithContext(ctx).Select("credits").First(&user, userID).Error; errFind != nil {
		return 0, fmt.Errorf("ledger: load user %d: %w", userID, errFind)
	}
	return user.Credits, nil
}

// returnCredits adds amount back to the locked user row and reports the
// resulting balance. A zero amount still locks the row so the journal entry
// records a consistent remainder.
func returnCredits(tx *gorm.DB, userID uint64, amount int64) (int64, error) {
	var user models.User
	if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, userID).Error; errFind != nil {
		return 0, fmt.Errorf("ledger: load user %d: %w", userID, errFind)
	}
	if amount == 0 {
		return user.Credits, nil
	}
	if errUpdate := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Update("credits", gorm.Expr("credits + ?", amount)).Error; errUpdate != nil {
		return 0, errUpdate
	}
	return user.Credits + amount, nil
}

func journal(tx *gorm.DB, entry models.CreditEntry) error {
	if errCreate := tx.Create(&entry).Error; errCreate != nil {
		return fmt.Errorf("ledger: journal entry: %w", errCreate)
	}
	return nil
}
