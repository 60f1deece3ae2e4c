// Package payment bridges the payment provider to the credit ledger. The
// webhook path verifies the provider signature, resolves the paying user and
// credits the purchased amount exactly once per event.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blogforge/blogforge/internal/config"
	"github.com/blogforge/blogforge/internal/ledger"
	"github.com/blogforge/blogforge/internal/metrics"
	"github.com/blogforge/blogforge/internal/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidEvent indicates a verified webhook payload that cannot be
// processed: malformed JSON, unknown customer or unknown product.
var ErrInvalidEvent = errors.New("payment: invalid event")

// eventCheckoutCompleted is the only event type that grants credits.
const eventCheckoutCompleted = "checkout.session.completed"

// Bridge processes payment provider callbacks and creates checkout sessions.
type Bridge struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	cfg    config.PaymentConfig
}

// NewBridge constructs a Bridge.
func NewBridge(db *gorm.DB, credits *ledger.Ledger, cfg config.PaymentConfig) *Bridge {
	return &Bridge{db: db, ledger: credits, cfg: cfg}
}

// webhookEvent is the provider event envelope.
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID              string            `json:"id"`
			CustomerEmail   string            `json:"customer_email"`
			CustomerDetails struct {
				Email string `json:"email"`
			} `json:"customer_details"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// HandleWebhook verifies and processes one webhook delivery. Crediting is
// idempotent on the provider event id: a replayed delivery is acknowledged
// without a second credit.
func (b *Bridge) HandleWebhook(ctx context.Context, signature string, body []byte) error {
	if b == nil || b.db == nil || b.ledger == nil {
		return fmt.Errorf("payment: bridge not initialized")
	}
	if errVerify := VerifySignature(b.cfg.WebhookSecret, signature, body, time.Now()); errVerify != nil {
		return errVerify
	}

	var event webhookEvent
	if errUnmarshal := json.Unmarshal(body, &event); errUnmarshal != nil {
		return fmt.Errorf("%w: parse payload: %v", ErrInvalidEvent, errUnmarshal)
	}
	if strings.TrimSpace(event.ID) == "" {
		return fmt.Errorf("%w: missing event id", ErrInvalidEvent)
	}
	if event.Type != eventCheckoutCompleted {
		// Other event types are acknowledged and ignored.
		log.WithFields(log.Fields{"event_id": event.ID, "type": event.Type}).Debug("ignoring payment event")
		return nil
	}

	email := strings.TrimSpace(event.Data.Object.CustomerEmail)
	if email == "" {
		email = strings.TrimSpace(event.Data.Object.CustomerDetails.Email)
	}
	if email == "" {
		return fmt.Errorf("%w: event %s carries no customer email", ErrInvalidEvent, event.ID)
	}

	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errFind := tx.First(&user, "email = ?", strings.ToLower(email)).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no user for customer %s", ErrInvalidEvent, email)
			}
			return fmt.Errorf("payment: lookup user: %w", errFind)
		}

		credits, errCredits := b.resolveCredits(tx, event.Data.Object.Metadata)
		if errCredits != nil {
			return errCredits
		}

		record := models.PaymentEvent{
			EventID: event.ID,
			Type:    event.Type,
			UserID:  &user.ID,
			Credits: credits,
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).Create(&record)
		if result.Error != nil {
			return fmt.Errorf("payment: record event: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			log.WithField("event_id", event.ID).Info("duplicate payment event, skipping credit")
			return nil
		}

		if errCredit := b.ledger.CreditInTx(tx, user.ID, credits, event.ID); errCredit != nil {
			return errCredit
		}
		metrics.CreditsPurchasedTotal.Add(float64(credits))
		log.WithFields(log.Fields{
			"event_id": event.ID,
			"user_id":  user.ID,
			"credits":  credits,
		}).Info("purchase credited")
		return nil
	})
}

// resolveCredits derives the purchased credit amount from the checkout
// metadata: an explicit credits value wins, otherwise the referenced product
// row supplies it.
func (b *Bridge) resolveCredits(tx *gorm.DB, metadata map[string]string) (int64, error) {
	if raw, ok := metadata["credits"]; ok {
		credits, errParse := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if errParse != nil || credits <= 0 {
			return 0, fmt.Errorf("%w: bad credits metadata %q", ErrInvalidEvent, raw)
		}
		return credits, nil
	}

	raw, ok := metadata["product_id"]
	if !ok {
		return 0, fmt.Errorf("%w: metadata names neither credits nor product", ErrInvalidEvent)
	}
	productID, errParse := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if errParse != nil {
		return 0, fmt.Errorf("%w: bad product id %q", ErrInvalidEvent, raw)
	}
	var product models.Product
	if errFind := tx.First(&product, "id = ?", productID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: unknown product %d", ErrInvalidEvent, productID)
		}
		return 0, fmt.Errorf("payment: lookup product: %w", errFind)
	}
	if product.Credits <= 0 {
		return 0, fmt.Errorf("%w: product %d grants no credits", ErrInvalidEvent, productID)
	}
	return product.Credits, nil
}

// CheckoutSession is a started purchase for one credit pack.
type CheckoutSession struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	ProductID  uint64 `json:"product_id"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
	Credits    int64  `json:"credits"`
}

// CreateCheckoutSession starts a purchase of the given product for the user.
// The returned URL points at the provider's hosted payment page; settlement
// arrives later through the webhook.
func (b *Bridge) CreateCheckoutSession(ctx context.Context, user *models.User, productID uint64) (*CheckoutSession, error) {
	if b == nil || b.db == nil {
		return nil, fmt.Errorf("payment: bridge not initialized")
	}
	if user == nil {
		return nil, fmt.Errorf("payment: nil user")
	}

	var product models.Product
	if errFind := b.db.WithContext(ctx).
		First(&product, "id = ? AND is_enabled = ?", productID, true).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown product %d", ErrInvalidEvent, productID)
		}
		return nil, fmt.Errorf("payment: lookup product: %w", errFind)
	}

	sessionID := "cs_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	log.WithFields(log.Fields{
		"user_id":    user.ID,
		"product_id": product.ID,
		"session":    sessionID,
	}).Info("checkout session created")

	return &CheckoutSession{
		ID:         sessionID,
		URL:        strings.TrimRight(b.cfg.CheckoutBaseURL, "/") + "/" + sessionID,
		ProductID:  product.ID,
		PriceCents: product.PriceCents,
		Currency:   product.Currency,
		Credits:    product.Credits,
	}, nil
}

// ListProducts returns the purchasable credit packs.
func (b *Bridge) ListProducts(ctx context.Context) ([]models.Product, error) {
	if b == nil || b.db == nil {
		return nil, fmt.Errorf("payment: bridge not initialized")
	}
	var products []models.Product
	if errFind := b.db.WithContext(ctx).
		Where("is_enabled = ?", true).Order("price_cents ASC").Find(&products).Error; errFind != nil {
		return nil, fmt.Errorf("payment: list products: %w", errFind)
	}
	return products, nil
}
