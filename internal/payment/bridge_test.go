package payment

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blogforge/blogforge/internal/config"
	"github.com/blogforge/blogforge/internal/ledger"
	"github.com/blogforge/blogforge/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testWebhookSecret = "whsec_test"

var testDBSeq atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:payment_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if errOpen != nil {
		t.Fatalf("open test db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.User{}, &models.CreditEntry{}, &models.PaymentEvent{}, &models.Product{}); errMigrate != nil {
		t.Fatalf("migrate test db: %v", errMigrate)
	}
	return db
}

func newTestBridge(t *testing.T, db *gorm.DB) *Bridge {
	t.Helper()
	return NewBridge(db, ledger.New(db), config.PaymentConfig{
		WebhookSecret:   testWebhookSecret,
		CheckoutBaseURL: "https://pay.test/session",
	})
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Username: email, Email: email, Titles: models.TitleList{}, Active: true}
	if errCreate := db.Create(user).Error; errCreate != nil {
		t.Fatalf("seed user: %v", errCreate)
	}
	return user
}

func seedProduct(t *testing.T, db *gorm.DB, credits int64) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:       fmt.Sprintf("%d Credits", credits),
		PriceCents: credits * 10,
		Currency:   "usd",
		Credits:    credits,
		Metadata:   []byte(`{}`),
		IsEnabled:  true,
	}
	if errCreate := db.Create(product).Error; errCreate != nil {
		t.Fatalf("seed product: %v", errCreate)
	}
	return product
}

func checkoutEvent(eventID, email string, productID uint64) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":"checkout.session.completed","data":{"object":{"id":"cs_1","customer_email":%q,"metadata":{"product_id":"%d"}}}}`,
		eventID, email, productID))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := SignPayload(testWebhookSecret, now, body)

	if errVerify := VerifySignature(testWebhookSecret, header, body, now); errVerify != nil {
		t.Fatalf("valid signature rejected: %v", errVerify)
	}
	if errVerify := VerifySignature("other-secret", header, body, now); !errors.Is(errVerify, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for wrong secret, got %v", errVerify)
	}
	if errVerify := VerifySignature(testWebhookSecret, header, []byte(`{}`), now); !errors.Is(errVerify, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for altered body, got %v", errVerify)
	}
	if errVerify := VerifySignature(testWebhookSecret, "garbage", body, now); !errors.Is(errVerify, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for malformed header, got %v", errVerify)
	}
	if errVerify := VerifySignature(testWebhookSecret, header, body, now.Add(time.Hour)); !errors.Is(errVerify, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for stale timestamp, got %v", errVerify)
	}
}

func TestHandleWebhookCreditsPurchase(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "buyer@example.com")
	product := seedProduct(t, db, 100)
	b := newTestBridge(t, db)

	body := checkoutEvent("evt_1", user.Email, product.ID)
	sig := SignPayload(testWebhookSecret, time.Now(), body)
	if errHandle := b.HandleWebhook(context.Background(), sig, body); errHandle != nil {
		t.Fatalf("HandleWebhook returned error: %v", errHandle)
	}

	var reloaded models.User
	if errFind := db.First(&reloaded, user.ID).Error; errFind != nil {
		t.Fatalf("load user: %v", errFind)
	}
	if reloaded.Credits != 100 {
		t.Fatalf("credits = %d, want 100", reloaded.Credits)
	}

	var entry models.CreditEntry
	if errFind := db.First(&entry, "user_id = ? AND kind = ?", user.ID, models.CreditEntryPurchase).Error; errFind != nil {
		t.Fatalf("expected a purchase journal entry: %v", errFind)
	}
	if entry.Reference != "evt_1" {
		t.Fatalf("journal reference = %q, want evt_1", entry.Reference)
	}
}

func TestHandleWebhookIsIdempotentPerEvent(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "buyer@example.com")
	product := seedProduct(t, db, 100)
	b := newTestBridge(t, db)

	body := checkoutEvent("evt_dup", user.Email, product.ID)
	for i := 0; i < 3; i++ {
		sig := SignPayload(testWebhookSecret, time.Now(), body)
		if errHandle := b.HandleWebhook(context.Background(), sig, body); errHandle != nil {
			t.Fatalf("HandleWebhook returned error: %v", errHandle)
		}
	}

	var reloaded models.User
	if errFind := db.First(&reloaded, user.ID).Error; errFind != nil {
		t.Fatalf("load user: %v", errFind)
	}
	if reloaded.Credits != 100 {
		t.Fatalf("credits = %d, want exactly one grant of 100", reloaded.Credits)
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "buyer@example.com")
	product := seedProduct(t, db, 100)
	b := newTestBridge(t, db)

	body := checkoutEvent("evt_2", user.Email, product.ID)
	if errHandle := b.HandleWebhook(context.Background(), "t=1,v1=deadbeef", body); !errors.Is(errHandle, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", errHandle)
	}

	var reloaded models.User
	if errFind := db.First(&reloaded, user.ID).Error; errFind != nil {
		t.Fatalf("load user: %v", errFind)
	}
	if reloaded.Credits != 0 {
		t.Fatalf("credits = %d, want 0 after rejected webhook", reloaded.Credits)
	}
}

func TestHandleWebhookIgnoresOtherEventTypes(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "buyer@example.com")
	b := newTestBridge(t, db)

	body := []byte(`{"id":"evt_3","type":"invoice.paid","data":{"object":{}}}`)
	sig := SignPayload(testWebhookSecret, time.Now(), body)
	if errHandle := b.HandleWebhook(context.Background(), sig, body); errHandle != nil {
		t.Fatalf("expected unhandled event type to be acknowledged, got %v", errHandle)
	}
}

func TestHandleWebhookRejectsUnknownCustomer(t *testing.T) {
	db := newTestDB(t)
	product := seedProduct(t, db, 100)
	b := newTestBridge(t, db)

	body := checkoutEvent("evt_4", "nobody@example.com", product.ID)
	sig := SignPayload(testWebhookSecret, time.Now(), body)
	if errHandle := b.HandleWebhook(context.Background(), sig, body); !errors.Is(errHandle, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", errHandle)
	}
}

func TestHandleWebhookCreditsFromExplicitMetadata(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "buyer@example.com")
	b := newTestBridge(t, db)

	body := []byte(fmt.Sprintf(
		`{"id":"evt_5","type":"checkout.session.completed","data":{"object":{"customer_details":{"email":%q},"metadata":{"credits":"250"}}}}`,
		user.Email))
	sig := SignPayload(testWebhookSecret, time.Now(), body)
	if errHandle := b.HandleWebhook(context.Background(), sig, body); errHandle != nil {
		t.Fatalf("HandleWebhook returned error: %v", errHandle)
	}

	var reloaded models.User
	if errFind := db.First(&reloaded, user.ID).Error; errFind != nil {
		t.Fatalf("load user: %v", errFind)
	}
	if reloaded.Credits != 250 {
		t.Fatalf("credits = %d, want 250", reloaded.Credits)
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "buyer@example.com")
	product := seedProduct(t, db, 100)
	b := newTestBridge(t, db)

	session, errCreate := b.CreateCheckoutSession(context.Background(), user, product.ID)
	if errCreate != nil {
		t.Fatalf("CreateCheckoutSession returned error: %v", errCreate)
	}
	if session.ProductID != product.ID || session.Credits != 100 {
		t.Fatalf("unexpected session %+v", session)
	}
	if session.URL != "https://pay.test/session/"+session.ID {
		t.Fatalf("unexpected session url %q", session.URL)
	}

	if _, errCreate := b.CreateCheckoutSession(context.Background(), user, product.ID+99); !errors.Is(errCreate, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for unknown product, got %v", errCreate)
	}
}

func TestListProductsOnlyEnabled(t *testing.T) {
	db := newTestDB(t)
	seedProduct(t, db, 100)
	disabled := &models.Product{Name: "Retired Pack", Credits: 50, Metadata: []byte(`{}`), IsEnabled: false}
	if errCreate := db.Create(disabled).Error; errCreate != nil {
		t.Fatalf("seed disabled product: %v", errCreate)
	}
	b := newTestBridge(t, db)

	products, errList := b.ListProducts(context.Background())
	if errList != nil {
		t.Fatalf("ListProducts returned error: %v", errList)
	}
	if len(products) != 1 || products[0].Name != "100 Credits" {
		t.Fatalf("unexpected products %+v", products)
	}
}
