package identity

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blogforge/blogforge/internal/models"
	"github.com/blogforge/blogforge/internal/security"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "resolver-test-secret"

var testDBSeq atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:identity_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if errOpen != nil {
		t.Fatalf("open test db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.User{}, &models.APIKey{}); errMigrate != nil {
		t.Fatalf("migrate test db: %v", errMigrate)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, active bool) *models.User {
	t.Helper()
	user := &models.User{
		Username: fmt.Sprintf("user%d", testDBSeq.Load()),
		Email:    fmt.Sprintf("user%d@example.com", testDBSeq.Load()),
		Titles:   models.TitleList{},
		Active:   active,
	}
	if errCreate := db.Create(user).Error; errCreate != nil {
		t.Fatalf("seed user: %v", errCreate)
	}
	return user
}

func TestResolveWithoutCredentials(t *testing.T) {
	r := NewResolver(newTestDB(t), testSecret)
	if _, errResolve := r.Resolve(context.Background(), "", "  "); !errors.Is(errResolve, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", errResolve)
	}
}

func TestResolveBySession(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, true)
	r := NewResolver(db, testSecret)

	token, errSign := security.SignSessionToken(testSecret, user.ID, user.Username, time.Hour)
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}

	resolved, errResolve := r.Resolve(context.Background(), token, "")
	if errResolve != nil {
		t.Fatalf("Resolve returned error: %v", errResolve)
	}
	if resolved.ID != user.ID {
		t.Fatalf("resolved user %d, want %d", resolved.ID, user.ID)
	}
}

func TestResolveBySessionRejectsForgedToken(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, true)
	r := NewResolver(db, testSecret)

	forged, errSign := security.SignSessionToken("other-secret", user.ID, user.Username, time.Hour)
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}
	if _, errResolve := r.Resolve(context.Background(), forged, ""); !errors.Is(errResolve, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", errResolve)
	}
}

func TestResolveByAPIKey(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, true)
	key := &models.APIKey{UserID: user.ID, Name: "ci", Token: "k-abc123", Active: true}
	if errCreate := db.Create(key).Error; errCreate != nil {
		t.Fatalf("seed api key: %v", errCreate)
	}
	r := NewResolver(db, testSecret)

	resolved, errResolve := r.Resolve(context.Background(), "", "k-abc123")
	if errResolve != nil {
		t.Fatalf("Resolve returned error: %v", errResolve)
	}
	if resolved.ID != user.ID {
		t.Fatalf("resolved user %d, want %d", resolved.ID, user.ID)
	}

	if _, errResolve := r.Resolve(context.Background(), "", "k-missing"); !errors.Is(errResolve, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for unknown key, got %v", errResolve)
	}
}

func TestResolveByAPIKeyRejectsRevokedKey(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, true)
	key := &models.APIKey{UserID: user.ID, Name: "old", Token: "k-revoked", Active: false}
	if errCreate := db.Create(key).Error; errCreate != nil {
		t.Fatalf("seed api key: %v", errCreate)
	}
	r := NewResolver(db, testSecret)

	if _, errResolve := r.Resolve(context.Background(), "", "k-revoked"); !errors.Is(errResolve, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", errResolve)
	}
}

func TestResolveRejectsInactiveUser(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, false)
	r := NewResolver(db, testSecret)

	token, errSign := security.SignSessionToken(testSecret, user.ID, user.Username, time.Hour)
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}
	if _, errResolve := r.Resolve(context.Background(), token, ""); !errors.Is(errResolve, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for inactive user, got %v", errResolve)
	}
}

func TestResolveAPIKeyTakesPrecedence(t *testing.T) {
	db := newTestDB(t)
	sessionUser := seedUser(t, db, true)
	keyUser := &models.User{Username: "keyowner", Email: "keyowner@example.com", Titles: models.TitleList{}, Active: true}
	if errCreate := db.Create(keyUser).Error; errCreate != nil {
		t.Fatalf("seed key user: %v", errCreate)
	}
	key := &models.APIKey{UserID: keyUser.ID, Name: "ci", Token: "k-precedence", Active: true}
	if errCreate := db.Create(key).Error; errCreate != nil {
		t.Fatalf("seed api key: %v", errCreate)
	}
	r := NewResolver(db, testSecret)

	token, errSign := security.SignSessionToken(testSecret, sessionUser.ID, sessionUser.Username, time.Hour)
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}

	resolved, errResolve := r.Resolve(context.Background(), token, "k-precedence")
	if errResolve != nil {
		t.Fatalf("Resolve returned error: %v", errResolve)
	}
	if resolved.ID != keyUser.ID {
		t.Fatalf("expected api key owner %d, got %d", keyUser.ID, resolved.ID)
	}
}
