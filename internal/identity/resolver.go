// Package identity resolves inbound credentials to user records. It is a
// read-only lookup layer; authorization policy lives with the callers.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blogforge/blogforge/internal/models"
	"github.com/blogforge/blogforge/internal/security"

	"gorm.io/gorm"
)

// ErrUnauthenticated indicates the request carried no usable credential.
var ErrUnauthenticated = errors.New("identity: unauthenticated")

// ErrInvalidCredential indicates a credential was supplied but does not
// resolve to an active user.
var ErrInvalidCredential = errors.New("identity: invalid credential")

// Resolver maps session tokens and API keys to users.
type Resolver struct {
	db        *gorm.DB
	jwtSecret string
}

// NewResolver constructs a Resolver.
func NewResolver(db *gorm.DB, jwtSecret string) *Resolver {
	return &Resolver{db: db, jwtSecret: jwtSecret}
}

// Resolve returns the user owning whichever credential is supplied. When
// both are present the API key wins; a request never resolves to two users.
func (r *Resolver) Resolve(ctx context.Context, sessionToken, apiKey string) (*models.User, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("identity: resolver not initialized")
	}

	apiKey = strings.TrimSpace(apiKey)
	sessionToken = strings.TrimSpace(sessionToken)
	if apiKey == "" && sessionToken == "" {
		return nil, ErrUnauthenticated
	}
	if apiKey != "" {
		return r.ResolveByAPIKey(ctx, apiKey)
	}
	return r.ResolveBySession(ctx, sessionToken)
}

// ResolveByAPIKey looks up the owner of an API key token.
func (r *Resolver) ResolveByAPIKey(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}

	var key models.APIKey
	if errFind := r.db.WithContext(ctx).
		First(&key, "token = ? AND active = ?", token, true).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, fmt.Errorf("identity: lookup api key: %w", errFind)
	}
	return r.loadActiveUser(ctx, key.UserID)
}

// ResolveBySession verifies a signed session token and loads its subject.
func (r *Resolver) ResolveBySession(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims, errParse := security.ParseSessionToken(r.jwtSecret, token)
	if errParse != nil {
		return nil, ErrInvalidCredential
	}
	return r.loadActiveUser(ctx, claims.UserID)
}

func (r *Resolver) loadActiveUser(ctx context.Context, userID uint64) (*models.User, error) {
	var user models.User
	if errFind := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, fmt.Errorf("identity: load user %d: %w", userID, errFind)
	}
	if !user.Active {
		return nil, ErrInvalidCredential
	}
	return &user, nil
}
