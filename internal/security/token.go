package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates the session token failed validation.
var ErrInvalidToken = errors.New("security: invalid token")

// SessionClaims are the JWT claims carried by a user session token.
type SessionClaims struct {
	UserID   uint64 `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SignSessionToken issues a session JWT for the user.
func SignSessionToken(secret string, userID uint64, username string, expiry time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("security: empty jwt secret")
	}
	now := time.Now().UTC()
	claims := SessionClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, errSign := token.SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("security: sign token: %w", errSign)
	}
	return signed, nil
}

// ParseSessionToken validates a session JWT and returns its claims.
func ParseSessionToken(secret, tokenString string) (SessionClaims, error) {
	var claims SessionClaims
	token, errParse := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if errParse != nil || !token.Valid {
		return SessionClaims{}, ErrInvalidToken
	}
	if claims.UserID == 0 {
		return SessionClaims{}, ErrInvalidToken
	}
	return claims, nil
}
