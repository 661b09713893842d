package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// NewBearerToken generates an opaque bearer token plus its bcrypt hash for
// storage. The plaintext is handed out exactly once, at provisioning.
func NewBearerToken() (token string, hash string, err error) {
	token = uuid.NewString()
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return token, string(h), nil
}

// VerifyBearerToken compares a presented token against the stored hash.
func VerifyBearerToken(hash, token string) bool {
	if hash == "" || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

// SessionClaims are the claims in a portal session JWT.
type SessionClaims struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates portal session tokens.
type TokenManager struct {
	secretKey []byte
}

// NewTokenManager creates a new TokenManager.
func NewTokenManager(secretKey string) *TokenManager {
	return &TokenManager{secretKey: []byte(secretKey)}
}

// Enabled reports whether session issuing is configured.
func (tm *TokenManager) Enabled() bool {
	return len(tm.secretKey) > 0
}

// GenerateSession creates a new session JWT for an account.
func (tm *TokenManager) GenerateSession(accountID, email string, duration time.Duration) (string, error) {
	claims := SessionClaims{
		AccountID: accountID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

// ValidateSession validates a session JWT and returns its claims.
func (tm *TokenManager) ValidateSession(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return tm.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
