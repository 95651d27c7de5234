package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken     = errors.New("invalid state token")
	ErrExpiredToken     = errors.New("state token has expired")
	ErrInvalidSignature = errors.New("invalid state token signature")
	ErrMissingToken     = errors.New("missing state token")
	ErrInvalidClaims    = errors.New("invalid state token claims")
)

// StateClaims embeds the session coordinates in a signed credential so
// follow-up requests can be authenticated without a session-store lookup.
type StateClaims struct {
	SessionID string `json:"sid"`
	TenantID  string `json:"tid"`
	Turn      int    `json:"turn"`
	jwt.RegisteredClaims
}

// StateTokenConfig configures state token issuance and validation
type StateTokenConfig struct {
	SecretKey string
	Issuer    string
	TTL       time.Duration
}

// StateTokenManager issues and validates HS256-signed state tokens
type StateTokenManager struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
}

// NewStateTokenManager creates a state token manager
func NewStateTokenManager(cfg StateTokenConfig) (*StateTokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key required for state tokens")
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	return &StateTokenManager{
		secretKey: []byte(cfg.SecretKey),
		issuer:    cfg.Issuer,
		ttl:       ttl,
	}, nil
}

// Issue creates a signed token binding session, tenant and the turn the
// server just committed.
func (m *StateTokenManager) Issue(sessionID, tenantID string, turn int) (string, error) {
	now := time.Now()
	claims := StateClaims{
		SessionID: sessionID,
		TenantID:  tenantID,
		Turn:      turn,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign state token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and returns its claims
func (m *StateTokenManager) Validate(tokenString string) (*StateClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &StateClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method)
		}
		return m.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*StateClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if m.issuer != "" && claims.Issuer != m.issuer {
		return nil, fmt.Errorf("%w: invalid issuer", ErrInvalidClaims)
	}
	if claims.SessionID == "" || claims.TenantID == "" {
		return nil, fmt.Errorf("%w: missing session coordinates", ErrInvalidClaims)
	}

	return claims, nil
}
