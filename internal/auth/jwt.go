// Package auth issues and validates operator tokens for administrative
// endpoints such as the manual forecast refresh.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token policy.
//
// Operator tokens are short-lived HS256 JWTs signed with OPERATOR_JWT_SECRET.
// They carry the operator's identifier as subject and are checked for
// issuer, audience and expiry. There is no refresh flow: an operator mints
// a new token with the operator-token command when one expires.
const (
	// DefaultTokenTTL is how long operator tokens are valid unless overridden.
	DefaultTokenTTL = 1 * time.Hour

	// DefaultIssuer is the issuer claim for operator tokens.
	DefaultIssuer = "windforecast"

	// DefaultAudience is the audience claim for operator tokens.
	DefaultAudience = "windforecast-ops"

	// MinSigningKeyLength is the shortest accepted signing key.
	MinSigningKeyLength = 32
)

// Predefined token errors.
var (
	ErrInvalidOperatorToken = errors.New("invalid operator token")
	ErrOperatorTokenExpired = errors.New("operator token has expired")
	ErrSigningKeyTooShort   = fmt.Errorf("signing key must be at least %d bytes", MinSigningKeyLength)
)

// OperatorClaims are the claims in an operator token.
type OperatorClaims struct {
	jwt.RegisteredClaims

	// OperatorID identifies who triggered an action.
	OperatorID string `json:"oid"`
}

// TokenConfig holds configuration for the token service.
type TokenConfig struct {
	// SigningKey is the secret key used to sign tokens.
	SigningKey string

	// Issuer defaults to DefaultIssuer.
	Issuer string

	// Audience defaults to DefaultAudience.
	Audience string
}

// TokenService handles operator token creation and validation.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

// NewTokenService creates a token service.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.SigningKey) < MinSigningKeyLength {
		return nil, ErrSigningKeyTooShort
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	return &TokenService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		now:        time.Now,
	}, nil
}

// GenerateOperatorToken creates a token for operatorID valid for ttl.
// A non-positive ttl uses DefaultTokenTTL.
func (s *TokenService) GenerateOperatorToken(operatorID string, ttl time.Duration) (string, time.Time, error) {
	if operatorID == "" {
		return "", time.Time{}, errors.New("operator id is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := s.now()
	expiresAt := now.Add(ttl)

	claims := OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   operatorID,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        generateTokenID(),
		},
		OperatorID: operatorID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing operator token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateOperatorToken validates a token and returns its claims.
func (s *TokenService) ValidateOperatorToken(tokenString string) (*OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrOperatorTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidOperatorToken, err.Error())
	}

	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid || claims.OperatorID == "" {
		return nil, ErrInvalidOperatorToken
	}

	return claims, nil
}

func generateTokenID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
