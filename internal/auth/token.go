package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/hkdf"
)

// PurposePasswordReset namespaces tokens used by the password reset flow.
const PurposePasswordReset = "password-reset"

// ResetTokenMaxAge is how long a password reset token stays valid after issuance.
const ResetTokenMaxAge = 1800 * time.Second

const tokenIssuer = "account-service"

var (
	// ErrTokenExpired is returned when a token is older than the permitted age.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for tokens with a bad signature, wrong purpose or broken format.
	ErrTokenInvalid = errors.New("token invalid")
)

type tokenClaims struct {
	Purpose string `json:"pur"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies stateless signed tokens that bind a claim to a purpose.
// The signing key is derived from the shared secret and the purpose, so a token minted for one
// purpose never verifies under another.
type TokenManager struct {
	key     []byte
	purpose string
	clock   clockwork.Clock
}

// NewTokenManager derives a purpose-bound key from secret. A nil clock uses the real clock.
func NewTokenManager(secret, purpose string, clock clockwork.Clock) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	return &TokenManager{key: key, purpose: purpose, clock: clock}, nil
}

// Issue returns a signed token embedding claim and the current time.
func (t *TokenManager) Issue(claim string) (string, error) {
	claims := tokenClaims{
		Purpose: t.purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   tokenIssuer,
			Subject:  claim,
			IssuedAt: jwt.NewNumericDate(t.clock.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
}

// Verify checks the signature and purpose of token and that it was issued no more than maxAge ago.
// It returns the embedded claim, ErrTokenExpired, or ErrTokenInvalid.
func (t *TokenManager) Verify(token string, maxAge time.Duration) (string, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return "", ErrTokenInvalid
	}
	if claims.Purpose != t.purpose || claims.Subject == "" || claims.IssuedAt == nil {
		return "", ErrTokenInvalid
	}
	age := t.clock.Now().Sub(claims.IssuedAt.Time)
	if age < 0 || age > maxAge {
		return "", ErrTokenExpired
	}
	return claims.Subject, nil
}
