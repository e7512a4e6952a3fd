package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	cases := map[string]bool{
		"short1A":       false,
		"alllowercase1": false,
		"ALLUPPER1":     false,
		"NoDigitsHere":  false,
		"Passw0rd":      true,
		"":              false,
		"Aa1Aa1Aa1Aa1":  true,
		"ÄÖÜäöü12":      false,
	}
	for in, want := range cases {
		assert.Equalf(t, want, ValidatePassword(in), "ValidatePassword(%q)", in)
	}
}

func newTestTokens(t *testing.T, clock clockwork.Clock) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager("test-secret", PurposePasswordReset, clock)
	require.NoError(t, err)
	return tm
}

func TestTokenRoundTrip(t *testing.T) {
	tm := newTestTokens(t, clockwork.NewFakeClock())

	tok, err := tm.Issue("a@b.com")
	require.NoError(t, err)

	claim, err := tm.Verify(tok, ResetTokenMaxAge)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", claim)
}

func TestTokenExpiry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	tm := newTestTokens(t, clock)

	tok, err := tm.Issue("a@b.com")
	require.NoError(t, err)

	clock.Advance(1800 * time.Second)
	_, err = tm.Verify(tok, ResetTokenMaxAge)
	require.NoError(t, err, "a token exactly at the limit is still valid")

	clock.Advance(time.Second)
	_, err = tm.Verify(tok, ResetTokenMaxAge)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenTamper(t *testing.T) {
	tm := newTestTokens(t, clockwork.NewFakeClock())
	tok, err := tm.Issue("a@b.com")
	require.NoError(t, err)

	for i := 0; i < len(tok); i++ {
		b := []byte(tok)
		b[i] ^= 0x01
		_, err := tm.Verify(string(b), ResetTokenMaxAge)
		require.ErrorIsf(t, err, ErrTokenInvalid, "flipped byte %d", i)
	}
}

func TestTokenWrongSecretOrPurpose(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tm := newTestTokens(t, clock)
	tok, err := tm.Issue("a@b.com")
	require.NoError(t, err)

	other, err := NewTokenManager("other-secret", PurposePasswordReset, clock)
	require.NoError(t, err)
	_, err = other.Verify(tok, ResetTokenMaxAge)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	confirm, err := NewTokenManager("test-secret", "email-confirm", clock)
	require.NoError(t, err)
	_, err = confirm.Verify(tok, ResetTokenMaxAge)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenRejectsUnsignedAlg(t *testing.T) {
	tm := newTestTokens(t, clockwork.NewFakeClock())
	claims := tokenClaims{Purpose: PurposePasswordReset, RegisteredClaims: jwt.RegisteredClaims{
		Subject:  "a@b.com",
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tm.Verify(tok, ResetTokenMaxAge)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = tm.Verify("not-a-token", ResetTokenMaxAge)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	_, err := NewTokenManager("", PurposePasswordReset, nil)
	assert.Error(t, err)
}

func TestPBKDF2HashAndCheck(t *testing.T) {
	h := NewPBKDF2Hasher(1000)
	digest, err := h.Hash("Passw0rd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(digest, "pbkdf2:sha256:1000$"))
	parts := strings.Split(digest, "$")
	require.Len(t, parts, 3)
	assert.Len(t, parts[1], 16)
	assert.Len(t, parts[2], 64)

	ok, err := CheckPassword(digest, "Passw0rd")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(digest, "passw0rd")
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := h.Hash("Passw0rd")
	require.NoError(t, err)
	assert.NotEqual(t, digest, again, "salts must differ")
}

func TestCheckPasswordKnownDigest(t *testing.T) {
	// PBKDF2-HMAC-SHA256("password", "salt", 1 iteration, 32 bytes).
	digest := "pbkdf2:sha256:1$salt$120fb6cffcf8b32c43e7225256c4f837a86548c92ccc35480805987cb70be17b"
	ok, err := CheckPassword(digest, "password")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBcryptHashAndCheck(t *testing.T) {
	h := BcryptHasher{Cost: 4}
	digest, err := h.Hash("Passw0rd")
	require.NoError(t, err)

	ok, err := CheckPassword(digest, "Passw0rd")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(digest, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckPasswordUnknownFormat(t *testing.T) {
	_, err := CheckPassword("md5$abc", "x")
	assert.ErrorIs(t, err, ErrUnknownDigest)
	_, err = CheckPassword("pbkdf2:md5:10$salt$00", "x")
	assert.ErrorIs(t, err, ErrUnknownDigest)
	_, err = CheckPassword("pbkdf2:sha256:10$salt$zz", "x")
	assert.ErrorIs(t, err, ErrUnknownDigest)
}
