package auth

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// DefaultPBKDF2Iterations matches the work factor used for existing digests.
const DefaultPBKDF2Iterations = 600000

const saltChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrUnknownDigest is returned when a stored digest has an unrecognised format.
var ErrUnknownDigest = errors.New("unknown password digest format")

// Hasher produces one-way salted digests of raw passwords.
type Hasher interface {
	Hash(raw string) (string, error)
}

// PBKDF2Hasher writes digests as "pbkdf2:sha256:<iterations>$<salt>$<hex>".
type PBKDF2Hasher struct {
	Iterations int
}

// NewPBKDF2Hasher returns a hasher with the given work factor, or the default when n <= 0.
func NewPBKDF2Hasher(n int) PBKDF2Hasher {
	if n <= 0 {
		n = DefaultPBKDF2Iterations
	}
	return PBKDF2Hasher{Iterations: n}
}

// Hash implements Hasher.
func (h PBKDF2Hasher) Hash(raw string) (string, error) {
	salt, err := genSalt(16)
	if err != nil {
		return "", err
	}
	iter := h.Iterations
	if iter <= 0 {
		iter = DefaultPBKDF2Iterations
	}
	sum := pbkdf2.Key([]byte(raw), []byte(salt), iter, sha256.Size, sha256.New)
	return fmt.Sprintf("pbkdf2:sha256:%d$%s$%s", iter, salt, hex.EncodeToString(sum)), nil
}

// BcryptHasher writes bcrypt digests.
type BcryptHasher struct {
	Cost int
}

// Hash implements Hasher.
func (h BcryptHasher) Hash(raw string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	out, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// CheckPassword reports whether raw matches digest. Both pbkdf2 and bcrypt digests are accepted so
// the hashing scheme can change without invalidating stored credentials.
func CheckPassword(digest, raw string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, "pbkdf2:"):
		return checkPBKDF2(digest, raw)
	case strings.HasPrefix(digest, "$2"):
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(raw))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return err == nil, err
	default:
		return false, ErrUnknownDigest
	}
}

func checkPBKDF2(digest, raw string) (bool, error) {
	parts := strings.SplitN(digest, "$", 3)
	if len(parts) != 3 {
		return false, ErrUnknownDigest
	}
	method, salt, want := parts[0], parts[1], parts[2]

	args := strings.Split(strings.TrimPrefix(method, "pbkdf2:"), ":")
	newHash, ok := hashFuncs[args[0]]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownDigest, method)
	}
	iter := DefaultPBKDF2Iterations
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return false, fmt.Errorf("%w: %s", ErrUnknownDigest, method)
		}
		iter = n
	}
	wantBytes, err := hex.DecodeString(want)
	if err != nil {
		return false, fmt.Errorf("%w: bad hex", ErrUnknownDigest)
	}
	got := pbkdf2.Key([]byte(raw), []byte(salt), iter, newHash().Size(), newHash)
	return subtle.ConstantTimeCompare(got, wantBytes) == 1, nil
}

var hashFuncs = map[string]func() hash.Hash{
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

func genSalt(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(saltChars)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate salt: %w", err)
		}
		b.WriteByte(saltChars[idx.Int64()])
	}
	return b.String(), nil
}
