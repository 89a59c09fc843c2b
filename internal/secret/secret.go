// Package secret generates the signing material of a contract: the signing
// token, the short link code and the one-time verification code.
package secret

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	// CodeCost is the bcrypt cost used for one-time codes.
	CodeCost = 10

	signingTokenBytes = 32
	shortCodeBytes    = 4
)

var (
	bcryptGenerateFromPassword = bcrypt.GenerateFromPassword
	randomRead                 = rand.Read
	randomInt                  = rand.Int
)

// RandomHex returns n random bytes, hex encoded.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := randomRead(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateSigningToken returns a 64 character token.
func GenerateSigningToken() (string, error) {
	return RandomHex(signingTokenBytes)
}

// GenerateShortCode returns an 8 character link alias.
func GenerateShortCode() (string, error) {
	return RandomHex(shortCodeBytes)
}

// GenerateVerificationCode returns a 6 digit code in [100000, 999999].
func GenerateVerificationCode() (string, error) {
	n, err := randomInt(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// HashCode hashes a one-time code for storage.
func HashCode(code string) (string, error) {
	b, err := bcryptGenerateFromPassword([]byte(code), CodeCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash code: %w", err)
	}
	return string(b), nil
}

// CompareCode reports whether code matches hash. bcrypt compares in constant time.
func CompareCode(code, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}

// Material is a freshly generated set of signing credentials. Code is the
// plaintext one-time code and must only be echoed to the issuing caller.
type Material struct {
	Token     string
	ShortCode string
	Code      string
	CodeHash  string
}

// Exists reports whether a candidate value is already taken in the store.
type Exists func(candidate string) (bool, error)

// MaxAttempts bounds regenerate-and-retry on collisions.
const MaxAttempts = 5

// NewMaterial generates token, short code and one-time code, regenerating the
// token and short code until tokenTaken and codeTaken both report them free.
func NewMaterial(tokenTaken, codeTaken Exists) (*Material, error) {
	token, err := unique(GenerateSigningToken, tokenTaken)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}
	short, err := unique(GenerateShortCode, codeTaken)
	if err != nil {
		return nil, fmt.Errorf("short code: %w", err)
	}
	code, err := GenerateVerificationCode()
	if err != nil {
		return nil, err
	}
	hash, err := HashCode(code)
	if err != nil {
		return nil, err
	}
	return &Material{Token: token, ShortCode: short, Code: code, CodeHash: hash}, nil
}

func unique(gen func() (string, error), taken Exists) (string, error) {
	for i := 0; i < MaxAttempts; i++ {
		v, err := gen()
		if err != nil {
			return "", err
		}
		if taken == nil {
			return v, nil
		}
		exists, err := taken(v)
		if err != nil {
			return "", err
		}
		if !exists {
			return v, nil
		}
	}
	return "", fmt.Errorf("no free value after %d attempts", MaxAttempts)
}
