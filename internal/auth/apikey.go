// Package auth provides API key handling for the netprobe HTTP service.
// Keys are generated here, stored in the configuration only as bcrypt hashes
// and checked against those hashes on every request.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// API key generation and validation constants
const (
	// APIKeyLength is the length of the random part of an API key
	APIKeyLength = 32
	// APIKeyPrefix is the standard prefix for all API keys
	APIKeyPrefix = "np"

	// BcryptCost is the bcrypt cost for hashing API keys
	BcryptCost = 12
	// BcryptMaxInputLength is the maximum input length for bcrypt (72 bytes)
	BcryptMaxInputLength = 72
)

// GenerateAPIKey creates a new random API key of the form np_<32 chars>.
func GenerateAPIKey() (string, error) {
	randomBytes := make([]byte, APIKeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}

	// base32 avoids ambiguous characters
	randomPart := strings.ToLower(base32.StdEncoding.EncodeToString(randomBytes))
	randomPart = randomPart[:APIKeyLength]

	return APIKeyPrefix + "_" + randomPart, nil
}

// HashAPIKey creates a bcrypt hash of an API key for the configuration file.
func HashAPIKey(apiKey string) (string, error) {
	return hashAPIKey(apiKey, BcryptCost)
}

func hashAPIKey(apiKey string, cost int) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("API key cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword(prepare(apiKey), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(hash), nil
}

// ValidateAPIKey checks if a provided API key matches the stored hash.
func ValidateAPIKey(apiKey, storedHash string) bool {
	if apiKey == "" || storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), prepare(apiKey)) == nil
}

// prepare pre-hashes keys longer than bcrypt accepts.
func prepare(apiKey string) []byte {
	keyBytes := []byte(apiKey)
	if len(keyBytes) > BcryptMaxInputLength {
		sum := sha256.Sum256(keyBytes)
		keyBytes = sum[:]
	}
	return keyBytes
}

// IsValidAPIKeyFormat checks if an API key has the shape GenerateAPIKey produces.
func IsValidAPIKeyFormat(apiKey string) bool {
	rest, ok := strings.CutPrefix(apiKey, APIKeyPrefix+"_")
	if !ok || len(rest) != APIKeyLength {
		return false
	}
	for _, c := range rest {
		if (c < 'a' || c > 'z') && (c < '2' || c > '7') {
			return false
		}
	}
	return true
}

// DisplayPrefix returns a safe-to-log prefix of a key, e.g. "np_abcdefgh...".
func DisplayPrefix(apiKey string) string {
	if !IsValidAPIKeyFormat(apiKey) {
		return "invalid_key"
	}
	return apiKey[:len(APIKeyPrefix)+1+8] + "..."
}

// KeyRing checks keys against a fixed set of bcrypt hashes. Keys that
// matched once are remembered by their SHA-256 so that repeated requests do
// not pay the bcrypt cost again.
type KeyRing struct {
	hashes   []string
	verified sync.Map // [32]byte -> struct{}
}

// NewKeyRing validates the hashes and returns a key ring.
func NewKeyRing(hashes []string) (*KeyRing, error) {
	for i, h := range hashes {
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, fmt.Errorf("api key hash %d is not a bcrypt hash: %w", i, err)
		}
	}
	return &KeyRing{hashes: append([]string(nil), hashes...)}, nil
}

// Len returns the number of accepted hashes.
func (k *KeyRing) Len() int {
	return len(k.hashes)
}

// Authenticate reports whether apiKey matches any hash of the ring.
func (k *KeyRing) Authenticate(apiKey string) bool {
	if apiKey == "" {
		return false
	}

	sum := sha256.Sum256([]byte(apiKey))
	if _, ok := k.verified.Load(sum); ok {
		return true
	}

	for _, h := range k.hashes {
		if ValidateAPIKey(apiKey, h) {
			k.verified.Store(sum, struct{}{})
			return true
		}
	}
	return false
}
