package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

const (
	// APIKeyPrefix marks every issued key so leaked secrets are greppable.
	APIKeyPrefix = "bpay_"

	apiKeySecretBytes = 24 // 192 bits of entropy
	apiKeyDisplayLen  = 12
)

// APIKey represents a tenant credential. The plaintext secret is shown once at
// creation; only its SHA-256 hash is stored.
type APIKey struct {
	ID            uuid.UUID  `json:"id"`
	KeyHash       string     `json:"-"` // sha256 hex, unique
	KeyPrefix     string     `json:"key_prefix"`
	OwnerName     string     `json:"owner_name"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	IsActive      bool       `json:"is_active"`
	TotalRequests int64      `json:"total_requests"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
}

// GenerateAPIKeySecret returns a fresh plaintext key secret.
func GenerateAPIKeySecret() (string, error) {
	buf := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return APIKeyPrefix + hex.EncodeToString(buf), nil
}

// HashAPIKey computes the storage hash of a plaintext key secret.
func HashAPIKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// DisplayPrefix returns the non-secret portion of a plaintext key used for display.
func DisplayPrefix(secret string) string {
	if len(secret) < apiKeyDisplayLen {
		return secret
	}
	return secret[:apiKeyDisplayLen]
}

// IsExpired reports whether the key has passed its expiry at the given instant.
// Expiry never mutates the stored record; it only gates authorization.
func (k *APIKey) IsExpired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}

// Usable reports whether the key passes both the active and expiry gates.
func (k *APIKey) Usable(now time.Time) bool {
	return k.IsActive && !k.IsExpired(now)
}
