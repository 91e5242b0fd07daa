package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentLink is a reusable template that mints a new Transaction on each
// redemption, bounded by usage count and/or expiry. Links are never deleted;
// they are soft-disabled via IsActive.
type PaymentLink struct {
	ID          uuid.UUID       `json:"id"`
	LinkID      string          `json:"link_id"` // unique, URL-safe
	APIKeyID    *uuid.UUID      `json:"api_key_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	UPIID       string          `json:"upi_id"`
	Description string          `json:"description"`
	IsActive    bool            `json:"is_active"`
	MaxUses     *int            `json:"max_uses,omitempty"` // nil = unlimited
	CurrentUses int             `json:"current_uses"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"` // nil = never
	CreatedAt   time.Time       `json:"created_at"`
}

// IsValid reports whether the link can still be redeemed at the given instant:
// active AND not expired AND not exhausted.
func (l *PaymentLink) IsValid(now time.Time) bool {
	if !l.IsActive {
		return false
	}
	if l.ExpiresAt != nil && now.After(*l.ExpiresAt) {
		return false
	}
	if l.MaxUses != nil && l.CurrentUses >= *l.MaxUses {
		return false
	}
	return true
}

// GenerateLinkID returns a fresh URL-safe link identifier (128 random bits).
func GenerateLinkID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "link_" + base64.RawURLEncoding.EncodeToString(buf), nil
}
