package domain

import (
	"time"

	"github.com/google/uuid"
)

// Admin is a console operator account authenticated with username/password
// and a JWT session.
type Admin struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
