package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bharatpay-gateway/internal/core/domain"
	"bharatpay-gateway/internal/core/ports"
	"bharatpay-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DemoModeKey is the reserved sentinel that authorizes unauthenticated demo
// traffic with no associated credential. It is honored only when demo mode
// is enabled in configuration.
const DemoModeKey = "demo-mode"

// KeyServiceImpl implements ports.KeyService, the credential store.
type KeyServiceImpl struct {
	keyRepo  ports.APIKeyRepository
	txRepo   ports.TransactionRepository
	demoMode bool
	log      zerolog.Logger
}

// NewKeyService creates a new KeyServiceImpl.
func NewKeyService(keyRepo ports.APIKeyRepository, txRepo ports.TransactionRepository, demoMode bool, log zerolog.Logger) *KeyServiceImpl {
	return &KeyServiceImpl{
		keyRepo:  keyRepo,
		txRepo:   txRepo,
		demoMode: demoMode,
		log:      log,
	}
}

// Issue generates a new API key and returns the plaintext secret exactly once.
// Only the SHA-256 hash is persisted.
func (s *KeyServiceImpl) Issue(ctx context.Context, ownerName string, expiryDays int) (string, *domain.APIKey, error) {
	ownerName = strings.TrimSpace(ownerName)
	if ownerName == "" {
		return "", nil, apperror.Validation("owner_name is required")
	}
	if expiryDays <= 0 {
		return "", nil, apperror.Validation("expiry_days must be a positive integer")
	}

	secret, err := domain.GenerateAPIKeySecret()
	if err != nil {
		return "", nil, apperror.InternalError(fmt.Errorf("generate key secret: %w", err))
	}

	now := time.Now().UTC()
	key := &domain.APIKey{
		ID:        uuid.New(),
		KeyHash:   domain.HashAPIKey(secret),
		KeyPrefix: domain.DisplayPrefix(secret),
		OwnerName: ownerName,
		CreatedAt: now,
		ExpiresAt: now.AddDate(0, 0, expiryDays),
		IsActive:  true,
	}

	if err := s.keyRepo.Create(ctx, key); err != nil {
		return "", nil, apperror.InternalError(fmt.Errorf("create api key: %w", err))
	}

	s.log.Info().
		Str("key_id", key.ID.String()).
		Str("owner", ownerName).
		Time("expires_at", key.ExpiresAt).
		Msg("api key issued")

	return secret, key, nil
}

// Validate authorizes a presented secret. It returns (nil, nil) for the demo
// sentinel when demo mode is enabled: demo traffic carries no credential.
// On success the key's usage counter is bumped as an observable side effect.
func (s *KeyServiceImpl) Validate(ctx context.Context, presented string) (*domain.APIKey, error) {
	if presented == "" {
		return nil, apperror.ErrAPIKeyRequired()
	}

	if presented == DemoModeKey {
		if !s.demoMode {
			return nil, apperror.ErrInvalidAPIKey()
		}
		return nil, nil
	}

	key, err := s.keyRepo.GetByHash(ctx, domain.HashAPIKey(presented))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup api key: %w", err))
	}
	if key == nil {
		return nil, apperror.ErrInvalidAPIKey()
	}
	if !key.IsActive {
		return nil, apperror.ErrAPIKeyInactive()
	}
	if key.IsExpired(time.Now().UTC()) {
		return nil, apperror.ErrAPIKeyExpired()
	}

	// Usage accounting is best-effort; a failed counter bump must not reject
	// an otherwise valid key.
	if err := s.keyRepo.Touch(ctx, key.ID); err != nil {
		s.log.Warn().Err(err).Str("key_id", key.ID.String()).Msg("failed to bump key usage counter")
	} else {
		key.TotalRequests++
		now := time.Now().UTC()
		key.LastUsedAt = &now
	}

	return key, nil
}

// Toggle flips the active flag and returns the updated record. Each call
// flips state; it is deliberately not idempotent.
func (s *KeyServiceImpl) Toggle(ctx context.Context, id uuid.UUID) (*domain.APIKey, error) {
	key, err := s.keyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup api key: %w", err))
	}
	if key == nil {
		return nil, apperror.ErrNotFound("API key")
	}

	key.IsActive = !key.IsActive
	if err := s.keyRepo.SetActive(ctx, id, key.IsActive); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("toggle api key: %w", err))
	}

	s.log.Info().Str("key_id", id.String()).Bool("active", key.IsActive).Msg("api key toggled")
	return key, nil
}

// Revoke removes a credential. Owned transactions are detached, not deleted:
// financial records outlive the key that created them.
func (s *KeyServiceImpl) Revoke(ctx context.Context, id uuid.UUID) error {
	key, err := s.keyRepo.GetByID(ctx, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lookup api key: %w", err))
	}
	if key == nil {
		return apperror.ErrNotFound("API key")
	}

	detached, err := s.txRepo.DetachAPIKey(ctx, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("detach transactions: %w", err))
	}

	if err := s.keyRepo.Delete(ctx, id); err != nil {
		return apperror.InternalError(fmt.Errorf("delete api key: %w", err))
	}

	s.log.Info().
		Str("key_id", id.String()).
		Str("owner", key.OwnerName).
		Int64("transactions_detached", detached).
		Msg("api key revoked")
	return nil
}

// List returns all credentials for the admin console.
func (s *KeyServiceImpl) List(ctx context.Context) ([]domain.APIKey, error) {
	keys, err := s.keyRepo.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list api keys: %w", err))
	}
	return keys, nil
}
