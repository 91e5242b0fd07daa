package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"bharatpay-gateway/internal/core/domain"
	"bharatpay-gateway/internal/core/ports"
	"bharatpay-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LinkServiceImpl implements ports.LinkService.
type LinkServiceImpl struct {
	linkRepo   ports.PaymentLinkRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	renderer   ports.QRRenderer
	payeeName  string
	log        zerolog.Logger
}

// NewLinkService creates a new LinkServiceImpl.
func NewLinkService(
	linkRepo ports.PaymentLinkRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	renderer ports.QRRenderer,
	payeeName string,
	log zerolog.Logger,
) *LinkServiceImpl {
	return &LinkServiceImpl{
		linkRepo:   linkRepo,
		txRepo:     txRepo,
		transactor: transactor,
		renderer:   renderer,
		payeeName:  payeeName,
		log:        log,
	}
}

// Create persists a new reusable payment link.
func (s *LinkServiceImpl) Create(ctx context.Context, req ports.CreateLinkRequest) (*domain.PaymentLink, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	upiID := strings.TrimSpace(req.UPIID)
	if upiID == "" {
		return nil, apperror.Validation("upi_id is required")
	}
	if req.MaxUses != nil && *req.MaxUses <= 0 {
		return nil, apperror.Validation("max_uses must be a positive integer")
	}
	if req.ExpiresInHours != nil && *req.ExpiresInHours <= 0 {
		return nil, apperror.Validation("expires_in_hours must be a positive integer")
	}

	linkID, err := domain.GenerateLinkID()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate link id: %w", err))
	}

	now := time.Now().UTC()
	link := &domain.PaymentLink{
		ID:          uuid.New(),
		LinkID:      linkID,
		APIKeyID:    req.APIKeyID,
		Amount:      req.Amount,
		UPIID:       upiID,
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
		MaxUses:     req.MaxUses,
		CreatedAt:   now,
	}
	if req.ExpiresInHours != nil {
		expiry := now.Add(time.Duration(*req.ExpiresInHours) * time.Hour)
		link.ExpiresAt = &expiry
	}

	if err := s.linkRepo.Create(ctx, link); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payment link: %w", err))
	}

	s.log.Info().
		Str("link_id", link.LinkID).
		Str("amount", link.Amount.String()).
		Msg("payment link created")

	return link, nil
}

// Redeem mints a fresh PENDING transaction from the link template and consumes
// one use. The validity check, the mint, and the counter bump share one
// database transaction under a row lock, so concurrent redemptions of a
// nearly-exhausted link cannot overshoot max_uses.
func (s *LinkServiceImpl) Redeem(ctx context.Context, linkID string) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	link, err := s.linkRepo.GetByLinkIDForUpdate(ctx, dbTx, linkID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payment link: %w", err))
	}
	if link == nil {
		return nil, apperror.ErrNotFound("payment link")
	}
	if !link.IsValid(time.Now().UTC()) {
		return nil, apperror.ErrLinkInvalid()
	}

	orderID, err := domain.GenerateOrderID()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate order id: %w", err))
	}
	merchantID, merchantKey, err := domain.GenerateMerchantPair()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate merchant pair: %w", err))
	}

	message := link.Description
	if message == "" {
		message = domain.DefaultPaymentMessage
	}

	payload := domain.BuildUPIPayload(link.UPIID, s.payeeName, link.Amount, message, orderID)
	png, err := s.renderer.Render(payload)
	if err != nil {
		return nil, apperror.ErrQRRenderFailure(fmt.Errorf("render qr: %w", err))
	}

	txn := &domain.Transaction{
		ID:           uuid.New(),
		OrderID:      orderID,
		APIKeyID:     link.APIKeyID,
		Amount:       link.Amount,
		UPIID:        link.UPIID,
		Message:      message,
		MerchantID:   merchantID,
		MerchantKey:  merchantKey,
		QRData:       payload,
		QRCodeBase64: base64.StdEncoding.EncodeToString(png),
		Status:       domain.TransactionStatusPending,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.txRepo.CreateInTx(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}
	if err := s.linkRepo.IncrementUses(ctx, dbTx, linkID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("increment link uses: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("link_id", linkID).
		Str("order_id", txn.OrderID).
		Msg("payment link redeemed")

	return txn, nil
}

// Get returns the link for display on the hosted payment page.
func (s *LinkServiceImpl) Get(ctx context.Context, linkID string) (*domain.PaymentLink, error) {
	link, err := s.linkRepo.GetByLinkID(ctx, linkID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup payment link: %w", err))
	}
	if link == nil {
		return nil, apperror.ErrNotFound("payment link")
	}
	return link, nil
}
