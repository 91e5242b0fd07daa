package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bharatpay-gateway/internal/adapter/http/dto"
	"bharatpay-gateway/internal/core/domain"
	"bharatpay-gateway/internal/core/ports"
	"bharatpay-gateway/internal/core/ports/mocks"
	"bharatpay-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
	dto.RegisterValidators()
}

type routerDeps struct {
	authSvc      *mocks.MockAuthService
	keySvc       *mocks.MockKeyService
	paymentSvc   *mocks.MockPaymentService
	linkSvc      *mocks.MockLinkService
	reportingSvc *mocks.MockReportingService
	auditSvc     *mocks.MockAuditService
	tokenSvc     *mocks.MockTokenService
}

func newTestRouter(t *testing.T) (*gin.Engine, *routerDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	deps := &routerDeps{
		authSvc:      mocks.NewMockAuthService(ctrl),
		keySvc:       mocks.NewMockKeyService(ctrl),
		paymentSvc:   mocks.NewMockPaymentService(ctrl),
		linkSvc:      mocks.NewMockLinkService(ctrl),
		reportingSvc: mocks.NewMockReportingService(ctrl),
		auditSvc:     mocks.NewMockAuditService(ctrl),
		tokenSvc:     mocks.NewMockTokenService(ctrl),
	}
	deps.auditSvc.EXPECT().Record(gomock.Any(), gomock.Any()).AnyTimes()

	r := SetupRouter(RouterDeps{
		AuthSvc:      deps.authSvc,
		KeySvc:       deps.keySvc,
		PaymentSvc:   deps.paymentSvc,
		LinkSvc:      deps.linkSvc,
		ReportingSvc: deps.reportingSvc,
		AuditSvc:     deps.auditSvc,
		TokenSvc:     deps.tokenSvc,
		Log:          zerolog.New(io.Discard),
	})
	return r, deps
}

func doJSON(r *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func adminHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer admin-token"}
}

func expectAdmin(deps *routerDeps) {
	deps.tokenSvc.EXPECT().Validate("admin-token").Return(&ports.TokenClaims{
		AdminID:  uuid.New(),
		Username: "admin",
	}, nil).AnyTimes()
}

func merchantHeaders() map[string]string {
	return map[string]string{"X-API-Key": "bpay_testsecret"}
}

func expectMerchant(deps *routerDeps) *domain.APIKey {
	key := &domain.APIKey{ID: uuid.New(), OwnerName: "Acme Stores", IsActive: true}
	deps.keySvc.EXPECT().Validate(gomock.Any(), "bpay_testsecret").Return(key, nil).AnyTimes()
	return key
}

func newPendingTransaction() *domain.Transaction {
	return &domain.Transaction{
		ID:           uuid.New(),
		OrderID:      "BHARAT_ORD_abc123",
		Amount:       decimal.NewFromInt(250),
		UPIID:        "alice@bank",
		Message:      "Lunch",
		MerchantID:   "BHARAT_A1B2C3D4E5F6G7H8",
		MerchantKey:  "BHARAT_KEY_123456789012",
		QRData:       "upi://pay?pa=alice@bank&pn=BharatPay_Merchant&am=250&tn=Lunch&tr=BHARAT_ORD_abc123",
		QRCodeBase64: "aW1hZ2U=",
		Status:       domain.TransactionStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestAdminLogin(t *testing.T) {
	t.Run("valid credentials return a token", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expiry := time.Now().Add(24 * time.Hour)
		deps.authSvc.EXPECT().Login(gomock.Any(), "admin", "s3cret").Return("jwt-token", expiry, nil)

		w := doJSON(r, http.MethodPost, "/api/admin/login", dto.AdminLoginRequest{
			Username: "admin",
			Password: "s3cret",
		}, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "jwt-token")
	})

	t.Run("bad credentials return AUTH_004", func(t *testing.T) {
		r, deps := newTestRouter(t)
		deps.authSvc.EXPECT().Login(gomock.Any(), "admin", "wrong").
			Return("", time.Time{}, apperror.ErrInvalidCredentials())

		w := doJSON(r, http.MethodPost, "/api/admin/login", dto.AdminLoginRequest{
			Username: "admin",
			Password: "wrong",
		}, nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "AUTH_004")
	})

	t.Run("missing fields return VAL_001", func(t *testing.T) {
		r, _ := newTestRouter(t)

		w := doJSON(r, http.MethodPost, "/api/admin/login", gin.H{"username": "admin"}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "VAL_001")
	})
}

func TestAdminVerifyToken(t *testing.T) {
	r, deps := newTestRouter(t)
	expectAdmin(deps)

	w := doJSON(r, http.MethodGet, "/api/admin/verify", nil, adminHeaders())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)
	assert.Contains(t, w.Body.String(), "admin")
}

func TestKeyManagement(t *testing.T) {
	testKey := &domain.APIKey{
		ID:        uuid.New(),
		KeyPrefix: "bpay_a1b2c3d",
		OwnerName: "Acme Stores",
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(90 * 24 * time.Hour),
		IsActive:  true,
	}

	t.Run("create returns the plaintext secret once", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expectAdmin(deps)
		deps.keySvc.EXPECT().Issue(gomock.Any(), "Acme Stores", 90).
			Return("bpay_plaintextsecret", testKey, nil)

		w := doJSON(r, http.MethodPost, "/api/admin/api-keys", dto.CreateKeyRequest{
			OwnerName:  "Acme Stores",
			ExpiryDays: 90,
		}, adminHeaders())

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), "bpay_plaintextsecret")
		assert.Contains(t, w.Body.String(), "bpay_a1b2c3d")
	})

	t.Run("create rejects non-positive expiry", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expectAdmin(deps)

		w := doJSON(r, http.MethodPost, "/api/admin/api-keys", gin.H{
			"owner_name":  "Acme",
			"expiry_days": 0,
		}, adminHeaders())

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("list returns redacted records", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expectAdmin(deps)
		deps.keySvc.EXPECT().List(gomock.Any()).Return([]domain.APIKey{*testKey}, nil)

		w := doJSON(r, http.MethodGet, "/api/admin/api-keys", nil, adminHeaders())

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "bpay_a1b2c3d")
		assert.NotContains(t, w.Body.String(), "plaintext")
	})

	t.Run("toggle flips active state", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expectAdmin(deps)
		toggled := *testKey
		toggled.IsActive = false
		deps.keySvc.EXPECT().Toggle(gomock.Any(), testKey.ID).Return(&toggled, nil)

		w := doJSON(r, http.MethodPost, "/api/admin/api-keys/"+testKey.ID.String()+"/toggle", nil, adminHeaders())

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"is_active":false`)
	})

	t.Run("toggle rejects malformed id", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expectAdmin(deps)

		w := doJSON(r, http.MethodPost, "/api/admin/api-keys/not-a-uuid/toggle", nil, adminHeaders())

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("revoke removes the credential", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expectAdmin(deps)
		deps.keySvc.EXPECT().Revoke(gomock.Any(), testKey.ID).Return(nil)

		w := doJSON(r, http.MethodDelete, "/api/admin/api-keys/"+testKey.ID.String(), nil, adminHeaders())

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"revoked":true`)
	})

	t.Run("admin routes require a token", func(t *testing.T) {
		r, _ := newTestRouter(t)

		w := doJSON(r, http.MethodGet, "/api/admin/api-keys", nil, nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestGenerateQR(t *testing.T) {
	t.Run("creates a pending transaction with the merchant pair", func(t *testing.T) {
		r, deps := newTestRouter(t)
		key := expectMerchant(deps)
		txn := newPendingTransaction()
		deps.paymentSvc.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req ports.CreateTransactionRequest) (*domain.Transaction, error) {
				assert.Equal(t, "alice@bank", req.UPIID)
				assert.True(t, decimal.NewFromInt(250).Equal(req.Amount))
				require.NotNil(t, req.APIKeyID)
				assert.Equal(t, key.ID, *req.APIKeyID)
				return txn, nil
			})

		w := doJSON(r, http.MethodPost, "/api/v1/qr/generate", gin.H{
			"upi_id":  "alice@bank",
			"amount":  250,
			"message": "Lunch",
		}, merchantHeaders())

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), txn.OrderID)
		assert.Contains(t, w.Body.String(), txn.MerchantKey)
		assert.Contains(t, w.Body.String(), `"status":"PENDING"`)
	})

	t.Run("requires an API key", func(t *testing.T) {
		r, deps := newTestRouter(t)
		deps.keySvc.EXPECT().Validate(gomock.Any(), "").Return(nil, apperror.ErrAPIKeyRequired())

		w := doJSON(r, http.MethodPost, "/api/v1/qr/generate", gin.H{
			"upi_id": "alice@bank",
			"amount": 250,
		}, nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "AUTH_001")
	})

	t.Run("rejects a missing amount", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expectMerchant(deps)

		w := doJSON(r, http.MethodPost, "/api/v1/qr/generate", gin.H{
			"upi_id": "alice@bank",
		}, merchantHeaders())

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "VAL_001")
	})

	t.Run("rejects an unsafe order id", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expectMerchant(deps)

		w := doJSON(r, http.MethodPost, "/api/v1/qr/generate", gin.H{
			"upi_id":   "alice@bank",
			"amount":   250,
			"order_id": "ord;drop table",
		}, merchantHeaders())

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("maps duplicate order to PAY_003", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expectMerchant(deps)
		deps.paymentSvc.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).
			Return(nil, apperror.ErrDuplicateOrder())

		w := doJSON(r, http.MethodPost, "/api/v1/qr/generate", gin.H{
			"upi_id":   "alice@bank",
			"amount":   250,
			"order_id": "ORD-1",
		}, merchantHeaders())

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "PAY_003")
	})
}

func TestVerifyPayment(t *testing.T) {
	t.Run("settled transaction is returned without the QR image", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expectMerchant(deps)
		txn := newPendingTransaction()
		txn.Status = domain.TransactionStatusSuccess
		paidAt := time.Now().UTC()
		txn.PaidAt = &paidAt
		gw, bank := "BHARAT1700000000123456", "BANK123456789"
		txn.GatewayRef = &gw
		txn.BankRef = &bank

		deps.paymentSvc.EXPECT().
			Verify(gomock.Any(), txn.OrderID, txn.MerchantID, txn.MerchantKey).
			Return(txn, nil)

		w := doJSON(r, http.MethodPost, "/api/v1/payment/verify", gin.H{
			"order_id":     txn.OrderID,
			"merchant_id":  txn.MerchantID,
			"merchant_key": txn.MerchantKey,
		}, merchantHeaders())

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"SUCCESS"`)
		assert.Contains(t, w.Body.String(), gw)
		assert.NotContains(t, w.Body.String(), txn.QRCodeBase64)
	})

	t.Run("unknown order returns PAY_001", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expectMerchant(deps)
		deps.paymentSvc.EXPECT().
			Verify(gomock.Any(), "BHARAT_ORD_missing", gomock.Any(), gomock.Any()).
			Return(nil, apperror.ErrNotFound("transaction"))

		w := doJSON(r, http.MethodPost, "/api/v1/payment/verify", gin.H{
			"order_id":     "BHARAT_ORD_missing",
			"merchant_id":  "BHARAT_X",
			"merchant_key": "BHARAT_KEY_X",
		}, merchantHeaders())

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "PAY_001")
	})

	t.Run("wrong merchant pair returns PAY_002", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expectMerchant(deps)
		deps.paymentSvc.EXPECT().
			Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, apperror.ErrMerchantCredentials())

		w := doJSON(r, http.MethodPost, "/api/v1/payment/verify", gin.H{
			"order_id":     "BHARAT_ORD_abc123",
			"merchant_id":  "BHARAT_WRONG",
			"merchant_key": "BHARAT_KEY_WRONG",
		}, merchantHeaders())

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "PAY_002")
	})
}

func TestPaymentLinks(t *testing.T) {
	maxUses := 5
	expiresAt := time.Now().UTC().Add(24 * time.Hour)
	testLink := &domain.PaymentLink{
		ID:          uuid.New(),
		LinkID:      "link_dGVzdGxpbmtpZDEyMzQ",
		Amount:      decimal.NewFromInt(500),
		UPIID:       "shop@bank",
		Description: "Store checkout",
		IsActive:    true,
		MaxUses:     &maxUses,
		ExpiresAt:   &expiresAt,
		CreatedAt:   time.Now().UTC(),
	}

	t.Run("create returns the link with its pay URL", func(t *testing.T) {
		r, deps := newTestRouter(t)
		key := expectMerchant(deps)
		deps.linkSvc.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req ports.CreateLinkRequest) (*domain.PaymentLink, error) {
				require.NotNil(t, req.APIKeyID)
				assert.Equal(t, key.ID, *req.APIKeyID)
				require.NotNil(t, req.MaxUses)
				assert.Equal(t, 5, *req.MaxUses)
				return testLink, nil
			})

		w := doJSON(r, http.MethodPost, "/api/v1/payment-link/create", gin.H{
			"upi_id":           "shop@bank",
			"amount":           500,
			"description":      "Store checkout",
			"max_uses":         5,
			"expires_in_hours": 24,
		}, merchantHeaders())

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), testLink.LinkID)
		assert.Contains(t, w.Body.String(), "/api/public/pay/"+testLink.LinkID)
	})

	t.Run("public get exposes the template", func(t *testing.T) {
		r, deps := newTestRouter(t)
		deps.linkSvc.EXPECT().Get(gomock.Any(), testLink.LinkID).Return(testLink, nil)

		w := doJSON(r, http.MethodGet, "/api/public/links/"+testLink.LinkID, nil, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Store checkout")
	})

	t.Run("public redeem mints a transaction", func(t *testing.T) {
		r, deps := newTestRouter(t)
		txn := newPendingTransaction()
		deps.linkSvc.EXPECT().Redeem(gomock.Any(), testLink.LinkID).Return(txn, nil)

		w := doJSON(r, http.MethodPost, "/api/public/pay/"+testLink.LinkID, nil, nil)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), txn.OrderID)
		assert.Contains(t, w.Body.String(), txn.MerchantKey)
	})

	t.Run("spent link returns PAY_004", func(t *testing.T) {
		r, deps := newTestRouter(t)
		deps.linkSvc.EXPECT().Redeem(gomock.Any(), testLink.LinkID).
			Return(nil, apperror.ErrLinkInvalid())

		w := doJSON(r, http.MethodPost, "/api/public/pay/"+testLink.LinkID, nil, nil)

		assert.Equal(t, http.StatusGone, w.Code)
		assert.Contains(t, w.Body.String(), "PAY_004")
	})
}

func TestDashboard(t *testing.T) {
	t.Run("stats aggregates", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expectAdmin(deps)
		deps.reportingSvc.EXPECT().GetStats(gomock.Any()).Return(&ports.GatewayStats{
			TotalTransactions:  10,
			SuccessfulPayments: 6,
			PendingPayments:    3,
			FailedPayments:     1,
			TotalAPIKeys:       2,
			ActiveAPIKeys:      1,
			TotalAmount:        decimal.NewFromInt(4200),
		}, nil)

		w := doJSON(r, http.MethodGet, "/api/admin/stats", nil, adminHeaders())

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"total_transactions":10`)
		assert.Contains(t, w.Body.String(), `"total_amount":"4200"`)
	})

	t.Run("transactions passes filters through", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expectAdmin(deps)
		txn := newPendingTransaction()
		deps.reportingSvc.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
				require.NotNil(t, params.Status)
				assert.Equal(t, domain.TransactionStatusPending, *params.Status)
				assert.Equal(t, 2, params.Page)
				assert.Equal(t, 10, params.PageSize)
				return []domain.Transaction{*txn}, 11, nil
			})

		w := doJSON(r, http.MethodGet, "/api/admin/transactions?status=PENDING&page=2&page_size=10", nil, adminHeaders())

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"total":11`)
		assert.Contains(t, w.Body.String(), `"total_pages":2`)
	})

	t.Run("transactions rejects an unknown status", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expectAdmin(deps)

		w := doJSON(r, http.MethodGet, "/api/admin/transactions?status=SETTLED", nil, adminHeaders())

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("audit logs page through", func(t *testing.T) {
		r, deps := newTestRouter(t)
		expectAdmin(deps)
		entry := domain.AuditLog{
			ID:         uuid.New(),
			Action:     domain.AuditActionAPIKeyCreated,
			EntityType: "api_key",
			CreatedAt:  time.Now().UTC(),
		}
		deps.auditSvc.EXPECT().List(gomock.Any(), 1, 50).Return([]domain.AuditLog{entry}, int64(1), nil)

		w := doJSON(r, http.MethodGet, "/api/admin/audit-logs", nil, adminHeaders())

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "API_KEY_CREATED")
	})
}

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(context.Context) error { return s.err }
func (s stubChecker) Name() string               { return s.name }

func TestHealthCheck(t *testing.T) {
	t.Run("all dependencies healthy", func(t *testing.T) {
		r := gin.New()
		r.GET("/health", HealthCheck(stubChecker{name: "postgresql"}, stubChecker{name: "redis"}))

		w := doJSON(r, http.MethodGet, "/health", nil, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	})

	t.Run("failing dependency degrades to 503", func(t *testing.T) {
		r := gin.New()
		r.GET("/health", HealthCheck(
			stubChecker{name: "postgresql"},
			stubChecker{name: "redis", err: errors.New("connection refused")},
		))

		w := doJSON(r, http.MethodGet, "/health", nil, nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "degraded")
		assert.Contains(t, w.Body.String(), "connection refused")
	})
}
