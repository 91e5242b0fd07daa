package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bharatpay-gateway/internal/adapter/http/dto"
	httpHandler "bharatpay-gateway/internal/adapter/http/handler"
	"bharatpay-gateway/internal/adapter/qr"
	redisStorage "bharatpay-gateway/internal/adapter/storage/redis"
	"bharatpay-gateway/internal/core/ports"
	"bharatpay-gateway/internal/service"
	"bharatpay-gateway/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	dto.RegisterValidators()
}

// fixedDecider always returns the same settlement outcome, making the
// probabilistic verify path deterministic in tests.
type fixedDecider struct {
	outcome ports.SettlementOutcome
}

func (d fixedDecider) Decide() ports.SettlementOutcome { return d.outcome }

type testAppConfig struct {
	decider  ports.SettlementDecider
	demoMode bool
}

// testApp wires the real HTTP surface, middleware, services and Redis
// stores over in-memory repositories.
type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis

	keyRepo  *inMemoryAPIKeyRepo
	txRepo   *inMemoryTransactionRepo
	linkRepo *inMemoryPaymentLinkRepo
}

func newTestApp(t *testing.T, cfg testAppConfig) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	log := logger.New("error", false)

	keyRepo := newInMemoryAPIKeyRepo()
	txRepo := newInMemoryTransactionRepo(keyRepo)
	linkRepo := newInMemoryPaymentLinkRepo()
	auditRepo := newInMemoryAuditRepo()
	adminRepo := newInMemoryAdminRepo()
	transactor := newInMemoryTransactor()

	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", 24*time.Hour, "test-issuer")
	renderer := qr.NewRenderer(qr.DefaultSize)
	decider := cfg.decider
	if decider == nil {
		decider = service.NewSettlementSimulator()
	}
	notifier := service.NewWebhookNotifier(txRepo, &http.Client{Timeout: 2 * time.Second}, 2*time.Second, log)

	auditSvc := service.NewAuditService(auditRepo, log)
	authSvc := service.NewAuthService(adminRepo, hashSvc, tokenSvc, log)
	keySvc := service.NewKeyService(keyRepo, txRepo, cfg.demoMode, log)
	paymentSvc := service.NewPaymentService(txRepo, transactor, renderer, decider, notifier, "BharatPay_Merchant", log)
	linkSvc := service.NewLinkService(linkRepo, txRepo, transactor, renderer, "BharatPay_Merchant", log)
	reportingSvc := service.NewReportingService(txRepo)

	require.NoError(t, authSvc.EnsureSeedAdmin(t.Context(), "admin", "StrongPass123!"))

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		KeySvc:         keySvc,
		PaymentSvc:     paymentSvc,
		LinkSvc:        linkSvc,
		ReportingSvc:   reportingSvc,
		AuditSvc:       auditSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		Log:            log,
	})

	return &testApp{
		server:   httptest.NewServer(router),
		redis:    mr,
		keyRepo:  keyRepo,
		txRepo:   txRepo,
		linkRepo: linkRepo,
	}
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

// --- HTTP helpers ---

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
	Message   string          `json:"message"`
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (a *testApp) adminToken(t *testing.T) string {
	t.Helper()
	status, env := a.do(t, http.MethodPost, "/api/admin/login", map[string]string{
		"username": "admin",
		"password": "StrongPass123!",
	}, nil)
	require.Equal(t, http.StatusOK, status)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	return login.Token
}

func (a *testApp) issueAPIKey(t *testing.T) string {
	t.Helper()
	token := a.adminToken(t)
	status, env := a.do(t, http.MethodPost, "/api/admin/api-keys", map[string]interface{}{
		"owner_name":  "Integration Shop",
		"expiry_days": 30,
	}, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusCreated, status)

	var created struct {
		APIKey string `json:"api_key"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.APIKey)
	return created.APIKey
}

// --- Tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t, testAppConfig{})
	defer app.close()

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_AdminLoginAndKeyLifecycle(t *testing.T) {
	app := newTestApp(t, testAppConfig{})
	defer app.close()

	token := app.adminToken(t)

	// Wrong password is rejected.
	status, env := app.do(t, http.MethodPost, "/api/admin/login", map[string]string{
		"username": "admin",
		"password": "wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_004", env.ErrorCode)

	auth := map[string]string{"Authorization": "Bearer " + token}

	// Issue a key.
	status, env = app.do(t, http.MethodPost, "/api/admin/api-keys", map[string]interface{}{
		"owner_name":  "Acme Stores",
		"expiry_days": 30,
	}, auth)
	require.Equal(t, http.StatusCreated, status)

	var created struct {
		APIKey string `json:"api_key"`
		Key    struct {
			ID string `json:"id"`
		} `json:"key"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Contains(t, created.APIKey, "bpay_")

	// The key authorizes merchant traffic.
	status, _ = app.do(t, http.MethodPost, "/api/v1/qr/generate", map[string]interface{}{
		"upi_id": "alice@bank",
		"amount": 100,
	}, map[string]string{"X-API-Key": created.APIKey})
	assert.Equal(t, http.StatusCreated, status)

	// Toggling deactivates it.
	status, _ = app.do(t, http.MethodPost, "/api/admin/api-keys/"+created.Key.ID+"/toggle", nil, auth)
	require.Equal(t, http.StatusOK, status)

	status, env = app.do(t, http.MethodPost, "/api/v1/qr/generate", map[string]interface{}{
		"upi_id": "alice@bank",
		"amount": 100,
	}, map[string]string{"X-API-Key": created.APIKey})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_002", env.ErrorCode)

	// Revoking removes the credential but keeps transactions.
	status, _ = app.do(t, http.MethodDelete, "/api/admin/api-keys/"+created.Key.ID, nil, auth)
	require.Equal(t, http.StatusOK, status)

	status, env = app.do(t, http.MethodPost, "/api/v1/qr/generate", map[string]interface{}{
		"upi_id": "alice@bank",
		"amount": 100,
	}, map[string]string{"X-API-Key": created.APIKey})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_001", env.ErrorCode)

	stored, total, err := app.txRepo.List(t.Context(), ports.TransactionListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, stored, 1)
	assert.Nil(t, stored[0].APIKeyID)
}

func TestIntegration_PaymentSettlement(t *testing.T) {
	app := newTestApp(t, testAppConfig{decider: fixedDecider{outcome: ports.SettlementSuccess}})
	defer app.close()

	apiKey := app.issueAPIKey(t)
	merchant := map[string]string{"X-API-Key": apiKey}

	status, env := app.do(t, http.MethodPost, "/api/v1/qr/generate", map[string]interface{}{
		"upi_id":  "alice@bank",
		"amount":  "499.50",
		"message": "Course fee",
	}, merchant)
	require.Equal(t, http.StatusCreated, status)

	var txn dto.TransactionResponse
	require.NoError(t, json.Unmarshal(env.Data, &txn))
	assert.Contains(t, txn.OrderID, "BHARAT_ORD_")
	assert.Contains(t, txn.MerchantID, "BHARAT_")
	assert.Contains(t, txn.MerchantKey, "BHARAT_KEY_")
	assert.Contains(t, txn.QRData, "upi://pay?pa=alice@bank")
	assert.NotEmpty(t, txn.QRCode)
	assert.Equal(t, "PENDING", txn.Status)

	// Verify settles the payment.
	status, env = app.do(t, http.MethodPost, "/api/v1/payment/verify", map[string]string{
		"order_id":     txn.OrderID,
		"merchant_id":  txn.MerchantID,
		"merchant_key": txn.MerchantKey,
	}, merchant)
	require.Equal(t, http.StatusOK, status)

	var settled dto.TransactionResponse
	require.NoError(t, json.Unmarshal(env.Data, &settled))
	assert.Equal(t, "SUCCESS", settled.Status)
	require.NotNil(t, settled.GatewayRef)
	assert.Contains(t, *settled.GatewayRef, "BHARAT")
	require.NotNil(t, settled.BankRef)
	assert.Contains(t, *settled.BankRef, "BANK")
	require.NotNil(t, settled.PaidAt)

	// Verification is idempotent once terminal.
	status, env = app.do(t, http.MethodPost, "/api/v1/payment/verify", map[string]string{
		"order_id":     txn.OrderID,
		"merchant_id":  txn.MerchantID,
		"merchant_key": txn.MerchantKey,
	}, merchant)
	require.Equal(t, http.StatusOK, status)

	var again dto.TransactionResponse
	require.NoError(t, json.Unmarshal(env.Data, &again))
	assert.Equal(t, *settled.GatewayRef, *again.GatewayRef)

	// Wrong merchant pair is rejected.
	status, env = app.do(t, http.MethodPost, "/api/v1/payment/verify", map[string]string{
		"order_id":     txn.OrderID,
		"merchant_id":  "BHARAT_WRONGWRONGWRONG",
		"merchant_key": "BHARAT_KEY_000000000000",
	}, merchant)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "PAY_002", env.ErrorCode)

	// Unknown order is a 404.
	status, env = app.do(t, http.MethodPost, "/api/v1/payment/verify", map[string]string{
		"order_id":     "BHARAT_ORD_missing",
		"merchant_id":  txn.MerchantID,
		"merchant_key": txn.MerchantKey,
	}, merchant)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "PAY_001", env.ErrorCode)
}

func TestIntegration_DuplicateOrderID(t *testing.T) {
	app := newTestApp(t, testAppConfig{})
	defer app.close()

	apiKey := app.issueAPIKey(t)
	merchant := map[string]string{"X-API-Key": apiKey}
	body := map[string]interface{}{
		"upi_id":   "alice@bank",
		"amount":   100,
		"order_id": "ORDER-42",
	}

	status, _ := app.do(t, http.MethodPost, "/api/v1/qr/generate", body, merchant)
	require.Equal(t, http.StatusCreated, status)

	status, env := app.do(t, http.MethodPost, "/api/v1/qr/generate", body, merchant)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "PAY_003", env.ErrorCode)
}

func TestIntegration_DemoMode(t *testing.T) {
	t.Run("enabled sandbox accepts the reserved key", func(t *testing.T) {
		app := newTestApp(t, testAppConfig{demoMode: true})
		defer app.close()

		status, _ := app.do(t, http.MethodPost, "/api/v1/qr/generate", map[string]interface{}{
			"upi_id": "demo@bank",
			"amount": 1,
		}, map[string]string{"X-API-Key": "demo-mode"})
		assert.Equal(t, http.StatusCreated, status)
	})

	t.Run("disabled gateway rejects the reserved key", func(t *testing.T) {
		app := newTestApp(t, testAppConfig{})
		defer app.close()

		status, env := app.do(t, http.MethodPost, "/api/v1/qr/generate", map[string]interface{}{
			"upi_id": "demo@bank",
			"amount": 1,
		}, map[string]string{"X-API-Key": "demo-mode"})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "AUTH_001", env.ErrorCode)
	})
}

func TestIntegration_PaymentLinkFlow(t *testing.T) {
	app := newTestApp(t, testAppConfig{})
	defer app.close()

	apiKey := app.issueAPIKey(t)

	status, env := app.do(t, http.MethodPost, "/api/v1/payment-link/create", map[string]interface{}{
		"upi_id":           "shop@bank",
		"amount":           750,
		"description":      "Workshop ticket",
		"max_uses":         2,
		"expires_in_hours": 24,
	}, map[string]string{"X-API-Key": apiKey})
	require.Equal(t, http.StatusCreated, status)

	var link dto.PaymentLinkResponse
	require.NoError(t, json.Unmarshal(env.Data, &link))
	assert.Contains(t, link.LinkID, "link_")

	// The public page exposes the template.
	status, env = app.do(t, http.MethodGet, "/api/public/links/"+link.LinkID, nil, nil)
	require.Equal(t, http.StatusOK, status)
	var got dto.PaymentLinkResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Workshop ticket", got.Description)
	assert.Equal(t, 0, got.CurrentUses)

	// Two redemptions mint two distinct pending transactions.
	orderIDs := map[string]bool{}
	for i := 0; i < 2; i++ {
		status, env = app.do(t, http.MethodPost, "/api/public/pay/"+link.LinkID, nil, nil)
		require.Equal(t, http.StatusCreated, status)
		var txn dto.TransactionResponse
		require.NoError(t, json.Unmarshal(env.Data, &txn))
		assert.Equal(t, "PENDING", txn.Status)
		assert.Equal(t, "750", txn.Amount)
		orderIDs[txn.OrderID] = true
	}
	assert.Len(t, orderIDs, 2)

	// The third redemption exceeds max uses.
	status, env = app.do(t, http.MethodPost, "/api/public/pay/"+link.LinkID, nil, nil)
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, "PAY_004", env.ErrorCode)

	// Unknown links are a 404.
	status, env = app.do(t, http.MethodPost, "/api/public/pay/link_unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "PAY_001", env.ErrorCode)
}

func TestIntegration_DashboardAndAudit(t *testing.T) {
	app := newTestApp(t, testAppConfig{decider: fixedDecider{outcome: ports.SettlementSuccess}})
	defer app.close()

	apiKey := app.issueAPIKey(t)
	merchant := map[string]string{"X-API-Key": apiKey}

	status, env := app.do(t, http.MethodPost, "/api/v1/qr/generate", map[string]interface{}{
		"upi_id": "alice@bank",
		"amount": 300,
	}, merchant)
	require.Equal(t, http.StatusCreated, status)
	var txn dto.TransactionResponse
	require.NoError(t, json.Unmarshal(env.Data, &txn))

	status, _ = app.do(t, http.MethodPost, "/api/v1/payment/verify", map[string]string{
		"order_id":     txn.OrderID,
		"merchant_id":  txn.MerchantID,
		"merchant_key": txn.MerchantKey,
	}, merchant)
	require.Equal(t, http.StatusOK, status)

	token := app.adminToken(t)
	auth := map[string]string{"Authorization": "Bearer " + token}

	// Stats reflect the settled payment.
	status, env = app.do(t, http.MethodGet, "/api/admin/stats", nil, auth)
	require.Equal(t, http.StatusOK, status)
	var stats dto.StatsResponse
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1), stats.TotalTransactions)
	assert.Equal(t, int64(1), stats.SuccessfulPayments)
	assert.Equal(t, "300", stats.TotalAmount)

	// The ledger lists it with the status filter.
	status, env = app.do(t, http.MethodGet, "/api/admin/transactions?status=SUCCESS", nil, auth)
	require.Equal(t, http.StatusOK, status)
	var list dto.TransactionListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, txn.OrderID, list.Items[0].OrderID)

	// The audit trail recorded the writes. Recording is async, so poll
	// briefly.
	var audit dto.AuditLogListResponse
	require.Eventually(t, func() bool {
		status, env = app.do(t, http.MethodGet, "/api/admin/audit-logs?page_size=100", nil, auth)
		if status != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(env.Data, &audit); err != nil {
			return false
		}
		return audit.Total >= 3
	}, 2*time.Second, 20*time.Millisecond)

	actions := map[string]bool{}
	for _, entry := range audit.Items {
		actions[entry.Action] = true
	}
	assert.True(t, actions["API_KEY_CREATED"])
	assert.True(t, actions["TRANSACTION_CREATED"])
	assert.True(t, actions["PAYMENT_VERIFIED"])
}

func TestIntegration_LoginRateLimit(t *testing.T) {
	app := newTestApp(t, testAppConfig{})
	defer app.close()

	body := map[string]string{"username": "admin", "password": "wrong"}
	var lastStatus int
	var lastEnv envelope
	for i := 0; i < 11; i++ {
		lastStatus, lastEnv = app.do(t, http.MethodPost, "/api/admin/login", body, nil)
	}

	assert.Equal(t, http.StatusTooManyRequests, lastStatus)
	assert.Equal(t, "RATE_001", lastEnv.ErrorCode)
}

func TestIntegration_WebhookDelivery(t *testing.T) {
	app := newTestApp(t, testAppConfig{decider: fixedDecider{outcome: ports.SettlementSuccess}})
	defer app.close()

	received := make(chan map[string]interface{}, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	apiKey := app.issueAPIKey(t)
	merchant := map[string]string{"X-API-Key": apiKey}

	status, env := app.do(t, http.MethodPost, "/api/v1/qr/generate", map[string]interface{}{
		"upi_id":      "alice@bank",
		"amount":      120,
		"webhook_url": hook.URL,
	}, merchant)
	require.Equal(t, http.StatusCreated, status)
	var txn dto.TransactionResponse
	require.NoError(t, json.Unmarshal(env.Data, &txn))

	status, _ = app.do(t, http.MethodPost, "/api/v1/payment/verify", map[string]string{
		"order_id":     txn.OrderID,
		"merchant_id":  txn.MerchantID,
		"merchant_key": txn.MerchantKey,
	}, merchant)
	require.Equal(t, http.StatusOK, status)

	select {
	case payload := <-received:
		assert.Equal(t, "PAYMENT_UPDATE", payload["event"])
		assert.Equal(t, txn.OrderID, payload["order_id"])
		assert.Equal(t, "SUCCESS", payload["status"])
	case <-time.After(3 * time.Second):
		t.Fatalf("webhook for %s never arrived", txn.OrderID)
	}
}
