package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bharatpay-gateway/internal/core/domain"
	"bharatpay-gateway/internal/core/ports"
	"bharatpay-gateway/internal/core/ports/mocks"
	"bharatpay-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func performRequest(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAPIKeyAuth(t *testing.T) {
	testKey := &domain.APIKey{
		ID:        uuid.New(),
		OwnerName: "Acme Stores",
		IsActive:  true,
	}

	setup := func(t *testing.T) (*mocks.MockKeyService, *mocks.MockAuditService, *gin.Engine, *[]*uuid.UUID) {
		ctrl := gomock.NewController(t)
		keySvc := mocks.NewMockKeyService(ctrl)
		audit := mocks.NewMockAuditService(ctrl)

		var seen []*uuid.UUID
		r := gin.New()
		r.GET("/protected", APIKeyAuth(keySvc, audit), func(c *gin.Context) {
			seen = append(seen, APIKeyIDFromContext(c))
			c.Status(http.StatusOK)
		})
		return keySvc, audit, r, &seen
	}

	t.Run("valid header key passes and exposes key ID", func(t *testing.T) {
		keySvc, _, r, seen := setup(t)
		keySvc.EXPECT().Validate(gomock.Any(), "bpay_abc").Return(testKey, nil)

		w := performRequest(r, http.MethodGet, "/protected", map[string]string{"X-API-Key": "bpay_abc"})

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, *seen, 1)
		require.NotNil(t, (*seen)[0])
		assert.Equal(t, testKey.ID, *(*seen)[0])
	})

	t.Run("query parameter fallback", func(t *testing.T) {
		keySvc, _, r, _ := setup(t)
		keySvc.EXPECT().Validate(gomock.Any(), "bpay_query").Return(testKey, nil)

		w := performRequest(r, http.MethodGet, "/protected?api_key=bpay_query", nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid key rejected and audited", func(t *testing.T) {
		keySvc, audit, r, _ := setup(t)
		keySvc.EXPECT().Validate(gomock.Any(), "bogus").Return(nil, apperror.ErrInvalidAPIKey())
		audit.EXPECT().Record(gomock.Any(), gomock.Any()).Do(func(_ interface{}, e *domain.AuditLog) {
			assert.Equal(t, domain.AuditActionAPIKeyInvalid, e.Action)
		})

		w := performRequest(r, http.MethodGet, "/protected", map[string]string{"X-API-Key": "bogus"})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "AUTH_001")
	})

	t.Run("missing key rejected", func(t *testing.T) {
		keySvc, audit, r, _ := setup(t)
		keySvc.EXPECT().Validate(gomock.Any(), "").Return(nil, apperror.ErrAPIKeyRequired())
		audit.EXPECT().Record(gomock.Any(), gomock.Any())

		w := performRequest(r, http.MethodGet, "/protected", nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("demo sentinel passes without key in context", func(t *testing.T) {
		keySvc, audit, r, seen := setup(t)
		keySvc.EXPECT().Validate(gomock.Any(), "demo-mode").Return(nil, nil)
		audit.EXPECT().Record(gomock.Any(), gomock.Any()).Do(func(_ interface{}, e *domain.AuditLog) {
			assert.Equal(t, domain.AuditActionDemoModeAccess, e.Action)
		})

		w := performRequest(r, http.MethodGet, "/protected", map[string]string{"X-API-Key": "demo-mode"})

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, *seen, 1)
		assert.Nil(t, (*seen)[0])
	})
}

func TestJWTAuth(t *testing.T) {
	setup := func(t *testing.T) (*mocks.MockTokenService, *gin.Engine) {
		ctrl := gomock.NewController(t)
		tokenSvc := mocks.NewMockTokenService(ctrl)

		r := gin.New()
		r.GET("/admin", JWTAuth(tokenSvc), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"username": c.GetString(CtxAdminUsername)})
		})
		return tokenSvc, r
	}

	t.Run("valid bearer token passes", func(t *testing.T) {
		tokenSvc, r := setup(t)
		tokenSvc.EXPECT().Validate("good-token").Return(&ports.TokenClaims{
			AdminID:  uuid.New(),
			Username: "admin",
		}, nil)

		w := performRequest(r, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer good-token"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "admin")
	})

	t.Run("missing header rejected", func(t *testing.T) {
		_, r := setup(t)

		w := performRequest(r, http.MethodGet, "/admin", nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "AUTH_005")
	})

	t.Run("malformed scheme rejected", func(t *testing.T) {
		_, r := setup(t)

		w := performRequest(r, http.MethodGet, "/admin", map[string]string{"Authorization": "Token abc"})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		tokenSvc, r := setup(t)
		tokenSvc.EXPECT().Validate("bad").Return(nil, apperror.ErrInvalidToken())

		w := performRequest(r, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer bad"})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(newTestLogger()))
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := performRequest(r, http.MethodGet, "/panic", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "SYS_001")
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := performRequest(r, http.MethodGet, "/", nil)

	id := w.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(newTestLogger()))
	r.GET("/ok", func(c *gin.Context) {
		time.Sleep(time.Millisecond)
		c.Status(http.StatusOK)
	})

	w := performRequest(r, http.MethodGet, "/ok", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}
