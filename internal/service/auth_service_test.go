package service

import (
	"context"
	"testing"
	"time"

	"bharatpay-gateway/internal/core/domain"
	"bharatpay-gateway/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type authTestDeps struct {
	svc       *AuthServiceImpl
	adminRepo *mocks.MockAdminRepository
	hashSvc   *mocks.MockHashService
	tokenSvc  *mocks.MockTokenService
	ctrl      *gomock.Controller
}

func setupAuthService(t *testing.T) *authTestDeps {
	ctrl := gomock.NewController(t)
	d := &authTestDeps{
		adminRepo: mocks.NewMockAdminRepository(ctrl),
		hashSvc:   mocks.NewMockHashService(ctrl),
		tokenSvc:  mocks.NewMockTokenService(ctrl),
		ctrl:      ctrl,
	}
	d.svc = NewAuthService(d.adminRepo, d.hashSvc, d.tokenSvc, zerolog.Nop())
	return d
}

func TestAuthService_Login_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	adminID := uuid.New()
	expiry := time.Now().Add(time.Hour)
	d.adminRepo.EXPECT().GetByUsername(gomock.Any(), "admin").Return(&domain.Admin{
		ID:           adminID,
		Username:     "admin",
		PasswordHash: "argon2hash",
	}, nil)
	d.hashSvc.EXPECT().Verify("s3cret", "argon2hash").Return(true, nil)
	d.tokenSvc.EXPECT().Generate(adminID, "admin").Return("jwt-token", expiry, nil)

	token, exp, err := d.svc.Login(context.Background(), "admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
	assert.Equal(t, expiry, exp)
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	d.adminRepo.EXPECT().GetByUsername(gomock.Any(), "ghost").Return(nil, nil)

	_, _, err := d.svc.Login(context.Background(), "ghost", "whatever")
	assertAppErrorCode(t, err, "AUTH_004")
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	d.adminRepo.EXPECT().GetByUsername(gomock.Any(), "admin").Return(&domain.Admin{
		ID:           uuid.New(),
		Username:     "admin",
		PasswordHash: "argon2hash",
	}, nil)
	d.hashSvc.EXPECT().Verify("wrong", "argon2hash").Return(false, nil)

	_, _, err := d.svc.Login(context.Background(), "admin", "wrong")
	assertAppErrorCode(t, err, "AUTH_004")
}

func TestAuthService_EnsureSeedAdmin_CreatesOnce(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	d.adminRepo.EXPECT().GetByUsername(gomock.Any(), "admin").Return(nil, nil)
	d.hashSvc.EXPECT().Hash("s3cret").Return("argon2hash", nil)
	d.adminRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, admin *domain.Admin) error {
			assert.Equal(t, "admin", admin.Username)
			assert.Equal(t, "argon2hash", admin.PasswordHash)
			return nil
		})

	err := d.svc.EnsureSeedAdmin(context.Background(), "admin", "s3cret")
	assert.NoError(t, err)
}

func TestAuthService_EnsureSeedAdmin_ExistingIsNoop(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	d.adminRepo.EXPECT().GetByUsername(gomock.Any(), "admin").Return(&domain.Admin{
		ID:       uuid.New(),
		Username: "admin",
	}, nil)
	d.adminRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

	err := d.svc.EnsureSeedAdmin(context.Background(), "admin", "newpassword")
	assert.NoError(t, err)
}
