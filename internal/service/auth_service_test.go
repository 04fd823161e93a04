package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/crm-backend/internal/config"
	"github.com/spec-kit/crm-backend/internal/domain"
	apperrors "github.com/spec-kit/crm-backend/pkg/util"
)

func newAuthService(h *serviceHarness) *AuthService {
	cfg := config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.AccessTokenTTLMinutes = 5
	cfg.Auth.BcryptCost = 4
	return NewAuthService(cfg, h.users)
}

func TestRegisterAndLogin(t *testing.T) {
	h := newServiceHarness()
	svc := newAuthService(h)

	user, err := svc.Register(context.Background(), "Мария", "maria@crm.local", "secret-pw", domain.RoleOperator1)
	require.NoError(t, err)
	assert.True(t, user.Active)
	assert.NotEqual(t, "secret-pw", user.PasswordHash)

	loggedIn, token, exp, err := svc.Login(context.Background(), "maria@crm.local", "secret-pw")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEmpty(t, token)
	assert.False(t, exp.IsZero())

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, domain.RoleOperator1, claims.Role)
}

func TestRegisterRejectsDuplicateEmailAndUnknownRole(t *testing.T) {
	h := newServiceHarness()
	svc := newAuthService(h)

	_, err := svc.Register(context.Background(), "A", "a@crm.local", "operator-pw", domain.RoleOperator1)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), "B", "a@crm.local", "operator-pw", domain.RoleOperator2)
	assert.Equal(t, "CONFLICT", apperrors.CodeOf(err))

	_, err = svc.Register(context.Background(), "C", "c@crm.local", "operator-pw", domain.RoleName("superuser"))
	assert.Equal(t, "INVALID_ROLE", apperrors.CodeOf(err))

	_, err = svc.Register(context.Background(), "D", "d@crm.local", "short", domain.RoleOperator1)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.CodeOf(err))
}

func TestLoginFailures(t *testing.T) {
	h := newServiceHarness()
	svc := newAuthService(h)
	user, err := svc.Register(context.Background(), "A", "a@crm.local", "operator-pw", domain.RoleOperator1)
	require.NoError(t, err)

	_, _, _, err = svc.Login(context.Background(), "a@crm.local", "wrong-password")
	assert.Equal(t, "UNAUTHORIZED", apperrors.CodeOf(err))
	_, _, _, err = svc.Login(context.Background(), "nobody@crm.local", "operator-pw")
	assert.Equal(t, "UNAUTHORIZED", apperrors.CodeOf(err))

	stored := h.store.users[user.ID]
	stored.Active = false
	_, _, _, err = svc.Login(context.Background(), "a@crm.local", "operator-pw")
	assert.Equal(t, "UNAUTHORIZED", apperrors.CodeOf(err))
}

func TestChangePassword(t *testing.T) {
	h := newServiceHarness()
	svc := newAuthService(h)
	user, err := svc.Register(context.Background(), "A", "a@crm.local", "old-password", domain.RoleOperator1)
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), user.ID, "wrong-password", "new-password")
	assert.Equal(t, "UNAUTHORIZED", apperrors.CodeOf(err))

	require.NoError(t, svc.ChangePassword(context.Background(), user.ID, "old-password", "new-password"))
	_, _, _, err = svc.Login(context.Background(), "a@crm.local", "new-password")
	assert.NoError(t, err)
}
