package cmd

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-backend/internal/domain"
	"github.com/spec-kit/crm-backend/internal/repository"
)

type seedFakeUsers struct {
	roles              []domain.Role
	users              map[string]*domain.User
	createdBeforeRoles bool
}

func newSeedFakeUsers() *seedFakeUsers {
	return &seedFakeUsers{users: map[string]*domain.User{}}
}

func (f *seedFakeUsers) EnsureRoles(_ context.Context, roles []domain.Role) error {
	f.roles = append([]domain.Role{}, roles...)
	return nil
}

func (f *seedFakeUsers) Create(_ context.Context, user *domain.User) error {
	if len(f.roles) == 0 {
		f.createdBeforeRoles = true
	}
	user.ID = "user-" + user.Email
	f.users[user.Email] = user
	return nil
}

func (f *seedFakeUsers) Update(_ context.Context, user *domain.User) error {
	f.users[user.Email] = user
	return nil
}

func (f *seedFakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *seedFakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := f.users[email]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *seedFakeUsers) List(_ context.Context, _ repository.UserFilter) ([]domain.User, error) {
	return nil, nil
}

func (f *seedFakeUsers) SetSupportLine(_ context.Context, _ string, _ *string) error {
	return nil
}

func (f *seedFakeUsers) CountBySupportLine(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func TestSeedAllEnsuresRolesBeforeAccounts(t *testing.T) {
	users := newSeedFakeUsers()

	err := seedAll(context.Background(), users, zap.NewNop(), "admin@crm.local", "changeme", "system@crm.local", 4)
	require.NoError(t, err)

	assert.False(t, users.createdBeforeRoles)
	require.Len(t, users.roles, len(domain.AllRoles()))
	for i, role := range domain.AllRoles() {
		assert.Equal(t, role.Name, users.roles[i].Name)
		assert.True(t, role.Name.IsKnown())
	}

	admin, err := users.GetByEmail(context.Background(), "admin@crm.local")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.True(t, admin.Active)

	system, err := users.GetByEmail(context.Background(), "system@crm.local")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, system.Role)
	assert.NotEmpty(t, system.PasswordHash)
}

func TestSeedAllIsIdempotent(t *testing.T) {
	users := newSeedFakeUsers()

	require.NoError(t, seedAll(context.Background(), users, zap.NewNop(), "admin@crm.local", "changeme", "system@crm.local", 4))
	admin := users.users["admin@crm.local"]

	require.NoError(t, seedAll(context.Background(), users, zap.NewNop(), "admin@crm.local", "changeme", "system@crm.local", 4))
	assert.Len(t, users.users, 2)
	assert.Same(t, admin, users.users["admin@crm.local"])
}
