package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-backend/internal/domain"
	"github.com/spec-kit/crm-backend/internal/repository"
	apperrors "github.com/spec-kit/crm-backend/pkg/util"
)

// UserUpdateInput carries the mutable user fields. Nil means keep current.
type UserUpdateInput struct {
	Name   *string
	Email  *string
	Role   *domain.RoleName
	Active *bool
}

// UserService handles administrative account management. Role assignment and
// deactivation live here; support-line membership is SupportLineService's job.
type UserService struct {
	users repository.UserRepository
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// GetUser fetches a single user.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ListUsers returns users matching the filter.
func (s *UserService) ListUsers(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// UpdateUser applies partial updates to an account.
func (s *UserService) UpdateUser(ctx context.Context, id string, input UserUpdateInput) (*domain.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		user.Name = *input.Name
	}
	if input.Email != nil {
		if existing, err := s.users.GetByEmail(ctx, *input.Email); err == nil && existing.ID != user.ID {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": *input.Email})
		} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		user.Email = *input.Email
	}
	if input.Role != nil {
		if !input.Role.IsKnown() {
			return nil, apperrors.NewInvalidRole("unknown role", map[string]any{"role": string(*input.Role)})
		}
		// Admins have no support line; clear membership on promotion.
		if !input.Role.IsOperator() && user.SupportLineID != nil {
			if err := s.users.SetSupportLine(ctx, user.ID, nil); err != nil {
				return nil, apperrors.MapError(err)
			}
			user.SupportLineID = nil
		}
		user.Role = *input.Role
	}
	if input.Active != nil {
		user.Active = *input.Active
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// DeactivateUser disables an account without deleting its history.
func (s *UserService) DeactivateUser(ctx context.Context, id string) error {
	active := false
	_, err := s.UpdateUser(ctx, id, UserUpdateInput{Active: &active})
	return err
}
