package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-backend/internal/domain"
	"github.com/spec-kit/crm-backend/internal/repository"
	apperrors "github.com/spec-kit/crm-backend/pkg/util"
)

// SupportLineService manages lines and operator membership.
type SupportLineService struct {
	lines   repository.SupportLineRepository
	users   repository.UserRepository
	tickets repository.TicketRepository
	picker  OperatorPicker
}

// SupportLineDependencies bundles repositories.
type SupportLineDependencies struct {
	LineRepo   repository.SupportLineRepository
	UserRepo   repository.UserRepository
	TicketRepo repository.TicketRepository
}

// LineCreateInput describes line creation payload.
type LineCreateInput struct {
	Name         string
	Code         string
	IsActive     bool
	MaxOperators int
	Policy       domain.RoutingPolicy
}

// NewSupportLineService constructs the service.
func NewSupportLineService(deps SupportLineDependencies) *SupportLineService {
	return &SupportLineService{
		lines:   deps.LineRepo,
		users:   deps.UserRepo,
		tickets: deps.TicketRepo,
		picker:  NewLeastLoadedPicker(deps.TicketRepo),
	}
}

// CreateLine creates a support line, rejecting duplicate codes.
func (s *SupportLineService) CreateLine(ctx context.Context, input LineCreateInput) (*domain.SupportLine, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" || strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.NewValidationError("name and code required", nil)
	}
	if _, err := s.lines.GetByCode(ctx, code); err == nil {
		return nil, apperrors.NewDuplicateCode(code)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	line := &domain.SupportLine{
		Name:         strings.TrimSpace(input.Name),
		Code:         code,
		IsActive:     input.IsActive,
		MaxOperators: input.MaxOperators,
		Policy:       input.Policy,
	}
	if err := s.lines.Create(ctx, line); err != nil {
		return nil, apperrors.MapError(err)
	}
	return line, nil
}

// UpdateLine modifies line settings.
func (s *SupportLineService) UpdateLine(ctx context.Context, lineID string, input LineCreateInput) (*domain.SupportLine, error) {
	line, err := s.getLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(input.Code)
	if code != "" && code != line.Code {
		if _, err := s.lines.GetByCode(ctx, code); err == nil {
			return nil, apperrors.NewDuplicateCode(code)
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		line.Code = code
	}
	if strings.TrimSpace(input.Name) != "" {
		line.Name = strings.TrimSpace(input.Name)
	}
	line.IsActive = input.IsActive
	line.MaxOperators = input.MaxOperators
	line.Policy = input.Policy
	if err := s.lines.Update(ctx, line); err != nil {
		return nil, apperrors.MapError(err)
	}
	return line, nil
}

// GetLine fetches a line by id.
func (s *SupportLineService) GetLine(ctx context.Context, lineID string) (*domain.SupportLine, error) {
	return s.getLine(ctx, lineID)
}

// ListLines returns all lines ordered by code.
func (s *SupportLineService) ListLines(ctx context.Context, activeOnly bool) ([]domain.SupportLine, error) {
	lines, err := s.lines.List(ctx, activeOnly)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return lines, nil
}

// AssignOperator puts an operator onto a line, overwriting any previous
// membership. Capacity is re-validated at write time.
func (s *SupportLineService) AssignOperator(ctx context.Context, lineID, userID string) (*domain.User, error) {
	line, err := s.getLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	if !user.Role.IsOperator() {
		return nil, apperrors.NewInvalidRole("user is not an operator", map[string]any{"role": user.Role})
	}
	if line.MaxOperators > 0 {
		count, err := s.users.CountBySupportLine(ctx, line.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		// Skip the capacity check when the user already holds a seat here.
		alreadyMember := user.SupportLineID != nil && *user.SupportLineID == line.ID
		if !alreadyMember && count >= line.MaxOperators {
			return nil, apperrors.NewCapacityExceeded(line.ID, line.MaxOperators)
		}
	}
	if err := s.users.SetSupportLine(ctx, user.ID, &line.ID); err != nil {
		return nil, apperrors.MapError(err)
	}
	user.SupportLineID = &line.ID
	return user, nil
}

// UnassignOperator clears the user's line pointer. Idempotent: repeating
// the call is a no-op.
func (s *SupportLineService) UnassignOperator(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return apperrors.MapError(err)
	}
	if user.SupportLineID == nil {
		return nil
	}
	if err := s.users.SetSupportLine(ctx, user.ID, nil); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// RemoveLine deletes a line that has no operators left.
func (s *SupportLineService) RemoveLine(ctx context.Context, lineID string) error {
	line, err := s.getLine(ctx, lineID)
	if err != nil {
		return err
	}
	count, err := s.users.CountBySupportLine(ctx, line.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if count > 0 {
		return apperrors.NewConflict("line still has operators", map[string]any{
			"line_id": line.ID, "operators": count,
		})
	}
	if err := s.lines.Delete(ctx, line.ID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// PickOperator returns the least-loaded active operator on an active line,
// or ErrNoOperatorAvailable when the line is inactive or empty.
func (s *SupportLineService) PickOperator(ctx context.Context, lineID string) (*domain.User, error) {
	line, err := s.getLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if !line.IsActive {
		return nil, ErrNoOperatorAvailable
	}
	active := true
	operators, err := s.users.List(ctx, repository.UserFilter{
		SupportLineID: &line.ID,
		Active:        &active,
		Limit:         1000,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.picker.Pick(ctx, operators)
}

func (s *SupportLineService) getLine(ctx context.Context, lineID string) (*domain.SupportLine, error) {
	line, err := s.lines.GetByID(ctx, lineID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("support line", map[string]any{"line_id": lineID})
		}
		return nil, apperrors.MapError(err)
	}
	return line, nil
}
