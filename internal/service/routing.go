package service

import (
	"context"
	"errors"

	"github.com/spec-kit/crm-backend/internal/domain"
	"github.com/spec-kit/crm-backend/internal/repository"
)

// ErrNoOperatorAvailable signals that routing found nobody to assign.
// Callers treat it as "leave unassigned", never as a request failure.
var ErrNoOperatorAvailable = errors.New("no operator available")

// OperatorPicker selects one operator from a candidate pool. Auto-assignment
// and transfer-to-role intentionally use different implementations; the
// interface makes that a stated policy choice per call site.
type OperatorPicker interface {
	Pick(ctx context.Context, candidates []domain.User) (*domain.User, error)
}

// LeastLoadedPicker picks the active operator with the fewest non-closed
// tickets. Ties go to the earliest candidate, which repositories return in
// first-registered order. The load count is recomputed on every call; there
// is no persisted cursor.
type LeastLoadedPicker struct {
	tickets repository.TicketRepository
}

// NewLeastLoadedPicker builds the picker.
func NewLeastLoadedPicker(tickets repository.TicketRepository) *LeastLoadedPicker {
	return &LeastLoadedPicker{tickets: tickets}
}

func (p *LeastLoadedPicker) Pick(ctx context.Context, candidates []domain.User) (*domain.User, error) {
	var best *domain.User
	bestLoad := -1
	for i := range candidates {
		candidate := &candidates[i]
		if !candidate.Active {
			continue
		}
		load, err := p.tickets.CountActiveByAssignee(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if best == nil || load < bestLoad {
			best = candidate
			bestLoad = load
		}
	}
	if best == nil {
		return nil, ErrNoOperatorAvailable
	}
	return best, nil
}

// FirstAvailablePicker picks the first active candidate. Used by
// transfer-to-role, which the source system never load-balanced.
type FirstAvailablePicker struct{}

// NewFirstAvailablePicker builds the picker.
func NewFirstAvailablePicker() *FirstAvailablePicker {
	return &FirstAvailablePicker{}
}

func (p *FirstAvailablePicker) Pick(_ context.Context, candidates []domain.User) (*domain.User, error) {
	for i := range candidates {
		if candidates[i].Active {
			return &candidates[i], nil
		}
	}
	return nil, ErrNoOperatorAvailable
}
