package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-backend/internal/domain"
	"github.com/spec-kit/crm-backend/internal/repository"
	apperrors "github.com/spec-kit/crm-backend/pkg/util"
)

// ErrNoNextStage signals the ticket already sits in the last stage of its
// funnel. Callers decide whether that is an error for the user.
var ErrNoNextStage = errors.New("no next stage")

// FunnelService manages funnels, their stages and funnel statistics.
type FunnelService struct {
	funnels repository.FunnelRepository
	tickets repository.TicketRepository
}

// StageCreateInput describes stage creation payload.
type StageCreateInput struct {
	Name         string
	SortOrder    int
	TicketStatus *domain.TicketStatus
	IsFinal      bool
	IsActive     bool
}

// StageStat is one row of funnel statistics.
type StageStat struct {
	Stage   domain.FunnelStage
	Count   int
	Percent float64
}

// FunnelStats aggregates ticket distribution over a funnel.
type FunnelStats struct {
	FunnelID       string
	Total          int
	Stages         []StageStat
	ConversionRate float64
}

// NewFunnelService constructs the service.
func NewFunnelService(funnels repository.FunnelRepository, tickets repository.TicketRepository) *FunnelService {
	return &FunnelService{funnels: funnels, tickets: tickets}
}

// CreateFunnel creates an empty funnel.
func (s *FunnelService) CreateFunnel(ctx context.Context, name string, sortOrder int, isActive bool) (*domain.Funnel, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewValidationError("name required", nil)
	}
	funnel := &domain.Funnel{Name: strings.TrimSpace(name), SortOrder: sortOrder, IsActive: isActive}
	if err := s.funnels.Create(ctx, funnel); err != nil {
		return nil, apperrors.MapError(err)
	}
	return funnel, nil
}

// UpdateFunnel changes funnel name, display order or active flag.
func (s *FunnelService) UpdateFunnel(ctx context.Context, funnelID, name string, sortOrder int, isActive bool) (*domain.Funnel, error) {
	funnel, err := s.getFunnel(ctx, funnelID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewValidationError("name required", nil)
	}
	funnel.Name = strings.TrimSpace(name)
	funnel.SortOrder = sortOrder
	funnel.IsActive = isActive
	if err := s.funnels.Update(ctx, funnel); err != nil {
		return nil, apperrors.MapError(err)
	}
	return funnel, nil
}

// GetFunnel fetches a funnel with its ordered stages.
func (s *FunnelService) GetFunnel(ctx context.Context, funnelID string) (*domain.Funnel, []domain.FunnelStage, error) {
	funnel, err := s.getFunnel(ctx, funnelID)
	if err != nil {
		return nil, nil, err
	}
	stages, err := s.funnels.ListStages(ctx, funnel.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return funnel, stages, nil
}

// ListFunnels returns funnels in display order.
func (s *FunnelService) ListFunnels(ctx context.Context, activeOnly bool) ([]domain.Funnel, error) {
	funnels, err := s.funnels.List(ctx, activeOnly)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return funnels, nil
}

// CreateStage adds a stage to an existing funnel. Duplicate sort orders
// within one funnel are rejected; order gaps are left alone.
func (s *FunnelService) CreateStage(ctx context.Context, funnelID string, input StageCreateInput) (*domain.FunnelStage, error) {
	funnel, err := s.getFunnel(ctx, funnelID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.NewValidationError("name required", nil)
	}
	taken, err := s.funnels.StageOrderTaken(ctx, funnel.ID, input.SortOrder)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if taken {
		return nil, apperrors.NewConflict("stage order already used", map[string]any{
			"funnel_id": funnel.ID, "sort_order": input.SortOrder,
		})
	}

	stage := &domain.FunnelStage{
		FunnelID:     funnel.ID,
		Name:         strings.TrimSpace(input.Name),
		SortOrder:    input.SortOrder,
		TicketStatus: input.TicketStatus,
		IsFinal:      input.IsFinal,
		IsActive:     input.IsActive,
	}
	if err := s.funnels.CreateStage(ctx, stage); err != nil {
		return nil, apperrors.MapError(err)
	}
	return stage, nil
}

// RemoveFunnel deletes a funnel and its stages unless any ticket still
// references one of the stages.
func (s *FunnelService) RemoveFunnel(ctx context.Context, funnelID string) error {
	funnel, err := s.getFunnel(ctx, funnelID)
	if err != nil {
		return err
	}
	count, err := s.tickets.CountByFunnel(ctx, funnel.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if count > 0 {
		return apperrors.NewConflict("funnel is referenced by tickets", map[string]any{
			"funnel_id": funnel.ID, "tickets": count,
		})
	}
	if err := s.funnels.Delete(ctx, funnel.ID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// RemoveStage deletes a stage unless any ticket references it.
func (s *FunnelService) RemoveStage(ctx context.Context, stageID string) error {
	stage, err := s.getStage(ctx, stageID)
	if err != nil {
		return err
	}
	count, err := s.tickets.CountByStage(ctx, stage.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if count > 0 {
		return apperrors.NewConflict("stage is referenced by tickets", map[string]any{
			"stage_id": stage.ID, "tickets": count,
		})
	}
	if err := s.funnels.DeleteStage(ctx, stage.ID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// NextStage resolves the active stage following the given one within the
// same funnel, or ErrNoNextStage at the end of the pipeline.
func (s *FunnelService) NextStage(ctx context.Context, stageID string) (*domain.FunnelStage, error) {
	current, err := s.getStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	next, err := s.funnels.GetStageByOrder(ctx, current.FunnelID, current.SortOrder+1)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoNextStage
		}
		return nil, apperrors.MapError(err)
	}
	return next, nil
}

// Stats computes per-stage ticket counts, percentages and the conversion
// rate (share of tickets that reached a final stage). An empty range
// yields zeroes, not an error.
func (s *FunnelService) Stats(ctx context.Context, funnelID string, from, to time.Time) (*FunnelStats, error) {
	funnel, err := s.getFunnel(ctx, funnelID)
	if err != nil {
		return nil, err
	}
	stages, err := s.funnels.ListStages(ctx, funnel.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	counts, err := s.tickets.StageCounts(ctx, funnel.ID, from, to)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	byStage := make(map[string]int, len(counts))
	total := 0
	for _, sc := range counts {
		byStage[sc.StageID] = sc.Count
		total += sc.Count
	}

	stats := &FunnelStats{FunnelID: funnel.ID, Total: total}
	finalCount := 0
	for _, stage := range stages {
		count := byStage[stage.ID]
		percent := 0.0
		if total > 0 {
			percent = float64(count) / float64(total) * 100
		}
		if stage.IsFinal {
			finalCount += count
		}
		stats.Stages = append(stats.Stages, StageStat{Stage: stage, Count: count, Percent: percent})
	}
	if total > 0 {
		stats.ConversionRate = float64(finalCount) / float64(total)
	}
	return stats, nil
}

func (s *FunnelService) getFunnel(ctx context.Context, funnelID string) (*domain.Funnel, error) {
	funnel, err := s.funnels.GetByID(ctx, funnelID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("funnel", map[string]any{"funnel_id": funnelID})
		}
		return nil, apperrors.MapError(err)
	}
	return funnel, nil
}

func (s *FunnelService) getStage(ctx context.Context, stageID string) (*domain.FunnelStage, error) {
	stage, err := s.funnels.GetStage(ctx, stageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("funnel stage", map[string]any{"stage_id": stageID})
		}
		return nil, apperrors.MapError(err)
	}
	return stage, nil
}
