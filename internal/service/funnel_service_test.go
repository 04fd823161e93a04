package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/crm-backend/internal/domain"
	apperrors "github.com/spec-kit/crm-backend/pkg/util"
)

func TestCreateStageRejectsDuplicateOrder(t *testing.T) {
	h := newServiceHarness()
	svc := NewFunnelService(h.funnels, h.tickets)
	funnel, err := svc.CreateFunnel(context.Background(), "Продажи", 1, true)
	require.NoError(t, err)

	_, err = svc.CreateStage(context.Background(), funnel.ID, StageCreateInput{
		Name: "Новый лид", SortOrder: 1, IsActive: true,
	})
	require.NoError(t, err)

	_, err = svc.CreateStage(context.Background(), funnel.ID, StageCreateInput{
		Name: "Дубль", SortOrder: 1, IsActive: true,
	})
	assert.Equal(t, "CONFLICT", apperrors.CodeOf(err))
}

func TestCreateStageRejectsOrderHeldByInactiveStage(t *testing.T) {
	h := newServiceHarness()
	svc := NewFunnelService(h.funnels, h.tickets)
	funnel, err := svc.CreateFunnel(context.Background(), "Продажи", 1, true)
	require.NoError(t, err)

	_, err = svc.CreateStage(context.Background(), funnel.ID, StageCreateInput{
		Name: "Архивный", SortOrder: 2, IsActive: false,
	})
	require.NoError(t, err)

	_, err = svc.CreateStage(context.Background(), funnel.ID, StageCreateInput{
		Name: "Новый", SortOrder: 2, IsActive: true,
	})
	assert.Equal(t, "CONFLICT", apperrors.CodeOf(err))

	stages, err := h.funnels.ListStages(context.Background(), funnel.ID)
	require.NoError(t, err)
	assert.Len(t, stages, 1)
}

func TestUpdateFunnelRenamesAndToggles(t *testing.T) {
	h := newServiceHarness()
	svc := NewFunnelService(h.funnels, h.tickets)
	funnel, err := svc.CreateFunnel(context.Background(), "Продажи", 1, true)
	require.NoError(t, err)

	updated, err := svc.UpdateFunnel(context.Background(), funnel.ID, "Продажи B2B", 2, false)
	require.NoError(t, err)
	assert.Equal(t, "Продажи B2B", updated.Name)
	assert.Equal(t, 2, updated.SortOrder)
	assert.False(t, updated.IsActive)

	_, err = svc.UpdateFunnel(context.Background(), funnel.ID, "  ", 2, false)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.CodeOf(err))

	_, err = svc.UpdateFunnel(context.Background(), "missing", "X", 1, true)
	assert.Equal(t, "NOT_FOUND", apperrors.CodeOf(err))
}

func TestNextStageWalksTheOrder(t *testing.T) {
	h := newServiceHarness()
	svc := NewFunnelService(h.funnels, h.tickets)
	funnel, err := svc.CreateFunnel(context.Background(), "Продажи", 1, true)
	require.NoError(t, err)
	first, err := svc.CreateStage(context.Background(), funnel.ID, StageCreateInput{
		Name: "Лид", SortOrder: 1, IsActive: true,
	})
	require.NoError(t, err)
	second, err := svc.CreateStage(context.Background(), funnel.ID, StageCreateInput{
		Name: "Переговоры", SortOrder: 2, IsActive: true,
	})
	require.NoError(t, err)

	next, err := svc.NextStage(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, next.ID)

	_, err = svc.NextStage(context.Background(), second.ID)
	assert.ErrorIs(t, err, ErrNoNextStage)
}

func TestRemoveFunnelGuardedByTicketReferences(t *testing.T) {
	h := newServiceHarness()
	svc := NewFunnelService(h.funnels, h.tickets)
	funnel, err := svc.CreateFunnel(context.Background(), "Продажи", 1, true)
	require.NoError(t, err)
	stage, err := svc.CreateStage(context.Background(), funnel.ID, StageCreateInput{
		Name: "Лид", SortOrder: 1, IsActive: true,
	})
	require.NoError(t, err)
	require.NoError(t, h.tickets.Create(context.Background(), &domain.Ticket{
		Title: "Лид-тикет", ClientID: "client-x", CreatedByID: "user-x",
		Status: domain.TicketStatusNew, FunnelStageID: &stage.ID,
	}))

	err = svc.RemoveFunnel(context.Background(), funnel.ID)
	assert.Equal(t, "CONFLICT", apperrors.CodeOf(err))
	err = svc.RemoveStage(context.Background(), stage.ID)
	assert.Equal(t, "CONFLICT", apperrors.CodeOf(err))
}

func TestFunnelStats(t *testing.T) {
	h := newServiceHarness()
	svc := NewFunnelService(h.funnels, h.tickets)
	funnel, err := svc.CreateFunnel(context.Background(), "Продажи", 1, true)
	require.NoError(t, err)
	lead, err := svc.CreateStage(context.Background(), funnel.ID, StageCreateInput{
		Name: "Лид", SortOrder: 1, IsActive: true,
	})
	require.NoError(t, err)
	won, err := svc.CreateStage(context.Background(), funnel.ID, StageCreateInput{
		Name: "Сделка", SortOrder: 2, IsFinal: true, IsActive: true,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.tickets.Create(context.Background(), &domain.Ticket{
			Title: "lead", ClientID: "client-x", CreatedByID: "user-x",
			Status: domain.TicketStatusNew, FunnelStageID: &lead.ID,
		}))
	}
	closedAt := time.Now()
	require.NoError(t, h.tickets.Create(context.Background(), &domain.Ticket{
		Title: "won", ClientID: "client-x", CreatedByID: "user-x",
		Status: domain.TicketStatusClosed, ClosedAt: &closedAt, FunnelStageID: &won.ID,
	}))

	stats, err := svc.Stats(context.Background(), funnel.ID, time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	require.Len(t, stats.Stages, 2)
	assert.Equal(t, 3, stats.Stages[0].Count)
	assert.InDelta(t, 75.0, stats.Stages[0].Percent, 0.001)
	assert.Equal(t, 1, stats.Stages[1].Count)
	assert.InDelta(t, 0.25, stats.ConversionRate, 0.001)
}

func TestFunnelStatsEmptyFunnel(t *testing.T) {
	h := newServiceHarness()
	svc := NewFunnelService(h.funnels, h.tickets)
	funnel, err := svc.CreateFunnel(context.Background(), "Пустая", 1, true)
	require.NoError(t, err)
	_, err = svc.CreateStage(context.Background(), funnel.ID, StageCreateInput{
		Name: "Лид", SortOrder: 1, IsActive: true,
	})
	require.NoError(t, err)

	stats, err := svc.Stats(context.Background(), funnel.ID, time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.ConversionRate)
	require.Len(t, stats.Stages, 1)
	assert.Zero(t, stats.Stages[0].Percent)
}
