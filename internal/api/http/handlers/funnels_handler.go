package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-backend/internal/api/dto"
	"github.com/spec-kit/crm-backend/internal/service"
	apperrors "github.com/spec-kit/crm-backend/pkg/util"
)

// FunnelsHandler manages funnel configuration and statistics endpoints.
type FunnelsHandler struct {
	service *service.FunnelService
}

// NewFunnelsHandler constructs handler.
func NewFunnelsHandler(funnelService *service.FunnelService) *FunnelsHandler {
	return &FunnelsHandler{service: funnelService}
}

// CreateFunnel POST /funnels.
func (h *FunnelsHandler) CreateFunnel(c *fiber.Ctx) error {
	var req dto.CreateFunnelRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	funnel, err := h.service.CreateFunnel(c.Context(), req.Name, req.SortOrder, req.IsActive)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.FunnelFromDomain(funnel, nil)})
}

// UpdateFunnel PATCH /funnels/:id.
func (h *FunnelsHandler) UpdateFunnel(c *fiber.Ctx) error {
	var req dto.CreateFunnelRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	funnel, err := h.service.UpdateFunnel(c.Context(), c.Params("id"), req.Name, req.SortOrder, req.IsActive)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FunnelFromDomain(funnel, nil)})
}

// GetFunnel GET /funnels/:id.
func (h *FunnelsHandler) GetFunnel(c *fiber.Ctx) error {
	funnel, stages, err := h.service.GetFunnel(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FunnelFromDomain(funnel, stages)})
}

// ListFunnels GET /funnels.
func (h *FunnelsHandler) ListFunnels(c *fiber.Ctx) error {
	funnels, err := h.service.ListFunnels(c.Context(), c.QueryBool("active_only"))
	if err != nil {
		return err
	}
	items := make([]dto.FunnelResponse, 0, len(funnels))
	for i := range funnels {
		items = append(items, dto.FunnelFromDomain(&funnels[i], nil))
	}
	return c.JSON(fiber.Map{"data": items})
}

// RemoveFunnel DELETE /funnels/:id.
func (h *FunnelsHandler) RemoveFunnel(c *fiber.Ctx) error {
	if err := h.service.RemoveFunnel(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateStage POST /funnels/:id/stages.
func (h *FunnelsHandler) CreateStage(c *fiber.Ctx) error {
	var req dto.CreateStageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	stage, err := h.service.CreateStage(c.Context(), c.Params("id"), service.StageCreateInput{
		Name:         req.Name,
		SortOrder:    req.SortOrder,
		TicketStatus: req.TicketStatus,
		IsFinal:      req.IsFinal,
		IsActive:     req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.StageFromDomain(stage)})
}

// RemoveStage DELETE /funnels/stages/:stageId.
func (h *FunnelsHandler) RemoveStage(c *fiber.Ctx) error {
	if err := h.service.RemoveStage(c.Context(), c.Params("stageId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Stats GET /funnels/:id/stats.
func (h *FunnelsHandler) Stats(c *fiber.Ctx) error {
	from, to := parseDateRange(c)
	stats, err := h.service.Stats(c.Context(), c.Params("id"), from, to)
	if err != nil {
		return err
	}
	resp := dto.FunnelStatsResponse{
		FunnelID:       stats.FunnelID,
		Total:          stats.Total,
		ConversionRate: stats.ConversionRate,
	}
	for i := range stats.Stages {
		resp.Stages = append(resp.Stages, dto.StageStatEntry{
			Stage:   dto.StageFromDomain(&stats.Stages[i].Stage),
			Count:   stats.Stages[i].Count,
			Percent: stats.Stages[i].Percent,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// parseDateRange reads from/to query params, defaulting to the last 30 days.
func parseDateRange(c *fiber.Ctx) (time.Time, time.Time) {
	to := time.Now()
	from := to.AddDate(0, 0, -30)
	if v := c.Query("from"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			from = ts
		}
	}
	if v := c.Query("to"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			to = ts
		}
	}
	return from, to
}
