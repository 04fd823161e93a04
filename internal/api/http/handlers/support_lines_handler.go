package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-backend/internal/api/dto"
	"github.com/spec-kit/crm-backend/internal/domain"
	"github.com/spec-kit/crm-backend/internal/service"
	apperrors "github.com/spec-kit/crm-backend/pkg/util"
)

// SupportLinesHandler manages support line administration endpoints.
type SupportLinesHandler struct {
	service *service.SupportLineService
}

// NewSupportLinesHandler constructs handler.
func NewSupportLinesHandler(lineService *service.SupportLineService) *SupportLinesHandler {
	return &SupportLinesHandler{service: lineService}
}

// CreateLine POST /support-lines.
func (h *SupportLinesHandler) CreateLine(c *fiber.Ctx) error {
	var req dto.CreateSupportLineRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	line, err := h.service.CreateLine(c.Context(), lineInput(req))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.SupportLineFromDomain(line)})
}

// UpdateLine PATCH /support-lines/:id.
func (h *SupportLinesHandler) UpdateLine(c *fiber.Ctx) error {
	var req dto.CreateSupportLineRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	line, err := h.service.UpdateLine(c.Context(), c.Params("id"), lineInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SupportLineFromDomain(line)})
}

// GetLine GET /support-lines/:id.
func (h *SupportLinesHandler) GetLine(c *fiber.Ctx) error {
	line, err := h.service.GetLine(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SupportLineFromDomain(line)})
}

// ListLines GET /support-lines.
func (h *SupportLinesHandler) ListLines(c *fiber.Ctx) error {
	lines, err := h.service.ListLines(c.Context(), c.QueryBool("active_only"))
	if err != nil {
		return err
	}
	items := make([]dto.SupportLineResponse, 0, len(lines))
	for i := range lines {
		items = append(items, dto.SupportLineFromDomain(&lines[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// RemoveLine DELETE /support-lines/:id.
func (h *SupportLinesHandler) RemoveLine(c *fiber.Ctx) error {
	if err := h.service.RemoveLine(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AssignOperator POST /support-lines/:id/operators.
func (h *SupportLinesHandler) AssignOperator(c *fiber.Ctx) error {
	var req dto.AssignOperatorRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == "" {
		return apperrors.NewValidationError("user_id required", nil)
	}
	user, err := h.service.AssignOperator(c.Context(), c.Params("id"), req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UserFromDomain(user)})
}

// UnassignOperator DELETE /support-lines/operators/:userId.
func (h *SupportLinesHandler) UnassignOperator(c *fiber.Ctx) error {
	if err := h.service.UnassignOperator(c.Context(), c.Params("userId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func lineInput(req dto.CreateSupportLineRequest) service.LineCreateInput {
	return service.LineCreateInput{
		Name:         req.Name,
		Code:         req.Code,
		IsActive:     req.IsActive,
		MaxOperators: req.MaxOperators,
		Policy: domain.RoutingPolicy{
			AutoAssign: req.AutoAssign,
			RoundRobin: req.RoundRobin,
			Priority:   req.Priority,
		},
	}
}
