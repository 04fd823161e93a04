package handlers

import (
	"go.uber.org/zap"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-backend/internal/api/dto"
	"github.com/spec-kit/crm-backend/internal/domain"
	"github.com/spec-kit/crm-backend/internal/service"
	apperrors "github.com/spec-kit/crm-backend/pkg/util"
)

// WebhooksHandler receives inbound messages from channel integrations.
// Responses stay 2xx on internal failures so partners do not retry-storm;
// the failure is logged and the message acknowledged as not accepted.
type WebhooksHandler struct {
	intake *service.IntakeService
	logger *zap.Logger
}

// NewWebhooksHandler constructs handler.
func NewWebhooksHandler(intake *service.IntakeService, logger *zap.Logger) *WebhooksHandler {
	return &WebhooksHandler{intake: intake, logger: logger}
}

// Inbound POST /webhooks/:channel.
func (h *WebhooksHandler) Inbound(c *fiber.Ctx) error {
	channel := domain.Channel(c.Params("channel"))
	switch channel {
	case domain.ChannelWhatsApp, domain.ChannelTelegram, domain.ChannelInstagram, domain.ChannelWeb:
	default:
		return apperrors.NewValidationError("unknown channel", map[string]any{"channel": string(channel)})
	}

	var req dto.InboundMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ExternalID == "" {
		return apperrors.NewValidationError("external_id required", nil)
	}

	ticket, err := h.intake.HandleInbound(c.Context(), channel, service.InboundMessage{
		ExternalID:  req.ExternalID,
		DisplayName: req.DisplayName,
		Phone:       req.Phone,
		Text:        req.Text,
	})
	if err != nil {
		h.logger.Error("inbound message rejected",
			zap.String("channel", string(channel)),
			zap.String("external_id", req.ExternalID),
			zap.Error(err))
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": dto.InboundMessageResponse{Accepted: false}})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.InboundMessageResponse{
		TicketID:    ticket.ID,
		ExternalKey: ticket.ExternalKey,
		Accepted:    true,
	}})
}
