package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-backend/internal/domain"
	"github.com/spec-kit/crm-backend/internal/repository"
	apperrors "github.com/spec-kit/crm-backend/pkg/util"
)

// InboundMessage is what a channel adapter delivers for ticket intake.
type InboundMessage struct {
	ExternalID  string
	DisplayName string
	Phone       *string
	Text        string
}

// IntakeService turns inbound channel messages into tickets. It always acts
// as the seeded system user and never supplies an assignee, so every intake
// goes through the auto-assignment path.
type IntakeService struct {
	clients repository.ClientRepository
	users   repository.UserRepository
	tickets *TicketService
	logger  *zap.Logger

	systemEmail string
	mu          sync.Mutex
	systemUser  *domain.User
}

// NewIntakeService constructs the service.
func NewIntakeService(clients repository.ClientRepository, users repository.UserRepository, tickets *TicketService, systemEmail string, logger *zap.Logger) *IntakeService {
	return &IntakeService{
		clients:     clients,
		users:       users,
		tickets:     tickets,
		logger:      logger,
		systemEmail: systemEmail,
	}
}

// HandleInbound creates a ticket for an inbound message. Partner-side
// failures are logged by the caller and never surfaced to the customer.
func (s *IntakeService) HandleInbound(ctx context.Context, channel domain.Channel, msg InboundMessage) (*domain.Ticket, error) {
	if msg.ExternalID == "" {
		return nil, apperrors.NewValidationError("external_id required", nil)
	}
	client, err := s.findOrCreateClient(ctx, channel, msg)
	if err != nil {
		return nil, err
	}
	actor, err := s.resolveSystemUser(ctx)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(msg.Text)
	if title == "" {
		title = "Новое обращение"
	}
	if runes := []rune(title); len(runes) > 80 {
		title = string(runes[:80])
	}

	ticket, err := s.tickets.CreateTicket(ctx, actor, TicketCreateInput{
		Title:       title,
		Description: strings.TrimSpace(msg.Text),
		ClientID:    client.ID,
		Channel:     channel,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("inbound message converted to ticket",
		zap.String("channel", string(channel)),
		zap.String("client_id", client.ID),
		zap.String("ticket_id", ticket.ID),
	)
	return ticket, nil
}

// findOrCreateClient resolves the client directory contract:
// one client per (channel, external id), display name refreshed on sight.
func (s *IntakeService) findOrCreateClient(ctx context.Context, channel domain.Channel, msg InboundMessage) (*domain.Client, error) {
	client, err := s.clients.GetByExternalID(ctx, channel, msg.ExternalID)
	if err == nil {
		if msg.DisplayName != "" && msg.DisplayName != client.DisplayName {
			client.DisplayName = msg.DisplayName
			_ = s.clients.Update(ctx, client)
		}
		return client, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	client = &domain.Client{
		Channel:     channel,
		ExternalID:  msg.ExternalID,
		DisplayName: msg.DisplayName,
		Phone:       msg.Phone,
	}
	if err := s.clients.Create(ctx, client); err != nil {
		return nil, apperrors.MapError(err)
	}
	return client, nil
}

func (s *IntakeService) resolveSystemUser(ctx context.Context) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.systemUser != nil {
		return s.systemUser, nil
	}
	user, err := s.users.GetByEmail(ctx, s.systemEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("system user", map[string]any{"email": s.systemEmail})
		}
		return nil, apperrors.MapError(err)
	}
	s.systemUser = user
	return user, nil
}
