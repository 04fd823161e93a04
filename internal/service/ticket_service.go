package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-backend/internal/domain"
	"github.com/spec-kit/crm-backend/internal/events"
	"github.com/spec-kit/crm-backend/internal/repository"
	apperrors "github.com/spec-kit/crm-backend/pkg/util"
)

// TicketService owns ticket state: creation with classification and
// auto-assignment, status transitions, transfers, funnel progression and
// the audit trail these mutations append.
type TicketService struct {
	tickets    repository.TicketRepository
	clients    repository.ClientRepository
	users      repository.UserRepository
	lines      repository.SupportLineRepository
	funnels    repository.FunnelRepository
	comments   repository.CommentRepository
	transfers  repository.TransferRepository
	dispatcher events.Dispatcher

	autoAssignPicker OperatorPicker
	rolePicker       OperatorPicker
}

// TicketDependencies bundles repositories for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	ClientRepo   repository.ClientRepository
	UserRepo     repository.UserRepository
	LineRepo     repository.SupportLineRepository
	FunnelRepo   repository.FunnelRepository
	CommentRepo  repository.CommentRepository
	TransferRepo repository.TransferRepository
	Dispatcher   events.Dispatcher
}

// TicketCreateInput describes ticket creation payload. Category and
// Priority are optional; absent values are derived from the text.
type TicketCreateInput struct {
	Title        string
	Description  string
	ClientID     string
	Channel      domain.Channel
	Category     *domain.TicketCategory
	Priority     *int
	AssignedToID *string
	DueDate      *time.Time
}

// TicketUpdateInput is the narrow mutable field set. Reassignment is
// deliberately excluded: it must go through Transfer so the history
// trail cannot be bypassed.
type TicketUpdateInput struct {
	Title       *string
	Description *string
	Category    *domain.TicketCategory
	Priority    *int
	DueDate     *time.Time
}

// TransferInput selects the transfer target: exactly one of ToUserID and
// ToRoleName must be set.
type TransferInput struct {
	ToUserID   *string
	ToRoleName *domain.RoleName
	Reason     string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:          deps.TicketRepo,
		clients:          deps.ClientRepo,
		users:            deps.UserRepo,
		lines:            deps.LineRepo,
		funnels:          deps.FunnelRepo,
		comments:         deps.CommentRepo,
		transfers:        deps.TransferRepo,
		dispatcher:       deps.Dispatcher,
		autoAssignPicker: NewLeastLoadedPicker(deps.TicketRepo),
		rolePicker:       NewFirstAvailablePicker(),
	}
}

// CreateTicket creates a ticket, deriving category and priority when absent
// and auto-assigning best-effort when no assignee is given.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	if strings.TrimSpace(input.Title) == "" || input.ClientID == "" {
		return nil, apperrors.NewValidationError("title and client_id required", nil)
	}
	client, err := s.clients.GetByID(ctx, input.ClientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("client", map[string]any{"client_id": input.ClientID})
		}
		return nil, apperrors.MapError(err)
	}

	category := input.Category
	if category == nil {
		derived := ClassifyTicket(input.Title, input.Description)
		category = &derived
	}
	priority := 0
	if input.Priority != nil {
		priority = clampPriority(*input.Priority)
	} else {
		priority = PrioritizeTicket(*category, input.Title, input.Description)
	}

	channel := input.Channel
	if channel == "" {
		channel = client.Channel
	}

	ticket := &domain.Ticket{
		ExternalKey:  generateTicketKey(),
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		ClientID:     client.ID,
		CreatedByID:  actor.ID,
		AssignedToID: input.AssignedToID,
		Status:       domain.TicketStatusNew,
		Channel:      channel,
		Category:     category,
		Priority:     priority,
		DueDate:      input.DueDate,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketCreatedPayload{
			ClientID: ticket.ClientID,
			Channel:  ticket.Channel,
			Category: ticket.Category,
			Priority: ticket.Priority,
			Title:    ticket.Title,
		},
	})

	// Routing is best-effort and must never block creation.
	if ticket.AssignedToID == nil {
		_ = s.autoAssign(ctx, actor, ticket)
	}
	return ticket, nil
}

// autoAssign routes a fresh ticket onto the creator's line or, failing
// that, the first active line by code. Every failure degrades to leaving
// the ticket unassigned.
func (s *TicketService) autoAssign(ctx context.Context, actor *domain.User, ticket *domain.Ticket) error {
	line, err := s.resolveTargetLine(ctx, actor)
	if err != nil || line == nil {
		return err
	}
	if !line.IsActive || !line.Policy.AutoAssign {
		return nil
	}

	active := true
	operators, err := s.users.List(ctx, repository.UserFilter{
		SupportLineID: &line.ID,
		Active:        &active,
		Limit:         1000,
	})
	if err != nil {
		return err
	}
	operator, err := s.autoAssignPicker.Pick(ctx, operators)
	if err != nil {
		if errors.Is(err, ErrNoOperatorAvailable) {
			return nil
		}
		return err
	}

	ticket.AssignedToID = &operator.ID
	ticket.SupportLineID = &line.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return err
	}
	s.appendInternalComment(ctx, ticket.ID, nil,
		fmt.Sprintf("Тикет автоматически назначен оператору %s (линия %s)", operator.Name, line.Name))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketAssignedPayload{
			AssignedToID:  operator.ID,
			SupportLineID: ticket.SupportLineID,
		},
	})
	return nil
}

func (s *TicketService) resolveTargetLine(ctx context.Context, actor *domain.User) (*domain.SupportLine, error) {
	if actor != nil && actor.SupportLineID != nil {
		line, err := s.lines.GetByID(ctx, *actor.SupportLineID)
		if err == nil {
			return line, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}
	line, err := s.lines.FirstActive(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return line, nil
}

// GetTicket fetches a ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListTickets returns tickets matching the filter.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// UpdateTicket applies the narrow mutable field set.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.User, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canMutateTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("not creator, assignee or admin")
	}
	if input.Title != nil {
		ticket.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		ticket.Description = strings.TrimSpace(*input.Description)
	}
	if input.Category != nil {
		ticket.Category = input.Category
	}
	if input.Priority != nil {
		ticket.Priority = clampPriority(*input.Priority)
	}
	if input.DueDate != nil {
		ticket.DueDate = input.DueDate
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// UpdateStatus transitions the ticket status, maintaining the closed-at
// invariant and appending an internal audit comment.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canMutateTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("not creator, assignee or admin")
	}
	if !isValidStatus(newStatus) {
		return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": newStatus})
	}

	oldStatus := ticket.Status
	if err := s.applyStatus(ctx, ticket, newStatus); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.appendInternalComment(ctx, ticket.ID, &actor.ID,
		fmt.Sprintf("Статус изменён: %s → %s", oldStatus.StatusLabel(), newStatus.StatusLabel()))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  events.TicketStatusChangedPayload{OldStatus: oldStatus, NewStatus: newStatus},
	})
	return ticket, nil
}

// applyStatus mutates the in-memory ticket for a status change without
// persisting. Entering closed sets ClosedAt once; leaving closed clears it
// and, when the ticket sits in a final funnel stage, clears the stage
// pointer so a reopened ticket is not stuck in a terminal stage.
func (s *TicketService) applyStatus(ctx context.Context, ticket *domain.Ticket, newStatus domain.TicketStatus) error {
	leavingClosed := ticket.Status == domain.TicketStatusClosed && newStatus != domain.TicketStatusClosed

	if newStatus == domain.TicketStatusClosed {
		if ticket.ClosedAt == nil {
			now := time.Now()
			ticket.ClosedAt = &now
		}
	} else {
		ticket.ClosedAt = nil
	}
	ticket.Status = newStatus

	if leavingClosed && ticket.FunnelStageID != nil {
		stage, err := s.funnels.GetStage(ctx, *ticket.FunnelStageID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				ticket.FunnelStageID = nil
				return nil
			}
			return err
		}
		if stage.IsFinal {
			ticket.FunnelStageID = nil
		}
	}
	return nil
}

// Transfer reassigns the ticket to an explicit user or the first operator
// holding a role, appending one history row and one internal comment.
// The support line pointer is left untouched.
func (s *TicketService) Transfer(ctx context.Context, actor *domain.User, ticketID string, input TransferInput) (*domain.Ticket, error) {
	if (input.ToUserID == nil) == (input.ToRoleName == nil) {
		return nil, apperrors.NewValidationError("exactly one of to_user_id and to_role_name required", nil)
	}
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canMutateTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("not creator, assignee or admin")
	}

	target, err := s.resolveTransferTarget(ctx, input)
	if err != nil {
		return nil, err
	}

	ticket.AssignedToID = &target.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	actorID := actor.ID
	transfer := &domain.TransferHistory{
		TicketID:   ticket.ID,
		FromUserID: &actorID,
		ToUserID:   target.ID,
		Reason:     input.Reason,
	}
	if err := s.transfers.Create(ctx, transfer); err != nil {
		return nil, apperrors.MapError(err)
	}

	body := fmt.Sprintf("Тикет передан оператору %s", target.Name)
	if input.Reason != "" {
		body += fmt.Sprintf(". Причина: %s", input.Reason)
	}
	s.appendInternalComment(ctx, ticket.ID, &actorID, body)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketTransferred,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketTransferredPayload{
			FromUserID: &actorID,
			ToUserID:   target.ID,
			Reason:     input.Reason,
		},
	})
	return ticket, nil
}

func (s *TicketService) resolveTransferTarget(ctx context.Context, input TransferInput) (*domain.User, error) {
	if input.ToUserID != nil {
		target, err := s.users.GetByID(ctx, *input.ToUserID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("user", map[string]any{"user_id": *input.ToUserID})
			}
			return nil, apperrors.MapError(err)
		}
		return target, nil
	}

	role := *input.ToRoleName
	if !role.IsKnown() {
		return nil, apperrors.NewInvalidRole("unknown role", map[string]any{"role": role})
	}
	candidates, err := s.users.List(ctx, repository.UserFilter{Role: &role, Limit: 1000})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	target, err := s.rolePicker.Pick(ctx, candidates)
	if err != nil {
		if errors.Is(err, ErrNoOperatorAvailable) {
			return nil, apperrors.NewNotFound("operator with role", map[string]any{"role": role})
		}
		return nil, apperrors.MapError(err)
	}
	return target, nil
}

// MoveToNextStage advances the ticket to the next active stage of its
// current funnel.
func (s *TicketService) MoveToNextStage(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canMutateTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("not creator, assignee or admin")
	}
	if ticket.FunnelStageID == nil {
		return nil, apperrors.NewValidationError("ticket is not in a funnel", nil)
	}
	current, err := s.funnels.GetStage(ctx, *ticket.FunnelStageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("funnel stage", map[string]any{"stage_id": *ticket.FunnelStageID})
		}
		return nil, apperrors.MapError(err)
	}
	next, err := s.funnels.GetStageByOrder(ctx, current.FunnelID, current.SortOrder+1)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewConflict("already at the last stage", map[string]any{"stage_id": current.ID})
		}
		return nil, apperrors.MapError(err)
	}
	return s.enterStage(ctx, actor, ticket, next)
}

// MoveToStage places the ticket into an explicit active stage.
func (s *TicketService) MoveToStage(ctx context.Context, actor *domain.User, ticketID, stageID string) (*domain.Ticket, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canMutateTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("not creator, assignee or admin")
	}
	stage, err := s.funnels.GetStage(ctx, stageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("funnel stage", map[string]any{"stage_id": stageID})
		}
		return nil, apperrors.MapError(err)
	}
	if !stage.IsActive {
		return nil, apperrors.NewValidationError("stage is not active", map[string]any{"stage_id": stageID})
	}
	return s.enterStage(ctx, actor, ticket, stage)
}

// enterStage applies stage-entry effects: a final stage always closes the
// ticket; otherwise a stage-supplied status is applied through the same
// closed-at invariant path as an explicit status change.
func (s *TicketService) enterStage(ctx context.Context, actor *domain.User, ticket *domain.Ticket, stage *domain.FunnelStage) (*domain.Ticket, error) {
	oldStageID := ticket.FunnelStageID
	ticket.FunnelStageID = &stage.ID

	if stage.IsFinal {
		if err := s.applyStatus(ctx, ticket, domain.TicketStatusClosed); err != nil {
			return nil, apperrors.MapError(err)
		}
	} else if stage.TicketStatus != nil {
		if err := s.applyStatus(ctx, ticket, *stage.TicketStatus); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.appendInternalComment(ctx, ticket.ID, &actor.ID,
		fmt.Sprintf("Этап воронки: %s", stage.Name))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStageChanged,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketStageChangedPayload{
			OldStageID: oldStageID,
			NewStageID: stage.ID,
			IsFinal:    stage.IsFinal,
		},
	})
	return ticket, nil
}

// MarkOverdue flags a due ticket as overdue. Called by the sweep worker,
// not exposed over HTTP.
func (s *TicketService) MarkOverdue(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusNew && ticket.Status != domain.TicketStatusInProgress {
		return ticket, nil
	}
	if ticket.DueDate == nil || ticket.DueDate.After(time.Now()) {
		return ticket, nil
	}
	oldStatus := ticket.Status
	if err := s.applyStatus(ctx, ticket, domain.TicketStatusOverdue); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.appendInternalComment(ctx, ticket.ID, nil,
		fmt.Sprintf("Статус изменён: %s → %s", oldStatus.StatusLabel(), domain.TicketStatusOverdue.StatusLabel()))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketOverdue,
		TicketID: ticket.ID,
		Payload:  events.TicketStatusChangedPayload{OldStatus: oldStatus, NewStatus: domain.TicketStatusOverdue},
	})
	return ticket, nil
}

// AddComment appends a human-authored comment.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.User, ticketID, body string, isInternal bool) (*domain.Comment, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewValidationError("body required", nil)
	}
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	comment := &domain.Comment{
		TicketID:   ticketID,
		AuthorID:   &actor.ID,
		Body:       strings.TrimSpace(body),
		IsInternal: isInternal,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	return comment, nil
}

// RemoveComment deletes a comment via the explicit remove API.
func (s *TicketService) RemoveComment(ctx context.Context, actor *domain.User, commentID string) error {
	if actor == nil || actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin required")
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("comment", map[string]any{"comment_id": commentID})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// ListComments returns the ticket's comment thread in creation order.
func (s *TicketService) ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	comments, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// ListTransfers returns the ticket's transfer trail in creation order.
func (s *TicketService) ListTransfers(ctx context.Context, ticketID string) ([]domain.TransferHistory, error) {
	transfers, err := s.transfers.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return transfers, nil
}

func canMutateTicket(actor *domain.User, ticket *domain.Ticket) bool {
	if actor == nil {
		return false
	}
	if actor.Role == domain.RoleAdmin {
		return true
	}
	if ticket.CreatedByID == actor.ID {
		return true
	}
	return ticket.AssignedToID != nil && *ticket.AssignedToID == actor.ID
}

func isValidStatus(status domain.TicketStatus) bool {
	switch status {
	case domain.TicketStatusNew, domain.TicketStatusInProgress, domain.TicketStatusClosed, domain.TicketStatusOverdue:
		return true
	}
	return false
}

func clampPriority(priority int) int {
	if priority < 0 {
		return 0
	}
	if priority > 5 {
		return 5
	}
	return priority
}

func generateTicketKey() string {
	return "CRM-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *TicketService) appendInternalComment(ctx context.Context, ticketID string, authorID *string, body string) {
	comment := &domain.Comment{
		TicketID:   ticketID,
		AuthorID:   authorID,
		Body:       body,
		IsInternal: true,
	}
	_ = s.comments.Create(ctx, comment)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
