package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/crm-backend/internal/domain"
	"github.com/spec-kit/crm-backend/internal/events"
	apperrors "github.com/spec-kit/crm-backend/pkg/util"
)

func seedLineWithOperator(h *serviceHarness, code string) (*domain.SupportLine, *domain.User) {
	line := h.store.addLine(&domain.SupportLine{
		Name: "Line " + code, Code: code, IsActive: true,
		Policy: domain.RoutingPolicy{AutoAssign: true},
	})
	operator := h.store.addUser(&domain.User{
		Name: "Operator " + code, Email: code + "@crm.local",
		Role: domain.RoleOperator1, SupportLineID: &line.ID, Active: true,
	})
	return line, operator
}

func TestCreateTicketClassifiesAndAutoAssigns(t *testing.T) {
	h := newServiceHarness()
	line, operator := seedLineWithOperator(h, "L1")
	creator := h.store.addUser(&domain.User{
		Name: "Admin", Role: domain.RoleAdmin, Active: true, SupportLineID: &line.ID,
	})
	client := h.store.addClient(&domain.Client{Channel: domain.ChannelTelegram, ExternalID: "tg-1"})

	ticket, err := h.svc.CreateTicket(context.Background(), creator, TicketCreateInput{
		Title:    "СРОЧНО не работает сервис",
		ClientID: client.ID,
	})
	require.NoError(t, err)

	require.NotNil(t, ticket.Category)
	assert.Equal(t, domain.CategoryComplaint, *ticket.Category)
	assert.Equal(t, 5, ticket.Priority)
	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.Equal(t, domain.ChannelTelegram, ticket.Channel)
	assert.NotEmpty(t, ticket.ExternalKey)

	require.NotNil(t, ticket.AssignedToID)
	assert.Equal(t, operator.ID, *ticket.AssignedToID)
	require.NotNil(t, ticket.SupportLineID)
	assert.Equal(t, line.ID, *ticket.SupportLineID)

	comments, err := h.svc.ListComments(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.True(t, comments[0].IsInternal)
	assert.Contains(t, comments[0].Body, operator.Name)

	assert.Len(t, h.dispatcher.ofType(events.EventTicketCreated), 1)
	assert.Len(t, h.dispatcher.ofType(events.EventTicketAssigned), 1)
}

func TestCreateTicketNoOperatorsLeavesUnassigned(t *testing.T) {
	h := newServiceHarness()
	h.store.addLine(&domain.SupportLine{
		Name: "Empty", Code: "L1", IsActive: true,
		Policy: domain.RoutingPolicy{AutoAssign: true},
	})
	creator := h.store.addUser(&domain.User{Name: "Admin", Role: domain.RoleAdmin, Active: true})
	client := h.store.addClient(&domain.Client{Channel: domain.ChannelWeb, ExternalID: "w-1"})

	ticket, err := h.svc.CreateTicket(context.Background(), creator, TicketCreateInput{
		Title: "Вопрос по тарифам", ClientID: client.ID,
	})
	require.NoError(t, err)
	assert.Nil(t, ticket.AssignedToID)
	assert.Empty(t, h.dispatcher.ofType(events.EventTicketAssigned))
}

func TestCreateTicketRespectsAutoAssignPolicy(t *testing.T) {
	h := newServiceHarness()
	line, _ := seedLineWithOperator(h, "L1")
	line.Policy.AutoAssign = false
	h.store.lines[line.ID] = line
	creator := h.store.addUser(&domain.User{Name: "Admin", Role: domain.RoleAdmin, Active: true})
	client := h.store.addClient(&domain.Client{Channel: domain.ChannelWeb, ExternalID: "w-2"})

	ticket, err := h.svc.CreateTicket(context.Background(), creator, TicketCreateInput{
		Title: "Обычный вопрос", ClientID: client.ID,
	})
	require.NoError(t, err)
	assert.Nil(t, ticket.AssignedToID)
}

func TestCreateTicketUnknownClient(t *testing.T) {
	h := newServiceHarness()
	creator := h.store.addUser(&domain.User{Name: "Admin", Role: domain.RoleAdmin, Active: true})

	_, err := h.svc.CreateTicket(context.Background(), creator, TicketCreateInput{
		Title: "x", ClientID: "missing",
	})
	assert.Equal(t, "NOT_FOUND", apperrors.CodeOf(err))
}

func TestUpdateStatusMaintainsClosedAt(t *testing.T) {
	h := newServiceHarness()
	_, operator := seedLineWithOperator(h, "L1")
	client := h.store.addClient(&domain.Client{Channel: domain.ChannelWeb, ExternalID: "w-3"})
	ticket, err := h.svc.CreateTicket(context.Background(), operator, TicketCreateInput{
		Title: "Проблема", ClientID: client.ID,
	})
	require.NoError(t, err)

	ticket, err = h.svc.UpdateStatus(context.Background(), operator, ticket.ID, domain.TicketStatusClosed)
	require.NoError(t, err)
	require.NotNil(t, ticket.ClosedAt)
	assert.True(t, ticket.IsClosed())

	ticket, err = h.svc.UpdateStatus(context.Background(), operator, ticket.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)
	assert.Nil(t, ticket.ClosedAt)
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)
}

func TestUpdateStatusAppendsAuditComment(t *testing.T) {
	h := newServiceHarness()
	_, operator := seedLineWithOperator(h, "L1")
	client := h.store.addClient(&domain.Client{Channel: domain.ChannelWeb, ExternalID: "w-4"})
	ticket, err := h.svc.CreateTicket(context.Background(), operator, TicketCreateInput{
		Title: "Проблема", ClientID: client.ID,
	})
	require.NoError(t, err)

	_, err = h.svc.UpdateStatus(context.Background(), operator, ticket.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)

	comments, err := h.svc.ListComments(context.Background(), ticket.ID)
	require.NoError(t, err)
	var bodies []string
	for _, c := range comments {
		bodies = append(bodies, c.Body)
	}
	assert.Contains(t, bodies, "Статус изменён: Новая → В работе")
}

func TestUpdateStatusForbiddenForOutsider(t *testing.T) {
	h := newServiceHarness()
	_, operator := seedLineWithOperator(h, "L1")
	outsider := h.store.addUser(&domain.User{Name: "Other", Role: domain.RoleOperator2, Active: true})
	client := h.store.addClient(&domain.Client{Channel: domain.ChannelWeb, ExternalID: "w-5"})
	ticket, err := h.svc.CreateTicket(context.Background(), operator, TicketCreateInput{
		Title: "Проблема", ClientID: client.ID,
	})
	require.NoError(t, err)

	_, err = h.svc.UpdateStatus(context.Background(), outsider, ticket.ID, domain.TicketStatusClosed)
	assert.Equal(t, "FORBIDDEN", apperrors.CodeOf(err))
}

func TestTransferAppendsHistoryRowPerCall(t *testing.T) {
	h := newServiceHarness()
	_, operator := seedLineWithOperator(h, "L1")
	colleague := h.store.addUser(&domain.User{
		Name: "Colleague", Role: domain.RoleOperator2, Active: true,
	})
	admin := h.store.addUser(&domain.User{Name: "Admin", Role: domain.RoleAdmin, Active: true})
	client := h.store.addClient(&domain.Client{Channel: domain.ChannelWeb, ExternalID: "w-6"})
	ticket, err := h.svc.CreateTicket(context.Background(), admin, TicketCreateInput{
		Title: "Проблема", ClientID: client.ID,
	})
	require.NoError(t, err)

	ticket, err = h.svc.Transfer(context.Background(), admin, ticket.ID, TransferInput{
		ToUserID: &colleague.ID, Reason: "клиент говорит по-английски",
	})
	require.NoError(t, err)
	require.NotNil(t, ticket.AssignedToID)
	assert.Equal(t, colleague.ID, *ticket.AssignedToID)

	ticket, err = h.svc.Transfer(context.Background(), admin, ticket.ID, TransferInput{
		ToUserID: &operator.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, operator.ID, *ticket.AssignedToID)

	transfers, err := h.svc.ListTransfers(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	require.NotNil(t, transfers[0].FromUserID)
	assert.Equal(t, admin.ID, *transfers[0].FromUserID)
	assert.Equal(t, colleague.ID, transfers[0].ToUserID)
	assert.Equal(t, "клиент говорит по-английски", transfers[0].Reason)
}

func TestTransferToRolePicksFirstActive(t *testing.T) {
	h := newServiceHarness()
	admin := h.store.addUser(&domain.User{Name: "Admin", Role: domain.RoleAdmin, Active: true})
	h.store.addUser(&domain.User{Name: "Inactive", Role: domain.RoleOperator2, Active: false})
	target := h.store.addUser(&domain.User{Name: "Second line", Role: domain.RoleOperator2, Active: true})
	client := h.store.addClient(&domain.Client{Channel: domain.ChannelWeb, ExternalID: "w-7"})
	ticket, err := h.svc.CreateTicket(context.Background(), admin, TicketCreateInput{
		Title: "Проблема", ClientID: client.ID,
	})
	require.NoError(t, err)

	role := domain.RoleOperator2
	ticket, err = h.svc.Transfer(context.Background(), admin, ticket.ID, TransferInput{
		ToRoleName: &role, Reason: "эскалация",
	})
	require.NoError(t, err)
	require.NotNil(t, ticket.AssignedToID)
	assert.Equal(t, target.ID, *ticket.AssignedToID)
}

func TestTransferRequiresExactlyOneTarget(t *testing.T) {
	h := newServiceHarness()
	admin := h.store.addUser(&domain.User{Name: "Admin", Role: domain.RoleAdmin, Active: true})
	client := h.store.addClient(&domain.Client{Channel: domain.ChannelWeb, ExternalID: "w-8"})
	ticket, err := h.svc.CreateTicket(context.Background(), admin, TicketCreateInput{
		Title: "Проблема", ClientID: client.ID,
	})
	require.NoError(t, err)

	_, err = h.svc.Transfer(context.Background(), admin, ticket.ID, TransferInput{})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.CodeOf(err))

	role := domain.RoleOperator1
	_, err = h.svc.Transfer(context.Background(), admin, ticket.ID, TransferInput{
		ToUserID: &admin.ID, ToRoleName: &role,
	})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.CodeOf(err))
}

func TestTransferKeepsSupportLinePointer(t *testing.T) {
	h := newServiceHarness()
	line, operator := seedLineWithOperator(h, "L1")
	colleague := h.store.addUser(&domain.User{Name: "Colleague", Role: domain.RoleOperator2, Active: true})
	admin := h.store.addUser(&domain.User{Name: "Admin", Role: domain.RoleAdmin, Active: true, SupportLineID: &line.ID})
	client := h.store.addClient(&domain.Client{Channel: domain.ChannelWeb, ExternalID: "w-9"})
	ticket, err := h.svc.CreateTicket(context.Background(), admin, TicketCreateInput{
		Title: "Проблема", ClientID: client.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, ticket.AssignedToID)
	require.Equal(t, operator.ID, *ticket.AssignedToID)

	ticket, err = h.svc.Transfer(context.Background(), admin, ticket.ID, TransferInput{ToUserID: &colleague.ID})
	require.NoError(t, err)
	require.NotNil(t, ticket.SupportLineID)
	assert.Equal(t, line.ID, *ticket.SupportLineID)
}

func TestMoveToStageFinalClosesTicket(t *testing.T) {
	h := newServiceHarness()
	admin := h.store.addUser(&domain.User{Name: "Admin", Role: domain.RoleAdmin, Active: true})
	client := h.store.addClient(&domain.Client{Channel: domain.ChannelWeb, ExternalID: "w-10"})
	funnel := h.store.addFunnel(&domain.Funnel{Name: "Продажи", IsActive: true})
	final := h.store.addStage(&domain.FunnelStage{
		FunnelID: funnel.ID, Name: "Сделка закрыта", SortOrder: 3, IsFinal: true, IsActive: true,
	})
	ticket, err := h.svc.CreateTicket(context.Background(), admin, TicketCreateInput{
		Title: "Проблема", ClientID: client.ID,
	})
	require.NoError(t, err)

	ticket, err = h.svc.MoveToStage(context.Background(), admin, ticket.ID, final.ID)
	require.NoError(t, err)
	assert.True(t, ticket.IsClosed())
	require.NotNil(t, ticket.ClosedAt)
	require.NotNil(t, ticket.FunnelStageID)
	assert.Equal(t, final.ID, *ticket.FunnelStageID)
}

func TestMoveToNextStageAdvancesAndAppliesStatus(t *testing.T) {
	h := newServiceHarness()
	admin := h.store.addUser(&domain.User{Name: "Admin", Role: domain.RoleAdmin, Active: true})
	client := h.store.addClient(&domain.Client{Channel: domain.ChannelWeb, ExternalID: "w-11"})
	funnel := h.store.addFunnel(&domain.Funnel{Name: "Продажи", IsActive: true})
	inProgress := domain.TicketStatusInProgress
	first := h.store.addStage(&domain.FunnelStage{
		FunnelID: funnel.ID, Name: "Новый лид", SortOrder: 1, IsActive: true,
	})
	second := h.store.addStage(&domain.FunnelStage{
		FunnelID: funnel.ID, Name: "В обработке", SortOrder: 2,
		TicketStatus: &inProgress, IsActive: true,
	})
	ticket, err := h.svc.CreateTicket(context.Background(), admin, TicketCreateInput{
		Title: "Лид", ClientID: client.ID,
	})
	require.NoError(t, err)
	ticket, err = h.svc.MoveToStage(context.Background(), admin, ticket.ID, first.ID)
	require.NoError(t, err)

	ticket, err = h.svc.MoveToNextStage(context.Background(), admin, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, ticket.FunnelStageID)
	assert.Equal(t, second.ID, *ticket.FunnelStageID)
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)

	_, err = h.svc.MoveToNextStage(context.Background(), admin, ticket.ID)
	assert.Equal(t, "CONFLICT", apperrors.CodeOf(err))
}

func TestReopenAfterFinalStageClearsStagePointer(t *testing.T) {
	h := newServiceHarness()
	admin := h.store.addUser(&domain.User{Name: "Admin", Role: domain.RoleAdmin, Active: true})
	client := h.store.addClient(&domain.Client{Channel: domain.ChannelWeb, ExternalID: "w-12"})
	funnel := h.store.addFunnel(&domain.Funnel{Name: "Продажи", IsActive: true})
	final := h.store.addStage(&domain.FunnelStage{
		FunnelID: funnel.ID, Name: "Закрыто", SortOrder: 1, IsFinal: true, IsActive: true,
	})
	ticket, err := h.svc.CreateTicket(context.Background(), admin, TicketCreateInput{
		Title: "Лид", ClientID: client.ID,
	})
	require.NoError(t, err)
	ticket, err = h.svc.MoveToStage(context.Background(), admin, ticket.ID, final.ID)
	require.NoError(t, err)
	require.True(t, ticket.IsClosed())

	ticket, err = h.svc.UpdateStatus(context.Background(), admin, ticket.ID, domain.TicketStatusNew)
	require.NoError(t, err)
	assert.Nil(t, ticket.ClosedAt)
	assert.Nil(t, ticket.FunnelStageID)
}

func TestMarkOverdue(t *testing.T) {
	h := newServiceHarness()
	admin := h.store.addUser(&domain.User{Name: "Admin", Role: domain.RoleAdmin, Active: true})
	client := h.store.addClient(&domain.Client{Channel: domain.ChannelWeb, ExternalID: "w-13"})
	past := time.Now().Add(-time.Hour)
	ticket, err := h.svc.CreateTicket(context.Background(), admin, TicketCreateInput{
		Title: "Просроченная", ClientID: client.ID, DueDate: &past,
	})
	require.NoError(t, err)

	ticket, err = h.svc.MarkOverdue(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOverdue, ticket.Status)
	assert.Len(t, h.dispatcher.ofType(events.EventTicketOverdue), 1)

	// Closed tickets never flip to overdue.
	closedTicket, err := h.svc.CreateTicket(context.Background(), admin, TicketCreateInput{
		Title: "Закрытая", ClientID: client.ID, DueDate: &past,
	})
	require.NoError(t, err)
	_, err = h.svc.UpdateStatus(context.Background(), admin, closedTicket.ID, domain.TicketStatusClosed)
	require.NoError(t, err)
	closedTicket, err = h.svc.MarkOverdue(context.Background(), closedTicket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closedTicket.Status)
}

func TestAddAndRemoveComment(t *testing.T) {
	h := newServiceHarness()
	admin := h.store.addUser(&domain.User{Name: "Admin", Role: domain.RoleAdmin, Active: true})
	operator := h.store.addUser(&domain.User{Name: "Op", Role: domain.RoleOperator1, Active: true})
	client := h.store.addClient(&domain.Client{Channel: domain.ChannelWeb, ExternalID: "w-14"})
	ticket, err := h.svc.CreateTicket(context.Background(), admin, TicketCreateInput{
		Title: "Вопрос", ClientID: client.ID,
	})
	require.NoError(t, err)

	comment, err := h.svc.AddComment(context.Background(), admin, ticket.ID, "ответ клиенту", false)
	require.NoError(t, err)
	assert.False(t, comment.IsInternal)

	err = h.svc.RemoveComment(context.Background(), operator, comment.ID)
	assert.Equal(t, "FORBIDDEN", apperrors.CodeOf(err))

	require.NoError(t, h.svc.RemoveComment(context.Background(), admin, comment.ID))
	err = h.svc.RemoveComment(context.Background(), admin, comment.ID)
	assert.Equal(t, "NOT_FOUND", apperrors.CodeOf(err))
}
