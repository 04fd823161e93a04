package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/crm-backend/internal/domain"
)

func TestSLAReport(t *testing.T) {
	h := newServiceHarness()
	svc := NewReportService(h.tickets, h.transfers, h.users)
	operator := h.store.addUser(&domain.User{Name: "Оператор", Role: domain.RoleOperator1, Active: true})

	closedAt := time.Now()
	due := closedAt.Add(time.Hour)
	require.NoError(t, h.tickets.Create(context.Background(), &domain.Ticket{
		Title: "закрыт в срок", ClientID: "c", CreatedByID: operator.ID,
		AssignedToID: &operator.ID, Status: domain.TicketStatusClosed,
		ClosedAt: &closedAt, DueDate: &due,
	}))
	lateDue := closedAt.Add(-time.Hour)
	require.NoError(t, h.tickets.Create(context.Background(), &domain.Ticket{
		Title: "закрыт с опозданием", ClientID: "c", CreatedByID: operator.ID,
		AssignedToID: &operator.ID, Status: domain.TicketStatusClosed,
		ClosedAt: &closedAt, DueDate: &lateDue,
	}))
	require.NoError(t, h.tickets.Create(context.Background(), &domain.Ticket{
		Title: "в работе", ClientID: "c", CreatedByID: operator.ID,
		AssignedToID: &operator.ID, Status: domain.TicketStatusInProgress,
	}))
	require.NoError(t, h.tickets.Create(context.Background(), &domain.Ticket{
		Title: "просрочен", ClientID: "c", CreatedByID: operator.ID,
		Status: domain.TicketStatusOverdue,
	}))

	report, err := svc.SLA(context.Background(), time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.ClosedCount)
	assert.Equal(t, 1, report.OverdueCount)
	assert.Equal(t, 1, report.ClosedWithinDue)
	assert.InDelta(t, 50.0, report.WithinDuePercent, 0.001)
}

func TestSLAReportEmptyRange(t *testing.T) {
	h := newServiceHarness()
	svc := NewReportService(h.tickets, h.transfers, h.users)

	report, err := svc.SLA(context.Background(), time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Zero(t, report.WithinDuePercent)
}

func TestOperatorKPIs(t *testing.T) {
	h := newServiceHarness()
	svc := NewReportService(h.tickets, h.transfers, h.users)
	sender := h.store.addUser(&domain.User{Name: "Отправитель", Role: domain.RoleOperator1, Active: true})
	receiver := h.store.addUser(&domain.User{Name: "Получатель", Role: domain.RoleOperator2, Active: true})

	require.NoError(t, h.tickets.Create(context.Background(), &domain.Ticket{
		Title: "открыт", ClientID: "c", CreatedByID: sender.ID,
		AssignedToID: &receiver.ID, Status: domain.TicketStatusInProgress,
	}))
	closedAt := time.Now()
	require.NoError(t, h.tickets.Create(context.Background(), &domain.Ticket{
		Title: "закрыт", ClientID: "c", CreatedByID: sender.ID,
		AssignedToID: &receiver.ID, Status: domain.TicketStatusClosed, ClosedAt: &closedAt,
	}))
	require.NoError(t, h.transfers.Create(context.Background(), &domain.TransferHistory{
		TicketID: "ticket-1", FromUserID: &sender.ID, ToUserID: receiver.ID, Reason: "эскалация",
	}))

	kpis, err := svc.OperatorKPIs(context.Background(), time.Time{}, time.Now())
	require.NoError(t, err)
	require.Len(t, kpis, 1)
	kpi := kpis[0]
	assert.Equal(t, receiver.ID, kpi.OperatorID)
	assert.Equal(t, "Получатель", kpi.OperatorName)
	assert.Equal(t, 1, kpi.OpenCount)
	assert.Equal(t, 1, kpi.ClosedCount)
	assert.Equal(t, 1, kpi.TransfersIn)
	assert.Zero(t, kpi.TransfersOut)
}
