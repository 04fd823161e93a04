package service

import (
	"context"
	"time"

	"github.com/spec-kit/crm-backend/internal/domain"
	"github.com/spec-kit/crm-backend/internal/repository"
	apperrors "github.com/spec-kit/crm-backend/pkg/util"
)

// ReportService derives aggregate statistics by scanning the lifecycle
// engine's persisted state. Read-only: it holds no invariants of its own.
type ReportService struct {
	tickets   repository.TicketRepository
	transfers repository.TransferRepository
	users     repository.UserRepository
}

// SLAReport summarizes service-level performance over a date range.
type SLAReport struct {
	From             time.Time
	To               time.Time
	StatusCounts     map[domain.TicketStatus]int
	Total            int
	ClosedCount      int
	OverdueCount     int
	AvgResolution    time.Duration
	ClosedWithinDue  int
	WithinDuePercent float64
}

// OperatorKPI summarizes one operator's workload over a date range.
type OperatorKPI struct {
	OperatorID    string
	OperatorName  string
	OpenCount     int
	ClosedCount   int
	TransfersIn   int
	TransfersOut  int
	AvgResolution time.Duration
}

// NewReportService constructs the service.
func NewReportService(tickets repository.TicketRepository, transfers repository.TransferRepository, users repository.UserRepository) *ReportService {
	return &ReportService{tickets: tickets, transfers: transfers, users: users}
}

// SLA computes the service-level report for the range.
func (s *ReportService) SLA(ctx context.Context, from, to time.Time) (*SLAReport, error) {
	statusCounts, err := s.tickets.StatusCounts(ctx, from, to)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	avgSecs, err := s.tickets.AvgResolutionSeconds(ctx, from, to)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	closed, withinDue, err := s.tickets.ClosedWithinDueCount(ctx, from, to)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	total := 0
	for _, count := range statusCounts {
		total += count
	}
	report := &SLAReport{
		From:            from,
		To:              to,
		StatusCounts:    statusCounts,
		Total:           total,
		ClosedCount:     closed,
		OverdueCount:    statusCounts[domain.TicketStatusOverdue],
		AvgResolution:   time.Duration(avgSecs * float64(time.Second)),
		ClosedWithinDue: withinDue,
	}
	if closed > 0 {
		report.WithinDuePercent = float64(withinDue) / float64(closed) * 100
	}
	return report, nil
}

// OperatorKPIs computes per-operator workload stats for the range.
func (s *ReportService) OperatorKPIs(ctx context.Context, from, to time.Time) ([]OperatorKPI, error) {
	aggregates, err := s.tickets.OperatorAggregates(ctx, from, to)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	transferCounts, err := s.transfers.CountsByUser(ctx, from, to)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	transfersByUser := make(map[string]repository.TransferCount, len(transferCounts))
	for _, tc := range transferCounts {
		transfersByUser[tc.UserID] = tc
	}

	result := make([]OperatorKPI, 0, len(aggregates))
	for _, agg := range aggregates {
		kpi := OperatorKPI{
			OperatorID:    agg.OperatorID,
			OpenCount:     agg.OpenCount,
			ClosedCount:   agg.ClosedCount,
			AvgResolution: time.Duration(agg.AvgResolutionSecs * float64(time.Second)),
		}
		if tc, ok := transfersByUser[agg.OperatorID]; ok {
			kpi.TransfersIn = tc.Incoming
			kpi.TransfersOut = tc.Outgoing
		}
		if user, err := s.users.GetByID(ctx, agg.OperatorID); err == nil {
			kpi.OperatorName = user.Name
		}
		result = append(result, kpi)
	}
	return result, nil
}
