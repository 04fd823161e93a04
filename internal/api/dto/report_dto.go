package dto

import (
	"time"

	"github.com/spec-kit/crm-backend/internal/domain"
)

// SLAReportResponse response.
type SLAReportResponse struct {
	From             time.Time                   `json:"from"`
	To               time.Time                   `json:"to"`
	Total            int                         `json:"total"`
	StatusCounts     map[domain.TicketStatus]int `json:"status_counts"`
	ClosedCount      int                         `json:"closed_count"`
	OverdueCount     int                         `json:"overdue_count"`
	AvgResolutionSec float64                     `json:"avg_resolution_seconds"`
	ClosedWithinDue  int                         `json:"closed_within_due"`
	WithinDuePercent float64                     `json:"within_due_percent"`
}

// OperatorKPIResponse response.
type OperatorKPIResponse struct {
	OperatorID       string  `json:"operator_id"`
	OperatorName     string  `json:"operator_name"`
	OpenCount        int     `json:"open_count"`
	ClosedCount      int     `json:"closed_count"`
	TransfersIn      int     `json:"transfers_in"`
	TransfersOut     int     `json:"transfers_out"`
	AvgResolutionSec float64 `json:"avg_resolution_seconds"`
}
