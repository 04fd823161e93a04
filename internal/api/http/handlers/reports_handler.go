package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-backend/internal/api/dto"
	"github.com/spec-kit/crm-backend/internal/service"
)

// ReportsHandler serves the analytics read-models.
type ReportsHandler struct {
	service *service.ReportService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reportService *service.ReportService) *ReportsHandler {
	return &ReportsHandler{service: reportService}
}

// SLA GET /reports/sla.
func (h *ReportsHandler) SLA(c *fiber.Ctx) error {
	from, to := parseDateRange(c)
	report, err := h.service.SLA(c.Context(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SLAReportResponse{
		From:             report.From,
		To:               report.To,
		Total:            report.Total,
		StatusCounts:     report.StatusCounts,
		ClosedCount:      report.ClosedCount,
		OverdueCount:     report.OverdueCount,
		AvgResolutionSec: report.AvgResolution.Seconds(),
		ClosedWithinDue:  report.ClosedWithinDue,
		WithinDuePercent: report.WithinDuePercent,
	}})
}

// OperatorKPIs GET /reports/operators.
func (h *ReportsHandler) OperatorKPIs(c *fiber.Ctx) error {
	from, to := parseDateRange(c)
	kpis, err := h.service.OperatorKPIs(c.Context(), from, to)
	if err != nil {
		return err
	}
	items := make([]dto.OperatorKPIResponse, 0, len(kpis))
	for _, kpi := range kpis {
		items = append(items, dto.OperatorKPIResponse{
			OperatorID:       kpi.OperatorID,
			OperatorName:     kpi.OperatorName,
			OpenCount:        kpi.OpenCount,
			ClosedCount:      kpi.ClosedCount,
			TransfersIn:      kpi.TransfersIn,
			TransfersOut:     kpi.TransfersOut,
			AvgResolutionSec: kpi.AvgResolution.Seconds(),
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
