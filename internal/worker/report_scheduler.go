package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-backend/internal/config"
	"github.com/spec-kit/crm-backend/internal/events"
	"github.com/spec-kit/crm-backend/internal/service"
)

// ReportScheduler emits a daily summary event covering the last interval.
// Subscribers (notification service) turn it into log lines or webhooks.
type ReportScheduler struct {
	reports    *service.ReportService
	dispatcher events.Dispatcher
	cfg        config.SchedulerConfig
	logger     *zap.Logger
}

// NewReportScheduler constructs the scheduler.
func NewReportScheduler(reports *service.ReportService, dispatcher events.Dispatcher, cfg config.SchedulerConfig, logger *zap.Logger) *ReportScheduler {
	return &ReportScheduler{reports: reports, dispatcher: dispatcher, cfg: cfg, logger: logger}
}

// Run blocks until ctx is cancelled.
func (w *ReportScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.ReportInterval())
	defer ticker.Stop()

	w.logger.Info("report scheduler started", zap.Duration("interval", w.cfg.ReportInterval()))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("report scheduler stopped")
			return
		case <-ticker.C:
			w.EmitOnce(ctx)
		}
	}
}

// EmitOnce publishes one summary event for the trailing interval.
func (w *ReportScheduler) EmitOnce(ctx context.Context) {
	to := time.Now()
	from := to.Add(-w.cfg.ReportInterval())
	report, err := w.reports.SLA(ctx, from, to)
	if err != nil {
		w.logger.Error("daily summary query failed", zap.Error(err))
		return
	}
	if w.dispatcher == nil {
		return
	}
	_ = w.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventDailySummary,
		Timestamp: to,
		Payload: events.DailySummaryPayload{
			From:          from,
			To:            to,
			StatusCounts:  report.StatusCounts,
			AvgResolution: report.AvgResolution,
		},
	})
}

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
