package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-backend/internal/config"
	"github.com/spec-kit/crm-backend/internal/persistence"
	"github.com/spec-kit/crm-backend/internal/repository"
	"github.com/spec-kit/crm-backend/internal/service"
)

const sweepLeaseKey = "crm:overdue-sweep"
const sweepBatchSize = 200

// OverdueSweeper periodically flips due tickets to overdue. A Redis lease
// keeps the sweep single-flight when several instances run.
type OverdueSweeper struct {
	tickets   repository.TicketRepository
	lifecycle *service.TicketService
	redis     *persistence.Redis
	cfg       config.SchedulerConfig
	logger    *zap.Logger
}

// NewOverdueSweeper constructs the sweeper.
func NewOverdueSweeper(tickets repository.TicketRepository, lifecycle *service.TicketService, redis *persistence.Redis, cfg config.SchedulerConfig, logger *zap.Logger) *OverdueSweeper {
	return &OverdueSweeper{
		tickets:   tickets,
		lifecycle: lifecycle,
		redis:     redis,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled, sweeping on every tick.
func (w *OverdueSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.SweepInterval())
	defer ticker.Stop()

	w.logger.Info("overdue sweeper started", zap.Duration("interval", w.cfg.SweepInterval()))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("overdue sweeper stopped")
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs one sweep pass if the lease is acquired.
func (w *OverdueSweeper) SweepOnce(ctx context.Context) {
	if !w.acquireLease(ctx) {
		return
	}

	due, err := w.tickets.ListDue(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		w.logger.Error("overdue sweep query failed", zap.Error(err))
		return
	}
	flipped := 0
	for i := range due {
		if _, err := w.lifecycle.MarkOverdue(ctx, due[i].ID); err != nil {
			w.logger.Warn("marking ticket overdue failed",
				zap.String("ticket_id", due[i].ID), zap.Error(err))
			continue
		}
		flipped++
	}
	if flipped > 0 {
		w.logger.Info("overdue sweep finished", zap.Int("flipped", flipped))
	}
}

// acquireLease takes the distributed sweep lease. A Redis failure must not
// stall the sweep, so the lease is treated as granted and the error logged.
func (w *OverdueSweeper) acquireLease(ctx context.Context) bool {
	ok, err := w.redis.AcquireLease(ctx, sweepLeaseKey, w.cfg.SweepLease())
	if err != nil {
		w.logger.Warn("sweep lease unavailable, proceeding without it", zap.Error(err))
		return true
	}
	return ok
}
