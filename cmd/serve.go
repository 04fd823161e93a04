package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/crm-backend/internal/api/http"
	"github.com/spec-kit/crm-backend/internal/api/http/handlers"
	"github.com/spec-kit/crm-backend/internal/auth"
	"github.com/spec-kit/crm-backend/internal/config"
	"github.com/spec-kit/crm-backend/internal/events"
	"github.com/spec-kit/crm-backend/internal/observability"
	"github.com/spec-kit/crm-backend/internal/persistence"
	"github.com/spec-kit/crm-backend/internal/repository"
	"github.com/spec-kit/crm-backend/internal/service"
	"github.com/spec-kit/crm-backend/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and background workers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect postgres", zap.Error(err))
		return err
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Error("failed to run migrations", zap.Error(err))
			return err
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	clientRepo := repository.NewClientRepository(pool)
	lineRepo := repository.NewSupportLineRepository(pool)
	funnelRepo := repository.NewFunnelRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	transferRepo := repository.NewTransferRepository(pool)

	dispatcher := events.NewInMemoryDispatcher(logger)

	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		ClientRepo:   clientRepo,
		UserRepo:     userRepo,
		LineRepo:     lineRepo,
		FunnelRepo:   funnelRepo,
		CommentRepo:  commentRepo,
		TransferRepo: transferRepo,
		Dispatcher:   dispatcher,
	})
	lineService := service.NewSupportLineService(service.SupportLineDependencies{
		LineRepo:   lineRepo,
		UserRepo:   userRepo,
		TicketRepo: ticketRepo,
	})
	funnelService := service.NewFunnelService(funnelRepo, ticketRepo)
	reportService := service.NewReportService(ticketRepo, transferRepo, userRepo)
	intakeService := service.NewIntakeService(clientRepo, userRepo, ticketService, cfg.System.ActorEmail, logger)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)

	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		SupportLines:   handlers.NewSupportLinesHandler(lineService),
		Funnels:        handlers.NewFunnelsHandler(funnelService),
		Reports:        handlers.NewReportsHandler(reportService),
		Webhooks:       handlers.NewWebhooksHandler(intakeService, logger),
		AuthMiddleware: authMiddleware,
	})

	sweeper := worker.NewOverdueSweeper(ticketRepo, ticketService, redis, cfg.Scheduler, logger)
	go sweeper.Run(ctx)

	scheduler := worker.NewReportScheduler(reportService, dispatcher, cfg.Scheduler, logger)
	go scheduler.Run(ctx)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	return app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
