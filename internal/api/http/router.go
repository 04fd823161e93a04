package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-backend/internal/api/http/handlers"
	"github.com/spec-kit/crm-backend/internal/auth"
	"github.com/spec-kit/crm-backend/internal/permission"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	SupportLines   *handlers.SupportLinesHandler
	Funnels        *handlers.FunnelsHandler
	Reports        *handlers.ReportsHandler
	Webhooks       *handlers.WebhooksHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Webhooks are unauthenticated intake;
// everything else sits behind the token middleware plus the role matrix.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.AuthMiddleware.Handle, auth.RequireAdmin, cfg.Health.Metrics)

	app.Post("/webhooks/:channel", cfg.Webhooks.Inbound)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/register", cfg.AuthMiddleware.Handle, auth.RequireAdmin, cfg.Auth.Register)
	authGroup.Post("/password/change", cfg.AuthMiddleware.Handle, cfg.Auth.ChangePassword)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("", auth.RequirePermission(permission.ActionCreate, permission.ResourceTicket), cfg.Tickets.CreateTicket)
	tickets.Get("", auth.RequirePermission(permission.ActionRead, permission.ResourceTicket), cfg.Tickets.ListTickets)
	tickets.Get("/:id", auth.RequirePermission(permission.ActionRead, permission.ResourceTicket), cfg.Tickets.GetTicket)
	tickets.Patch("/:id", auth.RequirePermission(permission.ActionUpdate, permission.ResourceTicket), cfg.Tickets.UpdateTicket)
	tickets.Patch("/:id/status", auth.RequirePermission(permission.ActionUpdate, permission.ResourceTicket), cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/transfer", auth.RequirePermission(permission.ActionUpdate, permission.ResourceTicket), cfg.Tickets.Transfer)
	tickets.Post("/:id/stage", auth.RequirePermission(permission.ActionUpdate, permission.ResourceTicket), cfg.Tickets.MoveToStage)
	tickets.Post("/:id/stage/next", auth.RequirePermission(permission.ActionUpdate, permission.ResourceTicket), cfg.Tickets.MoveToNextStage)
	tickets.Get("/:id/comments", auth.RequirePermission(permission.ActionRead, permission.ResourceComment), cfg.Tickets.ListComments)
	tickets.Post("/:id/comments", auth.RequirePermission(permission.ActionCreate, permission.ResourceComment), cfg.Tickets.AddComment)
	tickets.Delete("/:id/comments/:commentId", auth.RequirePermission(permission.ActionDelete, permission.ResourceComment), cfg.Tickets.RemoveComment)
	tickets.Get("/:id/transfers", auth.RequirePermission(permission.ActionRead, permission.ResourceTicket), cfg.Tickets.ListTransfers)

	lines := app.Group("/support-lines", cfg.AuthMiddleware.Handle)
	lines.Get("", auth.RequirePermission(permission.ActionRead, permission.ResourceSupportLine), cfg.SupportLines.ListLines)
	lines.Get("/:id", auth.RequirePermission(permission.ActionRead, permission.ResourceSupportLine), cfg.SupportLines.GetLine)
	lines.Post("", auth.RequirePermission(permission.ActionCreate, permission.ResourceSupportLine), cfg.SupportLines.CreateLine)
	lines.Patch("/:id", auth.RequirePermission(permission.ActionUpdate, permission.ResourceSupportLine), cfg.SupportLines.UpdateLine)
	lines.Delete("/:id", auth.RequirePermission(permission.ActionDelete, permission.ResourceSupportLine), cfg.SupportLines.RemoveLine)
	lines.Post("/:id/operators", auth.RequireAdmin, cfg.SupportLines.AssignOperator)
	lines.Delete("/operators/:userId", auth.RequireAdmin, cfg.SupportLines.UnassignOperator)

	funnels := app.Group("/funnels", cfg.AuthMiddleware.Handle)
	funnels.Get("", auth.RequirePermission(permission.ActionRead, permission.ResourceFunnel), cfg.Funnels.ListFunnels)
	funnels.Get("/:id", auth.RequirePermission(permission.ActionRead, permission.ResourceFunnel), cfg.Funnels.GetFunnel)
	funnels.Get("/:id/stats", auth.RequirePermission(permission.ActionRead, permission.ResourceFunnel), cfg.Funnels.Stats)
	funnels.Post("", auth.RequirePermission(permission.ActionCreate, permission.ResourceFunnel), cfg.Funnels.CreateFunnel)
	funnels.Patch("/:id", auth.RequirePermission(permission.ActionUpdate, permission.ResourceFunnel), cfg.Funnels.UpdateFunnel)
	funnels.Post("/:id/stages", auth.RequirePermission(permission.ActionCreate, permission.ResourceFunnel), cfg.Funnels.CreateStage)
	funnels.Delete("/:id", auth.RequirePermission(permission.ActionDelete, permission.ResourceFunnel), cfg.Funnels.RemoveFunnel)
	funnels.Delete("/stages/:stageId", auth.RequirePermission(permission.ActionDelete, permission.ResourceFunnel), cfg.Funnels.RemoveStage)

	reports := app.Group("/reports", cfg.AuthMiddleware.Handle)
	reports.Get("/sla", auth.RequirePermission(permission.ActionRead, permission.ResourceReport), cfg.Reports.SLA)
	reports.Get("/operators", auth.RequirePermission(permission.ActionRead, permission.ResourceReport), cfg.Reports.OperatorKPIs)

	users := app.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("", auth.RequirePermission(permission.ActionRead, permission.ResourceUser), cfg.Users.ListUsers)
	users.Get("/:id", auth.RequirePermission(permission.ActionRead, permission.ResourceUser), cfg.Users.GetUser)
	users.Patch("/:id", auth.RequirePermission(permission.ActionUpdate, permission.ResourceUser), cfg.Users.UpdateUser)
	users.Delete("/:id", auth.RequirePermission(permission.ActionDelete, permission.ResourceUser), cfg.Users.DeactivateUser)
}
