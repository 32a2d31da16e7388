package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketdesk/internal/api/http/handlers"
	"github.com/spec-kit/ticketdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketViewHandler
	Sessions       *handlers.SessionHandler
	AuthMiddleware *auth.AuthMiddleware
	Policy         *auth.Policy
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	app.Post("/session", cfg.Sessions.Open)
	app.Delete("/session", cfg.AuthMiddleware.Handle, auth.RequireSession(), cfg.Sessions.Close)

	pages := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireSession())
	pages.Get("/:id", cfg.Tickets.Page)
	pages.Post("/:id/resolve", cfg.Tickets.ResolvePage)
	pages.Post("/:id/forward", cfg.Tickets.ForwardPage)

	api := app.Group("/api/tickets", cfg.AuthMiddleware.Handle, auth.RequireSession())
	api.Get("/:id", cfg.Tickets.Get)
	api.Post("/:id/resolve", cfg.Tickets.Resolve)
	api.Post("/:id/forward", cfg.Tickets.Forward)
	api.Get("/:id/actions", auth.RequireViewer(cfg.Policy), cfg.Tickets.Actions)
}
