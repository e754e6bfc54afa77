package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Tickets *handlers.TicketsHandler
	// History is optional; without it the history route is not mounted.
	History *handlers.HistoryHandler
	Metrics http.Handler
	// AuthMiddleware guards /admin. Without it the admin routes are not
	// mounted.
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	if cfg.AuthMiddleware == nil || cfg.Tickets == nil {
		return
	}
	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireScope(auth.ScopeTicketsRead))
	admin.Get("/tickets", cfg.Tickets.ListTickets)
	admin.Get("/tickets/:channelId", cfg.Tickets.GetTicket)
	if cfg.History != nil {
		admin.Get("/tickets/:channelId/history", cfg.History.ListHistory)
	}
}
