package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/factory-workflow/internal/api/http/handlers"
	"github.com/spec-kit/factory-workflow/internal/auth"
	"github.com/spec-kit/factory-workflow/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Items          *handlers.ItemsHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	api.Get("/summary", cfg.Items.Summary)
	api.Get("/departments", cfg.Items.Departments)

	items := api.Group("/items")
	items.Post("/incident/assign-next", cfg.Items.AssignNext)
	items.Get("/:kind", cfg.Items.List)
	items.Post("/:kind", cfg.Items.Create)
	items.Get("/:kind/:id", cfg.Items.Get)
	items.Get("/:kind/:id/history", cfg.Items.History)
	items.Post("/:kind/:id/transitions", cfg.Items.Transition)
}
