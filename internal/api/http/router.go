package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/messaging-service/internal/api/http/handlers"
	"github.com/spec-kit/messaging-service/internal/auth"
	"github.com/spec-kit/messaging-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Messages       *handlers.MessagesHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	userOnly := cfg.AuthMiddleware.Require(domain.RoleUser)
	adminOnly := cfg.AuthMiddleware.Require(domain.RoleAdmin)

	app.Get("/", cfg.Health.Root)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adminOnly, cfg.Metrics.Snapshot)

	app.Post("/userLogin", cfg.Users.Login)
	app.Post("/userRegistracija", cfg.Users.Register)
	app.Get("/verifyToken", userOnly, cfg.Users.VerifyToken)
	app.Get("/userInfo", userOnly, cfg.Users.UserInfo)

	app.Post("/postMessage", userOnly, cfg.Messages.Post)
	app.Get("/messages", userOnly, cfg.Messages.List)
	app.Delete("/messages/:id", adminOnly, cfg.Messages.Delete)
}
