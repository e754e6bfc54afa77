package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const requestTimeout = 5 * time.Second

// NewApp builds the admin fiber app with middlewares and routes registered.
func NewApp(appName string, logger *zap.Logger, routes RouteConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})
	RegisterMiddlewares(app, logger, requestTimeout)
	RegisterRoutes(app, routes)
	return app
}
