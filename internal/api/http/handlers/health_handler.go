package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is a dependency that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionChecker reports whether a long-lived connection is up.
type ConnectionChecker interface {
	Connected() bool
}

var errGatewayDisconnected = errors.New("gateway disconnected")

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	store       Pinger
	gateway     ConnectionChecker
}

// NewHealthHandler returns a new handler instance. Nil dependencies are
// skipped by the readiness check.
func NewHealthHandler(serviceName, version string, store Pinger, gateway ConnectionChecker) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, store: store, gateway: gateway}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports service readiness by checking dependencies.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			depStatus["store"] = err.Error()
			ready = false
		} else {
			depStatus["store"] = "ok"
		}
	}

	if h.gateway != nil {
		if !h.gateway.Connected() {
			depStatus["gateway"] = errGatewayDisconnected.Error()
			ready = false
		} else {
			depStatus["gateway"] = "ok"
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}
