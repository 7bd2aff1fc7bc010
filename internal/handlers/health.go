package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "OK"
	code := fiber.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		log.WithError(err).Warn("handlers: database ping failed")
		status = "DEGRADED"
		code = fiber.StatusServiceUnavailable
	}

	presence := "memory"
	if h.presence != nil {
		presence = h.presence.Backend()
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"database":  h.store.Dialect(),
		"presence":  presence,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}
