package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/arnold/kanban-collab-api/internal/store"
)

// GetNotifications returns a user's notifications, newest first.
func (h *Handler) GetNotifications(c *fiber.Ctx) error {
	userID := c.Params("userId")

	notifications, err := h.store.ListNotifications(c.UserContext(), userID)
	if err != nil {
		log.WithError(err).WithField("user", userID).Error("handlers: list notifications failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch notifications",
		})
	}
	return c.JSON(notifications)
}

// MarkNotificationRead marks a single notification as read
func (h *Handler) MarkNotificationRead(c *fiber.Ctx) error {
	notifID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid notification ID",
		})
	}

	err = h.store.MarkNotificationRead(c.UserContext(), notifID)
	if errors.Is(err, store.ErrNotificationNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Notification not found",
		})
	}
	if err != nil {
		log.WithError(err).WithField("notification", notifID).Error("handlers: mark read failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update notification",
		})
	}
	return c.JSON(fiber.Map{"success": true})
}
