package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/arnold/kanban-collab-api/internal/store"
)

// GetAuditLogs returns the most recent audit entries of a board, newest
// first. ?limit= may lower the page size but never raise it.
func (h *Handler) GetAuditLogs(c *fiber.Ctx) error {
	boardID := c.Params("boardId")
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(store.AuditPageSize)))

	logs, err := h.store.ListAudit(c.UserContext(), boardID, limit)
	if err != nil {
		log.WithError(err).WithField("board", boardID).Error("handlers: list audit logs failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch audit logs",
		})
	}
	return c.JSON(logs)
}
