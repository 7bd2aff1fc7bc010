package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/arnold/kanban-collab-api/internal/models"
	"github.com/arnold/kanban-collab-api/internal/store"
)

// GetBoards returns every board with its cards.
func (h *Handler) GetBoards(c *fiber.Ctx) error {
	boards, err := h.store.ListBoards(c.UserContext())
	if err != nil {
		log.WithError(err).Error("handlers: list boards failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch boards",
		})
	}
	return c.JSON(boards)
}

func (h *Handler) CreateBoard(c *fiber.Ctx) error {
	var req models.CreateBoardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Board name is required",
		})
	}

	board, err := h.store.CreateBoard(c.UserContext(), req.Name, req.Columns)
	if err != nil {
		log.WithError(err).Error("handlers: create board failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create board",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(board)
}

func (h *Handler) GetBoard(c *fiber.Ctx) error {
	boardID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid board ID",
		})
	}

	board, err := h.store.GetBoard(c.UserContext(), boardID)
	if errors.Is(err, store.ErrBoardNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Board not found",
		})
	}
	if err != nil {
		log.WithError(err).WithField("board", boardID).Error("handlers: get board failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch board",
		})
	}
	return c.JSON(board)
}

// DeleteBoard removes a board with its cards and audit trail.
func (h *Handler) DeleteBoard(c *fiber.Ctx) error {
	boardID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid board ID",
		})
	}

	err = h.store.DeleteBoard(c.UserContext(), boardID)
	if errors.Is(err, store.ErrBoardNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Board not found",
		})
	}
	if err != nil {
		log.WithError(err).WithField("board", boardID).Error("handlers: delete board failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete board",
		})
	}
	return c.JSON(fiber.Map{"success": true})
}
