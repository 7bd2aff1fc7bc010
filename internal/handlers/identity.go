package handlers

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type identityRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IssueIdentity mints a self-asserted identity token. Missing fields are
// generated the same way a browser client does it locally.
func (h *Handler) IssueIdentity(c *fiber.Ctx) error {
	var req identityRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}
	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Name == "" {
		req.Name = fmt.Sprintf("User%d", rand.Intn(1000))
	}

	token, err := h.identity.Generate(req.ID, req.Name)
	if err != nil {
		log.WithError(err).Error("handlers: issue identity failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to issue identity",
		})
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  fiber.Map{"id": req.ID, "name": req.Name},
	})
}
