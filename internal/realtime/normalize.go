package realtime

import (
	"time"

	"github.com/google/uuid"

	"github.com/arnold/kanban-collab-api/internal/models"
)

// Card is the wire shape of a card. BoardId and boardId carry the same value
// for older clients.
type Card struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Assignee    string     `json:"assignee"`
	Labels      []string   `json:"labels"`
	Position    int        `json:"position"`
	Column      string     `json:"column"`
	DueDate     *time.Time `json:"dueDate"`
	BoardIDLeg  string     `json:"BoardId"`
	BoardID     string     `json:"boardId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NormalizeCard maps a stored card to its wire shape. boardID is used when
// the record carries no board reference.
func NormalizeCard(c *models.Card, boardID string) Card {
	if c.BoardID != uuid.Nil {
		boardID = c.BoardID.String()
	}
	column := c.Column
	if column == "" {
		column = models.DefaultColumn
	}
	labels := c.Labels
	if labels == nil {
		labels = []string{}
	}
	return Card{
		ID:          c.ID.String(),
		Title:       c.Title,
		Description: c.Description,
		Assignee:    c.Assignee,
		Labels:      labels,
		Position:    c.Position,
		Column:      column,
		DueDate:     c.DueDate,
		BoardIDLeg:  boardID,
		BoardID:     boardID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
