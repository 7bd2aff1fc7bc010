package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultColumn is where cards land when no column is given.
const DefaultColumn = "Todo"

type Card struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	BoardID     uuid.UUID  `json:"BoardId" gorm:"type:uuid;index;not null"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description" gorm:"type:text"`
	Assignee    string     `json:"assignee"`
	Labels      []string   `json:"labels" gorm:"serializer:json"`
	DueDate     *time.Time `json:"dueDate"`
	Position    int        `json:"position" gorm:"not null;default:0"`
	Column      string     `json:"column" gorm:"not null;default:'Todo'"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Column == "" {
		c.Column = DefaultColumn
	}
	if c.Labels == nil {
		c.Labels = []string{}
	}
	return nil
}

// CardPatch is a partial update. Nil fields are left untouched.
type CardPatch struct {
	Title       *string
	Description *string
	Assignee    *string
	Labels      []string
	DueDate     *time.Time
	Position    *int
	Column      *string
}

// Empty reports whether the patch changes nothing.
func (p CardPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Assignee == nil &&
		p.Labels == nil && p.DueDate == nil && p.Position == nil && p.Column == nil
}

// Apply copies the set fields onto c.
func (p CardPatch) Apply(c *Card) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Assignee != nil {
		c.Assignee = *p.Assignee
	}
	if p.Labels != nil {
		c.Labels = p.Labels
	}
	if p.DueDate != nil {
		c.DueDate = p.DueDate
	}
	if p.Position != nil {
		c.Position = *p.Position
	}
	if p.Column != nil {
		c.Column = *p.Column
	}
}
