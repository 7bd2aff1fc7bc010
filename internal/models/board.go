package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultColumns is the column layout given to boards created without one.
var DefaultColumns = []string{"Todo", "In Progress", "Done"}

type Board struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Columns   []string  `json:"columns" gorm:"serializer:json"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Cards     []Card    `json:"Cards" gorm:"foreignKey:BoardID;constraint:OnDelete:CASCADE"`
}

func (b *Board) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if len(b.Columns) == 0 {
		b.Columns = append([]string(nil), DefaultColumns...)
	}
	return nil
}

// Board DTOs
type CreateBoardRequest struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}
