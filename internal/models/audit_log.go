package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit event kinds
const (
	AuditUserJoined  = "UserJoined"
	AuditUserLeft    = "UserLeft"
	AuditCardCreated = "CardCreated"
	AuditCardUpdated = "CardUpdated"
	AuditCardMoved   = "CardMoved"
	AuditCardDeleted = "CardDeleted"
)

// AuditLog is append-only. Rows only disappear with their board.
type AuditLog struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Event     string         `json:"event" gorm:"not null;index"`
	UserID    string         `json:"userId" gorm:"not null"`
	CardID    *uuid.UUID     `json:"cardId" gorm:"type:uuid"`
	BoardID   string         `json:"BoardId" gorm:"index;not null"`
	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
