// Package audit appends domain events to the audit trail.
//
// Auditing is diagnostic, not authoritative: Record never returns an error
// and callers must not make the primary mutation depend on it.
package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/arnold/kanban-collab-api/internal/metrics"
	"github.com/arnold/kanban-collab-api/internal/models"
)

// Appender persists one audit row.
type Appender interface {
	AppendAudit(ctx context.Context, entry *models.AuditLog) error
}

// Entry describes who did what where. Details may be a string or any
// JSON-encodable value.
type Entry struct {
	UserID  string
	CardID  *uuid.UUID
	BoardID string
	Details interface{}
}

type Sink struct {
	store Appender
}

func NewSink(store Appender) *Sink {
	return &Sink{store: store}
}

// Record appends one audit entry. Failures are logged and dropped.
func (s *Sink) Record(ctx context.Context, kind string, e Entry) {
	row := models.AuditLog{
		Event:   kind,
		UserID:  e.UserID,
		CardID:  e.CardID,
		BoardID: e.BoardID,
	}

	if e.Details != nil {
		data, err := json.Marshal(e.Details)
		if err != nil {
			log.WithError(err).WithField("event", kind).Warn("audit: details not encodable, dropping them")
		} else {
			row.Details = datatypes.JSON(data)
		}
	}

	if err := s.store.AppendAudit(ctx, &row); err != nil {
		metrics.AuditFailures.Inc()
		log.WithError(err).WithFields(log.Fields{
			"event": kind,
			"board": e.BoardID,
			"user":  e.UserID,
		}).Warn("audit: append failed")
	}
}
