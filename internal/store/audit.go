package store

import (
	"context"
	"fmt"

	"github.com/arnold/kanban-collab-api/internal/models"
)

func (s *Store) AppendAudit(ctx context.Context, entry *models.AuditLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append audit %s: %w", entry.Event, err)
	}
	return nil
}

// ListAudit returns the most recent entries of a board, newest first.
func (s *Store) ListAudit(ctx context.Context, boardID string, limit int) ([]models.AuditLog, error) {
	if limit < 1 || limit > AuditPageSize {
		limit = AuditPageSize
	}
	logs := []models.AuditLog{}
	if err := s.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit for board %s: %w", boardID, err)
	}
	return logs, nil
}
