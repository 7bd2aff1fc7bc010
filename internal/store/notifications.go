package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/arnold/kanban-collab-api/internal/models"
)

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications := []models.Notification{}
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("list notifications for %s: %w", userID, err)
	}
	return notifications, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		Update("read", true)
	if res.Error != nil {
		return fmt.Errorf("mark notification %s read: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
