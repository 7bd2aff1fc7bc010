// Package store is the durable record store: boards, cards, audit entries
// and notifications persisted through gorm.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arnold/kanban-collab-api/internal/models"
)

var (
	ErrBoardNotFound        = errors.New("board not found")
	ErrCardNotFound         = errors.New("card not found")
	ErrNotificationNotFound = errors.New("notification not found")
)

// AuditPageSize is how many audit entries a board listing returns.
const AuditPageSize = 50

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Dialect names the underlying database, e.g. "postgres" or "sqlite".
func (s *Store) Dialect() string {
	return s.db.Dialector.Name()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func orderedCards(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC").Order("created_at ASC")
}

func (s *Store) ListBoards(ctx context.Context) ([]models.Board, error) {
	boards := []models.Board{}
	if err := s.db.WithContext(ctx).
		Preload("Cards", orderedCards).
		Order("created_at ASC").
		Find(&boards).Error; err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	return boards, nil
}

func (s *Store) CreateBoard(ctx context.Context, name string, columns []string) (*models.Board, error) {
	board := models.Board{Name: name, Columns: columns}
	if err := s.db.WithContext(ctx).Create(&board).Error; err != nil {
		return nil, fmt.Errorf("create board: %w", err)
	}
	board.Cards = []models.Card{}
	return &board, nil
}

func (s *Store) GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	var board models.Board
	err := s.db.WithContext(ctx).
		Preload("Cards", orderedCards).
		First(&board, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBoardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get board %s: %w", id, err)
	}
	return &board, nil
}

// DeleteBoard removes a board together with its cards and audit entries.
func (s *Store) DeleteBoard(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("board_id = ?", id).Delete(&models.Card{}).Error; err != nil {
			return fmt.Errorf("delete cards of board %s: %w", id, err)
		}
		if err := tx.Where("board_id = ?", id.String()).Delete(&models.AuditLog{}).Error; err != nil {
			return fmt.Errorf("delete audit logs of board %s: %w", id, err)
		}
		res := tx.Delete(&models.Board{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete board %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrBoardNotFound
		}
		return nil
	})
}

func (s *Store) boardExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Board{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateCard persists card. The owning board must exist.
func (s *Store) CreateCard(ctx context.Context, card *models.Card) error {
	ok, err := s.boardExists(ctx, card.BoardID)
	if err != nil {
		return fmt.Errorf("create card: %w", err)
	}
	if !ok {
		return ErrBoardNotFound
	}
	if err := s.db.WithContext(ctx).Create(card).Error; err != nil {
		return fmt.Errorf("create card: %w", err)
	}
	return nil
}

func (s *Store) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	var card models.Card
	err := s.db.WithContext(ctx).First(&card, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get card %s: %w", id, err)
	}
	return &card, nil
}

// UpdateCard writes only the fields set in patch and returns the stored card.
func (s *Store) UpdateCard(ctx context.Context, id uuid.UUID, patch models.CardPatch) (*models.Card, error) {
	card, err := s.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return card, nil
	}
	patch.Apply(card)
	if err := s.db.WithContext(ctx).Model(card).Select(patchFields(patch)).Updates(card).Error; err != nil {
		return nil, fmt.Errorf("update card %s: %w", id, err)
	}
	return s.GetCard(ctx, id)
}

// MoveCard sets column and position of a card.
func (s *Store) MoveCard(ctx context.Context, id uuid.UUID, column string, position int) (*models.Card, error) {
	return s.UpdateCard(ctx, id, models.CardPatch{Column: &column, Position: &position})
}

// DeleteCard removes a card and returns what was deleted.
func (s *Store) DeleteCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	card, err := s.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Delete(&models.Card{}, "id = ?", id)
	if res.Error != nil {
		return nil, fmt.Errorf("delete card %s: %w", id, res.Error)
	}
	// a concurrent delete got there first
	if res.RowsAffected == 0 {
		return nil, ErrCardNotFound
	}
	return card, nil
}

func patchFields(p models.CardPatch) []string {
	var fields []string
	if p.Title != nil {
		fields = append(fields, "Title")
	}
	if p.Description != nil {
		fields = append(fields, "Description")
	}
	if p.Assignee != nil {
		fields = append(fields, "Assignee")
	}
	if p.Labels != nil {
		fields = append(fields, "Labels")
	}
	if p.DueDate != nil {
		fields = append(fields, "DueDate")
	}
	if p.Position != nil {
		fields = append(fields, "Position")
	}
	if p.Column != nil {
		fields = append(fields, "Column")
	}
	return fields
}
