package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnold/kanban-collab-api/internal/models"
	"github.com/arnold/kanban-collab-api/internal/testing/testdb"
)

func newStore(t *testing.T) *Store {
	return New(testdb.New(t))
}

func TestCreateBoardDefaults(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	board, err := s.CreateBoard(ctx, "Sprint", nil)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, board.ID)
	assert.Equal(t, []string{"Todo", "In Progress", "Done"}, board.Columns)

	got, err := s.GetBoard(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sprint", got.Name)
	assert.Equal(t, board.Columns, got.Columns)
	assert.Empty(t, got.Cards)
	assert.Equal(t, "sqlite", s.Dialect())
}

func TestGetBoardNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.GetBoard(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrBoardNotFound)
}

func TestCreateCardRequiresBoard(t *testing.T) {
	s := newStore(t)
	err := s.CreateCard(context.Background(), &models.Card{Title: "orphan", BoardID: uuid.New()})
	assert.ErrorIs(t, err, ErrBoardNotFound)
}

func TestCreateCardDefaults(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	board, err := s.CreateBoard(ctx, "b", nil)
	require.NoError(t, err)

	card := &models.Card{Title: "Write spec", BoardID: board.ID}
	require.NoError(t, s.CreateCard(ctx, card))

	got, err := s.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "Todo", got.Column)
	assert.Equal(t, 0, got.Position)
	assert.Equal(t, []string{}, got.Labels)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestBoardCardsOrderedByPositionThenCreation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	board, err := s.CreateBoard(ctx, "b", nil)
	require.NoError(t, err)

	for _, c := range []models.Card{
		{Title: "third", Position: 2},
		{Title: "first", Position: 0},
		{Title: "second", Position: 0},
	} {
		c := c
		c.BoardID = board.ID
		require.NoError(t, s.CreateCard(ctx, &c))
		time.Sleep(2 * time.Millisecond)
	}

	got, err := s.GetBoard(ctx, board.ID)
	require.NoError(t, err)
	require.Len(t, got.Cards, 3)
	assert.Equal(t, "first", got.Cards[0].Title)
	assert.Equal(t, "second", got.Cards[1].Title)
	assert.Equal(t, "third", got.Cards[2].Title)

	boards, err := s.ListBoards(ctx)
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Len(t, boards[0].Cards, 3)
}

func TestUpdateCardIsPartial(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	board, err := s.CreateBoard(ctx, "b", nil)
	require.NoError(t, err)
	card := &models.Card{Title: "t", Description: "keep me", Labels: []string{"a"}, BoardID: board.ID}
	require.NoError(t, s.CreateCard(ctx, card))

	title := "renamed"
	pos := 0
	got, err := s.UpdateCard(ctx, card.ID, models.CardPatch{Title: &title, Position: &pos, Labels: []string{"x", "y"}})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, "keep me", got.Description)
	assert.Equal(t, []string{"x", "y"}, got.Labels)

	_, err = s.UpdateCard(ctx, uuid.New(), models.CardPatch{Title: &title})
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestMoveCard(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	board, err := s.CreateBoard(ctx, "b", nil)
	require.NoError(t, err)
	card := &models.Card{Title: "t", Position: 4, BoardID: board.ID}
	require.NoError(t, s.CreateCard(ctx, card))

	got, err := s.MoveCard(ctx, card.ID, "Done", 0)
	require.NoError(t, err)
	assert.Equal(t, "Done", got.Column)
	assert.Equal(t, 0, got.Position)
}

func TestDeleteCard(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	board, err := s.CreateBoard(ctx, "b", nil)
	require.NoError(t, err)
	card := &models.Card{Title: "t", BoardID: board.ID}
	require.NoError(t, s.CreateCard(ctx, card))

	deleted, err := s.DeleteCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, board.ID, deleted.BoardID)

	_, err = s.DeleteCard(ctx, card.ID)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestDeleteBoardCascades(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	board, err := s.CreateBoard(ctx, "b", nil)
	require.NoError(t, err)
	card := &models.Card{Title: "t", BoardID: board.ID}
	require.NoError(t, s.CreateCard(ctx, card))
	require.NoError(t, s.AppendAudit(ctx, &models.AuditLog{Event: models.AuditCardCreated, UserID: "u1", BoardID: board.ID.String()}))

	require.NoError(t, s.DeleteBoard(ctx, board.ID))

	_, err = s.GetCard(ctx, card.ID)
	assert.ErrorIs(t, err, ErrCardNotFound)
	logs, err := s.ListAudit(ctx, board.ID.String(), 0)
	require.NoError(t, err)
	assert.Empty(t, logs)

	assert.ErrorIs(t, s.DeleteBoard(ctx, board.ID), ErrBoardNotFound)
}

func TestListAuditNewestFirstAndCapped(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	board, err := s.CreateBoard(ctx, "b", nil)
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < AuditPageSize+5; i++ {
		require.NoError(t, s.AppendAudit(ctx, &models.AuditLog{
			Event:     models.AuditCardMoved,
			UserID:    "u1",
			BoardID:   board.ID.String(),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	logs, err := s.ListAudit(ctx, board.ID.String(), 0)
	require.NoError(t, err)
	require.Len(t, logs, AuditPageSize)
	assert.True(t, logs[0].CreatedAt.After(logs[1].CreatedAt))
}

func TestNotifications(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	older := &models.Notification{UserID: "u1", Message: "older", CreatedAt: time.Now().Add(-time.Minute)}
	newer := &models.Notification{UserID: "u1", Message: "newer", Type: models.NotificationAssignment}
	other := &models.Notification{UserID: "u2", Message: "not yours"}
	for _, n := range []*models.Notification{older, newer, other} {
		require.NoError(t, s.CreateNotification(ctx, n))
	}

	list, err := s.ListNotifications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Message)
	assert.Equal(t, "info", list[1].Type)
	assert.False(t, list[1].Read)

	require.NoError(t, s.MarkNotificationRead(ctx, older.ID))
	list, err = s.ListNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, list[1].Read)

	assert.ErrorIs(t, s.MarkNotificationRead(ctx, uuid.New()), ErrNotificationNotFound)
}
