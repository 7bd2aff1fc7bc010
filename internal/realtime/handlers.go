package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/arnold/kanban-collab-api/internal/audit"
	"github.com/arnold/kanban-collab-api/internal/models"
)

// IdentifiedConn is implemented by connections that arrived with an
// identity token. Its values fill in join-board payloads that omit them.
type IdentifiedConn interface {
	Conn
	Identity() (userID, name string)
}

// roomKey canonicalizes board ids so "ABC…" and "abc…" share a room.
func roomKey(boardID string) string {
	if id, err := uuid.Parse(boardID); err == nil {
		return id.String()
	}
	return boardID
}

func (s *Server) joinBoard(ctx context.Context, c Conn, data json.RawMessage) error {
	var p joinPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	name := p.displayName()
	if ic, ok := c.(IdentifiedConn); ok {
		tokenUser, tokenName := ic.Identity()
		if p.UserID == "" {
			p.UserID = tokenUser
		}
		if name == "" {
			name = tokenName
		}
	}
	if p.BoardID == "" || p.UserID == "" {
		return errMalformed
	}
	if name == "" {
		name = fmt.Sprintf("User%d", rand.Intn(1000))
	}
	boardID := roomKey(p.BoardID)

	// one board per connection: moving to another board leaves the old one
	if prev, ok := s.sessions.Get(c.ID()); ok {
		switch {
		case prev.BoardID != boardID:
			s.leave(ctx, c, prev.BoardID, prev.UserID)
		case prev.UserID != p.UserID:
			s.removePresence(ctx, prev.BoardID, prev.UserID)
		}
	}

	s.hub.Join(boardID, c)
	s.sessions.Put(Session{ConnID: c.ID(), UserID: p.UserID, UserName: name, BoardID: boardID})
	if err := s.presence.Set(ctx, boardID, p.UserID, name); err != nil {
		log.WithError(err).WithFields(log.Fields{"board": boardID, "user": p.UserID}).Warn("realtime: presence write failed")
	}
	s.broadcastPresence(ctx, boardID)
	s.audit.Record(ctx, models.AuditUserJoined, audit.Entry{
		UserID:  p.UserID,
		BoardID: boardID,
		Details: map[string]string{"userName": name},
	})

	log.WithFields(log.Fields{"conn": c.ID(), "board": boardID, "user": p.UserID}).Info("realtime: user joined board")
	return nil
}

func (s *Server) leaveBoard(ctx context.Context, c Conn, data json.RawMessage) error {
	var p leavePayload
	if len(data) > 0 && string(data) != "null" {
		if err := decodePayload(data, &p); err != nil {
			return err
		}
	}
	sess, hasSession := s.sessions.Get(c.ID())
	if p.BoardID == "" && hasSession {
		p.BoardID = sess.BoardID
	}
	if p.BoardID == "" {
		return errMalformed
	}
	boardID := roomKey(p.BoardID)
	if p.UserID == "" && hasSession && sess.BoardID == boardID {
		p.UserID = sess.UserID
	}

	s.leave(ctx, c, boardID, p.UserID)
	return nil
}

// leave runs the full leave sequence for one board. Every step tolerates
// state that is already gone.
func (s *Server) leave(ctx context.Context, c Conn, boardID, userID string) {
	s.hub.Leave(boardID, c)
	s.sessions.DeleteIf(c.ID(), boardID)
	s.removePresence(ctx, boardID, userID)
	s.broadcastPresence(ctx, boardID)
	s.audit.Record(ctx, models.AuditUserLeft, audit.Entry{
		UserID:  userID,
		BoardID: boardID,
		Details: map[string]interface{}{},
	})
}

func (s *Server) createCard(ctx context.Context, c Conn, data json.RawMessage) error {
	var p createCardPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.Title) == "" {
		return errMalformed
	}
	boardID, err := parseID(p.BoardID)
	if err != nil {
		return err
	}

	card := &models.Card{
		BoardID:     boardID,
		Title:       p.Title,
		Description: p.Description,
		Assignee:    p.Assignee,
		Labels:      p.Labels,
		Position:    p.Position,
		Column:      p.Column,
		DueDate:     p.DueDate.value(),
	}
	if err := s.records.CreateCard(ctx, card); err != nil {
		return err
	}

	actor := s.actor(c, p.UserID)
	s.audit.Record(ctx, models.AuditCardCreated, audit.Entry{
		UserID:  actor,
		CardID:  &card.ID,
		BoardID: boardID.String(),
		Details: fmt.Sprintf("Card \"%s\" created in column \"%s\"", card.Title, card.Column),
	})
	s.hub.Emit(boardID.String(), EventCardCreated, NormalizeCard(card, boardID.String()))
	s.notifyAssignee(ctx, c, actor, card)
	return nil
}

func (s *Server) updateCard(ctx context.Context, c Conn, data json.RawMessage) error {
	var p updateCardPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	id, err := parseID(p.ID)
	if err != nil {
		return err
	}
	defer s.lockCard(id)()
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return errMalformed
	}
	var rawPatch map[string]interface{}
	if err := json.Unmarshal(data, &rawPatch); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	patch := models.CardPatch{
		Title:       p.Title,
		Description: p.Description,
		Assignee:    p.Assignee,
		DueDate:     p.DueDate.value(),
		Position:    p.Position,
		Column:      p.Column,
	}
	if patch.Column != nil && *patch.Column == "" {
		column := models.DefaultColumn
		patch.Column = &column
	}
	if p.Labels != nil {
		patch.Labels = *p.Labels
		if patch.Labels == nil {
			patch.Labels = []string{}
		}
	}

	var previousAssignee string
	if p.Assignee != nil {
		before, err := s.records.GetCard(ctx, id)
		if err != nil {
			return err
		}
		previousAssignee = before.Assignee
	}

	card, err := s.records.UpdateCard(ctx, id, patch)
	if err != nil {
		return err
	}

	actor := s.actor(c, p.UserID)
	boardID := card.BoardID.String()
	s.audit.Record(ctx, models.AuditCardUpdated, audit.Entry{
		UserID:  actor,
		CardID:  &card.ID,
		BoardID: boardID,
		Details: rawPatch,
	})
	s.hub.Emit(boardID, EventCardUpdated, NormalizeCard(card, boardID))
	if p.Assignee != nil && card.Assignee != previousAssignee {
		s.notifyAssignee(ctx, c, actor, card)
	}
	return nil
}

func (s *Server) moveCard(ctx context.Context, c Conn, data json.RawMessage) error {
	var p moveCardPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	id, err := parseID(p.CardID)
	if err != nil {
		return err
	}
	defer s.lockCard(id)()
	column := p.NewColumn
	if column == "" {
		column = models.DefaultColumn
	}

	card, err := s.records.MoveCard(ctx, id, column, p.Position)
	if err != nil {
		return err
	}

	boardID := card.BoardID.String()
	s.audit.Record(ctx, models.AuditCardMoved, audit.Entry{
		UserID:  s.actor(c, p.UserID),
		CardID:  &card.ID,
		BoardID: boardID,
		Details: fmt.Sprintf("Card \"%s\" moved to column \"%s\"", card.Title, card.Column),
	})
	s.hub.Emit(boardID, EventCardMoved, NormalizeCard(card, boardID))
	return nil
}

func (s *Server) deleteCard(ctx context.Context, c Conn, data json.RawMessage) error {
	var p deleteCardPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	id, err := parseID(p.CardID)
	if err != nil {
		return err
	}
	defer s.lockCard(id)()

	card, err := s.records.DeleteCard(ctx, id)
	if err != nil {
		return err
	}

	boardID := card.BoardID.String()
	s.audit.Record(ctx, models.AuditCardDeleted, audit.Entry{
		UserID:  s.actor(c, p.UserID),
		CardID:  &card.ID,
		BoardID: boardID,
		Details: map[string]interface{}{},
	})
	s.hub.Emit(boardID, EventCardDeleted, CardDeleted{ID: card.ID.String(), BoardID: boardID})
	return nil
}

func (s *Server) typingStart(_ context.Context, c Conn, data json.RawMessage) error {
	var p typingPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	if p.BoardID == "" {
		return errMalformed
	}
	if p.UserName == "" {
		if sess, ok := s.sessions.Get(c.ID()); ok {
			p.UserName = sess.UserName
		}
	}
	s.hub.EmitExcept(roomKey(p.BoardID), c.ID(), EventUserTyping, UserTyping{
		UserID:   s.actor(c, p.UserID),
		UserName: p.UserName,
		CardID:   p.CardID,
	})
	return nil
}

func (s *Server) typingStop(_ context.Context, c Conn, data json.RawMessage) error {
	var p typingPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	if p.BoardID == "" {
		return errMalformed
	}
	s.hub.EmitExcept(roomKey(p.BoardID), c.ID(), EventUserStoppedTyping, UserStoppedTyping{
		UserID: s.actor(c, p.UserID),
		CardID: p.CardID,
	})
	return nil
}

func (s *Server) ping(_ context.Context, c Conn, _ json.RawMessage) error {
	s.hub.SendTo(c, EventPong, map[string]time.Time{"time": time.Now().UTC()})
	return nil
}

// notifyAssignee stores an assignment notification and pushes it to the
// assignee's live connections. Like auditing, failures are only logged.
func (s *Server) notifyAssignee(ctx context.Context, c Conn, actor string, card *models.Card) {
	if card.Assignee == "" || card.Assignee == actor {
		return
	}
	actorName := actor
	if sess, ok := s.sessions.Get(c.ID()); ok && sess.UserID == actor && sess.UserName != "" {
		actorName = sess.UserName
	}
	if actorName == "" {
		actorName = "Someone"
	}

	n := &models.Notification{
		UserID:  card.Assignee,
		Type:    models.NotificationAssignment,
		Message: fmt.Sprintf("%s assigned you to \"%s\"", actorName, card.Title),
	}
	if err := s.records.CreateNotification(ctx, n); err != nil {
		log.WithError(err).WithFields(log.Fields{"card": card.ID, "assignee": card.Assignee}).Warn("realtime: notification not stored")
		return
	}
	for _, connID := range s.sessions.ConnsForUser(card.Assignee) {
		if conn, ok := s.hub.Conn(connID); ok {
			s.hub.SendTo(conn, EventNotification, n)
		}
	}
}
