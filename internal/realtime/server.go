package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/arnold/kanban-collab-api/internal/audit"
	"github.com/arnold/kanban-collab-api/internal/metrics"
	"github.com/arnold/kanban-collab-api/internal/models"
	"github.com/arnold/kanban-collab-api/internal/presence"
	"github.com/arnold/kanban-collab-api/internal/store"
)

// Records is the part of the durable record store the handlers use.
type Records interface {
	CreateCard(ctx context.Context, card *models.Card) error
	GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error)
	UpdateCard(ctx context.Context, id uuid.UUID, patch models.CardPatch) (*models.Card, error)
	MoveCard(ctx context.Context, id uuid.UUID, column string, position int) (*models.Card, error)
	DeleteCard(ctx context.Context, id uuid.UUID) (*models.Card, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
}

type handlerFunc func(ctx context.Context, c Conn, data json.RawMessage) error

const cardLockStripes = 64

// Server applies client events: it persists, audits and fans out.
type Server struct {
	hub      *Hub
	sessions *Sessions
	presence presence.Store
	records  Records
	audit    *audit.Sink

	handlers map[string]handlerFunc

	cardLocks [cardLockStripes]sync.Mutex
}

func NewServer(hub *Hub, sessions *Sessions, ps presence.Store, records Records, sink *audit.Sink) *Server {
	s := &Server{
		hub:      hub,
		sessions: sessions,
		presence: ps,
		records:  records,
		audit:    sink,
	}
	s.handlers = map[string]handlerFunc{
		EventJoinBoard:   s.joinBoard,
		EventLeaveBoard:  s.leaveBoard,
		EventCreateCard:  s.createCard,
		EventUpdateCard:  s.updateCard,
		EventMoveCard:    s.moveCard,
		EventDeleteCard:  s.deleteCard,
		EventTypingStart: s.typingStart,
		EventTypingStop:  s.typingStop,
		EventPing:        s.ping,
	}
	return s
}

func (s *Server) Hub() *Hub                { return s.hub }
func (s *Server) Sessions() *Sessions      { return s.sessions }
func (s *Server) Presence() presence.Store { return s.presence }

// Handle processes one inbound frame from c. It never returns an error and
// never panics: failures are logged and the frame is dropped.
func (s *Server) Handle(ctx context.Context, c Conn, frame []byte) {
	msg, err := DecodeMessage(frame)
	if err != nil {
		metrics.HandlerFailures.WithLabelValues("unknown", "malformed").Inc()
		log.WithError(err).WithField("conn", c.ID()).Debug("realtime: bad envelope")
		s.hub.SendTo(c, EventError, ErrorReply{Message: "invalid message format"})
		return
	}

	handler, ok := s.handlers[msg.Event]
	if !ok {
		metrics.HandlerFailures.WithLabelValues("unknown", "unknown_event").Inc()
		log.WithFields(log.Fields{"conn": c.ID(), "event": msg.Event}).Debug("realtime: unknown event")
		s.hub.SendTo(c, EventError, ErrorReply{Message: "unknown event", Event: msg.Event})
		return
	}

	metrics.Events.WithLabelValues(msg.Event, "inbound").Inc()
	s.run(ctx, c, msg.Event, func() error { return handler(ctx, c, msg.Data) })
}

// Disconnect cleans up after a connection that went away, with or without
// a prior leave-board. Safe to call more than once.
func (s *Server) Disconnect(ctx context.Context, c Conn) {
	s.run(ctx, c, "disconnect", func() error {
		s.hub.LeaveAll(c)
		sess, ok := s.sessions.Delete(c.ID())
		if !ok {
			return nil
		}
		s.removePresence(ctx, sess.BoardID, sess.UserID)
		s.broadcastPresence(ctx, sess.BoardID)
		log.WithFields(log.Fields{"conn": c.ID(), "board": sess.BoardID, "user": sess.UserID}).Info("realtime: user disconnected")
		return nil
	})
}

func (s *Server) run(ctx context.Context, c Conn, event string, fn func() error) {
	start := time.Now()
	defer func() {
		metrics.HandlerLatency.WithLabelValues(event).Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			metrics.HandlerFailures.WithLabelValues(event, "panic").Inc()
			log.WithFields(log.Fields{"conn": c.ID(), "event": event, "panic": r}).Error("realtime: handler panicked")
		}
	}()

	err := fn()
	switch {
	case err == nil:
	case errors.Is(err, errMalformed):
		metrics.HandlerFailures.WithLabelValues(event, "malformed").Inc()
		log.WithError(err).WithFields(log.Fields{"conn": c.ID(), "event": event}).Debug("realtime: payload ignored")
	case errors.Is(err, store.ErrCardNotFound), errors.Is(err, store.ErrBoardNotFound):
		metrics.HandlerFailures.WithLabelValues(event, "not_found").Inc()
		log.WithError(err).WithFields(log.Fields{"conn": c.ID(), "event": event}).Debug("realtime: target missing, ignored")
	default:
		metrics.HandlerFailures.WithLabelValues(event, "persistence").Inc()
		log.WithError(err).WithFields(log.Fields{"conn": c.ID(), "event": event}).Error("realtime: handler failed")
	}
}

// Snapshot returns the users present on a board. When the presence store
// errors, the answer is rebuilt from the local sessions.
func (s *Server) Snapshot(ctx context.Context, boardID string) map[string]string {
	users, err := s.presence.GetAll(ctx, boardID)
	if err == nil {
		return users
	}
	log.WithError(err).WithField("board", boardID).Warn("realtime: presence read failed, using local sessions")
	users = map[string]string{}
	for _, sess := range s.sessions.ForBoard(boardID) {
		users[sess.UserID] = sess.UserName
	}
	return users
}

func (s *Server) broadcastPresence(ctx context.Context, boardID string) {
	s.hub.Emit(boardID, EventPresenceUpdate, s.Snapshot(ctx, boardID))
}

func (s *Server) removePresence(ctx context.Context, boardID, userID string) {
	if userID == "" {
		return
	}
	if err := s.presence.Remove(ctx, boardID, userID); err != nil {
		log.WithError(err).WithFields(log.Fields{"board": boardID, "user": userID}).Warn("realtime: presence remove failed")
	}
}

// actor resolves the acting user: the payload wins, then the session.
func (s *Server) actor(c Conn, userID string) string {
	if userID != "" {
		return userID
	}
	if sess, ok := s.sessions.Get(c.ID()); ok {
		return sess.UserID
	}
	return ""
}

// lockCard serializes persist-then-broadcast for one card, so the last
// broadcast about a card carries its last persisted state.
func (s *Server) lockCard(id uuid.UUID) func() {
	mu := &s.cardLocks[int(id[len(id)-1])%cardLockStripes]
	mu.Lock()
	return mu.Unlock
}

func parseID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, errMalformed
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errMalformed
	}
	return id, nil
}
