package realtime

import (
	"sync"

	"github.com/arnold/kanban-collab-api/internal/presence"
)

// Session is what a connection announced on join-board.
type Session struct {
	ConnID   string
	UserID   string
	UserName string
	BoardID  string
}

// Sessions maps connection id to session. It lives as long as the process.
type Sessions struct {
	mu     sync.RWMutex
	byConn map[string]Session
}

func NewSessions() *Sessions {
	return &Sessions{byConn: make(map[string]Session)}
}

func (s *Sessions) Put(sess Session) {
	s.mu.Lock()
	s.byConn[sess.ConnID] = sess
	s.mu.Unlock()
}

func (s *Sessions) Get(connID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byConn[connID]
	return sess, ok
}

// Delete removes and returns the session of a connection.
func (s *Sessions) Delete(connID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byConn[connID]
	if ok {
		delete(s.byConn, connID)
	}
	return sess, ok
}

// DeleteIf removes the session of a connection only when it is on boardID.
func (s *Sessions) DeleteIf(connID, boardID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byConn[connID]
	if !ok || sess.BoardID != boardID {
		return Session{}, false
	}
	delete(s.byConn, connID)
	return sess, true
}

// ForBoard returns the sessions currently on a board.
func (s *Sessions) ForBoard(boardID string) []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Session
	for _, sess := range s.byConn {
		if sess.BoardID == boardID {
			out = append(out, sess)
		}
	}
	return out
}

// ConnsForUser returns the ids of every connection a user joined with.
func (s *Sessions) ConnsForUser(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, sess := range s.byConn {
		if sess.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids
}

// PresenceEntries converts all sessions into presence entries.
func (s *Sessions) PresenceEntries() []presence.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]presence.Entry, 0, len(s.byConn))
	for _, sess := range s.byConn {
		entries = append(entries, presence.Entry{BoardID: sess.BoardID, UserID: sess.UserID, Name: sess.UserName})
	}
	return entries
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byConn)
}
