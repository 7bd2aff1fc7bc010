package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arnold/kanban-collab-api/internal/audit"
	"github.com/arnold/kanban-collab-api/internal/models"
	"github.com/arnold/kanban-collab-api/internal/presence"
	"github.com/arnold/kanban-collab-api/internal/store"
	"github.com/arnold/kanban-collab-api/internal/testing/testdb"
)

// recorder is a Conn that keeps every frame it is sent.
type recorder struct {
	id string

	mu     sync.Mutex
	frames []Message
	closed bool
}

func newRecorder(id string) *recorder {
	return &recorder{id: id}
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrConnClosed
	}
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return err
	}
	r.frames = append(r.frames, msg)
	return nil
}

func (r *recorder) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// events returns the payloads of every frame named event, oldest first.
func (r *recorder) events(event string) []json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []json.RawMessage
	for _, f := range r.frames {
		if f.Event == event {
			out = append(out, f.Data)
		}
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.frames = nil
	r.mu.Unlock()
}

// identified is a recorder that carries an identity token.
type identified struct {
	*recorder
	userID, name string
}

func (i identified) Identity() (string, string) { return i.userID, i.name }

func decodeAs[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// lastOf decodes the most recent frame named event.
func lastOf[T any](t *testing.T, r *recorder, event string) T {
	t.Helper()
	frames := r.events(event)
	require.NotEmpty(t, frames, "no %s frame received by %s", event, r.id)
	return decodeAs[T](t, frames[len(frames)-1])
}

type env struct {
	server   *Server
	store    *store.Store
	presence presence.Store
}

func newEnv(t *testing.T) *env {
	return newEnvWithPresence(t, presence.NewMemoryStore())
}

func newEnvWithPresence(t *testing.T, ps presence.Store) *env {
	t.Helper()
	st := store.New(testdb.New(t))
	srv := NewServer(NewHub(), NewSessions(), ps, st, audit.NewSink(st))
	return &env{server: srv, store: st, presence: ps}
}

func (e *env) send(t *testing.T, c Conn, event string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(Message{Event: event, Data: data})
	require.NoError(t, err)
	e.server.Handle(context.Background(), c, frame)
}

func (e *env) board(t *testing.T) *models.Board {
	t.Helper()
	b, err := e.store.CreateBoard(context.Background(), "Team board", nil)
	require.NoError(t, err)
	return b
}

func (e *env) auditKinds(t *testing.T, boardID string) []string {
	t.Helper()
	logs, err := e.store.ListAudit(context.Background(), boardID, 0)
	require.NoError(t, err)
	kinds := make([]string, 0, len(logs))
	for _, l := range logs {
		kinds = append(kinds, l.Event)
	}
	return kinds
}
