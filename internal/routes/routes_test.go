package routes

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnold/kanban-collab-api/internal/audit"
	"github.com/arnold/kanban-collab-api/internal/config"
	"github.com/arnold/kanban-collab-api/internal/handlers"
	"github.com/arnold/kanban-collab-api/internal/middleware"
	"github.com/arnold/kanban-collab-api/internal/presence"
	"github.com/arnold/kanban-collab-api/internal/realtime"
	"github.com/arnold/kanban-collab-api/internal/store"
	"github.com/arnold/kanban-collab-api/internal/testing/testdb"
)

type stack struct {
	app      *fiber.App
	store    *store.Store
	server   *realtime.Server
	identity *middleware.Identity
}

// newStack wires the whole HTTP surface the way cmd/server does. The
// prometheus middleware registers global collectors, so build it once per test
// binary.
func newStack(t *testing.T) *stack {
	t.Helper()
	cfg := &config.Config{AllowedOrigins: "*", Environment: "test", SendBuffer: 16}
	st := store.New(testdb.New(t))
	ps := presence.NewFallbackStore(nil)
	server := realtime.NewServer(realtime.NewHub(), realtime.NewSessions(), ps, st, audit.NewSink(st))
	identity := middleware.NewIdentity("test-secret")

	app := NewApp(cfg)
	Setup(app, handlers.New(st, identity, ps), handlers.NewWebSocketHandler(server, cfg.SendBuffer), identity)
	return &stack{app: app, store: st, server: server, identity: identity}
}

func TestRoutes(t *testing.T) {
	s := newStack(t)

	t.Run("health", func(t *testing.T) {
		resp, err := s.app.Test(httptest.NewRequest("GET", "/api/health", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("boards", func(t *testing.T) {
		resp, err := s.app.Test(httptest.NewRequest("GET", "/api/boards", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("cors", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/health", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		resp, err := s.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := s.app.Test(httptest.NewRequest("GET", "/metrics", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("websocket requires upgrade", func(t *testing.T) {
		resp, err := s.app.Test(httptest.NewRequest("GET", "/ws", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
	})

	t.Run("websocket session", func(t *testing.T) {
		testWebSocketSession(t, s)
	})
}

func testWebSocketSession(t *testing.T, s *stack) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.app.Listener(ln)
	t.Cleanup(func() { s.app.Shutdown() })

	board, err := s.store.CreateBoard(context.Background(), "Live", nil)
	require.NoError(t, err)
	token, err := s.identity.Generate("u1", "Alice")
	require.NoError(t, err)

	ws, _, err := fastws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws?token="+token, nil)
	require.NoError(t, err)

	// the token fills in the user; the payload only names the board
	join, err := json.Marshal(realtime.Message{Event: realtime.EventJoinBoard, Data: json.RawMessage(`{"boardId":"` + board.ID.String() + `"}`)})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(fastws.TextMessage, join))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, frame, err := ws.ReadMessage()
	require.NoError(t, err)
	msg, err := realtime.DecodeMessage(frame)
	require.NoError(t, err)
	assert.Equal(t, realtime.EventPresenceUpdate, msg.Event)
	assert.JSONEq(t, `{"u1":"Alice"}`, string(msg.Data))

	require.NoError(t, ws.Close())

	// closing the socket runs the disconnect cleanup
	require.Eventually(t, func() bool {
		return s.server.Sessions().Len() == 0 &&
			len(s.server.Snapshot(context.Background(), board.ID.String())) == 0
	}, 5*time.Second, 20*time.Millisecond)
}
