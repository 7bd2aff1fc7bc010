package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/arnold/kanban-collab-api/internal/logging"
	"github.com/arnold/kanban-collab-api/internal/metrics"
	"github.com/arnold/kanban-collab-api/internal/middleware"
	"github.com/arnold/kanban-collab-api/internal/realtime"
)

const (
	wsReadTimeout = 90 * time.Second
	wsPingPeriod  = 30 * time.Second
	wsWriteWait   = 10 * time.Second
)

// connection adapts a websocket to realtime.Conn. Frames are queued on send
// and written by a single goroutine; a full queue drops the frame.
type connection struct {
	id       string
	userID   string
	userName string
	conn     *websocket.Conn
	log      *log.Entry

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex // writeLoop and pingLoop share the socket
}

func (c *connection) ID() string { return c.id }

func (c *connection) Identity() (string, string) { return c.userID, c.userName }

func (c *connection) Send(frame []byte) error {
	select {
	case <-c.done:
		return realtime.ErrConnClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return realtime.ErrConnClosed
	default:
		return realtime.ErrSendBufferFull
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *connection) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(messageType, data)
}

func (c *connection) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// WebSocketHandler serves the realtime endpoint.
type WebSocketHandler struct {
	server     *realtime.Server
	sendBuffer int
	pingPeriod time.Duration
}

func NewWebSocketHandler(server *realtime.Server, sendBuffer int) *WebSocketHandler {
	if sendBuffer < 1 {
		sendBuffer = 64
	}
	return &WebSocketHandler{server: server, sendBuffer: sendBuffer, pingPeriod: wsPingPeriod}
}

// WebSocketUpgrade rejects plain HTTP requests on the websocket route.
// Identity, when present, has already been put in Locals by the identity middleware.
func WebSocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}
}

// Handle runs one websocket connection until the client goes away.
func (h *WebSocketHandler) Handle(ws *websocket.Conn) {
	userID, _ := ws.Locals(middleware.LocalUserID).(string)
	userName, _ := ws.Locals(middleware.LocalUserName).(string)

	conn := &connection{
		id:       uuid.NewString(),
		userID:   userID,
		userName: userName,
		conn:     ws,
		send:     make(chan []byte, h.sendBuffer),
		done:     make(chan struct{}),
	}
	conn.log = logging.ForConn(conn.id)

	ctx, cancel := context.WithCancel(context.Background())
	metrics.Connections.Inc()
	conn.log.WithField("user", userID).Info("ws: client connected")

	// the socket is pooled by the websocket package once Handle returns, so
	// both writer goroutines must be gone before that
	var writers sync.WaitGroup
	defer func() {
		conn.close()
		writers.Wait()
		h.server.Disconnect(ctx, conn)
		cancel()
		metrics.Connections.Dec()
		conn.log.Info("ws: client disconnected")
	}()

	ws.SetReadDeadline(time.Now().Add(wsReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	writers.Add(2)
	go func() {
		defer writers.Done()
		h.writeLoop(conn)
	}()
	go func() {
		defer writers.Done()
		h.pingLoop(conn)
	}()

	h.readLoop(ctx, conn)
}

func (h *WebSocketHandler) readLoop(ctx context.Context, conn *connection) {
	defer func() {
		if r := recover(); r != nil {
			conn.log.WithField("panic", r).Error("ws: panic in read loop")
		}
	}()

	for {
		messageType, frame, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				conn.log.WithError(err).Warn("ws: read failed")
			}
			return
		}
		conn.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		h.server.Handle(ctx, conn, frame)
	}
}

func (h *WebSocketHandler) writeLoop(conn *connection) {
	defer func() {
		if r := recover(); r != nil {
			conn.log.WithField("panic", r).Error("ws: panic in write loop")
		}
	}()

	for {
		select {
		case <-conn.done:
			return
		case frame := <-conn.send:
			if err := conn.write(websocket.TextMessage, frame); err != nil {
				conn.log.WithError(err).Warn("ws: write failed, closing")
				conn.close()
				conn.conn.Close()
				return
			}
		}
	}
}

func (h *WebSocketHandler) pingLoop(conn *connection) {
	defer func() {
		if r := recover(); r != nil {
			conn.log.WithField("panic", r).Error("ws: panic in ping loop")
		}
	}()

	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-conn.done:
			return
		case <-ticker.C:
			// done may have closed while the tick was pending
			select {
			case <-conn.done:
				return
			default:
			}
			if err := conn.ping(); err != nil {
				conn.log.WithError(err).Debug("ws: ping failed")
				return
			}
		}
	}
}
