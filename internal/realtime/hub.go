package realtime

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/arnold/kanban-collab-api/internal/metrics"
)

var (
	// ErrConnClosed is returned by Send after the connection went away.
	ErrConnClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned by Send when the client is not draining.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn is one live client connection.
type Conn interface {
	ID() string
	// Send queues one encoded frame. It must not block on a slow client.
	Send(frame []byte) error
}

// Publisher forwards room emissions to other server instances.
type Publisher interface {
	Publish(boardID, exceptConnID string, frame []byte)
}

// Hub groups connections into per-board rooms.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Conn // boardID -> connID -> conn

	relay Publisher
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]Conn)}
}

// SetRelay makes every room emission also go to other instances.
func (h *Hub) SetRelay(p Publisher) {
	h.mu.Lock()
	h.relay = p
	h.mu.Unlock()
}

// Join adds a connection to a board room. Joining twice is harmless.
func (h *Hub) Join(boardID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[boardID] == nil {
		h.rooms[boardID] = make(map[string]Conn)
	}
	h.rooms[boardID][c.ID()] = c
	log.WithFields(log.Fields{"conn": c.ID(), "board": boardID, "total": len(h.rooms[boardID])}).Debug("hub: joined room")
}

// Leave removes a connection from a board room.
func (h *Hub) Leave(boardID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(boardID, c.ID())
}

// LeaveAll removes a connection from every room and returns the boards it was in.
func (h *Hub) LeaveAll(c Conn) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var boards []string
	for boardID, conns := range h.rooms {
		if _, ok := conns[c.ID()]; ok {
			boards = append(boards, boardID)
		}
	}
	for _, boardID := range boards {
		h.leaveLocked(boardID, c.ID())
	}
	return boards
}

func (h *Hub) leaveLocked(boardID, connID string) {
	conns, ok := h.rooms[boardID]
	if !ok {
		return
	}
	delete(conns, connID)
	log.WithFields(log.Fields{"conn": connID, "board": boardID, "remaining": len(conns)}).Debug("hub: left room")
	if len(conns) == 0 {
		delete(h.rooms, boardID)
	}
}

// Members returns the connection ids currently in a room.
func (h *Hub) Members(boardID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms[boardID]))
	for id := range h.rooms[boardID] {
		ids = append(ids, id)
	}
	return ids
}

// Emit sends an event to every connection in a room, sender included.
func (h *Hub) Emit(boardID, event string, payload interface{}) {
	h.EmitExcept(boardID, "", event, payload)
}

// EmitExcept sends an event to every connection in a room except exceptConnID.
func (h *Hub) EmitExcept(boardID, exceptConnID, event string, payload interface{}) {
	frame, err := EncodeMessage(event, payload)
	if err != nil {
		log.WithError(err).WithField("board", boardID).Error("hub: encode failed")
		return
	}
	metrics.Events.WithLabelValues(event, "outbound").Inc()
	h.Deliver(boardID, exceptConnID, frame)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil {
		relay.Publish(boardID, exceptConnID, frame)
	}
}

// Deliver writes an already encoded frame to the local members of a room.
// Closed or saturated connections are skipped.
func (h *Hub) Deliver(boardID, exceptConnID string, frame []byte) {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.rooms[boardID]))
	for id, c := range h.rooms[boardID] {
		if id != exceptConnID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(frame); err != nil {
			metrics.DroppedDeliveries.Inc()
			log.WithError(err).WithFields(log.Fields{"conn": c.ID(), "board": boardID}).Debug("hub: delivery skipped")
		}
	}
}

// SendTo sends an event to a single connection.
func (h *Hub) SendTo(c Conn, event string, payload interface{}) {
	frame, err := EncodeMessage(event, payload)
	if err != nil {
		log.WithError(err).WithField("conn", c.ID()).Error("hub: encode failed")
		return
	}
	metrics.Events.WithLabelValues(event, "outbound").Inc()
	if err := c.Send(frame); err != nil {
		metrics.DroppedDeliveries.Inc()
		log.WithError(err).WithField("conn", c.ID()).Debug("hub: delivery skipped")
	}
}

// Conn looks up a live connection by id in any room.
func (h *Hub) Conn(connID string) (Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conns := range h.rooms {
		if c, ok := conns[connID]; ok {
			return c, true
		}
	}
	return nil, false
}
