package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Client -> server events
const (
	EventJoinBoard   = "join-board"
	EventLeaveBoard  = "leave-board"
	EventCreateCard  = "create-card"
	EventUpdateCard  = "update-card"
	EventMoveCard    = "move-card"
	EventDeleteCard  = "delete-card"
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"
	EventPing        = "ping"
)

// Server -> client events
const (
	EventPresenceUpdate    = "presence-update"
	EventCardCreated       = "card-created"
	EventCardUpdated       = "card-updated"
	EventCardMoved         = "card-moved"
	EventCardDeleted       = "card-deleted"
	EventUserTyping        = "user-typing"
	EventUserStoppedTyping = "user-stopped-typing"
	EventNotification      = "notification"
	EventPong              = "pong"
	EventError             = "error"
)

var errMalformed = errors.New("malformed payload")

// Message is the envelope carried by every frame in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeMessage parses one inbound frame.
func DecodeMessage(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("decode envelope: %w", err)
	}
	if msg.Event == "" {
		return Message{}, errors.New("decode envelope: missing event name")
	}
	return msg, nil
}

// EncodeMessage builds an outbound frame.
func EncodeMessage(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Message{Event: event, Data: data})
}

// decodePayload unmarshals data into v. Anything that does not fit is
// reported as errMalformed.
func decodePayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return errMalformed
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

// dueDate accepts an RFC 3339 timestamp or a plain 2006-01-02 date. Any
// other value, including "" and null, decodes as no due date rather than
// failing the whole payload.
type dueDate struct {
	t *time.Time
}

func (d *dueDate) UnmarshalJSON(data []byte) error {
	d.t = nil
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil || raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			d.t = &t
			return nil
		}
	}
	return nil
}

func (d dueDate) value() *time.Time { return d.t }

type joinPayload struct {
	BoardID  string `json:"boardId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// displayName picks the first name field the client sent.
func (p joinPayload) displayName() string {
	for _, n := range []string{p.UserName, p.Username, p.Name} {
		if n != "" {
			return n
		}
	}
	return ""
}

type leavePayload struct {
	BoardID string `json:"boardId"`
	UserID  string `json:"userId"`
}

type createCardPayload struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Assignee    string     `json:"assignee"`
	Labels      []string   `json:"labels"`
	Position    int        `json:"position"`
	Column      string     `json:"column"`
	DueDate     dueDate    `json:"dueDate"`
	BoardID     string     `json:"boardId"`
	UserID      string     `json:"userId"`
}

type updateCardPayload struct {
	ID          string     `json:"id"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Assignee    *string    `json:"assignee"`
	Labels      *[]string  `json:"labels"`
	Position    *int       `json:"position"`
	Column      *string    `json:"column"`
	DueDate     dueDate    `json:"dueDate"`
	BoardID     string     `json:"boardId"`
	UserID      string     `json:"userId"`
}

type moveCardPayload struct {
	CardID    string `json:"cardId"`
	NewColumn string `json:"newColumn"`
	Position  int    `json:"position"`
	BoardID   string `json:"boardId"`
	UserID    string `json:"userId"`
}

type deleteCardPayload struct {
	CardID  string `json:"cardId"`
	BoardID string `json:"boardId"`
	UserID  string `json:"userId"`
}

type typingPayload struct {
	BoardID  string `json:"boardId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	CardID   string `json:"cardId,omitempty"`
}

// UserTyping is the payload of user-typing.
type UserTyping struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	CardID   string `json:"cardId"`
}

// UserStoppedTyping is the payload of user-stopped-typing.
type UserStoppedTyping struct {
	UserID string `json:"userId"`
	CardID string `json:"cardId"`
}

// CardDeleted is the payload of card-deleted.
type CardDeleted struct {
	ID      string `json:"id"`
	BoardID string `json:"boardId"`
}

// ErrorReply is sent to the originating connection only.
type ErrorReply struct {
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}
