package handlers

import (
	"github.com/arnold/kanban-collab-api/internal/middleware"
	"github.com/arnold/kanban-collab-api/internal/store"
)

// PresenceBackend reports which presence backend is serving.
type PresenceBackend interface {
	Backend() string
}

// Handler serves the request/response API.
type Handler struct {
	store    *store.Store
	identity *middleware.Identity
	presence PresenceBackend
}

func New(st *store.Store, identity *middleware.Identity, presence PresenceBackend) *Handler {
	return &Handler{store: st, identity: identity, presence: presence}
}
