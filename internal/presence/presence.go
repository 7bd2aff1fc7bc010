// Package presence tracks which users are currently looking at which board.
//
// The primary backend is a Redis hash per board. When Redis is missing or
// fails, FallbackStore switches to an in-process map for the rest of the
// process lifetime. Callers only see the Store contract.
package presence

import "context"

// KeyPrefix prefixes the per-board hash key in Redis.
const KeyPrefix = "presence:"

// Backend names reported by Backend().
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Store maps board -> user -> display name.
type Store interface {
	Set(ctx context.Context, boardID, userID, name string) error
	// GetAll never returns a nil map; an unknown board yields an empty one.
	GetAll(ctx context.Context, boardID string) (map[string]string, error)
	// Remove is a no-op when the entry does not exist.
	Remove(ctx context.Context, boardID, userID string) error
}

// Entry is one present user on one board.
type Entry struct {
	BoardID string
	UserID  string
	Name    string
}

func key(boardID string) string {
	return KeyPrefix + boardID
}
