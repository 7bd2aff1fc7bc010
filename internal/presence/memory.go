package presence

import (
	"context"
	"sync"
)

// MemoryStore keeps presence in process memory. It is only correct for a
// single process.
type MemoryStore struct {
	mu     sync.RWMutex
	boards map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{boards: make(map[string]map[string]string)}
}

func (m *MemoryStore) Set(_ context.Context, boardID, userID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.boards[boardID] == nil {
		m.boards[boardID] = make(map[string]string)
	}
	m.boards[boardID][userID] = name
	return nil
}

func (m *MemoryStore) GetAll(_ context.Context, boardID string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make(map[string]string, len(m.boards[boardID]))
	for id, name := range m.boards[boardID] {
		users[id] = name
	}
	return users, nil
}

func (m *MemoryStore) Remove(_ context.Context, boardID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if users, ok := m.boards[boardID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(m.boards, boardID)
		}
	}
	return nil
}
