package presence

import (
	"context"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// SeedFunc returns the presence entries still known to be live. It is used
// to repopulate memory when the primary backend is abandoned.
type SeedFunc func() []Entry

// FallbackStore serves from primary until the first failure, then from an
// in-process MemoryStore for the remaining process lifetime. There is no
// reconnection.
type FallbackStore struct {
	primary Store
	memory  *MemoryStore

	failed   atomic.Bool
	once     sync.Once
	seed     SeedFunc
	onSwitch func(err error)
}

type Option func(*FallbackStore)

// WithSeed sets the function used to repopulate memory on fallback.
func WithSeed(seed SeedFunc) Option {
	return func(f *FallbackStore) { f.seed = seed }
}

// OnFallback registers a callback fired once when the switch happens.
func OnFallback(fn func(err error)) Option {
	return func(f *FallbackStore) { f.onSwitch = fn }
}

// NewFallbackStore wraps primary. A nil primary means memory from the start.
func NewFallbackStore(primary Store, opts ...Option) *FallbackStore {
	f := &FallbackStore{primary: primary, memory: NewMemoryStore()}
	for _, opt := range opts {
		opt(f)
	}
	if primary == nil {
		f.failed.Store(true)
	}
	return f
}

// SetSeed replaces the seed function. Needed when the seed source is built
// after the store.
func (f *FallbackStore) SetSeed(seed SeedFunc) {
	f.seed = seed
}

// Backend reports which backend currently serves requests.
func (f *FallbackStore) Backend() string {
	if f.failed.Load() {
		return BackendMemory
	}
	return BackendRedis
}

func (f *FallbackStore) fallBack(err error) {
	f.once.Do(func() {
		log.WithError(err).Warn("presence: primary store unavailable, using in-memory store from now on")
		if f.seed != nil {
			for _, e := range f.seed() {
				f.memory.Set(context.Background(), e.BoardID, e.UserID, e.Name)
			}
		}
		f.failed.Store(true)
		if f.onSwitch != nil {
			f.onSwitch(err)
		}
	})
}

func (f *FallbackStore) Set(ctx context.Context, boardID, userID, name string) error {
	if !f.failed.Load() {
		err := f.primary.Set(ctx, boardID, userID, name)
		if err == nil {
			return nil
		}
		f.fallBack(err)
	}
	return f.memory.Set(ctx, boardID, userID, name)
}

func (f *FallbackStore) GetAll(ctx context.Context, boardID string) (map[string]string, error) {
	if !f.failed.Load() {
		users, err := f.primary.GetAll(ctx, boardID)
		if err == nil {
			return users, nil
		}
		f.fallBack(err)
	}
	return f.memory.GetAll(ctx, boardID)
}

func (f *FallbackStore) Remove(ctx context.Context, boardID, userID string) error {
	if !f.failed.Load() {
		err := f.primary.Remove(ctx, boardID, userID)
		if err == nil {
			return nil
		}
		f.fallBack(err)
	}
	return f.memory.Remove(ctx, boardID, userID)
}
