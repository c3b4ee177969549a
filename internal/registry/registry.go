// Package registry holds the window → location mapping.
package registry

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ports/curloc/internal/models"
)

// Store is the registry contract shared by the in-memory and SQLite
// implementations. Entries never expire by time; only Evict or Clear remove
// them.
type Store interface {
	// Put records e, replacing any previous entry for e.Window. The store
	// stamps RegisteredAt.
	Put(ctx context.Context, e models.Entry) error
	// Get returns the current entry for window; ok is false when absent.
	Get(ctx context.Context, window models.WindowID) (entry models.Entry, ok bool, err error)
	// Evict removes window's entry. Evicting an absent window is not an error.
	Evict(ctx context.Context, window models.WindowID) error
	// List returns all entries ordered by window id.
	List(ctx context.Context) ([]models.Entry, error)
	// Clear removes every entry.
	Clear(ctx context.Context) error
	Close() error
}

// slot serialises mutations for one window. Readers never take mu; they load
// the current entry pointer, which is only ever replaced whole.
type slot struct {
	mu    sync.Mutex
	entry atomic.Pointer[models.Entry]
	dead  bool // set under mu once the slot has been unlinked from the map
}

// Memory is a Store kept in process memory, used by the daemon.
type Memory struct {
	slots sync.Map // models.WindowID -> *slot
	now   func() time.Time
}

// NewMemory returns an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{now: func() time.Time { return time.Now().UTC() }}
}

var _ Store = (*Memory)(nil)

// lockSlot returns the live slot for window with its mutex held, creating it
// when missing. A slot unlinked by a concurrent Evict is retried.
func (m *Memory) lockSlot(window models.WindowID) *slot {
	for {
		v, _ := m.slots.LoadOrStore(window, &slot{})
		s := v.(*slot)
		s.mu.Lock()
		if !s.dead {
			return s
		}
		s.mu.Unlock()
	}
}

// Put implements Store. It never fails.
func (m *Memory) Put(_ context.Context, e models.Entry) error {
	e.RegisteredAt = m.now()
	s := m.lockSlot(e.Window)
	s.entry.Store(&e)
	s.mu.Unlock()
	return nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, window models.WindowID) (models.Entry, bool, error) {
	v, ok := m.slots.Load(window)
	if !ok {
		return models.Entry{}, false, nil
	}
	e := v.(*slot).entry.Load()
	if e == nil {
		return models.Entry{}, false, nil
	}
	return *e, true, nil
}

// Evict implements Store.
func (m *Memory) Evict(_ context.Context, window models.WindowID) error {
	v, ok := m.slots.Load(window)
	if !ok {
		return nil
	}
	s := v.(*slot)
	s.mu.Lock()
	if !s.dead {
		s.dead = true
		s.entry.Store(nil)
		m.slots.CompareAndDelete(window, s)
	}
	s.mu.Unlock()
	return nil
}

// List implements Store.
func (m *Memory) List(ctx context.Context) ([]models.Entry, error) {
	out := make([]models.Entry, 0)
	m.slots.Range(func(k, _ any) bool {
		if e, ok, _ := m.Get(ctx, k.(models.WindowID)); ok {
			out = append(out, e)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Window < out[j].Window })
	return out, nil
}

// Clear implements Store.
func (m *Memory) Clear(ctx context.Context) error {
	m.slots.Range(func(k, _ any) bool {
		_ = m.Evict(ctx, k.(models.WindowID))
		return true
	})
	return nil
}

// Close implements Store; the in-memory registry holds no resources.
func (*Memory) Close() error { return nil }
