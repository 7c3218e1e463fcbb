package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded in-memory Store. The claim transition is
// atomic under the store lock, but the store is process-local: running more
// than one dispatcher against it requires a shared backend such as the
// postgres store.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Item
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[uuid.UUID]*Item),
	}
}

func (s *MemoryStore) Create(ctx context.Context, item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return item.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return ErrNotFound
	}
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *MemoryStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*Item
	for _, item := range s.items {
		if item.Status == StatusPending && !item.ScheduledFor.After(now) {
			due = append(due, item.Clone())
		}
	}

	sort.Slice(due, func(i, j int) bool {
		pi, pj := due[i].Priority.Ordinal(), due[j].Priority.Ordinal()
		if pi != pj {
			return pi > pj
		}
		return due[i].ScheduledFor.Before(due[j].ScheduledFor)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryStore) ListPendingByUser(ctx context.Context, userID string) ([]*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*Item
	for _, item := range s.items {
		if item.UserID == userID && item.Status == StatusPending {
			pending = append(pending, item.Clone())
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].ScheduledFor.Before(pending[j].ScheduledFor)
	})
	return pending, nil
}

func (s *MemoryStore) Claim(ctx context.Context, id uuid.UUID, at time.Time) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if item.Status != StatusPending {
		return nil, ErrNotClaimable
	}

	item.Status = StatusProcessing
	attempt := at
	item.LastAttempt = &attempt
	return item.Clone(), nil
}

func (s *MemoryStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Status]int)
	for _, item := range s.items {
		counts[item.Status]++
	}
	return counts, nil
}

func (s *MemoryStore) PurgeTerminal(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, item := range s.items {
		if item.Status.Terminal() {
			delete(s.items, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}
