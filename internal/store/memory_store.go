package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stationcargo/cargostow/internal/apperr"
	"github.com/stationcargo/cargostow/internal/domain"
)

// MemoryStore is a pure in-memory Store implementation used by unit tests
// in place of a live Redis instance. It implements the same contract as
// RedisStore (spec §4.8), including per-container write serialization, but
// without any persistence layer.
type MemoryStore struct {
	mu         sync.RWMutex
	containers map[string]*domain.Container
	items      map[string]*domain.Item
	logs       []*domain.LogRecord
	logSeq     int
	locks      *keyedMutex
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		containers: make(map[string]*domain.Container),
		items:      make(map[string]*domain.Item),
		locks:      newKeyedMutex(),
	}
}

func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	return &memTx{store: s}, nil
}

type memTx struct {
	store *MemoryStore
	undo  []func()
}

func (tx *memTx) Containers() ContainerRepo { return &memContainerRepo{tx: tx} }
func (tx *memTx) Items() ItemRepo           { return &memItemRepo{tx: tx} }
func (tx *memTx) Logs() LogRepo             { return &memLogRepo{tx: tx} }

func (tx *memTx) Commit(ctx context.Context) error {
	tx.undo = nil
	return nil
}

func (tx *memTx) Rollback(ctx context.Context) error {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	return nil
}

type memContainerRepo struct{ tx *memTx }

func (r *memContainerRepo) Get(ctx context.Context, id string) (*domain.Container, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.containers[id]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "container %q not found", id)
	}
	return c.DeepClone(), nil
}

func (r *memContainerRepo) List(ctx context.Context) ([]*domain.Container, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Container, 0, len(s.containers))
	for _, c := range s.containers {
		out = append(out, c.DeepClone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memContainerRepo) Create(ctx context.Context, c *domain.Container) error {
	s := r.tx.store
	unlock := s.locks.LockAll(c.ID)
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containers[c.ID] = c.DeepClone()
	id := c.ID
	r.tx.undo = append(r.tx.undo, func() {
		s.mu.Lock()
		delete(s.containers, id)
		s.mu.Unlock()
	})
	return nil
}

func (r *memContainerRepo) Delete(ctx context.Context, id string) error {
	s := r.tx.store
	for _, it := range s.items {
		if it.Placement != nil && it.Placement.ContainerID == id {
			return apperr.Newf(apperr.PreconditionFailed, "container %q still holds items", id)
		}
	}
	unlock := s.locks.LockAll(id)
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.containers[id]
	if !ok {
		return apperr.Newf(apperr.NotFound, "container %q not found", id)
	}
	delete(s.containers, id)
	r.tx.undo = append(r.tx.undo, func() {
		s.mu.Lock()
		s.containers[id] = prev
		s.mu.Unlock()
	})
	return nil
}

type memItemRepo struct{ tx *memTx }

func (r *memItemRepo) Get(ctx context.Context, id string) (*domain.Item, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "item %q not found", id)
	}
	return it.DeepClone(), nil
}

func (r *memItemRepo) GetByName(ctx context.Context, name string) ([]*domain.Item, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Item
	for _, it := range s.items {
		if it.Name == name {
			out = append(out, it.DeepClone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memItemRepo) List(ctx context.Context) ([]*domain.Item, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it.DeepClone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memItemRepo) ListByContainer(ctx context.Context, containerID string) ([]*domain.Item, error) {
	all, _ := r.List(ctx)
	out := make([]*domain.Item, 0)
	for _, it := range all {
		if it.Placement != nil && it.Placement.ContainerID == containerID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *memItemRepo) ListWaste(ctx context.Context) ([]*domain.Item, error) {
	all, _ := r.List(ctx)
	out := make([]*domain.Item, 0)
	for _, it := range all {
		if it.Waste {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *memItemRepo) ListExpiring(ctx context.Context, before time.Time) ([]*domain.Item, error) {
	all, _ := r.List(ctx)
	out := make([]*domain.Item, 0)
	for _, it := range all {
		if it.ExpiryAt != nil && !it.ExpiryAt.After(before) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *memItemRepo) Create(ctx context.Context, it *domain.Item) error {
	s := r.tx.store
	var lockIDs []string
	if it.Placement != nil {
		lockIDs = append(lockIDs, it.Placement.ContainerID)
	}
	unlock := s.locks.LockAll(lockIDs...)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if it.ID == "" {
		s.logSeq++
		it.ID = "item-" + itoa(s.logSeq)
	}
	s.items[it.ID] = it.DeepClone()
	id := it.ID
	r.tx.undo = append(r.tx.undo, func() {
		s.mu.Lock()
		delete(s.items, id)
		s.mu.Unlock()
	})
	return nil
}

func (r *memItemRepo) Update(ctx context.Context, it *domain.Item) error {
	s := r.tx.store
	s.mu.RLock()
	prev, ok := s.items[it.ID]
	s.mu.RUnlock()
	if !ok {
		return apperr.Newf(apperr.NotFound, "item %q not found", it.ID)
	}

	var lockIDs []string
	if prev.Placement != nil {
		lockIDs = append(lockIDs, prev.Placement.ContainerID)
	}
	if it.Placement != nil {
		lockIDs = append(lockIDs, it.Placement.ContainerID)
	}
	unlock := s.locks.LockAll(lockIDs...)
	defer unlock()

	s.mu.Lock()
	s.items[it.ID] = it.DeepClone()
	s.mu.Unlock()

	prevCopy := prev.DeepClone()
	r.tx.undo = append(r.tx.undo, func() {
		s.mu.Lock()
		s.items[prevCopy.ID] = prevCopy
		s.mu.Unlock()
	})
	return nil
}

func (r *memItemRepo) Delete(ctx context.Context, id string) error {
	s := r.tx.store
	s.mu.RLock()
	prev, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return apperr.Newf(apperr.NotFound, "item %q not found", id)
	}
	var lockIDs []string
	if prev.Placement != nil {
		lockIDs = append(lockIDs, prev.Placement.ContainerID)
	}
	unlock := s.locks.LockAll(lockIDs...)
	defer unlock()

	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()

	prevCopy := prev.DeepClone()
	r.tx.undo = append(r.tx.undo, func() {
		s.mu.Lock()
		s.items[id] = prevCopy
		s.mu.Unlock()
	})
	return nil
}

type memLogRepo struct{ tx *memTx }

func (r *memLogRepo) Append(ctx context.Context, rec *domain.LogRecord) error {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logSeq++
	if rec.ID == "" {
		rec.ID = "log-" + itoa(s.logSeq)
	}
	s.logs = append(s.logs, rec)
	idx := len(s.logs) - 1
	r.tx.undo = append(r.tx.undo, func() {
		s.mu.Lock()
		s.logs = append(s.logs[:idx], s.logs[idx+1:]...)
		s.mu.Unlock()
	})
	return nil
}

func (r *memLogRepo) Query(ctx context.Context, start, end time.Time, filter LogFilter) ([]*domain.LogRecord, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.LogRecord, 0)
	for _, rec := range s.logs {
		if rec.Timestamp.Before(start) || rec.Timestamp.After(end) {
			continue
		}
		if filter.ItemID != "" && rec.ItemID != filter.ItemID {
			continue
		}
		if filter.ContainerID != "" && rec.FromCtnr != filter.ContainerID && rec.ToCtnr != filter.ContainerID {
			continue
		}
		if filter.Action != "" && rec.Action != filter.Action {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *memLogRepo) Latest(ctx context.Context) (time.Time, bool, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.logs) == 0 {
		return time.Time{}, false, nil
	}
	latest := s.logs[0].Timestamp
	for _, rec := range s.logs[1:] {
		if rec.Timestamp.After(latest) {
			latest = rec.Timestamp
		}
	}
	return latest, true, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
