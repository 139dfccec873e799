package drop

import (
	"context"
	"sort"
	"sync"
	"time"

	"vanish/cmd/identity"
)

// MemoryStore is a single-process Store. One mutex covers every predicate and its mutation.
type MemoryStore struct {
	mu      sync.Mutex
	drops   map[string]*Drop  // by id
	byToken map[string]string // token -> id
	views   []View
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drops:   make(map[string]*Drop),
		byToken: make(map[string]string),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, d Drop) error {
	const op = "drop.Insert"

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.byToken[d.Token]; dup {
		return identity.ConflictError{Op: op, Field: "token"}
	}
	if _, dup := s.drops[d.ID]; dup {
		return identity.ConflictError{Op: op, Field: "id"}
	}
	cp := d.clone()
	s.drops[d.ID] = &cp
	s.byToken[d.Token] = d.ID
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Drop, error) {
	const op = "drop.Get"

	if err := ctx.Err(); err != nil {
		return Drop{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drops[id]
	if !ok {
		return Drop{}, identity.NotFoundError{Op: op, Resource: "drop"}
	}
	return d.clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, q ListQuery) ([]Drop, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !q.All && q.OwnerID == nil {
		return []Drop{}, nil
	}

	s.mu.Lock()
	out := make([]Drop, 0, len(s.drops))
	for _, d := range s.drops {
		if !q.All && (d.OwnerID == nil || *d.OwnerID != *q.OwnerID) {
			continue
		}
		if q.Status != nil && d.Status(q.Now) != *q.Status {
			continue
		}
		out = append(out, d.clone())
	}
	s.mu.Unlock()

	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, id string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drops[id]
	if !ok || d.RevokedAt != nil {
		return false, nil
	}
	at := now
	d.RevokedAt = &at
	return true, nil
}

func (s *MemoryStore) Consume(ctx context.Context, in ConsumeRecord) (Drop, error) {
	const op = "drop.Consume"

	if err := ctx.Err(); err != nil {
		return Drop{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byToken[in.Token]
	if !ok {
		return Drop{}, identity.OpError{Op: op, Kind: identity.ErrNotActive}
	}
	d := s.drops[id]
	if !d.consumable(in.Now) {
		return Drop{}, identity.OpError{Op: op, Kind: identity.ErrNotActive}
	}

	now := in.Now
	d.UsedViews++
	if d.FirstViewedAt == nil {
		d.FirstViewedAt = &now
	}
	last := now
	d.LastViewedAt = &last
	if d.UsedViews >= d.MaxViews && d.ExhaustedAt == nil {
		ex := now
		d.ExhaustedAt = &ex
	}

	v := in.View
	v.DropID = d.ID
	v.ViewedAt = now
	v.UserAgent = clonePtr(v.UserAgent)
	v.IP = clonePtr(v.IP)
	s.views = append(s.views, v)

	return d.clone(), nil
}

// Snapshot returns copies of every drop and view. Reporting reads through it.
func (s *MemoryStore) Snapshot(ctx context.Context) ([]Drop, []View, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	drops := make([]Drop, 0, len(s.drops))
	for _, d := range s.drops {
		drops = append(drops, d.clone())
	}
	views := make([]View, len(s.views))
	for i, v := range s.views {
		v.UserAgent = clonePtr(v.UserAgent)
		v.IP = clonePtr(v.IP)
		views[i] = v
	}
	sortNewestFirst(drops)
	return drops, views, nil
}

func sortNewestFirst(ds []Drop) {
	sort.Slice(ds, func(i, j int) bool {
		if !ds[i].CreatedAt.Equal(ds[j].CreatedAt) {
			return ds[i].CreatedAt.After(ds[j].CreatedAt)
		}
		return ds[i].ID > ds[j].ID
	})
}
