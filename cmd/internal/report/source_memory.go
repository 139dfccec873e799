package report

import (
	"context"
	"time"

	"vanish/cmd/identity"
	"vanish/cmd/internal/drop"
)

// Snapshotter is satisfied by drop.MemoryStore.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]drop.Drop, []drop.View, error)
}

// MemorySource aggregates over in-memory snapshots.
type MemorySource struct {
	snap Snapshotter
}

var _ Source = (*MemorySource)(nil)

// NewMemorySource wraps snap.
func NewMemorySource(snap Snapshotter) *MemorySource {
	return &MemorySource{snap: snap}
}

func (m *MemorySource) DropBase(ctx context.Context, dropID string) (Base, error) {
	drops, _, err := m.snap.Snapshot(ctx)
	if err != nil {
		return Base{}, err
	}
	for _, d := range drops {
		if d.ID == dropID {
			return baseOf(d), nil
		}
	}
	return Base{}, identity.NotFoundError{Op: "report.DropBase", Resource: "drop"}
}

func (m *MemorySource) ViewsPerMinute(ctx context.Context, dropID string, since time.Time) ([]Bucket, error) {
	_, views, err := m.snap.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	counts := map[time.Time]int{}
	var order []time.Time
	for _, v := range views {
		if v.DropID != dropID || v.ViewedAt.Before(since) {
			continue
		}
		k := v.ViewedAt.UTC().Truncate(time.Minute)
		if _, seen := counts[k]; !seen {
			order = append(order, k)
		}
		counts[k]++
	}
	out := make([]Bucket, 0, len(order))
	for _, k := range order {
		out = append(out, Bucket{Start: k, Count: counts[k]})
	}
	return out, nil
}

func (m *MemorySource) UniqueIPs(ctx context.Context, dropID string, since time.Time) (int, error) {
	_, views, err := m.snap.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	seen := map[string]struct{}{}
	for _, v := range views {
		if v.DropID == dropID && v.IP != nil && !v.ViewedAt.Before(since) {
			seen[*v.IP] = struct{}{}
		}
	}
	return len(seen), nil
}

func (m *MemorySource) Overview(ctx context.Context, since time.Time) (Overview, error) {
	drops, _, err := m.snap.Snapshot(ctx)
	if err != nil {
		return Overview{}, err
	}
	var o Overview
	for _, d := range drops {
		if d.CreatedAt.Before(since) {
			continue
		}
		o.TotalDrops++
		if d.ExhaustedAt != nil {
			o.ExhaustedDrops++
		}
		o.TotalViews += d.UsedViews
	}
	return o, nil
}

func baseOf(d drop.Drop) Base {
	return Base{
		DropID:        d.ID,
		OwnerID:       d.OwnerID,
		CreatedAt:     d.CreatedAt,
		FirstViewedAt: d.FirstViewedAt,
		ExhaustedAt:   d.ExhaustedAt,
		MaxViews:      d.MaxViews,
		UsedViews:     d.UsedViews,
	}
}
