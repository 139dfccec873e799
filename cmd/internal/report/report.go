// Package report computes read-only drop statistics: per-drop view rates over a recent window and
// an overview of recent activity.
package report

import (
	"context"
	"math"
	"time"

	"vanish/cmd/identity"
	"vanish/cmd/internal/clock"
)

const (
	DefaultWindowMinutes = 60
	MaxWindowMinutes     = 24 * 60
)

// Base is the stored state of one drop relevant to reporting.
type Base struct {
	DropID        string
	OwnerID       *string
	CreatedAt     time.Time
	FirstViewedAt *time.Time
	ExhaustedAt   *time.Time
	MaxViews      int
	UsedViews     int
}

// Bucket is the number of views in the minute starting at Start.
type Bucket struct {
	Start time.Time
	Count int
}

// Overview counts drops created within a window.
type Overview struct {
	TotalDrops     int
	ExhaustedDrops int
	TotalViews     int
}

// Source reads raw aggregates. Buckets may be sparse; the Engine zero-fills them.
type Source interface {
	DropBase(ctx context.Context, dropID string) (Base, error)
	ViewsPerMinute(ctx context.Context, dropID string, since time.Time) ([]Bucket, error)
	UniqueIPs(ctx context.Context, dropID string, since time.Time) (int, error)
	Overview(ctx context.Context, since time.Time) (Overview, error)
}

// DropStats is the per-drop report.
type DropStats struct {
	Base

	WindowMinutes int
	// TimeToFirst and TimeToExhaust are whole seconds since creation, nil until reached.
	TimeToFirst   *int64
	TimeToExhaust *int64

	PerMinute     []Bucket
	PeakPerMinute int
	TotalInWindow int
	UniqueIPs     int
}

// Engine authorizes and assembles reports.
type Engine struct {
	src   Source
	clock clock.Clock
}

// NewEngine builds an Engine over src.
func NewEngine(src Source, c clock.Clock) *Engine {
	return &Engine{src: src, clock: clock.OrSystem(c)}
}

// Window normalizes and bounds a window size in minutes.
func Window(op string, minutes int) (int, error) {
	if minutes == 0 {
		return DefaultWindowMinutes, nil
	}
	if minutes < 1 || minutes > MaxWindowMinutes {
		return 0, identity.Invalid(op, "window", "window must be between 1 and 1440 minutes")
	}
	return minutes, nil
}

// ForDrop reports on one drop. Only owners, admins and the drop's creator may read it; unknown
// drops are reported as unauthorized too.
func (e *Engine) ForDrop(ctx context.Context, caller *identity.Caller, dropID string, windowMinutes int) (DropStats, error) {
	const op = "report.ForDrop"

	if !caller.Authenticated() {
		return DropStats{}, identity.OpError{Op: op, Kind: identity.ErrUnauthorized}
	}
	window, err := Window(op, windowMinutes)
	if err != nil {
		return DropStats{}, err
	}

	base, err := e.src.DropBase(ctx, dropID)
	if err != nil {
		if identity.IsNotFound(err) {
			return DropStats{}, identity.OpError{Op: op, Kind: identity.ErrUnauthorized}
		}
		return DropStats{}, err
	}
	if !caller.Privileged() && !caller.Owns(base.OwnerID) {
		return DropStats{}, identity.OpError{Op: op, Kind: identity.ErrUnauthorized}
	}

	now := e.clock.Now().UTC()
	since := now.Add(-time.Duration(window) * time.Minute)

	sparse, err := e.src.ViewsPerMinute(ctx, dropID, since)
	if err != nil {
		return DropStats{}, err
	}
	unique, err := e.src.UniqueIPs(ctx, dropID, since)
	if err != nil {
		return DropStats{}, err
	}

	out := DropStats{
		Base:          base,
		WindowMinutes: window,
		TimeToFirst:   secondsBetween(base.CreatedAt, base.FirstViewedAt),
		TimeToExhaust: secondsBetween(base.CreatedAt, base.ExhaustedAt),
		PerMinute:     fill(sparse, since, now),
		UniqueIPs:     unique,
	}
	for _, b := range out.PerMinute {
		out.TotalInWindow += b.Count
		if b.Count > out.PeakPerMinute {
			out.PeakPerMinute = b.Count
		}
	}
	return out, nil
}

// Overview counts drops created within the window. Owners and admins only.
func (e *Engine) Overview(ctx context.Context, caller *identity.Caller, windowMinutes int) (Overview, error) {
	const op = "report.Overview"

	if !caller.Privileged() {
		return Overview{}, identity.OpError{Op: op, Kind: identity.ErrUnauthorized}
	}
	window, err := Window(op, windowMinutes)
	if err != nil {
		return Overview{}, err
	}
	since := e.clock.Now().UTC().Add(-time.Duration(window) * time.Minute)
	return e.src.Overview(ctx, since)
}

// fill returns one bucket per minute from trunc(since) through trunc(now), inclusive.
func fill(sparse []Bucket, since, now time.Time) []Bucket {
	counts := make(map[int64]int, len(sparse))
	for _, b := range sparse {
		counts[b.Start.UTC().Truncate(time.Minute).Unix()] += b.Count
	}

	start := since.UTC().Truncate(time.Minute)
	end := now.UTC().Truncate(time.Minute)
	out := make([]Bucket, 0, int(end.Sub(start)/time.Minute)+1)
	for t := start; !t.After(end); t = t.Add(time.Minute) {
		out = append(out, Bucket{Start: t, Count: counts[t.Unix()]})
	}
	return out
}

func secondsBetween(from time.Time, to *time.Time) *int64 {
	if to == nil || from.IsZero() {
		return nil
	}
	s := int64(math.Round(to.Sub(from).Seconds()))
	return &s
}
