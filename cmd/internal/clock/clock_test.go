package clock

import (
	"testing"
	"time"
)

func TestManual_SetAndAdvance(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewManual(start)

	if got := m.Now(); !got.Equal(start) {
		t.Fatalf("Now()=%v want=%v", got, start)
	}

	got := m.Advance(90 * time.Second)
	if want := start.Add(90 * time.Second); !got.Equal(want) || !m.Now().Equal(want) {
		t.Fatalf("Advance()=%v want=%v", got, want)
	}

	later := start.Add(time.Hour)
	m.Set(later)
	if !m.Now().Equal(later) {
		t.Fatalf("Set did not move the clock")
	}
}

func TestOrSystem(t *testing.T) {
	t.Parallel()

	if _, ok := OrSystem(nil).(System); !ok {
		t.Fatalf("expected System for nil clock")
	}

	fixed := time.Unix(1700000000, 0).UTC()
	c := OrSystem(NewManual(fixed))
	if !c.Now().Equal(fixed) {
		t.Fatalf("expected the provided clock to be kept")
	}
}
