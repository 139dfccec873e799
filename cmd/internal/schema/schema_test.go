package schema

import (
	"strings"
	"testing"
)

func TestMigrationsOrdered(t *testing.T) {
	t.Parallel()

	prev := 0
	for _, m := range migrations {
		if m.Version <= prev {
			t.Fatalf("migration %d (%s) not strictly after %d", m.Version, m.Name, prev)
		}
		if strings.TrimSpace(m.SQL) == "" {
			t.Fatalf("migration %d has no SQL", m.Version)
		}
		prev = m.Version
	}
	if Latest() != prev {
		t.Fatalf("Latest()=%d want %d", Latest(), prev)
	}
}

func TestRenderQuotesSchema(t *testing.T) {
	t.Parallel()

	out := render("vanish_it", "CREATE TABLE {{schema}}.drops ()")
	if out != `CREATE TABLE "vanish_it".drops ()` {
		t.Fatalf("render=%s", out)
	}
	for _, m := range migrations {
		if strings.Contains(render("x", m.SQL), "{{schema}}") {
			t.Fatalf("migration %d left a placeholder", m.Version)
		}
	}
}

func TestLockKeyPerSchema(t *testing.T) {
	t.Parallel()

	if lockKey("a") == lockKey("b") {
		t.Fatalf("lock keys collide")
	}
	if lockKey("a") != lockKey("a") {
		t.Fatalf("lock key not stable")
	}
}
