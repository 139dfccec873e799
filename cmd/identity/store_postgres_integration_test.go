package identity

import (
	"testing"

	"vanish/cmd/internal/pgtest"
)

// Integration tests are opt-in and require VANISH_DATABASE_URL.
// Each subtest runs in its own freshly migrated schema.

func TestPostgresStore_Contract(t *testing.T) {
	t.Parallel()

	pool := pgtest.Open(t)
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewPostgresStore(pool, WithSchema(pgtest.Schema(t, pool)))
		if err != nil {
			t.Fatalf("new store: %v", err)
		}
		return s
	})
}

func TestPostgresStore_RejectsBadSchema(t *testing.T) {
	t.Parallel()

	if _, err := NewPostgresStore(nil); err == nil {
		t.Fatalf("expected nil pool error")
	}
	if _, err := NewPostgresStore(nil, WithSchema(`x"; drop`)); err == nil {
		t.Fatalf("expected invalid schema error")
	}
}
