package drop

import (
	"context"
	"time"
)

// ListQuery scopes a listing. All wins over OwnerID; neither yields nothing.
type ListQuery struct {
	All     bool
	OwnerID *string
	Status  *Status
	Now     time.Time
}

// ConsumeRecord spends one view of the drop identified by Token and appends View.
type ConsumeRecord struct {
	Token string
	Now   time.Time
	View  View
}

// Store is the drop persistence boundary.
//
// Contracts shared by every implementation:
//   - Insert rejects a duplicate token with identity.ConflictError{Field: "token"}.
//   - Consume evaluates the whole predicate (not revoked, now < expires_at, used < max) and applies
//     the counter, timestamp and view writes as one indivisible unit. A failed predicate yields
//     identity.ErrNotActive and writes nothing.
//   - Revoke sets revoked_at at most once. It reports whether this call set it; unknown ids are
//     not an error.
//   - List orders by created_at DESC, id DESC.
type Store interface {
	Insert(ctx context.Context, d Drop) error
	Get(ctx context.Context, id string) (Drop, error)
	List(ctx context.Context, q ListQuery) ([]Drop, error)
	Revoke(ctx context.Context, id string, now time.Time) (bool, error)
	Consume(ctx context.Context, in ConsumeRecord) (Drop, error)
}
