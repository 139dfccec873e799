package identity

import (
	"context"
	"time"
)

// Session is a stored session. The bearer id itself is never stored; Digest is its lookup key.
type Session struct {
	Digest    string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Invite is a single-use signup credential. Only the digest of its secret is stored.
type Invite struct {
	ID        string
	TokenHash string
	CreatedBy string
	CreatedAt time.Time
	ExpiresAt time.Time
	MaxUses   int
	UsedBy    *string
	UsedAt    *time.Time
}

// Redeemable reports whether the invite can still be redeemed at now.
func (i Invite) Redeemable(now time.Time) bool {
	return i.UsedAt == nil && i.ExpiresAt.After(now)
}

// BootstrapRecord creates the owner and the owner's first session.
type BootstrapRecord struct {
	Owner   UserAuth
	Session Session
}

// RedeemRecord redeems the invite whose digest is TokenHash, creating User and Session.
type RedeemRecord struct {
	TokenHash string
	Now       time.Time
	User      UserAuth
	Session   Session
}

// Store is the identity persistence boundary.
//
// Contracts shared by every implementation:
//   - BootstrapOwner succeeds for exactly one caller over the store's lifetime, even under races.
//     Losers get ConflictError{Field: "owner"}.
//   - RedeemInvite marks the invite used, inserts the user and inserts the session as one unit.
//     An unknown, used or expired invite yields ErrNotActive and writes nothing.
//   - ResolveSession yields ErrNotActive for missing and expired sessions alike.
type Store interface {
	BootstrapOwner(ctx context.Context, in BootstrapRecord) (User, error)
	RedeemInvite(ctx context.Context, in RedeemRecord) (User, Invite, error)

	CreateInvite(ctx context.Context, in Invite) (Invite, error)
	GetInviteByTokenHash(ctx context.Context, tokenHash string) (Invite, error)

	CreateSession(ctx context.Context, in Session) error
	DeleteSession(ctx context.Context, digest string) error
	ResolveSession(ctx context.Context, digest string, now time.Time) (User, error)

	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)
}

func notActive(op, msg string) error {
	return OpError{Op: op, Kind: ErrNotActive, Msg: msg}
}

func nilStore(op string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
}
