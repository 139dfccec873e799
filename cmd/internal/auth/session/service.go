package session

import (
	"context"
	"strings"
	"time"

	"vanish/cmd/identity"
	"vanish/cmd/security/token"
)

// Store is the slice of identity.Store sessions need.
type Store interface {
	CreateSession(ctx context.Context, in identity.Session) error
	DeleteSession(ctx context.Context, digest string) error
	ResolveSession(ctx context.Context, digest string, now time.Time) (identity.User, error)
}

// Manager mints, resolves and destroys sessions.
type Manager struct {
	cfg   Config
	store Store
}

// Minted is a new session. ID is the bearer secret and is never stored.
type Minted struct {
	ID      string
	Session identity.Session
}

// ExpiresAt is when the session stops resolving.
func (m Minted) ExpiresAt() time.Time { return m.Session.ExpiresAt }

// NewManager constructs a Manager.
func NewManager(cfg Config, store Store) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.IDBytes <= 0 {
		cfg.IDBytes = DefaultConfig().IDBytes
	}
	return &Manager{cfg: cfg, store: store}
}

// Mint prepares a session for userID without persisting it. Composite transitions (bootstrap,
// invite redemption) persist it inside their own transaction.
func (m *Manager) Mint(userID string, now time.Time) (Minted, error) {
	id, err := token.New(m.cfg.IDBytes)
	if err != nil {
		return Minted{}, err
	}
	return Minted{
		ID: id,
		Session: identity.Session{
			Digest:    token.Digest(id),
			UserID:    userID,
			CreatedAt: now,
			ExpiresAt: now.Add(m.cfg.TTL),
		},
	}, nil
}

// Issue mints and persists a session for userID.
func (m *Manager) Issue(ctx context.Context, userID string, now time.Time) (Minted, error) {
	minted, err := m.Mint(userID, now)
	if err != nil {
		return Minted{}, err
	}
	if err := m.store.CreateSession(ctx, minted.Session); err != nil {
		return Minted{}, err
	}
	return minted, nil
}

// Resolve returns the user behind sid. Missing, malformed and expired ids all yield
// identity.ErrNotActive.
func (m *Manager) Resolve(ctx context.Context, sid string, now time.Time) (identity.User, error) {
	const op = "session.Resolve"

	sid = strings.TrimSpace(sid)
	if sid == "" || len(sid) > 128 {
		return identity.User{}, identity.OpError{Op: op, Kind: identity.ErrNotActive}
	}
	return m.store.ResolveSession(ctx, token.Digest(sid), now)
}

// Destroy deletes the session behind sid. Unknown ids are not an error.
func (m *Manager) Destroy(ctx context.Context, sid string) error {
	sid = strings.TrimSpace(sid)
	if sid == "" {
		return nil
	}
	return m.store.DeleteSession(ctx, token.Digest(sid))
}
