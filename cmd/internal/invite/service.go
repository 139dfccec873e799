// Package invite mints single-use signup secrets and the links that carry them.
//
// The raw secret leaves this package exactly once, embedded in the signup URL. Only its digest is
// handed to the store.
package invite

import (
	"context"
	"net/url"
	"strings"
	"time"

	"vanish/cmd/identity"
	"vanish/cmd/identity/ids"
	"vanish/cmd/security/token"
)

const (
	DefaultMinutes = 60
	MaxMinutes     = 7 * 24 * 60
)

// Store is the slice of identity.Store invites need.
type Store interface {
	CreateInvite(ctx context.Context, in identity.Invite) (identity.Invite, error)
	GetInviteByTokenHash(ctx context.Context, tokenHash string) (identity.Invite, error)
}

// CreateInput describes invite creation. Minutes 0 means DefaultMinutes.
type CreateInput struct {
	CreatedBy string
	Minutes   int
	Now       time.Time
}

// Link is a freshly minted invite. Secret and URL are shown once.
type Link struct {
	Invite identity.Invite
	Secret string
	URL    string
}

// Service manages invite creation and preview.
type Service struct {
	store      Store
	tokenBytes int
	baseURL    string
}

// Option configures the Service.
type Option func(*Service) error

// WithTokenBytes sets the length of generated invite secrets in bytes.
func WithTokenBytes(n int) Option {
	return func(s *Service) error {
		if n < 16 {
			return ErrInvalidInput
		}
		s.tokenBytes = n
		return nil
	}
}

// WithBaseURL sets the public origin signup links point at, e.g. "https://vanish.example".
func WithBaseURL(base string) Option {
	return func(s *Service) error {
		s.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
		return nil
	}
}

// NewService constructs a Service with safe defaults.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrInvalidInput
	}
	s := &Service{store: store, tokenBytes: token.InviteBytes}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Minutes normalizes and bounds an invite lifetime.
func Minutes(op string, m int) (int, error) {
	if m == 0 {
		return DefaultMinutes, nil
	}
	if m < 1 || m > MaxMinutes {
		return 0, identity.Invalid(op, "expiresMinutes", "expiresMinutes must be between 1 and 10080")
	}
	return m, nil
}

// Create stores a new invite and returns its one-time link.
func (s *Service) Create(ctx context.Context, in CreateInput) (Link, error) {
	const op = "invite.Create"

	if s == nil || s.store == nil {
		return Link{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Link{}, err
	}

	minutes, err := Minutes(op, in.Minutes)
	if err != nil {
		return Link{}, err
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	secret, err := token.New(s.tokenBytes)
	if err != nil {
		return Link{}, err
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Link{}, err
	}

	inv, err := s.store.CreateInvite(ctx, identity.Invite{
		ID:        id,
		TokenHash: Digest(secret),
		CreatedBy: in.CreatedBy,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(minutes) * time.Minute),
		MaxUses:   1,
	})
	if err != nil {
		return Link{}, err
	}
	return Link{Invite: inv, Secret: secret, URL: s.URL(secret)}, nil
}

// URL builds the signup link for secret.
func (s *Service) URL(secret string) string {
	return s.baseURL + "/signup?token=" + url.QueryEscape(secret)
}

// Check reports whether secret names a redeemable invite at now. It never consumes it.
func (s *Service) Check(ctx context.Context, secret string, now time.Time) (identity.Invite, error) {
	if s == nil || s.store == nil {
		return identity.Invite{}, ErrInvalidInput
	}
	secret = strings.TrimSpace(secret)
	if secret == "" || len(secret) > 128 {
		return identity.Invite{}, ErrNotActive
	}

	inv, err := s.store.GetInviteByTokenHash(ctx, Digest(secret))
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.Invite{}, ErrNotActive
		}
		return identity.Invite{}, err
	}
	if !inv.Redeemable(now) {
		return identity.Invite{}, ErrNotActive
	}
	return inv, nil
}

// Digest is the stored form of an invite secret.
func Digest(secret string) string {
	return token.Digest(strings.TrimSpace(secret))
}
