package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"vanish/cmd/identity"
	"vanish/cmd/identity/ids"
	"vanish/cmd/internal/auth/session"
	"vanish/cmd/internal/clock"
	"vanish/cmd/internal/invite"
	"vanish/cmd/internal/metrics"
	"vanish/cmd/security/password"
)

// MaxDisplayNameRunes bounds display names.
const MaxDisplayNameRunes = 100

// Service is the credential lifecycle manager.
type Service struct {
	store    identity.Store
	sessions *session.Manager
	invites  *invite.Service
	pw       password.Config

	clock   clock.Clock
	log     *slog.Logger
	metrics *metrics.Metrics

	dummyOnce sync.Once
	dummyHash string
}

// Option configures a Service.
type Option func(*Service)

func WithClock(c clock.Clock) Option { return func(s *Service) { s.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithPasswordConfig overrides hashing cost and password policy.
func WithPasswordConfig(c password.Config) Option { return func(s *Service) { s.pw = c } }

// NewService wires the credential lifecycle over store.
func NewService(store identity.Store, sessions *session.Manager, invites *invite.Service, opts ...Option) (*Service, error) {
	if store == nil || sessions == nil || invites == nil {
		return nil, errors.New("auth: missing dependency")
	}
	s := &Service{
		store:    store,
		sessions: sessions,
		invites:  invites,
		pw:       password.DefaultConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.clock = clock.OrSystem(s.clock)
	if s.log == nil {
		s.log = slog.Default()
	}
	return s, nil
}

// Issued is a freshly established session. SessionID is the bearer secret and is returned once.
type Issued struct {
	SessionID string
	ExpiresAt time.Time
	User      identity.User
}

// BootstrapInput creates the owner. Email and Password are optional but must come together so the
// owner can log in again once the bootstrap session expires.
type BootstrapInput struct {
	DisplayName string
	Email       string
	Password    string
}

// BootstrapOwner creates the sole owner plus a session iff no user exists yet.
func (s *Service) BootstrapOwner(ctx context.Context, in BootstrapInput) (Issued, error) {
	const op = "auth.BootstrapOwner"

	name, err := displayName(op, in.DisplayName)
	if err != nil {
		return Issued{}, err
	}
	email, err := optionalEmail(op, in.Email)
	if err != nil {
		return Issued{}, err
	}
	if (email == nil) != (in.Password == "") {
		return Issued{}, identity.Invalid(op, "password", "email and password must be provided together")
	}
	hash, err := s.hashOptional(op, in.Password)
	if err != nil {
		return Issued{}, err
	}

	now := s.clock.Now()
	userID, err := ids.NewULID(now)
	if err != nil {
		return Issued{}, err
	}
	minted, err := s.sessions.Mint(userID, now)
	if err != nil {
		return Issued{}, err
	}

	u, err := s.store.BootstrapOwner(ctx, identity.BootstrapRecord{
		Owner: identity.UserAuth{
			User: identity.User{
				ID:          userID,
				Email:       email,
				DisplayName: name,
				Role:        identity.RoleOwner,
				CreatedAt:   now,
			},
			PasswordHash: hash,
		},
		Session: minted.Session,
	})
	if err != nil {
		if identity.IsConflict(err) {
			s.metrics.AuthFailure("already_bootstrapped")
			s.log.Warn("auth.bootstrap.rejected")
			return Issued{}, ErrAlreadyBootstrapped
		}
		return Issued{}, err
	}

	s.metrics.SessionIssued("bootstrap")
	s.log.Info("auth.bootstrap.ok", slog.String("user_id", u.ID))
	return Issued{SessionID: minted.ID, ExpiresAt: minted.ExpiresAt(), User: u}, nil
}

// InviteLink is a minted invite. URL embeds the one-time secret.
type InviteLink struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// CreateInvite mints a single-use invite. Only owners and admins may invite.
func (s *Service) CreateInvite(ctx context.Context, caller *identity.Caller, expiresMinutes int) (InviteLink, error) {
	const op = "auth.CreateInvite"

	if !caller.Privileged() {
		s.metrics.AuthFailure("unauthorized")
		return InviteLink{}, identity.OpError{Op: op, Kind: identity.ErrUnauthorized}
	}

	link, err := s.invites.Create(ctx, invite.CreateInput{
		CreatedBy: caller.UserID,
		Minutes:   expiresMinutes,
		Now:       s.clock.Now(),
	})
	if err != nil {
		return InviteLink{}, err
	}

	s.metrics.InviteCreated()
	s.log.Info("auth.invite.created",
		slog.String("invite_id", link.Invite.ID),
		slog.String("created_by", caller.UserID),
		slog.Time("expires_at", link.Invite.ExpiresAt),
	)
	return InviteLink{ID: link.Invite.ID, URL: link.URL, ExpiresAt: link.Invite.ExpiresAt}, nil
}

// CheckInvite reports when a still-redeemable invite expires.
func (s *Service) CheckInvite(ctx context.Context, secret string) (time.Time, error) {
	inv, err := s.invites.Check(ctx, secret, s.clock.Now())
	if err != nil {
		if errors.Is(err, invite.ErrNotActive) {
			return time.Time{}, ErrInvalidOrUsedInvite
		}
		return time.Time{}, err
	}
	return inv.ExpiresAt, nil
}

// ConsumeInviteInput redeems an invite into an account. Email is optional.
type ConsumeInviteInput struct {
	Token       string
	DisplayName string
	Email       string
	Password    string
}

// ConsumeInvite redeems the invite, creates the user and a session as one unit.
func (s *Service) ConsumeInvite(ctx context.Context, in ConsumeInviteInput) (Issued, error) {
	const op = "auth.ConsumeInvite"

	secret := strings.TrimSpace(in.Token)
	if secret == "" || len(secret) > 128 {
		s.metrics.AuthFailure("invalid_invite")
		return Issued{}, ErrInvalidOrUsedInvite
	}
	name, err := displayName(op, in.DisplayName)
	if err != nil {
		return Issued{}, err
	}
	email, err := optionalEmail(op, in.Email)
	if err != nil {
		return Issued{}, err
	}
	if err := s.checkPassword(op, in.Password); err != nil {
		return Issued{}, err
	}
	hash, err := s.pw.Hash(in.Password)
	if err != nil {
		return Issued{}, err
	}

	now := s.clock.Now()
	userID, err := ids.NewULID(now)
	if err != nil {
		return Issued{}, err
	}
	minted, err := s.sessions.Mint(userID, now)
	if err != nil {
		return Issued{}, err
	}

	u, inv, err := s.store.RedeemInvite(ctx, identity.RedeemRecord{
		TokenHash: invite.Digest(secret),
		Now:       now,
		User: identity.UserAuth{
			User: identity.User{
				ID:          userID,
				Email:       email,
				DisplayName: name,
				Role:        identity.RoleUser,
				CreatedAt:   now,
			},
			PasswordHash: &hash,
		},
		Session: minted.Session,
	})
	if err != nil {
		if identity.IsNotActive(err) {
			s.metrics.AuthFailure("invalid_invite")
			s.log.Info("auth.invite.rejected")
			return Issued{}, ErrInvalidOrUsedInvite
		}
		return Issued{}, err
	}

	s.metrics.InviteRedeemed()
	s.metrics.SessionIssued("invite")
	s.log.Info("auth.invite.redeemed", slog.String("invite_id", inv.ID), slog.String("user_id", u.ID))
	return Issued{SessionID: minted.ID, ExpiresAt: minted.ExpiresAt(), User: u}, nil
}

// LoginWithPassword verifies credentials and issues a session. Unknown emails and wrong passwords
// are indistinguishable, including in timing.
func (s *Service) LoginWithPassword(ctx context.Context, email, pw string) (Issued, error) {
	email = identity.NormalizeEmail(email)
	if email == "" || pw == "" || utf8.RuneCountInString(pw) > s.pw.Policy.MaxLength {
		s.metrics.AuthFailure("bad_credentials")
		return Issued{}, ErrInvalidCredentials
	}

	ua, err := s.store.GetUserAuthByEmail(ctx, email)
	if err != nil && !identity.IsNotFound(err) {
		return Issued{}, err
	}
	if err != nil || ua.PasswordHash == nil {
		s.burnDummy(pw)
		s.metrics.AuthFailure("bad_credentials")
		s.log.Info("auth.login.fail")
		return Issued{}, ErrInvalidCredentials
	}

	ok, err := s.pw.Verify(*ua.PasswordHash, pw)
	if err != nil {
		s.log.Error("auth.login.bad_hash", slog.String("user_id", ua.User.ID), slog.Any("err", err))
	}
	if !ok {
		s.metrics.AuthFailure("bad_credentials")
		s.log.Info("auth.login.fail", slog.String("user_id", ua.User.ID))
		return Issued{}, ErrInvalidCredentials
	}

	minted, err := s.sessions.Issue(ctx, ua.User.ID, s.clock.Now())
	if err != nil {
		return Issued{}, err
	}

	s.metrics.SessionIssued("login")
	s.log.Info("auth.login.ok", slog.String("user_id", ua.User.ID))
	return Issued{SessionID: minted.ID, ExpiresAt: minted.ExpiresAt(), User: ua.User}, nil
}

// Logout destroys the session behind sid. It succeeds whether or not the session existed.
func (s *Service) Logout(ctx context.Context, sid string) error {
	return s.sessions.Destroy(ctx, sid)
}

// ResolveSession returns the user behind sid, or nil for missing, expired and malformed ids alike.
func (s *Service) ResolveSession(ctx context.Context, sid string) (*identity.User, error) {
	u, err := s.sessions.Resolve(ctx, sid, s.clock.Now())
	if err != nil {
		if identity.IsNotActive(err) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Caller resolves sid into the request identity; nil means anonymous.
func (s *Service) Caller(ctx context.Context, sid string) (*identity.Caller, error) {
	if strings.TrimSpace(sid) == "" {
		return nil, nil
	}
	u, err := s.ResolveSession(ctx, sid)
	if err != nil || u == nil {
		return nil, err
	}
	return u.Caller(), nil
}

func (s *Service) burnDummy(pw string) {
	s.dummyOnce.Do(func() {
		h, err := s.pw.DummyHash()
		if err != nil {
			s.log.Error("auth.dummy_hash", slog.Any("err", err))
			return
		}
		s.dummyHash = h
	})
	if s.dummyHash != "" {
		_, _ = s.pw.Verify(s.dummyHash, pw)
	}
}

func (s *Service) checkPassword(op, pw string) error {
	switch err := s.pw.Validate(pw); {
	case err == nil:
		return nil
	case errors.Is(err, password.ErrPasswordTooShort):
		return identity.Invalid(op, "password", "password is too short")
	case errors.Is(err, password.ErrPasswordTooLong):
		return identity.Invalid(op, "password", "password is too long")
	case errors.Is(err, password.ErrWeakPassword):
		return identity.Invalid(op, "password", "password is too weak")
	default:
		return identity.Invalid(op, "password", "password rejected")
	}
}

func (s *Service) hashOptional(op, pw string) (*string, error) {
	if pw == "" {
		return nil, nil
	}
	if err := s.checkPassword(op, pw); err != nil {
		return nil, err
	}
	h, err := s.pw.Hash(pw)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func displayName(op, raw string) (string, error) {
	name := identity.NormalizeDisplayName(raw)
	switch {
	case name == "":
		return "", identity.Invalid(op, "displayName", "display name is required")
	case utf8.RuneCountInString(name) > MaxDisplayNameRunes:
		return "", identity.Invalid(op, "displayName", "display name is too long")
	}
	return name, nil
}

func optionalEmail(op, raw string) (*string, error) {
	e := identity.NormalizeEmail(raw)
	if e == "" {
		return nil, nil
	}
	if !identity.ValidEmail(e) {
		return nil, identity.Invalid(op, "email", "email is invalid")
	}
	return &e, nil
}
