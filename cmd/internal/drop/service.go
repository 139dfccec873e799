package drop

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"vanish/cmd/identity"
	"vanish/cmd/identity/ids"
	"vanish/cmd/internal/clock"
	"vanish/cmd/internal/metrics"
	"vanish/cmd/security/token"
)

// MaxUserAgentBytes bounds the stored user agent.
const MaxUserAgentBytes = 512

// Service is the drop lifecycle manager.
type Service struct {
	store   Store
	cfg     Config
	clock   clock.Clock
	log     *slog.Logger
	metrics *metrics.Metrics

	newToken func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option { return func(s *Service) { s.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithTokenSource overrides public token generation.
func WithTokenSource(f func() (string, error)) Option { return func(s *Service) { s.newToken = f } }

// NewService builds a Service over store.
func NewService(store Store, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("drop: nil store")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		store:    store,
		cfg:      cfg,
		newToken: func() (string, error) { return token.New(token.DropBytes) },
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

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// CreateInput describes a new drop. An empty Kind means text.
type CreateInput struct {
	Title    string
	Body     string
	Kind     Kind
	TTL      time.Duration
	MaxViews int
}

// Created is what the creator gets back. Token is shown once.
type Created struct {
	ID        string
	Token     string
	URL       string
	ExpiresAt time.Time
}

// Create validates in and stores a new drop owned by caller (anonymous when nil).
func (s *Service) Create(ctx context.Context, in CreateInput, caller *identity.Caller) (Created, error) {
	const op = "drop.Create"

	payload, title, err := s.validate(op, in)
	if err != nil {
		return Created{}, err
	}

	now := s.clock.Now()
	id, err := ids.NewULID(now)
	if err != nil {
		return Created{}, err
	}

	var owner *string
	if caller.Authenticated() {
		uid := caller.UserID
		owner = &uid
	}

	d := Drop{
		ID:        id,
		OwnerID:   owner,
		Title:     title,
		Payload:   payload,
		TTL:       in.TTL,
		MaxViews:  in.MaxViews,
		CreatedAt: now,
		ExpiresAt: now.Add(in.TTL),
	}

	for attempt := 1; ; attempt++ {
		d.Token, err = s.newToken()
		if err != nil {
			return Created{}, err
		}
		err = s.store.Insert(ctx, d)
		if err == nil {
			break
		}
		if field, ok := identity.ConflictField(err); ok && field == "token" && attempt < s.cfg.TokenAttempts {
			s.log.Warn("drop.create.token_collision", slog.Int("attempt", attempt))
			continue
		}
		return Created{}, err
	}

	s.metrics.DropCreated(string(d.Kind()))
	s.log.Info("drop.create.ok",
		slog.String("drop_id", d.ID),
		slog.String("kind", string(d.Kind())),
		slog.Int("max_views", d.MaxViews),
		slog.Bool("anonymous", owner == nil),
	)

	return Created{
		ID:        d.ID,
		Token:     d.Token,
		URL:       s.cfg.LinkPrefix + d.Token,
		ExpiresAt: d.ExpiresAt,
	}, nil
}

func (s *Service) validate(op string, in CreateInput) (Payload, string, error) {
	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		return nil, "", identity.Invalid(op, "title", "title is required")
	case utf8.RuneCountInString(title) > s.cfg.MaxTitleRunes:
		return nil, "", identity.Invalid(op, "title", "title is too long")
	case in.MaxViews < 1:
		return nil, "", identity.Invalid(op, "maxViews", "maxViews must be at least 1")
	case in.MaxViews > s.cfg.MaxViewsLimit:
		return nil, "", identity.Invalid(op, "maxViews", "maxViews is too large")
	case in.TTL <= 0:
		return nil, "", identity.Invalid(op, "ttl", "ttl must be positive")
	case in.TTL > s.cfg.MaxTTL:
		return nil, "", identity.Invalid(op, "ttl", "ttl is too long")
	}

	kind := in.Kind
	if kind == "" {
		kind = KindText
	}
	if !kind.Valid() {
		return nil, "", identity.Invalid(op, "kind", "kind must be text or url")
	}

	if strings.TrimSpace(in.Body) == "" {
		return nil, "", identity.Invalid(op, "body", "body is required")
	}
	if len(in.Body) > s.cfg.MaxBodyBytes {
		return nil, "", identity.Invalid(op, "body", "body is too large")
	}

	if kind == KindURL {
		target := strings.TrimSpace(in.Body)
		if !validTarget(target) {
			return nil, "", identity.Invalid(op, "body", "body must be an absolute http(s) URL")
		}
		return URLPayload{Target: target}, title, nil
	}
	return TextPayload{Body: in.Body}, title, nil
}

func validTarget(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// ListFilter narrows List. A nil Status lists every state.
type ListFilter struct {
	Status *Status
}

// List returns the drops caller may see, newest first: everything for owners and admins, own
// drops for users, nothing for anonymous callers.
func (s *Service) List(ctx context.Context, caller *identity.Caller, f ListFilter) ([]Drop, error) {
	q := ListQuery{Status: f.Status, Now: s.clock.Now()}
	switch {
	case caller.Privileged():
		q.All = true
	case caller.Authenticated():
		uid := caller.UserID
		q.OwnerID = &uid
	default:
		return []Drop{}, nil
	}
	return s.store.List(ctx, q)
}

// Get returns a drop by id.
func (s *Service) Get(ctx context.Context, id string) (Drop, error) {
	return s.store.Get(ctx, id)
}

// Revoke closes a drop for good. Revoking twice, or revoking an unknown id, is a no-op.
func (s *Service) Revoke(ctx context.Context, id string, caller *identity.Caller) error {
	const op = "drop.Revoke"

	if !caller.Authenticated() {
		return identity.OpError{Op: op, Kind: identity.ErrUnauthorized}
	}

	if s.cfg.RevokeScope == RevokeOwner && !caller.Privileged() {
		d, err := s.store.Get(ctx, id)
		if err != nil {
			if identity.IsNotFound(err) {
				return identity.OpError{Op: op, Kind: identity.ErrUnauthorized}
			}
			return err
		}
		if !caller.Owns(d.OwnerID) {
			return identity.OpError{Op: op, Kind: identity.ErrUnauthorized}
		}
	}

	changed, err := s.store.Revoke(ctx, id, s.clock.Now())
	if err != nil {
		return err
	}
	if changed {
		s.metrics.Revoked()
		s.log.Info("drop.revoke.ok", slog.String("drop_id", id), slog.String("user_id", caller.UserID))
	}
	return nil
}

// ConsumeInput is one attempt to open a public link. UserAgent and IP are best effort.
type ConsumeInput struct {
	Token     string
	UserAgent string
	IP        string
}

// ConsumeResult is what the viewer sees.
type ConsumeResult struct {
	Title     string
	Payload   Payload
	Remaining int
	ExpiresIn time.Duration
}

// Consume spends one view. Any failed predicate returns ErrLinkInvalidOrExpired.
func (s *Service) Consume(ctx context.Context, in ConsumeInput) (ConsumeResult, error) {
	tok := strings.TrimSpace(in.Token)
	if tok == "" || len(tok) > 128 {
		s.metrics.Consumed(metrics.OutcomeInvalid)
		return ConsumeResult{}, ErrLinkInvalidOrExpired
	}

	now := s.clock.Now()
	viewID, err := ids.NewULID(now)
	if err != nil {
		return ConsumeResult{}, err
	}

	d, err := s.store.Consume(ctx, ConsumeRecord{
		Token: tok,
		Now:   now,
		View: View{
			ID:        viewID,
			UserAgent: truncateUA(in.UserAgent),
			IP:        normalizeIP(in.IP),
		},
	})
	if err != nil {
		if identity.IsNotActive(err) {
			s.metrics.Consumed(metrics.OutcomeInvalid)
			s.log.Debug("drop.consume.fail")
			return ConsumeResult{}, ErrLinkInvalidOrExpired
		}
		s.metrics.Consumed(metrics.OutcomeError)
		s.log.Error("drop.consume.error", slog.Any("err", err))
		return ConsumeResult{}, err
	}

	s.metrics.Consumed(metrics.OutcomeOK)
	s.log.Info("drop.consume.ok",
		slog.String("drop_id", d.ID),
		slog.Int("used_views", d.UsedViews),
		slog.Int("max_views", d.MaxViews),
	)

	return ConsumeResult{
		Title:     d.Title,
		Payload:   d.Payload,
		Remaining: d.Remaining(),
		ExpiresIn: d.ExpiresIn(now),
	}, nil
}

func truncateUA(ua string) *string {
	ua = strings.TrimSpace(strings.ToValidUTF8(ua, ""))
	if ua == "" {
		return nil
	}
	if len(ua) > MaxUserAgentBytes {
		ua = ua[:MaxUserAgentBytes]
		for !utf8.ValidString(ua) {
			ua = ua[:len(ua)-1]
		}
	}
	return &ua
}

func normalizeIP(raw string) *string {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	s := addr.Unmap().String()
	return &s
}
