// Package api binds the drop, auth and report services to HTTP with chi.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vanish/cmd/identity"
	"vanish/cmd/internal/auth"
	"vanish/cmd/internal/clock"
	"vanish/cmd/internal/drop"
	"vanish/cmd/internal/report"
)

// Handler wires HTTP endpoints to the core services.
type Handler struct {
	log   *slog.Logger
	cfg   Config
	clock clock.Clock

	drops   *drop.Service
	auth    *auth.Service
	reports *report.Engine
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithClock overrides the wall clock used for list status.
func WithClock(c clock.Clock) HandlerOption {
	return func(h *Handler) {
		if c != nil {
			h.clock = c
		}
	}
}

// NewHandler constructs a Handler. All three services are required.
func NewHandler(log *slog.Logger, cfg Config, drops *drop.Service, authSvc *auth.Service, reports *report.Engine, opts ...HandlerOption) (*Handler, error) {
	if drops == nil || authSvc == nil || reports == nil {
		return nil, errors.New("api: nil service")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultConfig().CookieName
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	h := &Handler{
		log:     log,
		cfg:     cfg,
		clock:   clock.System{},
		drops:   drops,
		auth:    authSvc,
		reports: reports,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Routes returns the API router. The runtime mounts it under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/d/{token}/consume", h.handleConsume)
	r.Get("/auth/invites/check", h.handleInviteCheck)
	r.Post("/auth/bootstrap", h.handleBootstrap)
	r.Post("/auth/invites/consume", h.handleInviteConsume)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.resolveUser)

		r.Get("/auth/me", h.handleMe)
		r.Post("/auth/invites", h.handleInviteCreate)

		r.Post("/drops", h.handleDropCreate)
		r.Get("/drops", h.handleDropList)
		r.Post("/drops/{id}/revoke", h.handleDropRevoke)

		r.Get("/stats/drops/{id}", h.handleDropStats)
		r.Get("/stats/overview", h.handleOverview)
	})
	return r
}

type ctxKey int

const userKey ctxKey = iota

// resolveUser attaches the session's user, if any, to the request context.
func (h *Handler) resolveUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := h.sessionID(r)
		if sid == "" {
			next.ServeHTTP(w, r)
			return
		}
		u, err := h.auth.ResolveSession(r.Context(), sid)
		if err != nil {
			h.writeServiceError(w, r, "http.session.resolve.fail", err)
			return
		}
		if u == nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

func userFrom(ctx context.Context) *identity.User {
	u, _ := ctx.Value(userKey).(*identity.User)
	return u
}

func callerFrom(ctx context.Context) *identity.Caller {
	if u := userFrom(ctx); u != nil {
		return u.Caller()
	}
	return nil
}
