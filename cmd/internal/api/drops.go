package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vanish/cmd/identity"
	"vanish/cmd/internal/drop"
)

func (h *Handler) handleDropCreate(w http.ResponseWriter, r *http.Request) {
	var req dropCreateRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ttl, err := ttlFromMillis(req.TTLMs, h.drops.Config().MaxTTL)
	if err != nil {
		h.writeServiceError(w, r, "drop.create.fail", err)
		return
	}

	created, err := h.drops.Create(r.Context(), drop.CreateInput{
		Title:    req.Title,
		Body:     req.Body,
		Kind:     drop.Kind(strings.ToLower(strings.TrimSpace(req.Kind))),
		TTL:      ttl,
		MaxViews: req.MaxViews,
	}, callerFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "drop.create.fail", err)
		return
	}

	writeJSON(w, http.StatusCreated, dropCreateResponse{
		OK:        true,
		ID:        created.ID,
		Token:     created.Token,
		URL:       created.URL,
		ExpiresAt: created.ExpiresAt,
	})
}

func (h *Handler) handleDropList(w http.ResponseWriter, r *http.Request) {
	var f drop.ListFilter
	if raw := r.URL.Query().Get("status"); strings.TrimSpace(raw) != "" {
		st, err := drop.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "status must be one of active, exhausted, expired, revoked")
			return
		}
		f.Status = &st
	}

	items, err := h.drops.List(r.Context(), callerFrom(r.Context()), f)
	if err != nil {
		h.writeServiceError(w, r, "drop.list.fail", err)
		return
	}

	now := h.clock.Now()
	prefix := h.drops.Config().LinkPrefix
	out := make([]dropResponse, len(items))
	for i, d := range items {
		out[i] = toDropResponse(d, prefix, now)
	}
	writeJSON(w, http.StatusOK, dropListResponse{OK: true, Items: out})
}

func (h *Handler) handleDropRevoke(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}
	if err := h.drops.Revoke(r.Context(), id, callerFrom(r.Context())); err != nil {
		h.writeServiceError(w, r, "drop.revoke.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *Handler) handleConsume(w http.ResponseWriter, r *http.Request) {
	res, err := h.drops.Consume(r.Context(), drop.ConsumeInput{
		Token:     chi.URLParam(r, "token"),
		UserAgent: r.UserAgent(),
		IP:        clientIP(r, h.cfg.TrustProxy),
	})
	if err != nil {
		h.writeServiceError(w, r, "drop.consume.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, toConsumeResponse(res))
}

// ttlFromMillis bounds ms before converting so an oversized value cannot wrap into range.
func ttlFromMillis(ms int64, limit time.Duration) (time.Duration, error) {
	const op = "drop.Create"
	switch {
	case ms <= 0:
		return 0, identity.Invalid(op, "ttl", "ttl must be positive")
	case ms > limit.Milliseconds():
		return 0, identity.Invalid(op, "ttl", "ttl is too long")
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// requireCaller writes 401 for anonymous requests.
func requireCaller(w http.ResponseWriter, r *http.Request) (*identity.Caller, bool) {
	c := callerFrom(r.Context())
	if !c.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return nil, false
	}
	return c, true
}
