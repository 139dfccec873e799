package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"vanish/cmd/identity"
	"vanish/cmd/internal/auth"
	"vanish/cmd/internal/drop"
)

// writeServiceError maps a service error onto the HTTP error envelope. Unexpected errors are
// logged under event and never echoed.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, event string, err error) {
	var vErr identity.ValidationError
	switch {
	case errors.Is(err, drop.ErrLinkInvalidOrExpired):
		writeError(w, http.StatusGone, "link_invalid", "Link invalid or expired")
	case errors.Is(err, auth.ErrInvalidOrUsedInvite):
		writeError(w, http.StatusBadRequest, "invalid_invite", "Invalid or used invite")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
	case errors.Is(err, auth.ErrAlreadyBootstrapped):
		writeError(w, http.StatusConflict, "already_bootstrapped", "Already bootstrapped")
	case identity.IsUnauthorized(err):
		if callerFrom(r.Context()).Authenticated() {
			writeError(w, http.StatusForbidden, "forbidden", "Unauthorized")
			return
		}
		writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "invalid_request", vErr.Msg)
	case identity.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid input")
	case identity.IsConflict(err):
		field, _ := identity.ConflictField(err)
		writeError(w, http.StatusConflict, "conflict", conflictMessage(field))
	case identity.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case identity.IsStoreUnavailable(err):
		h.log.Error(event, slog.Any("err", err))
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "please retry later")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "canceled", "request canceled")
	default:
		h.log.Error(event, slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func conflictMessage(field string) string {
	switch field {
	case "email":
		return "email already in use"
	case "":
		return "conflict"
	default:
		return field + " already exists"
	}
}
