package api

import (
	"net/http"
	"strings"

	"vanish/cmd/internal/auth"
)

func (h *Handler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	var req bootstrapRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	issued, err := h.auth.BootstrapOwner(r.Context(), auth.BootstrapInput{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Password:    req.Password,
	})
	if err != nil {
		h.writeServiceError(w, r, "auth.bootstrap.fail", err)
		return
	}
	h.writeIssued(w, issued)
}

func (h *Handler) handleInviteCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req inviteCreateRequest
	if err := decodeOptionalJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	link, err := h.auth.CreateInvite(r.Context(), caller, req.ExpiresMinutes)
	if err != nil {
		h.writeServiceError(w, r, "auth.invite.create.fail", err)
		return
	}
	writeJSON(w, http.StatusCreated, inviteCreateResponse{
		OK:        true,
		InviteID:  link.ID,
		URL:       link.URL,
		ExpiresAt: link.ExpiresAt,
	})
}

func (h *Handler) handleInviteCheck(w http.ResponseWriter, r *http.Request) {
	exp, err := h.auth.CheckInvite(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.writeServiceError(w, r, "auth.invite.check.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, inviteCheckResponse{OK: true, ExpiresAt: exp})
}

func (h *Handler) handleInviteConsume(w http.ResponseWriter, r *http.Request) {
	var req inviteConsumeRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	issued, err := h.auth.ConsumeInvite(r.Context(), auth.ConsumeInviteInput{
		Token:       req.Token,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Password:    req.Password,
	})
	if err != nil {
		h.writeServiceError(w, r, "auth.invite.consume.fail", err)
		return
	}
	h.writeIssued(w, issued)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	issued, err := h.auth.LoginWithPassword(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		h.writeServiceError(w, r, "auth.login.fail", err)
		return
	}
	h.writeIssued(w, issued)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sid := h.sessionID(r); sid != "" {
		if err := h.auth.Logout(r.Context(), sid); err != nil {
			h.writeServiceError(w, r, "auth.logout.fail", err)
			return
		}
	}
	h.expireSessionCookie(w)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	out := meResponse{OK: true}
	if u := userFrom(r.Context()); u != nil {
		ur := toUserResponse(*u)
		out.User = &ur
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeIssued(w http.ResponseWriter, issued auth.Issued) {
	h.setSessionCookie(w, issued.SessionID, issued.ExpiresAt)
	writeJSON(w, http.StatusOK, sessionResponse{
		OK:        true,
		User:      toUserResponse(issued.User),
		ExpiresAt: issued.ExpiresAt,
	})
}
