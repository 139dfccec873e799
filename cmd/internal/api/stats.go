package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"vanish/cmd/internal/report"
)

func (h *Handler) handleDropStats(w http.ResponseWriter, r *http.Request) {
	window, ok := windowParam(w, r)
	if !ok {
		return
	}
	stats, err := h.reports.ForDrop(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), window)
	if err != nil {
		h.writeServiceError(w, r, "report.drop.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, toDropStatsResponse(stats))
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	window, ok := windowParam(w, r)
	if !ok {
		return
	}
	ov, err := h.reports.Overview(r.Context(), callerFrom(r.Context()), window)
	if err != nil {
		h.writeServiceError(w, r, "report.overview.fail", err)
		return
	}
	if window == 0 {
		window = report.DefaultWindowMinutes
	}
	writeJSON(w, http.StatusOK, overviewResponse{
		OK:             true,
		WindowMinutes:  window,
		TotalDrops:     ov.TotalDrops,
		ExhaustedDrops: ov.ExhaustedDrops,
		TotalViews:     ov.TotalViews,
	})
}

// windowParam parses ?window= in minutes; absent means the default.
func windowParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("window"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "window must be an integer number of minutes")
		return 0, false
	}
	return n, true
}
