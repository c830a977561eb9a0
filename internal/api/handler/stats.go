package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/gamestats/internal/api/apierr"
	"github.com/mcoot/gamestats/internal/api/middleware"
	"github.com/mcoot/gamestats/internal/api/request"
	"github.com/mcoot/gamestats/internal/api/response"
	"github.com/mcoot/gamestats/internal/services/stats"
)

// SelfAlias may stand in for the caller's own ID in stats paths
const SelfAlias = "me"

// StatsHandler handles outcome reporting and the leaderboard
type StatsHandler struct {
	stats  *stats.Service
	logger *slog.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(stats *stats.Service, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		stats:  stats,
		logger: logger,
	}
}

// ReportOutcome handles POST /api/v1/players/{id}/stats. The player is
// always the authenticated caller; the path ID must match it or be "me".
func (h *StatsHandler) ReportOutcome(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.MustGetPlayerID(r.Context())

	if pathID := mux.Vars(r)["id"]; pathID != SelfAlias && pathID != string(callerID) {
		writeError(w, r, h.logger, apierr.NewForbiddenError("Cannot report stats for another player"))
		return
	}

	var req request.ReportOutcomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	player, err := h.stats.ReportOutcome(r.Context(), callerID, req.Result)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, response.NewPlayerResponse(player))
}

// Leaderboard handles GET /api/v1/leaderboard?limit=N
func (h *StatsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, h.logger, apierr.NewInvalidRequestError("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	entries, err := h.stats.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, response.LeaderboardFromEntries(entries))
}
