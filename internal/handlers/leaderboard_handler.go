package handlers

import (
	"net/http"

	"github.com/Dias221467/SuperHuman/internal/services"
)

// LeaderboardHandler serves global, category and friends rankings.
type LeaderboardHandler struct {
	Service *services.LeaderboardService
}

func NewLeaderboardHandler(service *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{Service: service}
}

// GetLeaderboardHandler supports ?category, ?window and ?limit.
func (h *LeaderboardHandler) GetLeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	window, err := services.ParseTimeWindow(r.URL.Query().Get("window"))
	if err != nil {
		writeError(w, err)
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	entries, err := h.Service.GetLeaderboard(r.Context(), r.URL.Query().Get("category"), window, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *LeaderboardHandler) GetFriendsLeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.FriendsLeaderboard(r.Context(), currentUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
