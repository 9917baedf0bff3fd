package handlers

import (
	"net/http"
	"time"

	"github.com/Dias221467/SuperHuman/internal/models"
	"github.com/Dias221467/SuperHuman/internal/services"
)

// ActivityHandler exposes the activity ledger.
type ActivityHandler struct {
	Service *services.ActivityService
}

func NewActivityHandler(service *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{Service: service}
}

// CreateActivityHandler records a new activity for the caller.
func (h *ActivityHandler) CreateActivityHandler(w http.ResponseWriter, r *http.Request) {
	var input models.ActivityInput
	if !decodeJSON(w, r, &input) {
		return
	}
	activity, err := h.Service.SaveActivity(r.Context(), currentUserID(r), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, activity)
}

func (h *ActivityHandler) GetActivityHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	activity, err := h.Service.GetActivity(r.Context(), currentUserID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func parseTimeParam(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		badRequest(w, name, "must be an RFC3339 timestamp")
		return nil, false
	}
	return &t, true
}

// ListActivitiesHandler supports ?category, ?from, ?to, ?limit and ?offset.
func (h *ActivityHandler) ListActivitiesHandler(w http.ResponseWriter, r *http.Request) {
	filter := models.ActivityFilter{CategoryID: r.URL.Query().Get("category")}

	var ok bool
	if filter.From, ok = parseTimeParam(w, r, "from"); !ok {
		return
	}
	if filter.To, ok = parseTimeParam(w, r, "to"); !ok {
		return
	}
	if filter.Limit, ok = queryInt(w, r, "limit"); !ok {
		return
	}
	if filter.Offset, ok = queryInt(w, r, "offset"); !ok {
		return
	}

	page, err := h.Service.ListActivities(r.Context(), currentUserID(r), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *ActivityHandler) UpdateActivityHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var update models.ActivityUpdate
	if !decodeJSON(w, r, &update) {
		return
	}
	activity, err := h.Service.UpdateActivity(r.Context(), currentUserID(r), id, update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (h *ActivityHandler) DeleteActivityHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.DeleteActivity(r.Context(), currentUserID(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ActivityHandler) GetActivityStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.GetActivityStats(r.Context(), currentUserID(r), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
