package handlers

import (
	"net/http"

	"github.com/Dias221467/SuperHuman/internal/services"
	"github.com/gorilla/mux"
)

// ProgressHandler serves aggregate summaries.
type ProgressHandler struct {
	Service *services.ProgressService
}

func NewProgressHandler(service *services.ProgressService) *ProgressHandler {
	return &ProgressHandler{Service: service}
}

func (h *ProgressHandler) GetProgressHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.GetUserProgress(r.Context(), currentUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *ProgressHandler) GetCategoryProgressHandler(w http.ResponseWriter, r *http.Request) {
	progress, err := h.Service.GetCategoryProgress(r.Context(), currentUserID(r), mux.Vars(r)["category"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}
