package handlers

import (
	"context"
	"net/http"

	"github.com/Dias221467/SuperHuman/internal/jobs"
)

// Reconciler runs one aggregate reconciliation pass.
type Reconciler interface {
	Run(ctx context.Context) (jobs.Report, error)
}

// AdminHandler exposes maintenance operations to admins.
type AdminHandler struct {
	Reconciler Reconciler
}

func NewAdminHandler(r Reconciler) *AdminHandler {
	return &AdminHandler{Reconciler: r}
}

// ReconcileHandler triggers a reconciliation pass and returns its report.
func (h *AdminHandler) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.Reconciler.Run(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
