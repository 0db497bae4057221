package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-order-lifecycle/internal/reclaim"
)

type PendingLister interface {
	Pending() []reclaim.Entry
}

type ReclamationsHandler struct {
	Scheduler PendingLister
}

func (h *ReclamationsHandler) Register(r chi.Router) {
	r.Get("/reclamations", h.list)
}

func (h *ReclamationsHandler) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Scheduler.Pending())
}
