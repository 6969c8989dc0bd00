package companion

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/haven/backend/internal/model/companion"
	"github.com/zhouzirui/haven/backend/pkg/utils"
)

// Handler serves the companion catalog.
type Handler struct {
	companions companion.Directory
}

// New creates the handler.
func New(companions companion.Directory) *Handler {
	return &Handler{companions: companions}
}

// RegisterRoutes mounts the companion routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/companions", h.handleListCompanions)
	r.Get("/companions/{id}", h.handleGetCompanion)
}

func (h *Handler) handleListCompanions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.companions.List())
}

func (h *Handler) handleGetCompanion(w http.ResponseWriter, r *http.Request) {
	c, ok := h.companions.Get(chi.URLParam(r, "id"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "companion not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, c)
}
