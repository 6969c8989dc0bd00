package goal

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/middleware"
	goalservice "github.com/zhouzirui/haven/backend/internal/service/goal"
	"github.com/zhouzirui/haven/backend/pkg/utils"
)

// Handler serves wellbeing goals.
type Handler struct {
	goals  *goalservice.Service
	logger *zap.Logger
}

// New creates the handler.
func New(goals *goalservice.Service, logger *zap.Logger) *Handler {
	return &Handler{goals: goals, logger: logger}
}

// RegisterRoutes mounts the goal routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/goals", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in goalservice.Input
	if err := utils.DecodeJSON(w, r, &in, 0); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	g, err := h.goals.Create(r.Context(), middleware.UserIDFromContext(r.Context()), in)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, g)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	goals, err := h.goals.List(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, goals)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	g, err := h.goals.Get(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, g)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var upd goalservice.Update
	if err := utils.DecodeJSON(w, r, &upd, 0); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	g, err := h.goals.Update(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), upd)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, g)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.goals.Delete(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, goalservice.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, goalservice.ErrValidation):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("goal request failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
