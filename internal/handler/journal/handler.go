package journal

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/middleware"
	journalservice "github.com/zhouzirui/haven/backend/internal/service/journal"
	"github.com/zhouzirui/haven/backend/pkg/utils"
)

// Handler serves journal entries, daily prompts and the hope jar.
type Handler struct {
	journal *journalservice.Service
	logger  *zap.Logger
	now     func() time.Time
}

// New creates the handler.
func New(journal *journalservice.Service, logger *zap.Logger) *Handler {
	return &Handler{journal: journal, logger: logger, now: time.Now}
}

// RegisterRoutes mounts the journal routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/journal", func(r chi.Router) {
		r.Get("/prompt", h.handlePrompt)
		r.Get("/hope/random", h.handleRandomHope)
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in journalservice.Input
	if err := utils.DecodeJSON(w, r, &in, 0); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := h.journal.Create(r.Context(), middleware.UserIDFromContext(r.Context()), in)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.journal.List(r.Context(), middleware.UserIDFromContext(r.Context()), r.URL.Query().Get("kind"), utils.QueryInt(r, "limit"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	entry, err := h.journal.Get(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var in journalservice.Input
	if err := utils.DecodeJSON(w, r, &in, 0); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := h.journal.Update(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.journal.Delete(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePrompt(w http.ResponseWriter, r *http.Request) {
	date, err := utils.QueryDate(r, "date")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid date")
		return
	}
	if date.IsZero() {
		date = h.now()
	}

	prompt, err := h.journal.DailyPrompt(r.URL.Query().Get("kind"), date)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, prompt)
}

func (h *Handler) handleRandomHope(w http.ResponseWriter, r *http.Request) {
	entry, err := h.journal.RandomHope(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, entry)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, journalservice.ErrNotFound), errors.Is(err, journalservice.ErrEmptyJar):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, journalservice.ErrValidation):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("journal request failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
