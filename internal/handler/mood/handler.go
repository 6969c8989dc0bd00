package mood

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/middleware"
	"github.com/zhouzirui/haven/backend/internal/model/mood"
	moodservice "github.com/zhouzirui/haven/backend/internal/service/mood"
	"github.com/zhouzirui/haven/backend/pkg/utils"
)

// Handler serves mood check-ins and dashboard statistics.
type Handler struct {
	moods  *moodservice.Service
	logger *zap.Logger
}

// New creates the handler.
func New(moods *moodservice.Service, logger *zap.Logger) *Handler {
	return &Handler{moods: moods, logger: logger}
}

// RegisterRoutes mounts the mood routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/moods", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/stats", h.handleStats)
		r.Get("/summaries", h.handleSummaries)
		r.Delete("/{id}", h.handleDelete)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in moodservice.CreateInput
	if err := utils.DecodeJSON(w, r, &in, 0); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := h.moods.Create(r.Context(), middleware.UserIDFromContext(r.Context()), in)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	logs, err := h.moods.List(r.Context(), middleware.UserIDFromContext(r.Context()), from, to, utils.QueryInt(r, "limit"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, logs)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.moods.Delete(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	stats, err := h.moods.Stats(r.Context(), middleware.UserIDFromContext(r.Context()), from, to)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleSummaries(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		raw = string(mood.Weekly)
	}
	period, err := mood.ParsePeriod(raw)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	summaries, err := h.moods.Summaries(r.Context(), middleware.UserIDFromContext(r.Context()), period, from, to)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, summaries)
}

func dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, err := utils.QueryDate(r, "from")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid from date")
		return time.Time{}, time.Time{}, false
	}
	to, err := utils.QueryDate(r, "to")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid to date")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, moodservice.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, moodservice.ErrInvalidScore),
		errors.Is(err, moodservice.ErrInvalidEnergy),
		errors.Is(err, moodservice.ErrFutureLog),
		errors.Is(err, moodservice.ErrInvalidRange),
		errors.Is(err, moodservice.ErrTooManyEmotions):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("mood request failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
