package health

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/pkg/utils"
)

const pingTimeout = 2 * time.Second

// Pinger is a dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Report is the health payload.
type Report struct {
	Status   string          `json:"status"`
	Database string          `json:"database"`
	Cache    string          `json:"cache"`
	Services map[string]bool `json:"services"`
	Time     time.Time       `json:"time"`
}

// Handler reports dependency health and which optional services are on.
type Handler struct {
	db       Pinger
	cache    Pinger
	services map[string]bool
	logger   *zap.Logger
}

// New creates the handler. cache may be nil when Redis is not configured.
func New(db Pinger, cache Pinger, services map[string]bool, logger *zap.Logger) *Handler {
	return &Handler{db: db, cache: cache, services: services, logger: logger}
}

// RegisterRoutes mounts GET /health.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	report := Report{
		Status:   "ok",
		Database: "ok",
		Cache:    "disabled",
		Services: h.services,
		Time:     time.Now().UTC(),
	}
	status := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("database ping failed", zap.Error(err))
		report.Status = "degraded"
		report.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if h.cache != nil {
		report.Cache = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			h.logger.Warn("cache ping failed", zap.Error(err))
			report.Cache = "unreachable"
		}
	}

	utils.RespondJSON(w, status, report)
}
