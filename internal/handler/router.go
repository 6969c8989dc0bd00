package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/config"
	authhandler "github.com/zhouzirui/haven/backend/internal/handler/auth"
	chathandler "github.com/zhouzirui/haven/backend/internal/handler/chat"
	companionhandler "github.com/zhouzirui/haven/backend/internal/handler/companion"
	goalhandler "github.com/zhouzirui/haven/backend/internal/handler/goal"
	"github.com/zhouzirui/haven/backend/internal/handler/health"
	journalhandler "github.com/zhouzirui/haven/backend/internal/handler/journal"
	moodhandler "github.com/zhouzirui/haven/backend/internal/handler/mood"
	musichandler "github.com/zhouzirui/haven/backend/internal/handler/music"
	speechhandler "github.com/zhouzirui/haven/backend/internal/handler/speech"
	streamhandler "github.com/zhouzirui/haven/backend/internal/handler/stream"
	voicehandler "github.com/zhouzirui/haven/backend/internal/handler/voice"
	"github.com/zhouzirui/haven/backend/internal/logging"
	"github.com/zhouzirui/haven/backend/internal/metrics"
	"github.com/zhouzirui/haven/backend/internal/middleware"
	"github.com/zhouzirui/haven/backend/internal/model/companion"
	authservice "github.com/zhouzirui/haven/backend/internal/service/auth"
	chatservice "github.com/zhouzirui/haven/backend/internal/service/chat"
	goalservice "github.com/zhouzirui/haven/backend/internal/service/goal"
	journalservice "github.com/zhouzirui/haven/backend/internal/service/journal"
	moodservice "github.com/zhouzirui/haven/backend/internal/service/mood"
	musicservice "github.com/zhouzirui/haven/backend/internal/service/music"
	speechservice "github.com/zhouzirui/haven/backend/internal/service/speech"
	voiceservice "github.com/zhouzirui/haven/backend/internal/service/voice"
)

// Dependencies is everything the router mounts.
type Dependencies struct {
	Auth       *authservice.Service
	Companions companion.Directory
	Chat       *chatservice.Service
	Moods      *moodservice.Service
	Journal    *journalservice.Service
	Goals      *goalservice.Service
	Music      *musicservice.Service
	Speech     *speechservice.Service
	Voice      *voiceservice.Service

	Database health.Pinger
	Cache    health.Pinger
	Services map[string]bool

	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// NewRouter wires HTTP routes to the services. ctx bounds background work
// such as the rate limiter's cleanup loop.
func NewRouter(ctx context.Context, cfg config.ServerConfig, deps Dependencies) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	auth := authhandler.New(deps.Auth, logger)

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimitRPS > 0 {
			api.Use(middleware.RateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
		}

		health.New(deps.Database, deps.Cache, deps.Services, logger).RegisterRoutes(api)
		auth.RegisterPublicRoutes(api)

		api.Group(func(protected chi.Router) {
			protected.Use(middleware.JWTAuth(deps.Auth, nil, logger))

			auth.RegisterRoutes(protected)
			companionhandler.New(deps.Companions).RegisterRoutes(protected)
			chathandler.New(deps.Chat, logger).RegisterRoutes(protected)
			streamhandler.New(deps.Chat, logger).RegisterRoutes(protected)
			moodhandler.New(deps.Moods, logger).RegisterRoutes(protected)
			journalhandler.New(deps.Journal, logger).RegisterRoutes(protected)
			goalhandler.New(deps.Goals, logger).RegisterRoutes(protected)
			musichandler.New(deps.Music, logger).RegisterRoutes(protected)
			speechhandler.New(deps.Speech, logger).RegisterRoutes(protected)
			voicehandler.New(deps.Voice, logger).RegisterRoutes(protected)
			voicehandler.NewLiveHandler(deps.Voice, deps.Chat, cfg.AllowedOrigins, logger).RegisterRoutes(protected)
		})
	})

	return r
}
