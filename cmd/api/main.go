package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/cache"
	"github.com/zhouzirui/haven/backend/internal/config"
	"github.com/zhouzirui/haven/backend/internal/database"
	"github.com/zhouzirui/haven/backend/internal/handler"
	"github.com/zhouzirui/haven/backend/internal/handler/health"
	"github.com/zhouzirui/haven/backend/internal/logging"
	"github.com/zhouzirui/haven/backend/internal/metrics"
	"github.com/zhouzirui/haven/backend/internal/model/companion"
	"github.com/zhouzirui/haven/backend/internal/model/music"
	"github.com/zhouzirui/haven/backend/internal/service/ai"
	authservice "github.com/zhouzirui/haven/backend/internal/service/auth"
	"github.com/zhouzirui/haven/backend/internal/service/chat"
	emotionservice "github.com/zhouzirui/haven/backend/internal/service/emotion"
	"github.com/zhouzirui/haven/backend/internal/service/goal"
	"github.com/zhouzirui/haven/backend/internal/service/journal"
	"github.com/zhouzirui/haven/backend/internal/service/mood"
	musicservice "github.com/zhouzirui/haven/backend/internal/service/music"
	"github.com/zhouzirui/haven/backend/internal/service/speech"
	"github.com/zhouzirui/haven/backend/internal/service/voice"
	"github.com/zhouzirui/haven/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Info("no .env file loaded, using process environment", zap.Error(envErr))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	pool, err := database.NewPoolManager(db, database.PoolConfigFrom(cfg.Database), logger)
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	if err := database.Migrate(db); err != nil {
		return err
	}

	collector := metrics.NewCollector("haven", logger)

	var moodCache cache.Cache = cache.Noop{}
	var cachePinger health.Pinger
	if cfg.Cache.Enabled() {
		manager, err := cache.NewManager(cfg.Cache, logger)
		if err != nil {
			logger.Warn("redis unavailable, continuing without cache", zap.Error(err))
		} else {
			defer func() { _ = manager.Close() }()
			moodCache = manager
			cachePinger = manager
		}
	}

	var chatModel model.BaseChatModel
	if cfg.AI.Enabled() {
		cm, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			logger.Warn("failed to initialize chat model, using canned replies", zap.Error(err))
		} else {
			chatModel = cm
			logger.Info("chat model initialized", zap.String("model", cfg.AI.Model))
		}
	} else {
		logger.Info("ark credentials not configured, companion replies use canned fallbacks")
	}

	emotionSvc, err := emotionservice.NewService(ctx, chatModel, emotionservice.Config{
		Enabled:      cfg.AI.EmotionLLMEnabled,
		HistoryLimit: cfg.AI.EmotionHistoryLimit,
	}, logger, collector)
	if err != nil {
		return err
	}

	aiSvc, err := ai.NewService(ctx, chatModel, cfg.AI, logger, collector)
	if err != nil {
		return err
	}

	var transcriber speech.Transcriber
	if cfg.Speech.Enabled {
		transcriber = speech.NewWhisperClient(cfg.Speech)
		logger.Info("speech-to-text enabled", zap.String("model", cfg.Speech.Model))
	}
	speechSvc := speech.NewService(transcriber, cfg.Speech.Language, logger, collector)

	catalog, err := music.LoadCatalog()
	if err != nil {
		return err
	}

	companions := companion.DefaultCatalog()
	users := store.NewUserRepository(db)
	voiceLogs := store.NewVoiceRepository(db)

	deps := handler.Dependencies{
		Auth:       authservice.NewService(users, companions, cfg.Auth, logger),
		Companions: companions,
		Chat: chat.NewService(chat.Dependencies{
			Conversations: store.NewConversationRepository(db),
			Users:         users,
			Voice:         voiceLogs,
			Companions:    companions,
			Emotion:       emotionSvc,
			AI:            aiSvc,
			Metrics:       collector,
			Logger:        logger,
		}),
		Moods:   mood.NewService(store.NewMoodRepository(db), moodCache, cfg.Cache.TTL, logger, collector),
		Journal: journal.NewService(store.NewJournalRepository(db), logger),
		Goals:   goal.NewService(store.NewGoalRepository(db), logger),
		Music:   musicservice.NewService(catalog, store.NewMusicRepository(db), logger),
		Speech:  speechSvc,
		Voice: voice.NewService(voice.Dependencies{
			Logs:    voiceLogs,
			Users:   users,
			Speech:  speechSvc,
			Emotion: emotionSvc,
			Metrics: collector,
			Logger:  logger,
		}),
		Database: pool,
		Cache:    cachePinger,
		Services: map[string]bool{
			"ai":         aiSvc.Enabled(),
			"emotionLLM": emotionSvc.Enabled(),
			"speech":     speechSvc.Enabled(),
			"cache":      cachePinger != nil,
		},
		Metrics: collector,
		Logger:  logger,
	}

	router := handler.NewRouter(ctx, cfg.Server, deps)
	return startServer(ctx, cfg.Server, router, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("haven backend listening", zap.String("addr", serverCfg.Addr))
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
