// Package voice runs the tone analysis pipeline: transcription and text
// sentiment alongside prosody extraction, merged into a tone label.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/haven/backend/internal/analysis/prosody"
	"github.com/zhouzirui/haven/backend/internal/analysis/tone"
	"github.com/zhouzirui/haven/backend/internal/metrics"
	"github.com/zhouzirui/haven/backend/internal/model/voice"
	emotionservice "github.com/zhouzirui/haven/backend/internal/service/emotion"
	"github.com/zhouzirui/haven/backend/internal/service/speech"
	"github.com/zhouzirui/haven/backend/internal/store"
)

var (
	ErrDisabled     = errors.New("voice analysis is disabled in settings")
	ErrInvalidAudio = errors.New("invalid audio")
	ErrNotFound     = errors.New("tone log not found")
)

// Pipeline stages reported to metrics.
const (
	StageDecode     = "decode"
	StageTranscribe = "transcribe"
	StageSentiment  = "sentiment"
	StageProsody    = "prosody"
	StageClassify   = "classify"
)

// Request is one clip to analyze.
type Request struct {
	Audio    []byte
	Filename string
	Language string
}

// Result is the merged tone of a clip.
type Result struct {
	ID string `json:"id"`
	tone.Result
	Transcript string           `json:"transcript"`
	TextSource string           `json:"textSource,omitempty"`
	Features   prosody.Features `json:"features"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// Dependencies wires the service.
type Dependencies struct {
	Logs    *store.VoiceRepository
	Users   *store.UserRepository
	Speech  *speech.Service
	Emotion *emotionservice.Service
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// Service analyzes voice clips and keeps the tone history.
type Service struct {
	logs    *store.VoiceRepository
	users   *store.UserRepository
	speech  *speech.Service
	emotion *emotionservice.Service
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

// NewService builds the pipeline.
func NewService(deps Dependencies) *Service {
	return &Service{
		logs:    deps.Logs,
		users:   deps.Users,
		speech:  deps.Speech,
		emotion: deps.Emotion,
		metrics: deps.Metrics,
		logger:  deps.Logger.With(zap.String("component", "voice")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Allowed reports whether the user has voice analysis switched on. Users
// without a settings row get the default, which is on.
func (s *Service) Allowed(ctx context.Context, userID string) (bool, error) {
	settings, err := s.users.GetSettings(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("load settings: %w", err)
	}
	return settings.VoiceAnalysisEnabled, nil
}

// Analyze runs the full pipeline on one clip and stores the outcome.
func (s *Service) Analyze(ctx context.Context, userID string, req Request) (Result, error) {
	allowed, err := s.Allowed(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if !allowed {
		return Result{}, ErrDisabled
	}

	started := time.Now()

	stageStart := time.Now()
	audio, err := prosody.DecodeWAV(bytes.NewReader(req.Audio))
	s.metrics.RecordVoiceStage(StageDecode, time.Since(stageStart))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidAudio, err)
	}

	var (
		transcript speech.Transcript
		sentiment  emotionservice.Sentiment
		hasText    bool
		features   prosody.Features
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t := time.Now()
		transcript = s.speech.TranscribeOrEmpty(gctx, speech.Request{
			Audio:    req.Audio,
			Filename: req.Filename,
			Language: req.Language,
		})
		s.metrics.RecordVoiceStage(StageTranscribe, time.Since(t))

		t = time.Now()
		sentiment, hasText = s.emotion.RateTranscript(gctx, transcript.Text)
		s.metrics.RecordVoiceStage(StageSentiment, time.Since(t))
		return nil
	})
	g.Go(func() error {
		t := time.Now()
		f, err := prosody.Extract(audio, "")
		s.metrics.RecordVoiceStage(StageProsody, time.Since(t))
		if err != nil {
			return err
		}
		features = f
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	features = features.WithTranscript(transcript.Text)

	stageStart = time.Now()
	in := tone.Input{Features: &features}
	if hasText {
		in.Text = &tone.TextSignal{Point: sentiment.Point, Confidence: sentiment.Confidence}
	}
	merged, err := tone.Classify(in)
	s.metrics.RecordVoiceStage(StageClassify, time.Since(stageStart))
	if err != nil {
		return Result{}, fmt.Errorf("classify tone: %w", err)
	}

	result := Result{
		ID:         uuid.NewString(),
		Result:     merged,
		Transcript: transcript.Text,
		Features:   features,
		CreatedAt:  s.now(),
	}
	if hasText {
		result.TextSource = sentiment.Source
	}

	if err := s.save(ctx, userID, result); err != nil {
		return Result{}, err
	}

	s.metrics.RecordVoiceAnalysis(string(merged.Label), time.Since(started))
	s.logger.Info("voice tone analyzed",
		zap.String("user_id", userID),
		zap.String("label", string(merged.Label)),
		zap.Float64("confidence", merged.Confidence),
		zap.Strings("sources", merged.Sources),
		zap.Duration("took", time.Since(started)),
	)
	return result, nil
}

// History returns the newest tone logs of a user.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]voice.ToneLog, error) {
	logs, err := s.logs.List(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list tone logs: %w", err)
	}
	return logs, nil
}

// Get returns one tone log owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (voice.ToneLog, error) {
	log, err := s.logs.Get(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return voice.ToneLog{}, ErrNotFound
	}
	if err != nil {
		return voice.ToneLog{}, fmt.Errorf("load tone log: %w", err)
	}
	return log, nil
}

func (s *Service) save(ctx context.Context, userID string, r Result) error {
	features, err := json.Marshal(r.Features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}

	log := voice.ToneLog{
		ID:         r.ID,
		UserID:     userID,
		Label:      string(r.Label),
		Confidence: r.Confidence,
		Valence:    r.Valence,
		Arousal:    r.Arousal,
		Dominance:  r.Dominance,
		Transcript: r.Transcript,
		Features:   string(features),
		CreatedAt:  r.CreatedAt,
	}
	if err := s.logs.Create(ctx, &log); err != nil {
		return fmt.Errorf("save tone log: %w", err)
	}
	return nil
}
