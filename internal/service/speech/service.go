// Package speech turns recorded audio into text through a pluggable provider.
package speech

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/metrics"
)

// ErrDisabled is returned when no transcription provider is configured.
var ErrDisabled = errors.New("speech-to-text is not configured")

// Request is one transcription job.
type Request struct {
	Audio    []byte
	Filename string
	Language string
}

// Transcript is the provider's answer.
type Transcript struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Transcriber is implemented by speech-to-text adapters.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (Transcript, error)
}

// Service wraps an optional Transcriber with logging, metrics and a
// default language.
type Service struct {
	transcriber Transcriber
	language    string
	logger      *zap.Logger
	metrics     *metrics.Collector
}

// NewService builds the service. transcriber may be nil.
func NewService(transcriber Transcriber, language string, logger *zap.Logger, collector *metrics.Collector) *Service {
	return &Service{
		transcriber: transcriber,
		language:    language,
		logger:      logger.With(zap.String("component", "speech")),
		metrics:     collector,
	}
}

// Enabled reports whether a provider is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.transcriber != nil
}

// Transcribe forwards to the provider and returns ErrDisabled without one.
func (s *Service) Transcribe(ctx context.Context, req Request) (Transcript, error) {
	if !s.Enabled() {
		s.metrics.RecordTranscription("skipped")
		return Transcript{}, ErrDisabled
	}
	if len(req.Audio) == 0 {
		return Transcript{}, fmt.Errorf("empty audio")
	}
	if req.Language == "" {
		req.Language = s.language
	}

	start := time.Now()
	out, err := s.transcriber.Transcribe(ctx, req)
	if err != nil {
		s.metrics.RecordTranscription("error")
		s.logger.Warn("transcription failed", zap.Int("bytes", len(req.Audio)), zap.Error(err))
		return Transcript{}, fmt.Errorf("transcribe: %w", err)
	}

	s.metrics.RecordTranscription("ok")
	s.logger.Debug("transcription finished",
		zap.Int("bytes", len(req.Audio)),
		zap.Int("chars", len(out.Text)),
		zap.Duration("took", time.Since(start)),
	)
	return out, nil
}

// TranscribeOrEmpty is Transcribe with failures folded into an empty
// transcript, for callers that treat text as an optional signal.
func (s *Service) TranscribeOrEmpty(ctx context.Context, req Request) Transcript {
	out, err := s.Transcribe(ctx, req)
	if err != nil {
		return Transcript{}
	}
	return out
}
