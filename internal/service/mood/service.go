// Package mood records mood check-ins and serves dashboard statistics.
package mood

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/analysis/moodstats"
	"github.com/zhouzirui/haven/backend/internal/cache"
	"github.com/zhouzirui/haven/backend/internal/metrics"
	"github.com/zhouzirui/haven/backend/internal/model/mood"
	"github.com/zhouzirui/haven/backend/internal/store"
)

var (
	ErrInvalidScore    = errors.New("score must be between 1 and 10")
	ErrInvalidEnergy   = errors.New("energy must be between 1 and 5")
	ErrFutureLog       = errors.New("loggedAt is in the future")
	ErrInvalidRange    = errors.New("from must be before to")
	ErrTooManyEmotions = errors.New("too many emotions")
	ErrNotFound        = errors.New("mood log not found")
)

const (
	clockSkew        = 5 * time.Minute
	defaultRangeDays = 30
	maxEmotions      = 8
	maxNoteLength    = 2000
	dateLayout       = "2006-01-02"
)

// CreateInput is a new check-in.
type CreateInput struct {
	Score    int        `json:"score"`
	Energy   *int       `json:"energy,omitempty"`
	Emotions []string   `json:"emotions"`
	Note     string     `json:"note"`
	LoggedAt *time.Time `json:"loggedAt,omitempty"`
}

// Service owns mood logs and their aggregates.
type Service struct {
	repo    *store.MoodRepository
	cache   cache.Cache
	ttl     time.Duration
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

// NewService builds the service. A nil cache disables caching.
func NewService(repo *store.MoodRepository, c cache.Cache, ttl time.Duration, logger *zap.Logger, collector *metrics.Collector) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{
		repo:    repo,
		cache:   c,
		ttl:     ttl,
		metrics: collector,
		logger:  logger.With(zap.String("component", "mood")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and stores a check-in.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (mood.Log, error) {
	if in.Score < mood.MinScore || in.Score > mood.MaxScore {
		return mood.Log{}, ErrInvalidScore
	}
	if in.Energy != nil && (*in.Energy < mood.MinEnergy || *in.Energy > mood.MaxEnergy) {
		return mood.Log{}, ErrInvalidEnergy
	}

	now := s.now()
	loggedAt := now
	if in.LoggedAt != nil && !in.LoggedAt.IsZero() {
		loggedAt = in.LoggedAt.UTC()
		if loggedAt.After(now.Add(clockSkew)) {
			return mood.Log{}, ErrFutureLog
		}
	}

	emotions, err := normalizeEmotions(in.Emotions)
	if err != nil {
		return mood.Log{}, err
	}

	note := strings.TrimSpace(in.Note)
	if len(note) > maxNoteLength {
		note = note[:maxNoteLength]
	}

	entry := mood.Log{
		ID:       uuid.NewString(),
		UserID:   userID,
		Score:    in.Score,
		Energy:   in.Energy,
		Emotions: emotions,
		Note:     note,
		LoggedAt: loggedAt,
	}
	if err := s.repo.Create(ctx, &entry); err != nil {
		return mood.Log{}, fmt.Errorf("save mood log: %w", err)
	}
	s.invalidate(ctx, userID)
	return entry, nil
}

// List returns logs in [from, to).
func (s *Service) List(ctx context.Context, userID string, from, to time.Time, limit int) ([]mood.Log, error) {
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, ErrInvalidRange
	}
	return s.repo.List(ctx, userID, from, to, limit)
}

// Delete removes a log.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	err := s.repo.Delete(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete mood log: %w", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

// Stats computes dashboard statistics over whole UTC days. Zero bounds
// default to the last 30 days.
func (s *Service) Stats(ctx context.Context, userID string, from, to time.Time) (mood.Stats, error) {
	from, to, err := s.dayRange(from, to)
	if err != nil {
		return mood.Stats{}, err
	}

	key := fmt.Sprintf("%sstats:%s:%s", cachePrefix(userID), from.Format(dateLayout), to.Format(dateLayout))
	var cached mood.Stats
	if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
		s.metrics.RecordCacheHit("mood_stats")
		return cached, nil
	}
	s.metrics.RecordCacheMiss("mood_stats")

	logs, err := s.repo.ListRange(ctx, userID, from, to)
	if err != nil {
		return mood.Stats{}, fmt.Errorf("load mood logs: %w", err)
	}
	stats := moodstats.Compute(logs, from, to, s.now())

	if err := s.cache.SetJSON(ctx, key, stats, s.ttl); err != nil {
		s.logger.Warn("cache mood stats failed", zap.Error(err))
	}
	return stats, nil
}

// Summaries buckets logs by period, upserts the buckets and returns the
// stored rows for the range.
func (s *Service) Summaries(ctx context.Context, userID string, period mood.Period, from, to time.Time) ([]mood.Summary, error) {
	from, to, err := s.dayRange(from, to)
	if err != nil {
		return nil, err
	}
	from = moodstats.BucketStart(from, period)

	key := fmt.Sprintf("%ssummaries:%s:%s:%s", cachePrefix(userID), period, from.Format(dateLayout), to.Format(dateLayout))
	var cached []mood.Summary
	if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
		s.metrics.RecordCacheHit("mood_summaries")
		return cached, nil
	}
	s.metrics.RecordCacheMiss("mood_summaries")

	logs, err := s.repo.ListRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load mood logs: %w", err)
	}

	for _, summary := range moodstats.Summarize(logs, period) {
		summary.ID = uuid.NewString()
		summary.UserID = userID
		if err := s.repo.UpsertSummary(ctx, &summary); err != nil {
			return nil, fmt.Errorf("save mood summary: %w", err)
		}
	}

	out, err := s.repo.Summaries(ctx, userID, period, from, to)
	if err != nil {
		return nil, fmt.Errorf("load mood summaries: %w", err)
	}
	if err := s.cache.SetJSON(ctx, key, out, s.ttl); err != nil {
		s.logger.Warn("cache mood summaries failed", zap.Error(err))
	}
	return out, nil
}

// dayRange widens [from, to) to whole UTC days.
func (s *Service) dayRange(from, to time.Time) (time.Time, time.Time, error) {
	if to.IsZero() {
		to = s.now()
	}
	to = truncateDay(to).Add(24 * time.Hour)
	if from.IsZero() {
		from = to.AddDate(0, 0, -defaultRangeDays)
	}
	from = truncateDay(from)
	if !from.Before(to) {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return from, to, nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if err := s.cache.DeletePrefix(ctx, cachePrefix(userID)); err != nil {
		s.logger.Warn("invalidate mood cache failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func cachePrefix(userID string) string {
	return "mood:" + userID + ":"
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func normalizeEmotions(raw []string) (mood.StringList, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make(mood.StringList, 0, len(raw))
	for _, e := range raw {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || len(e) > 32 {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	if len(out) > maxEmotions {
		return nil, ErrTooManyEmotions
	}
	return out, nil
}
