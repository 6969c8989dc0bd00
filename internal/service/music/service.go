// Package music serves the therapy catalog, recommendations and listening
// sessions.
package music

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/analysis/emotion"
	"github.com/zhouzirui/haven/backend/internal/model/music"
	"github.com/zhouzirui/haven/backend/internal/store"
)

var (
	ErrUnknownTrack    = errors.New("unknown track")
	ErrUnknownPurpose  = errors.New("unknown purpose")
	ErrUnknownMood     = errors.New("unknown mood or tone label")
	ErrInvalidMood     = errors.New("mood rating must be between 1 and 10")
	ErrSessionNotFound = errors.New("music session not found")
	ErrSessionFinished = errors.New("music session already finished")
)

const defaultRecommendations = 5

// purposeMap lists the purposes that suit a label, best first.
var purposeMap = map[emotion.Label][]music.Purpose{
	emotion.Anxious:  {music.Calm},
	emotion.Stressed: {music.Calm},
	emotion.Angry:    {music.Calm},
	emotion.Sad:      {music.Uplift, music.Sleep},
	emotion.Tired:    {music.Uplift, music.Sleep},
	emotion.Happy:    {music.Energize, music.Focus},
	emotion.Excited:  {music.Energize, music.Focus},
	emotion.Calm:     {music.Focus, music.Calm},
	emotion.Neutral:  {music.Focus, music.Uplift},
}

// targetBPM is the tempo each label is steered towards.
var targetBPM = map[emotion.Label]int{
	emotion.Anxious:  60,
	emotion.Stressed: 62,
	emotion.Angry:    64,
	emotion.Sad:      96,
	emotion.Tired:    90,
	emotion.Happy:    116,
	emotion.Excited:  120,
	emotion.Calm:     72,
	emotion.Neutral:  84,
}

// Recommendation is a ranked track.
type Recommendation struct {
	Track   music.Track   `json:"track"`
	Overlap int           `json:"overlap"`
	BPMGap  int           `json:"bpmGap"`
	Label   emotion.Label `json:"label"`
}

// Service serves the catalog and records sessions.
type Service struct {
	catalog []music.Track
	byID    map[string]music.Track
	repo    *store.MusicRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewService indexes the catalog.
func NewService(catalog []music.Track, repo *store.MusicRepository, logger *zap.Logger) *Service {
	byID := make(map[string]music.Track, len(catalog))
	for _, t := range catalog {
		byID[t.ID] = t
	}
	return &Service{
		catalog: catalog,
		byID:    byID,
		repo:    repo,
		logger:  logger.With(zap.String("component", "music")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Tracks filters the catalog by purpose and mood tag. Empty filters match all.
func (s *Service) Tracks(purpose, mood string) ([]music.Track, error) {
	purpose = strings.ToLower(strings.TrimSpace(purpose))
	mood = strings.ToLower(strings.TrimSpace(mood))
	if purpose != "" {
		switch music.Purpose(purpose) {
		case music.Calm, music.Uplift, music.Focus, music.Sleep, music.Energize:
		default:
			return nil, ErrUnknownPurpose
		}
	}

	out := make([]music.Track, 0, len(s.catalog))
	for _, t := range s.catalog {
		if purpose != "" && string(t.Purpose) != purpose {
			continue
		}
		if mood != "" && !hasMood(t, mood) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Recommend ranks tracks for a tone or mood label. A numeric mood rating
// from 1 to 10 is mapped to sad, neutral or happy.
func (s *Service) Recommend(raw string, limit int) ([]Recommendation, error) {
	label, err := parseMood(raw)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultRecommendations
	}

	purposes := purposeMap[label]
	rank := make(map[music.Purpose]int, len(purposes))
	for i, p := range purposes {
		rank[p] = i
	}
	target := targetBPM[label]

	recs := make([]Recommendation, 0, len(s.catalog))
	for _, t := range s.catalog {
		pr, ok := rank[t.Purpose]
		if !ok {
			continue
		}
		overlap := len(purposes) - pr
		if hasMood(t, string(label)) {
			overlap += 2
		}
		recs = append(recs, Recommendation{
			Track:   t,
			Overlap: overlap,
			BPMGap:  int(math.Abs(float64(t.BPM - target))),
			Label:   label,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Overlap != recs[j].Overlap {
			return recs[i].Overlap > recs[j].Overlap
		}
		if recs[i].BPMGap != recs[j].BPMGap {
			return recs[i].BPMGap < recs[j].BPMGap
		}
		return recs[i].Track.ID < recs[j].Track.ID
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// StartSession records the user starting a track.
func (s *Service) StartSession(ctx context.Context, userID, trackID string, moodBefore int) (music.Session, error) {
	if _, ok := s.byID[trackID]; !ok {
		return music.Session{}, ErrUnknownTrack
	}
	if moodBefore < 1 || moodBefore > 10 {
		return music.Session{}, ErrInvalidMood
	}

	session := music.Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		TrackID:    trackID,
		MoodBefore: moodBefore,
		StartedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, &session); err != nil {
		return music.Session{}, fmt.Errorf("save music session: %w", err)
	}
	return session, nil
}

// FinishSession closes a session with the mood afterwards. A zero
// durationSec is derived from the start time.
func (s *Service) FinishSession(ctx context.Context, userID, sessionID string, moodAfter, durationSec int) (music.Session, error) {
	if moodAfter < 1 || moodAfter > 10 {
		return music.Session{}, ErrInvalidMood
	}

	session, err := s.repo.Get(ctx, userID, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return music.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return music.Session{}, fmt.Errorf("load music session: %w", err)
	}
	if session.EndedAt != nil {
		return music.Session{}, ErrSessionFinished
	}

	now := s.now()
	if durationSec <= 0 {
		durationSec = int(now.Sub(session.StartedAt).Seconds())
	}
	durationSec = max(durationSec, 0)

	ok, err := s.repo.Finish(ctx, userID, sessionID, moodAfter, now, durationSec)
	if err != nil {
		return music.Session{}, fmt.Errorf("finish music session: %w", err)
	}
	if !ok {
		return music.Session{}, ErrSessionFinished
	}
	session.MoodAfter = &moodAfter
	session.EndedAt = &now
	session.DurationSec = durationSec
	return session, nil
}

// Sessions lists the user's sessions, newest first.
func (s *Service) Sessions(ctx context.Context, userID string, limit int) ([]music.Session, error) {
	return s.repo.List(ctx, userID, limit)
}

// Effectiveness averages the mood change per track over finished sessions,
// best first.
func (s *Service) Effectiveness(ctx context.Context, userID string) ([]music.Effectiveness, error) {
	sessions, err := s.repo.Finished(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load finished sessions: %w", err)
	}

	byTrack := make(map[string]*music.Effectiveness)
	deltas := make(map[string]int)
	for _, sess := range sessions {
		if sess.MoodAfter == nil {
			continue
		}
		e, ok := byTrack[sess.TrackID]
		if !ok {
			e = &music.Effectiveness{TrackID: sess.TrackID, Title: s.byID[sess.TrackID].Title}
			byTrack[sess.TrackID] = e
		}
		e.Sessions++
		e.TotalListened += sess.DurationSec
		deltas[sess.TrackID] += *sess.MoodAfter - sess.MoodBefore
	}

	out := make([]music.Effectiveness, 0, len(byTrack))
	for id, e := range byTrack {
		e.AvgMoodDelta = math.Round(float64(deltas[id])/float64(e.Sessions)*100) / 100
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgMoodDelta != out[j].AvgMoodDelta {
			return out[i].AvgMoodDelta > out[j].AvgMoodDelta
		}
		return out[i].TrackID < out[j].TrackID
	})
	return out, nil
}

func parseMood(raw string) (emotion.Label, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrUnknownMood
	}
	if score, err := strconv.Atoi(raw); err == nil {
		switch {
		case score < 1 || score > 10:
			return "", ErrInvalidMood
		case score <= 4:
			return emotion.Sad, nil
		case score >= 8:
			return emotion.Happy, nil
		default:
			return emotion.Neutral, nil
		}
	}
	label, ok := emotion.ParseLabel(raw)
	if !ok {
		return "", ErrUnknownMood
	}
	return label, nil
}

func hasMood(t music.Track, mood string) bool {
	for _, m := range t.Moods {
		if strings.EqualFold(m, mood) {
			return true
		}
	}
	return false
}
