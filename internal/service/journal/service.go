// Package journal manages free-form, gratitude, CBT and hope-jar entries.
package journal

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/analysis/emotion"
	"github.com/zhouzirui/haven/backend/internal/model/journal"
	"github.com/zhouzirui/haven/backend/internal/store"
)

var (
	ErrNotFound   = errors.New("journal entry not found")
	ErrValidation = errors.New("validation failed")
	ErrEmptyJar   = errors.New("hope jar is empty")
)

const maxTitleRunes = 200

// Input carries the editable fields of an entry.
type Input struct {
	Kind             string `json:"kind"`
	Title            string `json:"title"`
	Content          string `json:"content"`
	MoodScore        *int   `json:"moodScore,omitempty"`
	Situation        string `json:"situation"`
	AutomaticThought string `json:"automaticThought"`
	EvidenceFor      string `json:"evidenceFor"`
	EvidenceAgainst  string `json:"evidenceAgainst"`
	BalancedThought  string `json:"balancedThought"`
}

// Prompt is the reflection prompt of the day.
type Prompt struct {
	Kind journal.Kind `json:"kind"`
	Date string       `json:"date"`
	Text string       `json:"text"`
}

// Service owns journal entries.
type Service struct {
	repo   *store.JournalRepository
	logger *zap.Logger
	intN   func(n int) int
}

// NewService builds the service.
func NewService(repo *store.JournalRepository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With(zap.String("component", "journal")),
		intN:   rand.IntN,
	}
}

// Create validates, tags and stores an entry.
func (s *Service) Create(ctx context.Context, userID string, in Input) (journal.Entry, error) {
	kind, err := journal.ParseKind(strings.TrimSpace(in.Kind))
	if err != nil {
		return journal.Entry{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	entry := journal.Entry{ID: uuid.NewString(), UserID: userID, Kind: kind}
	if err := apply(&entry, in); err != nil {
		return journal.Entry{}, err
	}
	if err := s.repo.Create(ctx, &entry); err != nil {
		return journal.Entry{}, fmt.Errorf("save journal entry: %w", err)
	}
	return entry, nil
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, userID, id string) (journal.Entry, error) {
	entry, err := s.repo.Get(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return journal.Entry{}, ErrNotFound
	}
	return entry, err
}

// List returns entries newest first. An empty kind lists every kind.
func (s *Service) List(ctx context.Context, userID, kind string, limit int) ([]journal.Entry, error) {
	var k journal.Kind
	if kind = strings.TrimSpace(kind); kind != "" {
		parsed, err := journal.ParseKind(kind)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		k = parsed
	}
	return s.repo.List(ctx, userID, k, limit)
}

// Update replaces the editable fields. The kind cannot change.
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (journal.Entry, error) {
	entry, err := s.Get(ctx, userID, id)
	if err != nil {
		return journal.Entry{}, err
	}
	if k := strings.TrimSpace(in.Kind); k != "" && journal.Kind(k) != entry.Kind {
		return journal.Entry{}, fmt.Errorf("%w: kind cannot be changed", ErrValidation)
	}
	if err := apply(&entry, in); err != nil {
		return journal.Entry{}, err
	}
	if err := s.repo.Save(ctx, &entry); err != nil {
		return journal.Entry{}, fmt.Errorf("save journal entry: %w", err)
	}
	return entry, nil
}

// Delete removes an entry.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	err := s.repo.Delete(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// DailyPrompt picks the prompt for date by day of year.
func (s *Service) DailyPrompt(kind string, date time.Time) (Prompt, error) {
	k, err := journal.ParseKind(strings.TrimSpace(kind))
	if err != nil {
		return Prompt{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	list := prompts[k]
	date = date.UTC()
	return Prompt{
		Kind: k,
		Date: date.Format("2006-01-02"),
		Text: list[(date.YearDay()-1)%len(list)],
	}, nil
}

// RandomHope draws one note from the user's hope jar.
func (s *Service) RandomHope(ctx context.Context, userID string) (journal.Entry, error) {
	count, err := s.repo.CountByKind(ctx, userID, journal.Hope)
	if err != nil {
		return journal.Entry{}, fmt.Errorf("count hope notes: %w", err)
	}
	if count == 0 {
		return journal.Entry{}, ErrEmptyJar
	}

	entry, err := s.repo.NthByKind(ctx, userID, journal.Hope, s.intN(int(count)))
	if errors.Is(err, store.ErrNotFound) {
		return journal.Entry{}, ErrEmptyJar
	}
	return entry, err
}

func apply(entry *journal.Entry, in Input) error {
	entry.Title = truncate(strings.TrimSpace(in.Title), maxTitleRunes)
	entry.Content = strings.TrimSpace(in.Content)
	entry.MoodScore = in.MoodScore
	entry.Situation = strings.TrimSpace(in.Situation)
	entry.AutomaticThought = strings.TrimSpace(in.AutomaticThought)
	entry.EvidenceFor = strings.TrimSpace(in.EvidenceFor)
	entry.EvidenceAgainst = strings.TrimSpace(in.EvidenceAgainst)
	entry.BalancedThought = strings.TrimSpace(in.BalancedThought)

	if entry.MoodScore != nil && (*entry.MoodScore < 1 || *entry.MoodScore > 10) {
		return fmt.Errorf("%w: moodScore must be between 1 and 10", ErrValidation)
	}

	switch entry.Kind {
	case journal.CBT:
		if entry.Situation == "" || entry.AutomaticThought == "" {
			return fmt.Errorf("%w: situation and automaticThought are required", ErrValidation)
		}
	default:
		if entry.Content == "" {
			return fmt.Errorf("%w: content is required", ErrValidation)
		}
	}

	entry.Emotion = tag(entry)
	return nil
}

// tag labels the entry with the keyword analyzer. Neutral text stays untagged.
func tag(entry *journal.Entry) string {
	text := entry.Content
	if entry.Kind == journal.CBT {
		text = strings.Join([]string{entry.Situation, entry.AutomaticThought, entry.Content}, " ")
	}
	d := emotion.Detect(text)
	if d.Score == 0 {
		return ""
	}
	return string(d.Emotion)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

var prompts = map[journal.Kind][]string{
	journal.Free: {
		"What is taking up the most space in your mind today?",
		"Describe one moment from today in as much detail as you can.",
		"What would you like to let go of before tomorrow?",
		"What did your body need today, and did it get it?",
		"Write about something you're looking forward to, however small.",
		"Which feeling visited you most often today?",
		"What would you say to a friend who had the day you had?",
	},
	journal.Gratitude: {
		"Name three small things that went right today.",
		"Who made your day a little easier, and how?",
		"What is something about your home you are thankful for?",
		"Which of your own qualities helped you today?",
		"What comfort did you enjoy today that you might usually overlook?",
		"Think of a place that makes you feel safe. What do you appreciate about it?",
	},
	journal.CBT: {
		"What situation upset you recently, and what was the first thought that came up?",
		"Pick a thought that keeps returning. What evidence supports it, and what doesn't?",
		"Is there a 'should' you've been holding yourself to? Where did it come from?",
		"What is the most likely outcome of the thing you're worried about?",
		"If this thought were a friend's, how would you respond to it?",
	},
	journal.Hope: {
		"Write a note to your future self for a hard day.",
		"What is one thing you are hopeful about this month?",
		"Recall a time you got through something difficult. What helped?",
		"Write down a kind thing someone once said to you.",
		"What is a small joy you know will come again?",
	},
}
