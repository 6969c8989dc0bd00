// Package goal tracks wellbeing goals and their progress.
package goal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/model/goal"
	"github.com/zhouzirui/haven/backend/internal/store"
)

var (
	ErrNotFound   = errors.New("goal not found")
	ErrValidation = errors.New("validation failed")
)

const completeProgress = 100

// Input creates a goal.
type Input struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	TargetDate  *time.Time `json:"targetDate,omitempty"`
}

// Update is a partial change. Nil fields are left as they are.
type Update struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	TargetDate  *time.Time `json:"targetDate"`
	Progress    *int       `json:"progress"`
	Completed   *bool      `json:"completed"`
}

// Service owns goals.
type Service struct {
	repo   *store.GoalRepository
	logger *zap.Logger
}

// NewService builds the service.
func NewService(repo *store.GoalRepository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger.With(zap.String("component", "goal"))}
}

// Create stores a new goal with zero progress.
func (s *Service) Create(ctx context.Context, userID string, in Input) (goal.Goal, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return goal.Goal{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len([]rune(title)) > 200 {
		return goal.Goal{}, fmt.Errorf("%w: title is too long", ErrValidation)
	}

	g := goal.Goal{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		TargetDate:  in.TargetDate,
	}
	if err := s.repo.Create(ctx, &g); err != nil {
		return goal.Goal{}, fmt.Errorf("save goal: %w", err)
	}
	return g, nil
}

// List returns open goals first, newest first within each group.
func (s *Service) List(ctx context.Context, userID string) ([]goal.Goal, error) {
	return s.repo.List(ctx, userID)
}

// Get returns one goal.
func (s *Service) Get(ctx context.Context, userID, id string) (goal.Goal, error) {
	g, err := s.repo.Get(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return goal.Goal{}, ErrNotFound
	}
	return g, err
}

// Update applies a partial change. Progress 100 completes the goal and
// marking it completed sets progress to 100.
func (s *Service) Update(ctx context.Context, userID, id string, upd Update) (goal.Goal, error) {
	g, err := s.Get(ctx, userID, id)
	if err != nil {
		return goal.Goal{}, err
	}

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return goal.Goal{}, fmt.Errorf("%w: title is required", ErrValidation)
		}
		g.Title = title
	}
	if upd.Description != nil {
		g.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.TargetDate != nil {
		g.TargetDate = upd.TargetDate
	}
	if upd.Progress != nil {
		p := *upd.Progress
		if p < 0 || p > completeProgress {
			return goal.Goal{}, fmt.Errorf("%w: progress must be between 0 and 100", ErrValidation)
		}
		g.Progress = p
		g.Completed = p == completeProgress
	}
	if upd.Completed != nil {
		g.Completed = *upd.Completed
		if g.Completed {
			g.Progress = completeProgress
		} else if g.Progress == completeProgress {
			g.Progress = completeProgress - 1
		}
	}

	if err := s.repo.Save(ctx, &g); err != nil {
		return goal.Goal{}, fmt.Errorf("save goal: %w", err)
	}
	if g.Completed {
		s.logger.Debug("goal completed", zap.String("goal_id", g.ID))
	}
	return g, nil
}

// Delete removes a goal.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	err := s.repo.Delete(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
