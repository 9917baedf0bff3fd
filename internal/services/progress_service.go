package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dias221467/SuperHuman/internal/gamification"
	"github.com/Dias221467/SuperHuman/internal/models"
	"github.com/Dias221467/SuperHuman/internal/repository"
	"github.com/Dias221467/SuperHuman/pkg/logger"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const recentActivityCount = 10

// ActivityState is the part of an activity that feeds its aggregate.
type ActivityState struct {
	CategoryID string
	Points     int
	Duration   int
}

func stateOf(a *models.Activity) ActivityState {
	return ActivityState{CategoryID: a.CategoryID, Points: a.Points, Duration: a.DurationMinutes()}
}

// ProgressService owns the per (user, category) aggregates.
type ProgressService struct {
	progress   repository.ProgressStore
	activities repository.ActivityStore
	levels     *gamification.LevelTable
	loc        *time.Location
	cache      LeaderboardCache
	now        func() time.Time
}

// NewProgressService builds the aggregator. loc is the calendar used for streaks.
func NewProgressService(progress repository.ProgressStore, activities repository.ActivityStore, levels *gamification.LevelTable, loc *time.Location) *ProgressService {
	if loc == nil {
		loc = time.UTC
	}
	return &ProgressService{
		progress:   progress,
		activities: activities,
		levels:     levels,
		loc:        loc,
		now:        time.Now,
	}
}

// WithCache mirrors every aggregate change into cache.
func (s *ProgressService) WithCache(cache LeaderboardCache) *ProgressService {
	s.cache = cache
	return s
}

func (s *ProgressService) WithClock(now func() time.Time) *ProgressService {
	s.now = now
	return s
}

// Levels exposes the level table used by this aggregator.
func (s *ProgressService) Levels() *gamification.LevelTable {
	return s.levels
}

// ApplyDelta adjusts one aggregate by a signed point and duration delta. A
// positive point delta counts as a new activity, anything else as a reversal.
func (s *ProgressService) ApplyDelta(ctx context.Context, userID primitive.ObjectID, categoryID string, pointsDelta, durationDelta int) (*models.Progress, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if !gamification.IsValidCategory(categoryID) {
		return nil, invalid("category_id", "unknown category")
	}
	activities := -1
	if pointsDelta > 0 {
		activities = 1
	}
	return s.Apply(ctx, userID, categoryID, models.ProgressDelta{
		Points:     pointsDelta,
		Duration:   durationDelta,
		Activities: activities,
	})
}

// Apply writes delta as one atomic increment. Additions also refresh the
// streak from the ledger.
func (s *ProgressService) Apply(ctx context.Context, userID primitive.ObjectID, categoryID string, delta models.ProgressDelta) (*models.Progress, error) {
	p, err := s.progress.ApplyDelta(ctx, userID, categoryID, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to apply progress delta: %w", err)
	}

	if delta.Points > 0 || delta.Activities > 0 {
		if refreshed, err := s.RefreshStreak(ctx, userID, categoryID); err != nil {
			logger.Log.WithError(err).WithFields(logrus.Fields{
				"userID":     userID.Hex(),
				"categoryID": categoryID,
			}).Warn("Failed to refresh streak")
		} else {
			p = refreshed
		}
	}

	s.syncCache(ctx, p)

	logger.Log.WithFields(logrus.Fields{
		"userID":      userID.Hex(),
		"categoryID":  categoryID,
		"points":      delta.Points,
		"totalPoints": p.TotalPoints,
		"level":       p.Level,
	}).Debug("Progress updated")
	return p, nil
}

// Transition moves an activity's contribution from old to next. Within one
// category it is a single net delta; across categories the old contribution
// is reversed before the new one is applied.
func (s *ProgressService) Transition(ctx context.Context, userID primitive.ObjectID, old, next ActivityState) error {
	if old.CategoryID == next.CategoryID {
		delta := models.ProgressDelta{
			Points:   next.Points - old.Points,
			Duration: next.Duration - old.Duration,
		}
		if delta.IsZero() {
			return nil
		}
		_, err := s.Apply(ctx, userID, next.CategoryID, delta)
		return err
	}

	if _, err := s.Apply(ctx, userID, old.CategoryID, models.ProgressDelta{
		Points:     -old.Points,
		Duration:   -old.Duration,
		Activities: -1,
	}); err != nil {
		return err
	}
	_, err := s.Apply(ctx, userID, next.CategoryID, models.ProgressDelta{
		Points:     next.Points,
		Duration:   next.Duration,
		Activities: 1,
	})
	return err
}

// RefreshStreak recomputes the streak of one aggregate from the ledger.
func (s *ProgressService) RefreshStreak(ctx context.Context, userID primitive.ObjectID, categoryID string) (*models.Progress, error) {
	times, err := s.activities.CompletionTimes(ctx, userID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load completion times: %w", err)
	}
	streak := gamification.Streak(times, s.now(), s.loc)

	p, err := s.progress.SetStreak(ctx, userID, categoryID, streak)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Resource: "progress", ID: categoryID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store streak: %w", err)
	}
	return p, nil
}

func (s *ProgressService) syncCache(ctx context.Context, p *models.Progress) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetScore(ctx, p); err != nil {
		logger.Log.WithError(err).Warn("Failed to update leaderboard cache")
	}
}

func (s *ProgressService) categoryProgress(categoryID string, points int, stats models.ProgressStats) models.CategoryProgress {
	info := gamification.Info(categoryID)
	return models.CategoryProgress{
		CategoryID:        categoryID,
		CategoryName:      info.Name,
		CategoryIcon:      info.Icon,
		CategoryColor:     info.Color,
		TotalPoints:       points,
		Level:             s.levels.LevelFor(points),
		LevelProgress:     s.levels.ProgressPercent(points),
		PointsToNextLevel: s.levels.PointsToNextLevel(points),
		Stats:             stats,
	}
}

// GetUserProgress returns the overall summary: grand total, overall level,
// every registered category (zero-filled), recent activities and achievements.
func (s *ProgressService) GetUserProgress(ctx context.Context, userID primitive.ObjectID) (*models.ProgressSummary, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	aggregates, err := s.progress.ListUserProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	byCategory := make(map[string]models.Progress, len(aggregates))
	total := 0
	for _, p := range aggregates {
		byCategory[p.CategoryID] = p
		total += p.TotalPoints
	}

	categories := make([]models.CategoryProgress, 0, len(gamification.Categories()))
	for _, id := range gamification.Categories() {
		p := byCategory[id]
		categories = append(categories, s.categoryProgress(id, p.TotalPoints, p.Stats))
	}

	recent, _, err := s.activities.ListActivities(ctx, userID, models.ActivityFilter{Limit: recentActivityCount})
	if err != nil {
		return nil, fmt.Errorf("failed to load recent activities: %w", err)
	}

	return &models.ProgressSummary{
		TotalScore:       total,
		OverallLevel:     s.levels.LevelFor(total),
		Categories:       categories,
		RecentActivities: recent,
		Achievements:     gamification.Achievements(s.levels, aggregates),
	}, nil
}

// GetCategoryProgress returns one aggregate or a NotFoundError if the user
// has never logged in that category.
func (s *ProgressService) GetCategoryProgress(ctx context.Context, userID primitive.ObjectID, categoryID string) (*models.CategoryProgress, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if !gamification.IsValidCategory(categoryID) {
		return nil, invalid("category_id", "unknown category")
	}

	p, err := s.progress.GetProgress(ctx, userID, categoryID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Resource: "progress", ID: categoryID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	cp := s.categoryProgress(categoryID, p.TotalPoints, p.Stats)
	return &cp, nil
}
