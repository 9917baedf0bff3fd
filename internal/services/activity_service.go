package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Dias221467/SuperHuman/internal/gamification"
	"github.com/Dias221467/SuperHuman/internal/models"
	"github.com/Dias221467/SuperHuman/internal/repository"
	"github.com/Dias221467/SuperHuman/pkg/logger"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxActivityNameLength = 255
	maxActivityDuration   = 1440
	maxActivityPoints     = 1000

	defaultPageSize = 50
	maxPageSize     = 200

	activityLease    = 30 * time.Second
	maxWriteAttempts = 10
	writeBackoff     = 5 * time.Millisecond
	maxWriteBackoff  = 200 * time.Millisecond
)

// anyLease is a lease cutoff past every stored lease. The lease holder uses
// it to rewrite its own record.
var anyLease = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// ActivityService is the activity ledger. Every mutation is mirrored into the
// aggregates through ProgressService.
type ActivityService struct {
	activities repository.ActivityStore
	progress   *ProgressService
	now        func() time.Time
}

func NewActivityService(activities repository.ActivityStore, progress *ProgressService) *ActivityService {
	return &ActivityService{
		activities: activities,
		progress:   progress,
		now:        time.Now,
	}
}

func (s *ActivityService) WithClock(now func() time.Time) *ActivityService {
	s.now = now
	return s
}

func validateActivity(a *models.Activity) error {
	if !gamification.IsValidCategory(a.CategoryID) {
		return invalid("category_id", "unknown category")
	}
	if n := utf8.RuneCountInString(a.Name); n == 0 || n > maxActivityNameLength {
		return invalid("name", fmt.Sprintf("must be between 1 and %d characters", maxActivityNameLength))
	}
	if a.Duration != nil && (*a.Duration < 1 || *a.Duration > maxActivityDuration) {
		return invalid("duration", fmt.Sprintf("must be between 1 and %d minutes", maxActivityDuration))
	}
	if a.Points < 0 || a.Points > maxActivityPoints {
		return invalid("points", fmt.Sprintf("must be between 0 and %d", maxActivityPoints))
	}
	return nil
}

// normalizeDuration treats a zero duration as "not recorded".
func normalizeDuration(d *int) *int {
	if d == nil || *d == 0 {
		return nil
	}
	v := *d
	return &v
}

// SaveActivity validates and stores a new activity, then adds it to the
// matching aggregate. The record is written under a lease and released once
// the aggregate has moved. If the aggregate update fails the record is removed
// again so the two stay in step.
func (s *ActivityService) SaveActivity(ctx context.Context, userID primitive.ObjectID, input models.ActivityInput) (*models.Activity, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	activity := &models.Activity{
		UserID:       userID,
		CategoryID:   input.CategoryID,
		Name:         strings.TrimSpace(input.Name),
		Duration:     normalizeDuration(input.Duration),
		Points:       input.Points,
		CompletedAt:  now,
		Data:         input.Data,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
		PendingSince: &now,
	}
	if input.CompletedAt != nil {
		activity.CompletedAt = input.CompletedAt.UTC()
	}
	if err := validateActivity(activity); err != nil {
		logger.Log.WithError(err).Warn("Rejected activity")
		return nil, err
	}

	created, err := s.activities.CreateActivity(ctx, activity)
	if err != nil {
		return nil, fmt.Errorf("failed to save activity: %w", err)
	}

	delta := models.ProgressDelta{Points: created.Points, Duration: created.DurationMinutes(), Activities: 1}
	if _, err := s.progress.Apply(ctx, userID, created.CategoryID, delta); err != nil {
		if delErr := s.activities.DeleteActivity(ctx, userID, created.ID, created.Version); delErr != nil {
			logger.Log.WithError(delErr).WithField("activityID", created.ID.Hex()).Error("Failed to roll back activity after progress failure")
		}
		return nil, err
	}
	s.release(ctx, created)

	logger.Log.WithFields(logrus.Fields{
		"userID":     userID.Hex(),
		"activityID": created.ID.Hex(),
		"categoryID": created.CategoryID,
		"points":     created.Points,
	}).Info("Activity saved")
	return created, nil
}

// GetActivity returns one activity owned by userID.
func (s *ActivityService) GetActivity(ctx context.Context, userID, id primitive.ObjectID) (*models.Activity, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	a, err := s.activities.GetActivity(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("activity", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return a, nil
}

// ListActivities returns a page of the user's activities, newest first, and
// the total number of matches ignoring pagination.
func (s *ActivityService) ListActivities(ctx context.Context, userID primitive.ObjectID, filter models.ActivityFilter) (*models.ActivityPage, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if filter.CategoryID != "" && !gamification.IsValidCategory(filter.CategoryID) {
		return nil, invalid("category_id", "unknown category")
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, invalid("date_range", "start must not be after end")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultPageSize
	case filter.Limit > maxPageSize:
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	items, total, err := s.activities.ListActivities(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return &models.ActivityPage{Items: items, Total: total}, nil
}

func mergeActivity(old *models.Activity, update models.ActivityUpdate) models.Activity {
	next := *old
	if update.CategoryID != nil {
		next.CategoryID = *update.CategoryID
	}
	if update.Name != nil {
		next.Name = strings.TrimSpace(*update.Name)
	}
	if update.Duration != nil {
		next.Duration = normalizeDuration(update.Duration)
	}
	if update.Points != nil {
		next.Points = *update.Points
	}
	if update.CompletedAt != nil {
		next.CompletedAt = update.CompletedAt.UTC()
	}
	if update.Data != nil {
		next.Data = update.Data
	}
	return next
}

// claim writes next over the record at version old.Version and takes the
// lease, so only this writer moves the aggregates for that step. A record
// held by another live writer yields repository.ErrConflict.
func (s *ActivityService) claim(ctx context.Context, old *models.Activity, next *models.Activity) error {
	now := s.now().UTC()
	if old.PendingSince != nil && now.Sub(*old.PendingSince) < activityLease {
		return repository.ErrConflict
	}
	next.Version = old.Version + 1
	next.PendingSince = &now
	next.UpdatedAt = now
	return s.activities.UpdateActivity(ctx, next, old.Version, now.Add(-activityLease))
}

// release drops the lease. A failed release only delays other writers until
// the lease runs out.
func (s *ActivityService) release(ctx context.Context, a *models.Activity) {
	if err := s.activities.ReleaseActivity(ctx, a.UserID, a.ID, a.Version); err != nil {
		logger.Log.WithError(err).WithField("activityID", a.ID.Hex()).Warn("Failed to release activity lease")
	}
	a.PendingSince = nil
}

// UpdateActivity applies a partial update. The merged record is validated
// and stored before the aggregates move from the old values to the new ones.
// Writers racing on the same activity retry against the latest version.
func (s *ActivityService) UpdateActivity(ctx context.Context, userID, id primitive.ObjectID, update models.ActivityUpdate) (*models.Activity, error) {
	for attempt := 0; ; attempt++ {
		old, err := s.GetActivity(ctx, userID, id)
		if err != nil {
			return nil, err
		}

		next := mergeActivity(old, update)
		if err := validateActivity(&next); err != nil {
			logger.Log.WithError(err).Warn("Rejected activity update")
			return nil, err
		}

		err = s.claim(ctx, old, &next)
		if errors.Is(err, repository.ErrConflict) {
			if err := s.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("activity", id)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update activity: %w", err)
		}

		oldState, nextState := stateOf(old), stateOf(&next)
		if oldState != nextState {
			if err := s.progress.Transition(ctx, userID, oldState, nextState); err != nil {
				restore := *old
				restore.Version = next.Version + 1
				restore.PendingSince = nil
				restore.UpdatedAt = s.now().UTC()
				if restoreErr := s.activities.UpdateActivity(ctx, &restore, next.Version, anyLease); restoreErr != nil {
					logger.Log.WithError(restoreErr).WithField("activityID", id.Hex()).Error("Failed to restore activity after progress failure")
				}
				return nil, err
			}
		}
		s.release(ctx, &next)

		switch {
		case oldState.CategoryID != nextState.CategoryID:
			s.refreshStreak(ctx, userID, oldState.CategoryID)
		case !old.CompletedAt.Equal(next.CompletedAt):
			s.refreshStreak(ctx, userID, nextState.CategoryID)
		}

		logger.Log.WithFields(logrus.Fields{
			"userID":     userID.Hex(),
			"activityID": id.Hex(),
			"version":    next.Version,
		}).Info("Activity updated")
		return &next, nil
	}
}

// DeleteActivity reverses the activity's contribution and then removes it.
// The record is claimed first so a concurrent update cannot move the
// aggregates for the same activity in between.
func (s *ActivityService) DeleteActivity(ctx context.Context, userID, id primitive.ObjectID) error {
	for attempt := 0; ; attempt++ {
		existing, err := s.GetActivity(ctx, userID, id)
		if err != nil {
			return err
		}

		held := *existing
		err = s.claim(ctx, existing, &held)
		if errors.Is(err, repository.ErrConflict) {
			if err := s.backoff(ctx, attempt); err != nil {
				return err
			}
			continue
		}
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("activity", id)
		}
		if err != nil {
			return fmt.Errorf("failed to delete activity: %w", err)
		}

		state := stateOf(existing)
		reverse := models.ProgressDelta{Points: -state.Points, Duration: -state.Duration, Activities: -1}
		if _, err := s.progress.Apply(ctx, userID, state.CategoryID, reverse); err != nil {
			s.release(ctx, &held)
			return err
		}

		if err := s.activities.DeleteActivity(ctx, userID, id, held.Version); err != nil {
			if _, reapplyErr := s.progress.Apply(ctx, userID, state.CategoryID, reverse.Negate()); reapplyErr != nil {
				logger.Log.WithError(reapplyErr).WithField("activityID", id.Hex()).Error("Failed to re-apply progress after delete failure")
			}
			s.release(ctx, &held)
			if errors.Is(err, repository.ErrNotFound) {
				return notFound("activity", id)
			}
			return fmt.Errorf("failed to delete activity: %w", err)
		}

		s.refreshStreak(ctx, userID, state.CategoryID)

		logger.Log.WithFields(logrus.Fields{
			"userID":     userID.Hex(),
			"activityID": id.Hex(),
		}).Info("Activity deleted")
		return nil
	}
}

// backoff waits before retry attempt+1, or reports a conflict once the
// attempts are used up.
func (s *ActivityService) backoff(ctx context.Context, attempt int) error {
	if attempt+1 >= maxWriteAttempts {
		return conflict("activity is being modified, try again")
	}
	wait := writeBackoff << attempt
	if wait > maxWriteBackoff {
		wait = maxWriteBackoff
	}
	wait += time.Duration(rand.Int63n(int64(writeBackoff)))

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *ActivityService) refreshStreak(ctx context.Context, userID primitive.ObjectID, categoryID string) {
	if _, err := s.progress.RefreshStreak(ctx, userID, categoryID); err != nil {
		logger.Log.WithError(err).WithField("categoryID", categoryID).Warn("Failed to refresh streak")
	}
}

// GetActivityStats summarises the ledger for a user. An empty categoryID
// covers every category.
func (s *ActivityService) GetActivityStats(ctx context.Context, userID primitive.ObjectID, categoryID string) (*models.ActivityStats, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if categoryID != "" && !gamification.IsValidCategory(categoryID) {
		return nil, invalid("category_id", "unknown category")
	}

	totals, err := s.activities.SumByCategory(ctx, []primitive.ObjectID{userID})
	if err != nil {
		return nil, fmt.Errorf("failed to sum activities: %w", err)
	}

	stats := &models.ActivityStats{}
	for _, t := range totals {
		if categoryID != "" && t.CategoryID != categoryID {
			continue
		}
		stats.TotalActivities += t.Activities
		stats.TotalPoints += t.Points
		stats.TotalDuration += t.Duration
	}
	if stats.TotalActivities > 0 {
		avg := float64(stats.TotalPoints) / float64(stats.TotalActivities)
		stats.AveragePoints = math.Round(avg*100) / 100
	}

	times, err := s.activities.CompletionTimes(ctx, userID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load completion times: %w", err)
	}
	stats.StreakDays = gamification.Streak(times, s.now(), s.progress.loc)
	return stats, nil
}
