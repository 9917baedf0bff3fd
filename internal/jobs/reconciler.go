package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/SuperHuman/internal/gamification"
	"github.com/Dias221467/SuperHuman/internal/models"
	"github.com/Dias221467/SuperHuman/internal/repository"
	"github.com/Dias221467/SuperHuman/internal/services"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultGrace leaves recently touched aggregates alone so in-flight
// ledger operations are not mistaken for drift.
const DefaultGrace = 5 * time.Minute

// Report summarises one reconciliation pass.
type Report struct {
	Checked          int `json:"checked"`
	Corrected        int `json:"corrected"`
	Skipped          int `json:"skipped"`
	StreaksRefreshed int `json:"streaks_refreshed"`
}

type scope struct {
	userID     primitive.ObjectID
	categoryID string
}

// Reconciler re-derives every aggregate from the activity ledger and
// overwrites totals that have drifted.
type Reconciler struct {
	activities repository.ActivityStore
	progress   repository.ProgressStore
	aggregator *services.ProgressService
	cache      services.LeaderboardCache
	grace      time.Duration
	now        func() time.Time
}

// NewReconciler creates a new instance of Reconciler.
func NewReconciler(activities repository.ActivityStore, progress repository.ProgressStore, aggregator *services.ProgressService) *Reconciler {
	return &Reconciler{
		activities: activities,
		progress:   progress,
		aggregator: aggregator,
		grace:      DefaultGrace,
		now:        time.Now,
	}
}

// WithCache rebuilds the leaderboard cache at the end of every pass.
func (r *Reconciler) WithCache(cache services.LeaderboardCache) *Reconciler {
	r.cache = cache
	return r
}

// WarmCache loads every stored aggregate into the leaderboard cache. Until it
// has run once the cache reports not ready and boards are read from the store.
func (r *Reconciler) WarmCache(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	latest, err := r.progress.ListAllProgress(ctx)
	if err != nil {
		return fmt.Errorf("failed to list aggregates: %w", err)
	}
	return r.cache.Rebuild(ctx, latest)
}

func (r *Reconciler) WithGrace(grace time.Duration) *Reconciler {
	r.grace = grace
	return r
}

func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

func matches(p models.Progress, t models.CategoryTotals) bool {
	return p.TotalPoints == t.Points &&
		p.Stats.TotalActivities == t.Activities &&
		p.Stats.TotalDuration == t.Duration
}

func (r *Reconciler) recent(ts time.Time) bool {
	return !ts.IsZero() && r.now().Sub(ts) < r.grace
}

// Run performs one full pass.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var report Report

	totals, err := r.activities.SumByCategory(ctx, nil)
	if err != nil {
		return report, fmt.Errorf("failed to sum ledger: %w", err)
	}
	aggregates, err := r.progress.ListAllProgress(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list aggregates: %w", err)
	}

	stored := make(map[scope]models.Progress, len(aggregates))
	for _, p := range aggregates {
		stored[scope{p.UserID, p.CategoryID}] = p
	}

	refresh := make(map[scope]bool)
	ledger := make(map[scope]bool, len(totals))

	for _, t := range totals {
		key := scope{t.UserID, t.CategoryID}
		ledger[key] = true
		if !gamification.IsValidCategory(t.CategoryID) {
			continue
		}
		report.Checked++

		p, exists := stored[key]
		if exists && matches(p, t) {
			continue
		}
		if (exists && r.recent(p.UpdatedAt)) || r.recent(t.LastActivityAt) {
			report.Skipped++
			continue
		}

		var current *models.Progress
		if exists {
			current = &p
		}
		ok, err := r.progress.CompareAndSetTotals(ctx, current, t)
		if err != nil {
			return report, fmt.Errorf("failed to correct aggregate: %w", err)
		}
		if !ok {
			report.Skipped++
			continue
		}

		report.Corrected++
		refresh[key] = true
		logrus.WithFields(logrus.Fields{
			"userID":     t.UserID.Hex(),
			"categoryID": t.CategoryID,
			"was":        p.TotalPoints,
			"now":        t.Points,
		}).Warn("Corrected drifted aggregate")
	}

	// Aggregates with no ledger rows left must be empty.
	for key, p := range stored {
		if ledger[key] {
			continue
		}
		report.Checked++
		empty := models.CategoryTotals{UserID: p.UserID, CategoryID: p.CategoryID}
		if matches(p, empty) {
			continue
		}
		if r.recent(p.UpdatedAt) {
			report.Skipped++
			continue
		}
		p := p
		ok, err := r.progress.CompareAndSetTotals(ctx, &p, empty)
		if err != nil {
			return report, fmt.Errorf("failed to reset aggregate: %w", err)
		}
		if !ok {
			report.Skipped++
			continue
		}
		report.Corrected++
		refresh[key] = true
	}

	// Streaks decay without a write, so every running streak is recomputed.
	for key, p := range stored {
		if p.Stats.StreakDays > 0 {
			refresh[key] = true
		}
	}
	for key := range refresh {
		if _, err := r.aggregator.RefreshStreak(ctx, key.userID, key.categoryID); err != nil {
			logrus.WithError(err).WithField("categoryID", key.categoryID).Warn("Failed to refresh streak during reconciliation")
			continue
		}
		report.StreaksRefreshed++
	}

	if err := r.WarmCache(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to rebuild leaderboard cache")
	}

	logrus.WithFields(logrus.Fields{
		"checked":   report.Checked,
		"corrected": report.Corrected,
		"skipped":   report.Skipped,
		"streaks":   report.StreaksRefreshed,
	}).Info("Aggregate reconciliation completed")
	return report, nil
}
