package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/Dias221467/SuperHuman/internal/cache"
	"github.com/Dias221467/SuperHuman/internal/gamification"
	"github.com/Dias221467/SuperHuman/internal/models"
	"github.com/Dias221467/SuperHuman/internal/repository/memstore"
	"github.com/Dias221467/SuperHuman/internal/services"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var base = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

type env struct {
	store      *memstore.Store
	progress   *services.ProgressService
	activities *services.ActivityService
	cache      *cache.LeaderboardCache
	now        time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	levels := gamification.DefaultLevels()
	e := &env{now: base}
	clock := func() time.Time { return e.now }

	e.store = memstore.New(levels)
	e.store.SetClock(clock)
	e.progress = services.NewProgressService(e.store, e.store, levels, time.UTC).WithClock(clock)
	e.activities = services.NewActivityService(e.store, e.progress).WithClock(clock)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	e.cache = cache.NewLeaderboardCache(client)
	return e
}

func (e *env) reconciler() *Reconciler {
	return NewReconciler(e.store, e.store, e.progress).
		WithCache(e.cache).
		WithClock(func() time.Time { return e.now })
}

func TestReconcilerCorrectsDrift(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ada, bob := primitive.NewObjectID(), primitive.NewObjectID()

	e.now = base.Add(-time.Hour)
	_, err := e.activities.SaveActivity(ctx, ada, models.ActivityInput{CategoryID: "physical", Name: "run", Points: 20})
	require.NoError(t, err)
	_, err = e.activities.SaveActivity(ctx, bob, models.ActivityInput{CategoryID: "mental", Name: "read", Points: 10})
	require.NoError(t, err)

	// Inflated aggregate.
	_, err = e.store.ApplyDelta(ctx, ada, "physical", models.ProgressDelta{Points: 50})
	require.NoError(t, err)
	// Aggregate with no ledger rows behind it.
	_, err = e.store.ApplyDelta(ctx, ada, "career", models.ProgressDelta{Points: 30, Activities: 1})
	require.NoError(t, err)
	// Ledger row whose aggregate was never written.
	_, err = e.store.CreateActivity(ctx, &models.Activity{
		UserID: bob, CategoryID: "social", Name: "call", Points: 15,
		CompletedAt: e.now, CreatedAt: e.now, UpdatedAt: e.now,
	})
	require.NoError(t, err)

	// Drift that is still inside the grace window.
	e.now = base.Add(-time.Minute)
	_, err = e.store.ApplyDelta(ctx, bob, "mental", models.ProgressDelta{Points: 5})
	require.NoError(t, err)

	e.now = base
	report, err := e.reconciler().Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 4, Corrected: 3, Skipped: 1, StreaksRefreshed: 4}, report)

	physical, err := e.store.GetProgress(ctx, ada, "physical")
	require.NoError(t, err)
	assert.Equal(t, 20, physical.TotalPoints)
	assert.Equal(t, 1, physical.Level)

	career, err := e.store.GetProgress(ctx, ada, "career")
	require.NoError(t, err)
	assert.Equal(t, 0, career.TotalPoints)
	assert.Equal(t, 0, career.Stats.TotalActivities)

	social, err := e.store.GetProgress(ctx, bob, "social")
	require.NoError(t, err)
	assert.Equal(t, 15, social.TotalPoints)
	assert.Equal(t, 1, social.Stats.TotalActivities)
	assert.Equal(t, 1, social.Stats.StreakDays)

	mental, err := e.store.GetProgress(ctx, bob, "mental")
	require.NoError(t, err)
	assert.Equal(t, 15, mental.TotalPoints, "recent aggregates are left alone")

	top, err := e.cache.Top(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, []models.UserTotal{{UserID: bob, Points: 30}, {UserID: ada, Points: 20}}, top)

	// Once the grace window has passed the remaining drift is fixed.
	e.now = base.Add(10 * time.Minute)
	report, err = e.reconciler().Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Corrected)
	assert.Equal(t, 0, report.Skipped)

	mental, err = e.store.GetProgress(ctx, bob, "mental")
	require.NoError(t, err)
	assert.Equal(t, 10, mental.TotalPoints)
}

func TestReconcilerDecaysStreaks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ada := primitive.NewObjectID()

	_, err := e.activities.SaveActivity(ctx, ada, models.ActivityInput{CategoryID: "physical", Name: "run", Points: 20})
	require.NoError(t, err)

	e.now = base.AddDate(0, 0, 2)
	report, err := e.reconciler().Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Corrected)
	assert.Equal(t, 1, report.StreaksRefreshed)

	p, err := e.store.GetProgress(ctx, ada, "physical")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stats.StreakDays)
	assert.Equal(t, 1, p.Stats.BestStreak)
}

func TestReconcilerCleanStoreIsNoop(t *testing.T) {
	e := newEnv(t)
	report, err := e.reconciler().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
}

func TestWarmCacheLoadsStoredAggregates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ada := primitive.NewObjectID()

	_, err := e.activities.SaveActivity(ctx, ada, models.ActivityInput{CategoryID: "physical", Name: "run", Points: 120})
	require.NoError(t, err)

	_, err = e.cache.Top(ctx, "", 10)
	require.ErrorIs(t, err, cache.ErrNotReady)

	require.NoError(t, e.reconciler().WarmCache(ctx))
	top, err := e.cache.Top(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, []models.UserTotal{{UserID: ada, Points: 120}}, top)

	assert.NoError(t, NewReconciler(e.store, e.store, e.progress).WarmCache(ctx), "no cache attached")
}
