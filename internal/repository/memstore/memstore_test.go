package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Dias221467/SuperHuman/internal/gamification"
	"github.com/Dias221467/SuperHuman/internal/models"
	"github.com/Dias221467/SuperHuman/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newStore() *Store {
	return New(gamification.DefaultLevels())
}

func TestApplyDeltaClampsAtZero(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	user := primitive.NewObjectID()

	p, err := s.ApplyDelta(ctx, user, "physical", models.ProgressDelta{Points: 30, Duration: 10, Activities: 1})
	require.NoError(t, err)
	assert.Equal(t, 30, p.TotalPoints)

	for _, d := range []int{-50, 10, -100, 5} {
		p, err = s.ApplyDelta(ctx, user, "physical", models.ProgressDelta{Points: d, Duration: d, Activities: -1})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p.TotalPoints, 0)
		assert.GreaterOrEqual(t, p.Stats.TotalDuration, 0)
		assert.GreaterOrEqual(t, p.Stats.TotalActivities, 0)
	}
	assert.Equal(t, 5, p.TotalPoints)
	assert.Equal(t, 1, p.Level)
}

func TestApplyDeltaConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	user := primitive.NewObjectID()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ApplyDelta(ctx, user, "mental", models.ProgressDelta{Points: 3, Activities: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := s.GetProgress(ctx, user, "mental")
	require.NoError(t, err)
	assert.Equal(t, 150, p.TotalPoints)
	assert.Equal(t, 50, p.Stats.TotalActivities)
	assert.Equal(t, 2, p.Level)
}

func TestSetStreakKeepsBest(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	user := primitive.NewObjectID()

	_, err := s.SetStreak(ctx, user, "physical", 3)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = s.ApplyDelta(ctx, user, "physical", models.ProgressDelta{Points: 1, Activities: 1})
	require.NoError(t, err)

	p, err := s.SetStreak(ctx, user, "physical", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Stats.BestStreak)

	p, err = s.SetStreak(ctx, user, "physical", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stats.StreakDays)
	assert.Equal(t, 4, p.Stats.BestStreak)
}

func TestCompareAndSetTotalsGuardsOnUpdatedAt(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return clock })
	user := primitive.NewObjectID()

	ok, err := s.CompareAndSetTotals(ctx, nil, models.CategoryTotals{UserID: user, CategoryID: "career", Points: 120, Activities: 2})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CompareAndSetTotals(ctx, nil, models.CategoryTotals{UserID: user, CategoryID: "career", Points: 1})
	require.NoError(t, err)
	assert.False(t, ok, "insert must not overwrite an existing aggregate")

	stale, err := s.GetProgress(ctx, user, "career")
	require.NoError(t, err)
	assert.Equal(t, 2, stale.Level)

	clock = clock.Add(time.Second)
	_, err = s.ApplyDelta(ctx, user, "career", models.ProgressDelta{Points: 5, Activities: 1})
	require.NoError(t, err)

	ok, err = s.CompareAndSetTotals(ctx, stale, models.CategoryTotals{UserID: user, CategoryID: "career", Points: 0})
	require.NoError(t, err)
	assert.False(t, ok, "a concurrent delta must win")

	fresh, err := s.GetProgress(ctx, user, "career")
	require.NoError(t, err)
	assert.Equal(t, 125, fresh.TotalPoints)

	clock = clock.Add(time.Second)
	ok, err = s.CompareAndSetTotals(ctx, fresh, models.CategoryTotals{UserID: user, CategoryID: "career", Points: 40, Activities: 1, Duration: 15})
	require.NoError(t, err)
	assert.True(t, ok)

	fixed, err := s.GetProgress(ctx, user, "career")
	require.NoError(t, err)
	assert.Equal(t, 40, fixed.TotalPoints)
	assert.Equal(t, 1, fixed.Level)
	assert.Equal(t, 15, fixed.Stats.TotalDuration)
}

func TestSumPointsByUserFilters(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return clock })
	a, b := primitive.NewObjectID(), primitive.NewObjectID()

	_, _ = s.ApplyDelta(ctx, a, "physical", models.ProgressDelta{Points: 50})
	clock = clock.Add(48 * time.Hour)
	_, _ = s.ApplyDelta(ctx, a, "mental", models.ProgressDelta{Points: 30})
	_, _ = s.ApplyDelta(ctx, b, "physical", models.ProgressDelta{Points: 60})

	all, err := s.SumPointsByUser(ctx, models.TotalsFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.UserTotal{UserID: a, Points: 80}, all[0])

	since := clock.Add(-time.Hour)
	recent, err := s.SumPointsByUser(ctx, models.TotalsFilter{Since: &since})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, models.UserTotal{UserID: b, Points: 60}, recent[0])
	assert.Equal(t, models.UserTotal{UserID: a, Points: 30}, recent[1])

	physical, err := s.SumPointsByUser(ctx, models.TotalsFilter{CategoryID: "physical", UserIDs: []primitive.ObjectID{a}})
	require.NoError(t, err)
	assert.Equal(t, []models.UserTotal{{UserID: a, Points: 50}}, physical)
}

func TestListActivitiesPaginates(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	user := primitive.NewObjectID()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := s.CreateActivity(ctx, &models.Activity{
			UserID:      user,
			CategoryID:  "physical",
			Name:        "run",
			Points:      i,
			CompletedAt: base.AddDate(0, 0, i),
		})
		require.NoError(t, err)
	}
	_, err := s.CreateActivity(ctx, &models.Activity{UserID: primitive.NewObjectID(), CategoryID: "physical", CompletedAt: base})
	require.NoError(t, err)

	page, total, err := s.ListActivities(ctx, user, models.ActivityFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, 3, page[0].Points)
	assert.Equal(t, 2, page[1].Points)

	from := base.AddDate(0, 0, 3)
	page, total, err = s.ListActivities(ctx, user, models.ActivityFilter{From: &from})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, page, 2)

	page, _, err = s.ListActivities(ctx, user, models.ActivityFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestFriendshipUniqueness(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()

	_, err := s.CreateFriendship(ctx, &models.Friendship{UserID: a, FriendID: b, Status: models.FriendPending})
	require.NoError(t, err)

	_, err = s.CreateFriendship(ctx, &models.Friendship{UserID: a, FriendID: b, Status: models.FriendPending})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	edges, err := s.FindBetween(ctx, b, a)
	require.NoError(t, err)
	assert.Len(t, edges, 1)

	incoming, err := s.ListIncoming(ctx, b)
	require.NoError(t, err)
	assert.Len(t, incoming, 1)

	n, err := s.DeleteBetween(ctx, a, b, models.FriendAccepted)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUserUniqueness(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	u, err := s.CreateUser(ctx, &models.User{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	require.NoError(t, s.SetReferralCode(ctx, u.ID, "SHAAAAAAAA"))

	_, err = s.CreateUser(ctx, &models.User{Name: "Ada 2", Email: "ada@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	other, err := s.CreateUser(ctx, &models.User{Name: "Bob", Email: "bob@example.com"})
	require.NoError(t, err)
	assert.ErrorIs(t, s.SetReferralCode(ctx, other.ID, "SHAAAAAAAA"), repository.ErrDuplicate)

	found, err := s.GetUserByReferralCode(ctx, "SHAAAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
}

func TestActivityWritesAreVersionGuarded(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	user := primitive.NewObjectID()
	now := time.Now().UTC()

	a, err := s.CreateActivity(ctx, &models.Activity{UserID: user, CategoryID: "physical", Name: "run", Points: 10, Version: 1, PendingSince: &now})
	require.NoError(t, err)

	next := *a
	next.Points = 20
	next.Version = 2
	err = s.UpdateActivity(ctx, &next, 1, now.Add(-30*time.Second))
	assert.ErrorIs(t, err, repository.ErrConflict, "a live lease blocks other writers")

	require.NoError(t, s.ReleaseActivity(ctx, user, a.ID, 1))
	require.NoError(t, s.UpdateActivity(ctx, &next, 1, now.Add(-30*time.Second)))

	stale := *a
	stale.Points = 99
	stale.Version = 2
	stale.PendingSince = nil
	assert.ErrorIs(t, s.UpdateActivity(ctx, &stale, 1, now), repository.ErrConflict)
	assert.ErrorIs(t, s.DeleteActivity(ctx, user, a.ID, 1), repository.ErrConflict)
	assert.ErrorIs(t, s.DeleteActivity(ctx, primitive.NewObjectID(), a.ID, 2), repository.ErrNotFound)

	stored, err := s.GetActivity(ctx, user, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, stored.Points)
	assert.EqualValues(t, 2, stored.Version)

	require.NoError(t, s.DeleteActivity(ctx, user, a.ID, 2))
	assert.ErrorIs(t, s.ReleaseActivity(ctx, user, a.ID, 2), repository.ErrNotFound)
}

func TestExpiredLeaseCanBeTakenOver(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	user := primitive.NewObjectID()
	started := time.Now().UTC().Add(-time.Minute)

	a, err := s.CreateActivity(ctx, &models.Activity{UserID: user, CategoryID: "mental", Name: "read", Points: 5, Version: 1, PendingSince: &started})
	require.NoError(t, err)

	next := *a
	next.Version = 2
	next.PendingSince = nil
	require.NoError(t, s.UpdateActivity(ctx, &next, 1, time.Now().UTC().Add(-30*time.Second)))
}
