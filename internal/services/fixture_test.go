package services

import (
	"context"
	"testing"
	"time"

	"github.com/Dias221467/SuperHuman/internal/gamification"
	"github.com/Dias221467/SuperHuman/internal/models"
	"github.com/Dias221467/SuperHuman/internal/repository/memstore"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var fixedNow = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store       *memstore.Store
	progress    *ProgressService
	activities  *ActivityService
	leaderboard *LeaderboardService
	friends     *FriendService
	users       *UserService
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	levels := gamification.DefaultLevels()
	f := &fixture{now: fixedNow}
	clock := func() time.Time { return f.now }

	f.store = memstore.New(levels)
	f.store.SetClock(clock)
	f.progress = NewProgressService(f.store, f.store, levels, time.UTC).WithClock(clock)
	f.activities = NewActivityService(f.store, f.progress).WithClock(clock)
	f.leaderboard = NewLeaderboardService(f.store, f.store, f.store, levels, time.UTC).WithClock(clock)
	f.friends = NewFriendService(f.store, f.store, f.store)
	f.users = NewUserService(f.store, f.store, f.store, f.store)
	return f
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) user(t *testing.T, name string) primitive.ObjectID {
	t.Helper()
	u, err := f.store.CreateUser(context.Background(), &models.User{Name: name, Email: name + "@example.com", Role: "user"})
	require.NoError(t, err)
	return u.ID
}

func (f *fixture) save(t *testing.T, userID primitive.ObjectID, category string, points int) *models.Activity {
	t.Helper()
	a, err := f.activities.SaveActivity(context.Background(), userID, models.ActivityInput{
		CategoryID: category,
		Name:       "activity",
		Points:     points,
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) aggregate(t *testing.T, userID primitive.ObjectID, category string) *models.Progress {
	t.Helper()
	p, err := f.store.GetProgress(context.Background(), userID, category)
	require.NoError(t, err)
	return p
}

// befriend makes a and b accepted friends.
func (f *fixture) befriend(t *testing.T, a, b primitive.ObjectID) {
	t.Helper()
	ctx := context.Background()
	req, err := f.friends.SendFriendRequest(ctx, a, b)
	require.NoError(t, err)
	require.NoError(t, f.friends.AcceptFriendRequest(ctx, b, req.ID))
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
