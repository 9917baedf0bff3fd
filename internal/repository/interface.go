package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Dias221467/SuperHuman/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict means a guarded write found the record at another version
	// or held by another writer.
	ErrConflict = errors.New("record modified concurrently")
)

// ActivityStore persists the activity ledger.
type ActivityStore interface {
	CreateActivity(ctx context.Context, activity *models.Activity) (*models.Activity, error)
	GetActivity(ctx context.Context, userID, id primitive.ObjectID) (*models.Activity, error)
	// UpdateActivity replaces the record only while it is at version expected
	// and not pending, or pending since before leaseCutoff.
	UpdateActivity(ctx context.Context, activity *models.Activity, expected int64, leaseCutoff time.Time) error
	// ReleaseActivity clears pending_since on the record at version.
	ReleaseActivity(ctx context.Context, userID, id primitive.ObjectID, version int64) error
	// DeleteActivity removes the record only while it is at version.
	DeleteActivity(ctx context.Context, userID, id primitive.ObjectID, version int64) error
	// ListActivities returns newest first. A zero Limit returns every match.
	ListActivities(ctx context.Context, userID primitive.ObjectID, filter models.ActivityFilter) ([]models.Activity, int64, error)
	// CompletionTimes lists completed_at for a user. Empty categoryID means all categories.
	CompletionTimes(ctx context.Context, userID primitive.ObjectID, categoryID string) ([]time.Time, error)
	ActivitiesForUsers(ctx context.Context, userIDs []primitive.ObjectID, limit int) ([]models.Activity, error)
	// SumByCategory totals the ledger per (user, category). Nil userIDs means every user.
	SumByCategory(ctx context.Context, userIDs []primitive.ObjectID) ([]models.CategoryTotals, error)
	DeleteUserActivities(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// ProgressStore persists per (user, category) aggregates. ApplyDelta must be
// a single atomic increment on the stored document.
type ProgressStore interface {
	ApplyDelta(ctx context.Context, userID primitive.ObjectID, categoryID string, delta models.ProgressDelta) (*models.Progress, error)
	SetStreak(ctx context.Context, userID primitive.ObjectID, categoryID string, streakDays int) (*models.Progress, error)
	GetProgress(ctx context.Context, userID primitive.ObjectID, categoryID string) (*models.Progress, error)
	ListUserProgress(ctx context.Context, userID primitive.ObjectID) ([]models.Progress, error)
	ListAllProgress(ctx context.Context) ([]models.Progress, error)
	SumPointsByUser(ctx context.Context, filter models.TotalsFilter) ([]models.UserTotal, error)
	// CompareAndSetTotals overwrites the counters of current if it is unchanged
	// since it was read. A nil current inserts a fresh aggregate if none exists.
	CompareAndSetTotals(ctx context.Context, current *models.Progress, totals models.CategoryTotals) (bool, error)
	DeleteUserProgress(ctx context.Context, userID primitive.ObjectID) error
}

// FriendStore persists directed friendship edges.
type FriendStore interface {
	CreateFriendship(ctx context.Context, f *models.Friendship) (*models.Friendship, error)
	// FindBetween returns the edges a->b and b->a that exist.
	FindBetween(ctx context.Context, a, b primitive.ObjectID) ([]models.Friendship, error)
	GetFriendship(ctx context.Context, id primitive.ObjectID) (*models.Friendship, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.FriendStatus) error
	DeleteFriendship(ctx context.Context, id primitive.ObjectID) error
	// DeleteBetween removes edges with status in both directions.
	DeleteBetween(ctx context.Context, a, b primitive.ObjectID, status models.FriendStatus) (int64, error)
	ListFriendIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)
	ListIncoming(ctx context.Context, userID primitive.ObjectID) ([]models.Friendship, error)
	DeleteUserFriendships(ctx context.Context, userID primitive.ObjectID) error
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	SetReferralCode(ctx context.Context, id primitive.ObjectID, code string) error
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	DeleteUser(ctx context.Context, id primitive.ObjectID) error
}

var (
	_ ActivityStore = (*ActivityRepository)(nil)
	_ ProgressStore = (*ProgressRepository)(nil)
	_ FriendStore   = (*FriendRepository)(nil)
	_ UserStore     = (*UserRepository)(nil)
)
