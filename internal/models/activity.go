package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Activity is one recorded user action in the ledger.
type Activity struct {
	ID          primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID     `bson:"user_id" json:"user_id"`
	CategoryID  string                 `bson:"category_id" json:"category_id"`
	Name        string                 `bson:"name" json:"name"`
	Duration    *int                   `bson:"duration,omitempty" json:"duration,omitempty"` // minutes
	Points      int                    `bson:"points" json:"points"`
	CompletedAt time.Time              `bson:"completed_at" json:"completed_at"`
	Data        map[string]interface{} `bson:"data,omitempty" json:"data,omitempty"`
	CreatedAt   time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time              `bson:"updated_at" json:"updated_at"`

	// Version guards every write; a write names the version it replaces.
	Version int64 `bson:"version" json:"version"`

	// PendingSince is set while the writer holding the record moves its
	// aggregate contribution. Other writers wait until it clears or the
	// lease expires.
	PendingSince *time.Time `bson:"pending_since,omitempty" json:"-"`
}

// DurationMinutes returns the duration or 0 when none was recorded.
func (a *Activity) DurationMinutes() int {
	if a.Duration == nil {
		return 0
	}
	return *a.Duration
}

// ActivityInput is the payload for saving a new activity.
type ActivityInput struct {
	CategoryID  string                 `json:"category_id"`
	Name        string                 `json:"name"`
	Duration    *int                   `json:"duration,omitempty"`
	Points      int                    `json:"points"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// ActivityUpdate carries the fields a partial update may change. Nil means unchanged.
type ActivityUpdate struct {
	CategoryID  *string                `json:"category_id,omitempty"`
	Name        *string                `json:"name,omitempty"`
	Duration    *int                   `json:"duration,omitempty"`
	Points      *int                   `json:"points,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// ActivityFilter narrows a ledger listing. Zero values mean "no constraint".
type ActivityFilter struct {
	CategoryID string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// ActivityPage is one page of a ledger listing plus the unpaginated count.
type ActivityPage struct {
	Items []Activity `json:"items"`
	Total int64      `json:"total"`
}

// ActivityStats summarises the ledger for a user, optionally per category.
type ActivityStats struct {
	TotalActivities int     `json:"total_activities"`
	TotalPoints     int     `json:"total_points"`
	TotalDuration   int     `json:"total_duration"`
	AveragePoints   float64 `json:"average_points"`
	StreakDays      int     `json:"streak_days"`
}

// CategoryTotals is the ledger-side sum for one (user, category) scope.
type CategoryTotals struct {
	UserID         primitive.ObjectID `bson:"user_id"`
	CategoryID     string             `bson:"category_id"`
	Points         int                `bson:"points"`
	Duration       int                `bson:"duration"`
	Activities     int                `bson:"activities"`
	LastActivityAt time.Time          `bson:"last_activity_at"`
}

// SocialActivity is a friend's activity as shown in the social feed.
type SocialActivity struct {
	ID            primitive.ObjectID `json:"id"`
	UserID        primitive.ObjectID `json:"user_id"`
	UserName      string             `json:"user_name"`
	ActivityName  string             `json:"activity_name"`
	CategoryID    string             `json:"category_id"`
	CategoryIcon  string             `json:"category_icon"`
	CategoryColor string             `json:"category_color"`
	Points        int                `json:"points"`
	CompletedAt   time.Time          `json:"completed_at"`
}
