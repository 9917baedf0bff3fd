package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProgressStats holds the running counters of one aggregate.
type ProgressStats struct {
	StreakDays      int `bson:"streak_days" json:"streak_days"`
	BestStreak      int `bson:"best_streak" json:"best_streak"`
	TotalActivities int `bson:"total_activities" json:"total_activities"`
	TotalDuration   int `bson:"total_duration" json:"total_duration"`
}

// Progress is the per (user, category) aggregate. One document per pair.
type Progress struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	CategoryID  string             `bson:"category_id" json:"category_id"`
	TotalPoints int                `bson:"total_points" json:"total_points"`
	Level       int                `bson:"level" json:"level"`
	Stats       ProgressStats      `bson:"stats" json:"stats"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`

	// Version grows with every counter write and orders cache mirrors.
	Version int64 `bson:"version" json:"-"`
}

// ProgressDelta is a signed change applied atomically to one aggregate.
type ProgressDelta struct {
	Points     int
	Duration   int
	Activities int
}

// IsZero reports whether applying d would change nothing.
func (d ProgressDelta) IsZero() bool {
	return d.Points == 0 && d.Duration == 0 && d.Activities == 0
}

// Negate returns the reversing delta.
func (d ProgressDelta) Negate() ProgressDelta {
	return ProgressDelta{Points: -d.Points, Duration: -d.Duration, Activities: -d.Activities}
}

// UserTotal is a user's points summed over a set of aggregates.
type UserTotal struct {
	UserID primitive.ObjectID `bson:"_id"`
	Points int                `bson:"points"`
}

// TotalsFilter scopes a points summation over aggregates.
type TotalsFilter struct {
	CategoryID string
	// Since keeps only aggregates updated at or after this instant.
	Since   *time.Time
	UserIDs []primitive.ObjectID
}

// CategoryProgress is an aggregate enriched with level and display data.
type CategoryProgress struct {
	CategoryID        string        `json:"category_id"`
	CategoryName      string        `json:"category_name"`
	CategoryIcon      string        `json:"category_icon"`
	CategoryColor     string        `json:"category_color"`
	TotalPoints       int           `json:"total_points"`
	Level             int           `json:"level"`
	LevelProgress     int           `json:"level_progress"`
	PointsToNextLevel int           `json:"points_to_next_level"`
	Stats             ProgressStats `json:"stats"`
}

// Achievement is a badge derived from the current aggregate snapshot.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// ProgressSummary is the overall view of a user's progress.
type ProgressSummary struct {
	TotalScore       int                `json:"total_score"`
	OverallLevel     int                `json:"overall_level"`
	Categories       []CategoryProgress `json:"categories"`
	RecentActivities []Activity         `json:"recent_activities"`
	Achievements     []Achievement      `json:"achievements"`
}
