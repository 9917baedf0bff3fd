package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// TimeWindow restricts a leaderboard to recently updated aggregates.
type TimeWindow string

const (
	WindowAll   TimeWindow = "all"
	WindowDay   TimeWindow = "day"
	WindowWeek  TimeWindow = "week"
	WindowMonth TimeWindow = "month"
)

// LeaderboardEntry is one ranked row. It is derived on read and never stored.
type LeaderboardEntry struct {
	UserID      primitive.ObjectID `json:"user_id"`
	UserName    string             `json:"user_name"`
	TotalPoints int                `json:"total_points"`
	Level       int                `json:"level"`
	Rank        int                `json:"rank"`
}
