package coach

import (
	"context"
	"time"
)

//go:generate mockgen -source=coach.go -destination=../handlers/mock_generator_test.go -package=handlers

// Generator produces a coach reply for a user prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, c Context) (*Response, error)
}

// RecentActivity is the slice of an activity the coach sees.
type RecentActivity struct {
	Name       string `json:"name"`
	CategoryID string `json:"category_id"`
	Points     int    `json:"points"`
}

// Context describes the user the coach is talking to.
type Context struct {
	UserName         string           `json:"user_name"`
	TotalScore       int              `json:"total_score"`
	Level            int              `json:"level"`
	RecentActivities []RecentActivity `json:"recent_activities"`
	FocusAreas       []string         `json:"focus_areas,omitempty"`
	Now              time.Time        `json:"-"`
}

// Response is a coach reply plus follow-up prompts for the client.
type Response struct {
	Content     string   `json:"content"`
	Suggestions []string `json:"suggestions"`
}

// Config selects and tunes the generator.
type Config struct {
	APIKey  string
	APIURL  string
	Model   string
	Timeout time.Duration
}

// NewGenerator returns the remote generator when an API key is set,
// otherwise the deterministic fallback.
func NewGenerator(cfg Config) Generator {
	if cfg.APIKey == "" {
		return FallbackGenerator{}
	}
	return NewRemoteGenerator(cfg)
}
