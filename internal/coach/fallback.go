package coach

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dias221467/SuperHuman/internal/gamification"
)

// beginnerScore separates starter suggestions from advanced ones.
const beginnerScore = 100

// FallbackGenerator answers from keyword rules without any network call.
type FallbackGenerator struct{}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func displayName(c Context) string {
	if c.UserName == "" {
		return "there"
	}
	return c.UserName
}

// Generate never fails.
func (FallbackGenerator) Generate(_ context.Context, prompt string, c Context) (*Response, error) {
	msg := strings.ToLower(prompt)
	name := displayName(c)

	switch {
	case containsAny(msg, "tip", "recommend", "suggest"):
		return &Response{
			Content: fmt.Sprintf("Based on your score (%d points), focus on %s next. Start with 15-20 minutes a day in that category. Consistency is the key! 💪",
				c.TotalScore, weakestCategory(c)),
			Suggestions: []string{"Give me a detailed plan", "Why this category?", "Alternative activities", "How do I stay motivated?"},
		}, nil
	case containsAny(msg, "progress"):
		trend := "promising"
		if c.TotalScore > 500 {
			trend = "impressive"
		}
		return &Response{
			Content: fmt.Sprintf("Your progress looks %s, %s! With %d points you are at level %d. %s Keep it up! 📈",
				trend, name, c.TotalScore, c.Level, progressTip(c.TotalScore)),
			Suggestions: []string{"Show a detailed analysis", "Compare with last month", "What are my strengths?", "Where can I improve?"},
		}, nil
	case containsAny(msg, "sleep"):
		return &Response{
			Content:     "For better sleep: 1) a consistent bedtime, 2) no screens for an hour before bed, 3) a cool room (16-19°C), 4) no caffeine after 2 pm. Change one thing at a time! 😴",
			Suggestions: []string{"Why does sleep matter?", "Build an evening routine", "Dealing with insomnia", "Tracking sleep quality"},
		}, nil
	case containsAny(msg, "score", "points", "level"):
		return &Response{
			Content:     fmt.Sprintf("You have %d points in total and you are at level %d! %s 🏆", c.TotalScore, c.Level, progressTip(c.TotalScore)),
			Suggestions: []string{"How do I earn more points?", "Show detailed stats", "Compare with friends", "What is the next level?"},
		}, nil
	case containsAny(msg, "goal"):
		return &Response{
			Content: fmt.Sprintf("Let's set SMART goals! Daily: at least one activity. Weekly: 500+ points. Monthly: reach level %d. Which category do you want to focus on? 🎯",
				c.Level+2),
			Suggestions: []string{"Make a detailed goal plan", "Physical goals", "Mental goals", "Career goals"},
		}, nil
	case containsAny(msg, "exercise", "workout", "training"):
		return &Response{
			Content:     "Pick a session you can repeat: 20 minutes of brisk walking or a bodyweight circuit three times a week. Log it so your physical streak keeps growing! 🏃",
			Suggestions: defaultSuggestions(msg, c.TotalScore),
		}, nil
	case containsAny(msg, "stress", "anxious", "overwhelmed"):
		return &Response{
			Content:     "Try box breathing right now: breathe in for 4 seconds, hold 4, out 4, hold 4. Repeat for two minutes and log it as a mental activity. 🧘",
			Suggestions: defaultSuggestions(msg, c.TotalScore),
		}, nil
	}

	return &Response{
		Content: fmt.Sprintf("Hi %s! With %d points and %d recent activities you are on the right track. What would you like to work on today?",
			name, c.TotalScore, len(c.RecentActivities)),
		Suggestions: []string{"Give me today's recommendations", "Analyse my progress", "Set new goals", "Tips for motivation"},
	}, nil
}

// defaultSuggestions is shared with the remote generator, which only returns content.
func defaultSuggestions(msg string, totalScore int) []string {
	switch {
	case containsAny(msg, "goal"):
		return []string{"How do I set SMART goals?", "Show my progress", "Help me adjust my goals", "What are realistic weekly goals?"}
	case containsAny(msg, "exercise", "workout", "training", "physical"):
		return []string{"Make a workout plan for me", "Best exercises at home", "How do I stay motivated?", "Tips to avoid injuries"}
	case containsAny(msg, "stress", "mental"):
		return []string{"Teach me a breathing exercise", "How do I reduce stress?", "Meditation for beginners", "Improve my sleep"}
	case totalScore < beginnerScore:
		return []string{"Where should I start?", "Give me a simple weekly plan", "How do I build good habits?", "Beginner tips"}
	default:
		return []string{"Analyse my progress", "How do I reach the next level?", "Compare me with friends", "Advanced training methods"}
	}
}

func progressTip(totalScore int) string {
	switch {
	case totalScore < 100:
		return "Focus on building daily routines."
	case totalScore < 500:
		return "You are building momentum, so stay consistent."
	case totalScore < 1000:
		return "Impressive dedication! Consider raising the intensity."
	default:
		return "You are a true SuperHuman. Keep inspiring others."
	}
}

// weakestCategory is the first registered category absent from recent activity.
func weakestCategory(c Context) string {
	seen := make(map[string]bool, len(c.RecentActivities))
	for _, a := range c.RecentActivities {
		seen[a.CategoryID] = true
	}
	for _, id := range gamification.Categories() {
		if !seen[id] {
			return strings.ToLower(gamification.Info(id).Name)
		}
	}
	return "balanced development"
}
