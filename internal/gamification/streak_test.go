package gamification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStreakCountsConsecutiveDays(t *testing.T) {
	now := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	completions := []time.Time{
		now.Add(-2 * time.Hour),
		now.AddDate(0, 0, -1),
		now.AddDate(0, 0, -2),
		now.AddDate(0, 0, -4),
	}

	assert.Equal(t, 3, Streak(completions, now, time.UTC))
}

func TestStreakIsRepeatable(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	completions := []time.Time{now, now.AddDate(0, 0, -1)}

	first := Streak(completions, now, time.UTC)
	second := Streak(completions, now, time.UTC)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, first)
}

func TestStreakSameDayCountsOnce(t *testing.T) {
	now := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	completions := []time.Time{
		time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 10, 22, 59, 0, 0, time.UTC),
	}

	assert.Equal(t, 1, Streak(completions, now, time.UTC))
}

func TestStreakRequiresToday(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	completions := []time.Time{now.AddDate(0, 0, -1), now.AddDate(0, 0, -2)}

	assert.Equal(t, 0, Streak(completions, now, time.UTC))
	assert.Equal(t, 0, Streak(nil, now, time.UTC))
}

func TestStreakUsesConfiguredTimezone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// 20:00 UTC on the 9th is already the 10th in Tokyo, so both land on
	// one UTC day but on two Tokyo days.
	now := time.Date(2024, 3, 10, 1, 0, 0, 0, tokyo)
	completions := []time.Time{
		time.Date(2024, 3, 9, 20, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 9, 2, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, 2, Streak(completions, now, tokyo))
	assert.Equal(t, 1, Streak(completions, now, time.UTC))
}

func TestStreakAcrossDSTChange(t *testing.T) {
	oslo, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		t.Skip("tzdata not available")
	}
	now := time.Date(2024, 3, 31, 10, 0, 0, 0, oslo)
	completions := []time.Time{
		time.Date(2024, 3, 31, 0, 30, 0, 0, oslo),
		time.Date(2024, 3, 30, 23, 30, 0, 0, oslo),
		time.Date(2024, 3, 29, 8, 0, 0, 0, oslo),
	}

	assert.Equal(t, 3, Streak(completions, now, oslo))
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("X", -5*60*60)
	ts := time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, loc), StartOfDay(ts, loc))
}
