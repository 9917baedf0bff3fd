package gamification

import "github.com/Dias221467/SuperHuman/internal/models"

var (
	achievementLevel5      = models.Achievement{ID: "level_5", Name: "Rising Star", Description: "Reached level 5", Icon: "⭐"}
	achievementLevel10     = models.Achievement{ID: "level_10", Name: "SuperHuman", Description: "Reached the maximum level", Icon: "🏆"}
	achievementStreak7     = models.Achievement{ID: "streak_7", Name: "Week Warrior", Description: "7 day streak", Icon: "🔥"}
	achievementStreak30    = models.Achievement{ID: "streak_30", Name: "Consistency King", Description: "30 day streak", Icon: "👑"}
	achievementWellRounded = models.Achievement{ID: "well_rounded", Name: "Well Rounded", Description: "Progress in 4+ categories", Icon: "🎯"}
	achievementAllRounder  = models.Achievement{ID: "jack_of_all_trades", Name: "Jack of All Trades", Description: "Progress in all categories", Icon: "🌟"}
	achievementCentury     = models.Achievement{ID: "century", Name: "Century", Description: "Completed 100 activities", Icon: "💯"}
)

// Achievements derives the unlocked badges from a user's aggregates.
// The result depends only on the snapshot passed in.
func Achievements(levels *LevelTable, aggregates []models.Progress) []models.Achievement {
	out := []models.Achievement{}

	total, bestStreak, activities := 0, 0, 0
	withPoints := make(map[string]struct{})
	for _, p := range aggregates {
		total += p.TotalPoints
		activities += p.Stats.TotalActivities
		if p.Stats.BestStreak > bestStreak {
			bestStreak = p.Stats.BestStreak
		}
		if p.TotalPoints > 0 && IsValidCategory(p.CategoryID) {
			withPoints[p.CategoryID] = struct{}{}
		}
	}

	level := levels.LevelFor(total)
	if level >= 5 {
		out = append(out, achievementLevel5)
	}
	if level >= 10 {
		out = append(out, achievementLevel10)
	}
	if bestStreak >= 7 {
		out = append(out, achievementStreak7)
	}
	if bestStreak >= 30 {
		out = append(out, achievementStreak30)
	}
	if len(withPoints) >= 4 {
		out = append(out, achievementWellRounded)
	}
	if len(withPoints) == len(categoryOrder) {
		out = append(out, achievementAllRounder)
	}
	if activities >= 100 {
		out = append(out, achievementCentury)
	}
	return out
}
