package gamification

import "time"

type civilDay struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time, loc *time.Location) civilDay {
	y, m, d := t.In(loc).Date()
	return civilDay{y, m, d}
}

// Streak counts consecutive calendar days with at least one completion,
// walking back from the day of now. Days are taken in loc. The chain must
// include today: no activity today means a streak of 0.
func Streak(completions []time.Time, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	days := make(map[civilDay]struct{}, len(completions))
	for _, c := range completions {
		days[dayOf(c, loc)] = struct{}{}
	}

	y, m, d := now.In(loc).Date()
	// Noon keeps AddDate away from DST edges.
	cursor := time.Date(y, m, d, 12, 0, 0, 0, loc)
	streak := 0
	for {
		if _, ok := days[dayOf(cursor, loc)]; !ok {
			return streak
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
