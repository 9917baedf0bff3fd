package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Dias221467/SuperHuman/internal/gamification"
	"github.com/Dias221467/SuperHuman/internal/models"
	"github.com/Dias221467/SuperHuman/internal/repository"
	"github.com/Dias221467/SuperHuman/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	unknownUserName         = "Unknown"
)

// ParseTimeWindow accepts the canonical window names and their common aliases.
func ParseTimeWindow(raw string) (models.TimeWindow, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all", "all-time", "all_time", "alltime":
		return models.WindowAll, nil
	case "day", "daily", "today":
		return models.WindowDay, nil
	case "week", "weekly":
		return models.WindowWeek, nil
	case "month", "monthly":
		return models.WindowMonth, nil
	}
	return "", invalid("window", "must be one of all, day, week, month")
}

// LeaderboardService ranks users by summed aggregate points.
type LeaderboardService struct {
	progress repository.ProgressStore
	friends  repository.FriendStore
	users    repository.UserStore
	levels   *gamification.LevelTable
	loc      *time.Location
	cache    LeaderboardCache
	now      func() time.Time
}

func NewLeaderboardService(progress repository.ProgressStore, friends repository.FriendStore, users repository.UserStore, levels *gamification.LevelTable, loc *time.Location) *LeaderboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &LeaderboardService{
		progress: progress,
		friends:  friends,
		users:    users,
		levels:   levels,
		loc:      loc,
		now:      time.Now,
	}
}

// WithCache serves all-time boards from cache when it is reachable.
func (s *LeaderboardService) WithCache(cache LeaderboardCache) *LeaderboardService {
	s.cache = cache
	return s
}

func (s *LeaderboardService) WithClock(now func() time.Time) *LeaderboardService {
	s.now = now
	return s
}

func (s *LeaderboardService) windowStart(w models.TimeWindow) *time.Time {
	now := s.now()
	var start time.Time
	switch w {
	case models.WindowDay:
		start = gamification.StartOfDay(now, s.loc)
	case models.WindowWeek:
		start = now.AddDate(0, 0, -7)
	case models.WindowMonth:
		start = now.AddDate(0, 0, -30)
	default:
		return nil
	}
	return &start
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLeaderboardLimit
	case limit > maxLeaderboardLimit:
		return maxLeaderboardLimit
	}
	return limit
}

// GetLeaderboard ranks users globally, or within one category when
// categoryID is set. Only aggregates updated inside window count.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, categoryID string, window models.TimeWindow, limit int) ([]models.LeaderboardEntry, error) {
	if categoryID != "" && !gamification.IsValidCategory(categoryID) {
		return nil, invalid("category_id", "unknown category")
	}
	if window == "" {
		window = models.WindowAll
	}
	limit = normalizeLimit(limit)

	var totals []models.UserTotal
	cached := false
	if window == models.WindowAll && s.cache != nil {
		top, err := s.cache.Top(ctx, categoryID, limit)
		if err != nil {
			logger.Log.WithError(err).Warn("Leaderboard cache unavailable, reading from store")
		} else {
			totals, cached = top, true
		}
	}
	if !cached {
		stored, err := s.progress.SumPointsByUser(ctx, models.TotalsFilter{
			CategoryID: categoryID,
			Since:      s.windowStart(window),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to sum leaderboard points: %w", err)
		}
		totals = withPoints(stored)
	}

	return s.rank(ctx, totals, limit)
}

// GlobalLeaderboard ranks every user by points across all categories.
func (s *LeaderboardService) GlobalLeaderboard(ctx context.Context, window models.TimeWindow, limit int) ([]models.LeaderboardEntry, error) {
	return s.GetLeaderboard(ctx, "", window, limit)
}

// CategoryLeaderboard ranks users within one category.
func (s *LeaderboardService) CategoryLeaderboard(ctx context.Context, categoryID string, window models.TimeWindow, limit int) ([]models.LeaderboardEntry, error) {
	if categoryID == "" {
		return nil, invalid("category_id", "is required")
	}
	return s.GetLeaderboard(ctx, categoryID, window, limit)
}

// FriendsLeaderboard ranks the user and every accepted friend. Members with
// no points are still listed.
func (s *LeaderboardService) FriendsLeaderboard(ctx context.Context, userID primitive.ObjectID) ([]models.LeaderboardEntry, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	friendIDs, err := s.friends.ListFriendIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	members := append([]primitive.ObjectID{userID}, friendIDs...)

	sums, err := s.progress.SumPointsByUser(ctx, models.TotalsFilter{UserIDs: members})
	if err != nil {
		return nil, fmt.Errorf("failed to sum friend points: %w", err)
	}
	points := make(map[primitive.ObjectID]int, len(sums))
	for _, t := range sums {
		points[t.UserID] = t.Points
	}

	totals := make([]models.UserTotal, 0, len(members))
	seen := make(map[primitive.ObjectID]bool, len(members))
	for _, id := range members {
		if seen[id] {
			continue
		}
		seen[id] = true
		totals = append(totals, models.UserTotal{UserID: id, Points: points[id]})
	}
	return s.rank(ctx, totals, 0)
}

func withPoints(totals []models.UserTotal) []models.UserTotal {
	out := make([]models.UserTotal, 0, len(totals))
	for _, t := range totals {
		if t.Points > 0 {
			out = append(out, t)
		}
	}
	return out
}

// rank sorts totals by points descending, ties by ascending user id, and
// assigns 1-based ranks. A positive limit truncates after sorting.
func (s *LeaderboardService) rank(ctx context.Context, totals []models.UserTotal, limit int) ([]models.LeaderboardEntry, error) {
	sorted := make([]models.UserTotal, len(totals))
	copy(sorted, totals)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Points != sorted[j].Points {
			return sorted[i].Points > sorted[j].Points
		}
		return sorted[i].UserID.Hex() < sorted[j].UserID.Hex()
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	ids := make([]primitive.ObjectID, 0, len(sorted))
	for _, t := range sorted {
		ids = append(ids, t.UserID)
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard users: %w", err)
	}
	names := make(map[primitive.ObjectID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	entries := make([]models.LeaderboardEntry, 0, len(sorted))
	for i, t := range sorted {
		name, ok := names[t.UserID]
		if !ok || name == "" {
			name = unknownUserName
		}
		entries = append(entries, models.LeaderboardEntry{
			UserID:      t.UserID,
			UserName:    name,
			TotalPoints: t.Points,
			Level:       s.levels.LevelFor(t.Points),
			Rank:        i + 1,
		})
	}
	return entries, nil
}
