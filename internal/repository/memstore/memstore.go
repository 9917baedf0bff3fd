// Package memstore is an in-process implementation of the repository
// interfaces. It mirrors the MongoDB semantics (atomic deltas, uniqueness,
// ordering) and backs dev mode and the service tests.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dias221467/SuperHuman/internal/gamification"
	"github.com/Dias221467/SuperHuman/internal/models"
	"github.com/Dias221467/SuperHuman/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type progressKey struct {
	userID     primitive.ObjectID
	categoryID string
}

// Store keeps every collection behind one mutex.
type Store struct {
	mu          sync.RWMutex
	levels      *gamification.LevelTable
	now         func() time.Time
	activities  map[primitive.ObjectID]models.Activity
	progress    map[progressKey]models.Progress
	friendships map[primitive.ObjectID]models.Friendship
	users       map[primitive.ObjectID]models.User
}

var (
	_ repository.ActivityStore = (*Store)(nil)
	_ repository.ProgressStore = (*Store)(nil)
	_ repository.FriendStore   = (*Store)(nil)
	_ repository.UserStore     = (*Store)(nil)
)

func New(levels *gamification.LevelTable) *Store {
	return &Store{
		levels:      levels,
		now:         time.Now,
		activities:  make(map[primitive.ObjectID]models.Activity),
		progress:    make(map[progressKey]models.Progress),
		friendships: make(map[primitive.ObjectID]models.Friendship),
		users:       make(map[primitive.ObjectID]models.User),
	}
}

// SetClock replaces the time source used for created_at/updated_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func lessID(a, b primitive.ObjectID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func copyActivity(a models.Activity) models.Activity {
	if a.PendingSince != nil {
		p := *a.PendingSince
		a.PendingSince = &p
	}
	if a.Duration != nil {
		d := *a.Duration
		a.Duration = &d
	}
	if a.Data != nil {
		data := make(map[string]interface{}, len(a.Data))
		for k, v := range a.Data {
			data[k] = v
		}
		a.Data = data
	}
	return a
}

// Activities

func (s *Store) CreateActivity(_ context.Context, activity *models.Activity) (*models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if activity.ID.IsZero() {
		activity.ID = primitive.NewObjectID()
	}
	if _, exists := s.activities[activity.ID]; exists {
		return nil, repository.ErrDuplicate
	}
	s.activities[activity.ID] = copyActivity(*activity)
	return activity, nil
}

func (s *Store) GetActivity(_ context.Context, userID, id primitive.ObjectID) (*models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.activities[id]
	if !ok || a.UserID != userID {
		return nil, repository.ErrNotFound
	}
	out := copyActivity(a)
	return &out, nil
}

// guard returns the stored record if it belongs to userID and is at version.
func (s *Store) guard(userID, id primitive.ObjectID, version int64) (models.Activity, error) {
	existing, ok := s.activities[id]
	if !ok || existing.UserID != userID {
		return models.Activity{}, repository.ErrNotFound
	}
	if existing.Version != version {
		return models.Activity{}, repository.ErrConflict
	}
	return existing, nil
}

func (s *Store) UpdateActivity(_ context.Context, activity *models.Activity, expected int64, leaseCutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.guard(activity.UserID, activity.ID, expected)
	if err != nil {
		return err
	}
	if existing.PendingSince != nil && !existing.PendingSince.Before(leaseCutoff) {
		return repository.ErrConflict
	}
	s.activities[activity.ID] = copyActivity(*activity)
	return nil
}

func (s *Store) ReleaseActivity(_ context.Context, userID, id primitive.ObjectID, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.guard(userID, id, version)
	if err != nil {
		return err
	}
	existing.PendingSince = nil
	s.activities[id] = existing
	return nil
}

func (s *Store) DeleteActivity(_ context.Context, userID, id primitive.ObjectID, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.guard(userID, id, version); err != nil {
		return err
	}
	delete(s.activities, id)
	return nil
}

func sortNewestFirst(list []models.Activity) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CompletedAt.Equal(list[j].CompletedAt) {
			return list[i].CompletedAt.After(list[j].CompletedAt)
		}
		return lessID(list[j].ID, list[i].ID)
	})
}

func (s *Store) ListActivities(_ context.Context, userID primitive.ObjectID, f models.ActivityFilter) ([]models.Activity, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []models.Activity{}
	for _, a := range s.activities {
		if a.UserID != userID {
			continue
		}
		if f.CategoryID != "" && a.CategoryID != f.CategoryID {
			continue
		}
		if f.From != nil && a.CompletedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && a.CompletedAt.After(*f.To) {
			continue
		}
		matched = append(matched, copyActivity(a))
	}
	sortNewestFirst(matched)

	total := int64(len(matched))
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []models.Activity{}, total, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (s *Store) CompletionTimes(_ context.Context, userID primitive.ObjectID, categoryID string) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var times []time.Time
	for _, a := range s.activities {
		if a.UserID == userID && (categoryID == "" || a.CategoryID == categoryID) {
			times = append(times, a.CompletedAt)
		}
	}
	return times, nil
}

func (s *Store) ActivitiesForUsers(_ context.Context, userIDs []primitive.ObjectID, limit int) ([]models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Activity{}
	for _, a := range s.activities {
		if containsID(userIDs, a.UserID) {
			out = append(out, copyActivity(a))
		}
	}
	sortNewestFirst(out)
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SumByCategory(_ context.Context, userIDs []primitive.ObjectID) ([]models.CategoryTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[progressKey]*models.CategoryTotals)
	for _, a := range s.activities {
		if userIDs != nil && !containsID(userIDs, a.UserID) {
			continue
		}
		key := progressKey{a.UserID, a.CategoryID}
		t, ok := sums[key]
		if !ok {
			t = &models.CategoryTotals{UserID: a.UserID, CategoryID: a.CategoryID}
			sums[key] = t
		}
		t.Points += a.Points
		t.Duration += a.DurationMinutes()
		t.Activities++
		if a.UpdatedAt.After(t.LastActivityAt) {
			t.LastActivityAt = a.UpdatedAt
		}
	}

	out := make([]models.CategoryTotals, 0, len(sums))
	for _, t := range sums {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return lessID(out[i].UserID, out[j].UserID)
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

func (s *Store) DeleteUserActivities(_ context.Context, userID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, a := range s.activities {
		if a.UserID == userID {
			delete(s.activities, id)
			n++
		}
	}
	return n, nil
}

// Progress

// ApplyDelta performs the same clamped increment as the MongoDB pipeline
// update while holding the write lock.
func (s *Store) ApplyDelta(_ context.Context, userID primitive.ObjectID, categoryID string, delta models.ProgressDelta) (*models.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.stamp()
	key := progressKey{userID, categoryID}
	p, ok := s.progress[key]
	if !ok {
		p = models.Progress{
			ID:         primitive.NewObjectID(),
			UserID:     userID,
			CategoryID: categoryID,
			CreatedAt:  now,
		}
	}
	p.TotalPoints = clamp(p.TotalPoints + delta.Points)
	p.Stats.TotalActivities = clamp(p.Stats.TotalActivities + delta.Activities)
	p.Stats.TotalDuration = clamp(p.Stats.TotalDuration + delta.Duration)
	p.Level = s.levels.LevelFor(p.TotalPoints)
	p.Version++
	p.UpdatedAt = now
	s.progress[key] = p

	out := p
	return &out, nil
}

func (s *Store) SetStreak(_ context.Context, userID primitive.ObjectID, categoryID string, streakDays int) (*models.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := progressKey{userID, categoryID}
	p, ok := s.progress[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Stats.StreakDays = streakDays
	if streakDays > p.Stats.BestStreak {
		p.Stats.BestStreak = streakDays
	}
	s.progress[key] = p

	out := p
	return &out, nil
}

func (s *Store) GetProgress(_ context.Context, userID primitive.ObjectID, categoryID string) (*models.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[progressKey{userID, categoryID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s *Store) listProgress(match func(models.Progress) bool) []models.Progress {
	out := []models.Progress{}
	for _, p := range s.progress {
		if match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return lessID(out[i].UserID, out[j].UserID)
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

func (s *Store) ListUserProgress(_ context.Context, userID primitive.ObjectID) ([]models.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listProgress(func(p models.Progress) bool { return p.UserID == userID }), nil
}

func (s *Store) ListAllProgress(_ context.Context) ([]models.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listProgress(func(models.Progress) bool { return true }), nil
}

func (s *Store) SumPointsByUser(_ context.Context, f models.TotalsFilter) ([]models.UserTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[primitive.ObjectID]int)
	for _, p := range s.progress {
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		if f.Since != nil && p.UpdatedAt.Before(*f.Since) {
			continue
		}
		if f.UserIDs != nil && !containsID(f.UserIDs, p.UserID) {
			continue
		}
		sums[p.UserID] += p.TotalPoints
	}

	out := make([]models.UserTotal, 0, len(sums))
	for id, points := range sums {
		out = append(out, models.UserTotal{UserID: id, Points: points})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return lessID(out[i].UserID, out[j].UserID)
	})
	return out, nil
}

func (s *Store) CompareAndSetTotals(_ context.Context, current *models.Progress, totals models.CategoryTotals) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.stamp()
	key := progressKey{totals.UserID, totals.CategoryID}
	stored, exists := s.progress[key]
	points := clamp(totals.Points)

	if current == nil {
		if exists {
			return false, nil
		}
		s.progress[key] = models.Progress{
			ID:          primitive.NewObjectID(),
			UserID:      totals.UserID,
			CategoryID:  totals.CategoryID,
			TotalPoints: points,
			Level:       s.levels.LevelFor(points),
			Stats: models.ProgressStats{
				TotalActivities: totals.Activities,
				TotalDuration:   totals.Duration,
			},
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		}
		return true, nil
	}

	if !exists || stored.ID != current.ID || stored.Version != current.Version || !stored.UpdatedAt.Equal(current.UpdatedAt) {
		return false, nil
	}
	stored.TotalPoints = points
	stored.Level = s.levels.LevelFor(points)
	stored.Stats.TotalActivities = totals.Activities
	stored.Stats.TotalDuration = totals.Duration
	stored.Version++
	stored.UpdatedAt = now
	s.progress[key] = stored
	return true, nil
}

func (s *Store) DeleteUserProgress(_ context.Context, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.progress {
		if key.userID == userID {
			delete(s.progress, key)
		}
	}
	return nil
}

// Friendships

func (s *Store) CreateFriendship(_ context.Context, f *models.Friendship) (*models.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.friendships {
		if existing.UserID == f.UserID && existing.FriendID == f.FriendID {
			return nil, repository.ErrDuplicate
		}
	}
	now := s.stamp()
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	f.CreatedAt = now
	f.UpdatedAt = now
	s.friendships[f.ID] = *f
	return f, nil
}

func (s *Store) FindBetween(_ context.Context, a, b primitive.ObjectID) ([]models.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Friendship{}
	for _, f := range s.friendships {
		if (f.UserID == a && f.FriendID == b) || (f.UserID == b && f.FriendID == a) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) GetFriendship(_ context.Context, id primitive.ObjectID) (*models.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.friendships[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (s *Store) UpdateStatus(_ context.Context, id primitive.ObjectID, status models.FriendStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.friendships[id]
	if !ok {
		return repository.ErrNotFound
	}
	f.Status = status
	f.UpdatedAt = s.stamp()
	s.friendships[id] = f
	return nil
}

func (s *Store) DeleteFriendship(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.friendships[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.friendships, id)
	return nil
}

func (s *Store) DeleteBetween(_ context.Context, a, b primitive.ObjectID, status models.FriendStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, f := range s.friendships {
		between := (f.UserID == a && f.FriendID == b) || (f.UserID == b && f.FriendID == a)
		if between && f.Status == status {
			delete(s.friendships, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) ListFriendIDs(_ context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := []primitive.ObjectID{}
	for _, f := range s.friendships {
		if f.UserID == userID && f.Status == models.FriendAccepted {
			ids = append(ids, f.FriendID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	return ids, nil
}

func (s *Store) ListIncoming(_ context.Context, userID primitive.ObjectID) ([]models.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Friendship{}
	for _, f := range s.friendships {
		if f.FriendID == userID && f.Status == models.FriendPending {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *Store) DeleteUserFriendships(_ context.Context, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, f := range s.friendships {
		if f.UserID == userID || f.FriendID == userID {
			delete(s.friendships, id)
		}
	}
	return nil
}

// Users

func (s *Store) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return nil, repository.ErrDuplicate
		}
		if user.ReferralCode != "" && existing.ReferralCode == user.ReferralCode {
			return nil, repository.ErrDuplicate
		}
	}
	now := s.stamp()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return user, nil
}

func (s *Store) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s *Store) findUser(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			out := u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *Store) GetUserByReferralCode(_ context.Context, code string) (*models.User, error) {
	if code == "" {
		return nil, repository.ErrNotFound
	}
	return s.findUser(func(u models.User) bool { return u.ReferralCode == code })
}

func (s *Store) SetReferralCode(_ context.Context, id primitive.ObjectID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	for otherID, other := range s.users {
		if otherID != id && other.ReferralCode == code {
			return repository.ErrDuplicate
		}
	}
	u.ReferralCode = code
	u.UpdatedAt = s.stamp()
	s.users[id] = u
	return nil
}

func (s *Store) GetUsersByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.User{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) DeleteUser(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	return nil
}
