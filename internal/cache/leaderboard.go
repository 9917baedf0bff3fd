package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/Dias221467/SuperHuman/internal/gamification"
	"github.com/Dias221467/SuperHuman/internal/models"
	"github.com/Dias221467/SuperHuman/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	globalKey         = "leaderboard:global"
	readyKey          = "leaderboard:ready"
	categoryKeyPrefix = "leaderboard:category:"
	versionKeyPrefix  = "leaderboard:version:"

	// removedVersion outranks every real aggregate version, so mirrors that
	// arrive after RemoveUser are ignored.
	removedVersion = int64(1) << 53
)

// ErrNotReady means the boards have not been loaded since Redis started.
var ErrNotReady = errors.New("leaderboard cache not loaded")

func categoryKey(categoryID string) string {
	return categoryKeyPrefix + categoryID
}

func versionKey(categoryID string) string {
	return versionKeyPrefix + categoryID
}

func categoryKeys() []string {
	ids := gamification.Categories()
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, categoryKey(id))
	}
	return keys
}

// setScript writes the total of one aggregate unless a newer version of the
// same aggregate has already been mirrored.
// KEYS: board, versions. ARGV: member, version, points.
var setScript = redis.NewScript(`
local seen = tonumber(redis.call('HGET', KEYS[2], ARGV[1]) or '0')
if tonumber(ARGV[2]) < seen then
	return 0
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
if tonumber(ARGV[3]) <= 0 then
	redis.call('ZREM', KEYS[1], ARGV[1])
else
	redis.call('ZADD', KEYS[1], ARGV[3], ARGV[1])
end
return 1
`)

// topScript reads a board, rebuilding the global union first when asked.
// Members tied with the last row are all returned.
// KEYS: ready, board, sources... ARGV: limit, union flag.
var topScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
if ARGV[2] == '1' then
	local args = {'ZUNIONSTORE', KEYS[2], #KEYS - 2}
	for i = 3, #KEYS do
		table.insert(args, KEYS[i])
	end
	redis.call(unpack(args))
end
local limit = tonumber(ARGV[1])
if limit > 0 then
	local edge = redis.call('ZREVRANGE', KEYS[2], limit - 1, limit - 1, 'WITHSCORES')
	if #edge > 0 then
		return redis.call('ZREVRANGEBYSCORE', KEYS[2], '+inf', edge[2], 'WITHSCORES')
	end
end
return redis.call('ZREVRANGE', KEYS[2], 0, -1, 'WITHSCORES')
`)

// LeaderboardCache mirrors all-time aggregate totals into one sorted set per
// category. The global board is the union of the category sets. Each mirror
// carries the aggregate version and older versions never overwrite newer ones.
type LeaderboardCache struct {
	client *redis.Client
}

func NewLeaderboardCache(client *redis.Client) *LeaderboardCache {
	return &LeaderboardCache{client: client}
}

func setArgs(p *models.Progress) ([]string, []interface{}) {
	keys := []string{categoryKey(p.CategoryID), versionKey(p.CategoryID)}
	return keys, []interface{}{p.UserID.Hex(), p.Version, p.TotalPoints}
}

// SetScore stores the total of one aggregate. Zero totals are removed so
// boards only list users with points.
func (c *LeaderboardCache) SetScore(ctx context.Context, p *models.Progress) error {
	keys, args := setArgs(p)
	if err := setScript.Run(ctx, c.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("failed to set leaderboard score: %w", err)
	}
	return nil
}

// Top returns the highest totals, ties broken by ascending user id. An empty
// categoryID means the global board. ErrNotReady is returned until Rebuild
// has run against this Redis instance.
func (c *LeaderboardCache) Top(ctx context.Context, categoryID string, limit int) ([]models.UserTotal, error) {
	keys := []string{readyKey, categoryKey(categoryID)}
	union := "0"
	if categoryID == "" {
		keys = append([]string{readyKey, globalKey}, categoryKeys()...)
		union = "1"
	}

	raw, err := topScript.Run(ctx, c.client, keys, limit, union).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotReady
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	totals := make([]models.UserTotal, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		id, err := primitive.ObjectIDFromHex(raw[i])
		if err != nil {
			logger.Log.WithField("member", raw[i]).Warn("Skipping malformed leaderboard member")
			continue
		}
		score, err := strconv.ParseFloat(raw[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse leaderboard score: %w", err)
		}
		totals = append(totals, models.UserTotal{UserID: id, Points: int(score)})
	}

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Points != totals[j].Points {
			return totals[i].Points > totals[j].Points
		}
		return bytes.Compare(totals[i].UserID[:], totals[j].UserID[:]) < 0
	})
	if limit > 0 && len(totals) > limit {
		totals = totals[:limit]
	}
	return totals, nil
}

// RemoveUser drops a user from every board and fences out late mirrors.
func (c *LeaderboardCache) RemoveUser(ctx context.Context, userID primitive.ObjectID) error {
	member := userID.Hex()
	pipe := c.client.TxPipeline()
	for _, id := range gamification.Categories() {
		pipe.ZRem(ctx, categoryKey(id), member)
		pipe.HSet(ctx, versionKey(id), member, removedVersion)
	}
	pipe.ZRem(ctx, globalKey, member)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove user from leaderboards: %w", err)
	}
	return nil
}

// Rebuild loads every aggregate through the same version check as SetScore,
// so a snapshot older than a concurrent mirror loses, and marks the boards
// ready.
func (c *LeaderboardCache) Rebuild(ctx context.Context, aggregates []models.Progress) error {
	if err := setScript.Load(ctx, c.client).Err(); err != nil {
		return fmt.Errorf("failed to load leaderboard script: %w", err)
	}
	pipe := c.client.Pipeline()
	for i := range aggregates {
		p := &aggregates[i]
		if !gamification.IsValidCategory(p.CategoryID) {
			continue
		}
		keys, args := setArgs(p)
		setScript.EvalSha(ctx, pipe, keys, args...)
	}
	pipe.Set(ctx, readyKey, "1", 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to rebuild leaderboards: %w", err)
	}
	logger.Log.WithField("aggregates", len(aggregates)).Info("Leaderboard cache rebuilt")
	return nil
}
