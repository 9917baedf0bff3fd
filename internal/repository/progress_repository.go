package repository

import (
	"context"
	"time"

	"github.com/Dias221467/SuperHuman/internal/gamification"
	"github.com/Dias221467/SuperHuman/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProgressRepository stores aggregates in "user_progress". A unique index on
// (user_id, category_id) keeps one document per pair.
type ProgressRepository struct {
	collection *mongo.Collection
	levels     *gamification.LevelTable
}

func NewProgressRepository(db *mongo.Database, levels *gamification.LevelTable) *ProgressRepository {
	return &ProgressRepository{
		collection: db.Collection("user_progress"),
		levels:     levels,
	}
}

func ifNull(field string, fallback interface{}) bson.D {
	return bson.D{{Key: "$ifNull", Value: bson.A{field, fallback}}}
}

// clampedAdd renders max(0, field + delta) with a missing field read as 0.
func clampedAdd(field string, delta int) bson.D {
	return bson.D{{Key: "$max", Value: bson.A{
		0,
		bson.D{{Key: "$add", Value: bson.A{ifNull(field, 0), delta}}},
	}}}
}

// levelSwitch renders the level table as a $switch over field, highest
// threshold first.
func levelSwitch(levels *gamification.LevelTable, field string) interface{} {
	rows := levels.Levels()
	if len(rows) == 1 {
		return rows[0].Number
	}
	branches := bson.A{}
	for i := len(rows) - 1; i >= 1; i-- {
		branches = append(branches, bson.D{
			{Key: "case", Value: bson.D{{Key: "$gte", Value: bson.A{field, rows[i].MinPoints}}}},
			{Key: "then", Value: rows[i].Number},
		})
	}
	return bson.D{{Key: "$switch", Value: bson.D{
		{Key: "branches", Value: branches},
		{Key: "default", Value: rows[0].Number},
	}}}
}

// ApplyDelta adds delta to the (userID, categoryID) aggregate in one
// server-side pipeline update, creating the document on first use. Counters
// are clamped at zero and the level is recomputed from the new total within
// the same write.
func (r *ProgressRepository) ApplyDelta(ctx context.Context, userID primitive.ObjectID, categoryID string, delta models.ProgressDelta) (*models.Progress, error) {
	now := time.Now().UTC()
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "total_points", Value: clampedAdd("$total_points", delta.Points)},
			{Key: "stats.total_activities", Value: clampedAdd("$stats.total_activities", delta.Activities)},
			{Key: "stats.total_duration", Value: clampedAdd("$stats.total_duration", delta.Duration)},
			{Key: "stats.streak_days", Value: ifNull("$stats.streak_days", 0)},
			{Key: "stats.best_streak", Value: ifNull("$stats.best_streak", 0)},
			{Key: "version", Value: bson.D{{Key: "$add", Value: bson.A{ifNull("$version", 0), 1}}}},
			{Key: "created_at", Value: ifNull("$created_at", now)},
			{Key: "updated_at", Value: now},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "level", Value: levelSwitch(r.levels, "$total_points")},
		}}},
	}
	filter := bson.M{"user_id": userID, "category_id": categoryID}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var progress models.Progress
	err := r.collection.FindOneAndUpdate(ctx, filter, pipeline, opts).Decode(&progress)
	if mongo.IsDuplicateKeyError(err) {
		// Two first-writes raced on the upsert; the document exists now.
		err = r.collection.FindOneAndUpdate(ctx, filter, pipeline, opts).Decode(&progress)
	}
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"userID":     userID.Hex(),
			"categoryID": categoryID,
		}).Error("Failed to apply progress delta")
		return nil, wrapErr("apply delta", "progress", err)
	}
	return &progress, nil
}

// SetStreak stores the current streak and raises best_streak if exceeded.
func (r *ProgressRepository) SetStreak(ctx context.Context, userID primitive.ObjectID, categoryID string, streakDays int) (*models.Progress, error) {
	update := bson.M{
		"$set": bson.M{"stats.streak_days": streakDays},
		"$max": bson.M{"stats.best_streak": streakDays},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var progress models.Progress
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"user_id": userID, "category_id": categoryID}, update, opts).Decode(&progress)
	if err != nil {
		return nil, wrapErr("set streak", "progress", err)
	}
	return &progress, nil
}

func (r *ProgressRepository) GetProgress(ctx context.Context, userID primitive.ObjectID, categoryID string) (*models.Progress, error) {
	var progress models.Progress
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID, "category_id": categoryID}).Decode(&progress)
	if err != nil {
		return nil, wrapErr("get", "progress", err)
	}
	return &progress, nil
}

func (r *ProgressRepository) find(ctx context.Context, filter bson.M) ([]models.Progress, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}, {Key: "category_id", Value: 1}}))
	if err != nil {
		return nil, wrapErr("list", "progress", err)
	}
	defer cursor.Close(ctx)

	progress := []models.Progress{}
	if err := cursor.All(ctx, &progress); err != nil {
		return nil, wrapErr("decode", "progress", err)
	}
	return progress, nil
}

func (r *ProgressRepository) ListUserProgress(ctx context.Context, userID primitive.ObjectID) ([]models.Progress, error) {
	return r.find(ctx, bson.M{"user_id": userID})
}

func (r *ProgressRepository) ListAllProgress(ctx context.Context) ([]models.Progress, error) {
	return r.find(ctx, bson.M{})
}

// SumPointsByUser groups aggregates by user and sums total_points.
func (r *ProgressRepository) SumPointsByUser(ctx context.Context, f models.TotalsFilter) ([]models.UserTotal, error) {
	match := bson.M{}
	if f.CategoryID != "" {
		match["category_id"] = f.CategoryID
	}
	if f.Since != nil {
		match["updated_at"] = bson.M{"$gte": *f.Since}
	}
	if f.UserIDs != nil {
		match["user_id"] = bson.M{"$in": f.UserIDs}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$user_id"},
			{Key: "points", Value: bson.D{{Key: "$sum", Value: "$total_points"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "points", Value: -1}, {Key: "_id", Value: 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrapErr("aggregate", "progress", err)
	}
	defer cursor.Close(ctx)

	totals := []models.UserTotal{}
	if err := cursor.All(ctx, &totals); err != nil {
		return nil, wrapErr("decode", "progress totals", err)
	}
	return totals, nil
}

// CompareAndSetTotals rewrites the counters of an aggregate from ledger
// totals, guarded on updated_at and version so a concurrent delta wins.
func (r *ProgressRepository) CompareAndSetTotals(ctx context.Context, current *models.Progress, totals models.CategoryTotals) (bool, error) {
	now := time.Now().UTC()
	points := totals.Points
	if points < 0 {
		points = 0
	}

	if current == nil {
		doc := models.Progress{
			ID:          primitive.NewObjectID(),
			UserID:      totals.UserID,
			CategoryID:  totals.CategoryID,
			TotalPoints: points,
			Level:       r.levels.LevelFor(points),
			Stats: models.ProgressStats{
				TotalActivities: totals.Activities,
				TotalDuration:   totals.Duration,
			},
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		}
		_, err := r.collection.InsertOne(ctx, doc)
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		if err != nil {
			return false, wrapErr("insert", "progress", err)
		}
		return true, nil
	}

	filter := bson.M{"_id": current.ID, "updated_at": current.UpdatedAt, "version": versionMatch(current.Version)}
	update := bson.M{
		"$set": bson.M{
			"total_points":           points,
			"level":                  r.levels.LevelFor(points),
			"stats.total_activities": totals.Activities,
			"stats.total_duration":   totals.Duration,
			"updated_at":             now,
		},
		"$inc": bson.M{"version": 1},
	}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, wrapErr("reconcile", "progress", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *ProgressRepository) DeleteUserProgress(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"user_id": userID})
	return wrapErr("delete", "progress", err)
}
