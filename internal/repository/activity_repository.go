package repository

import (
	"context"
	"time"

	"github.com/Dias221467/SuperHuman/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ActivityRepository stores the activity ledger in the "activities" collection.
type ActivityRepository struct {
	collection *mongo.Collection
}

func NewActivityRepository(db *mongo.Database) *ActivityRepository {
	return &ActivityRepository{
		collection: db.Collection("activities"),
	}
}

// CreateActivity inserts a new ledger record and assigns its ID.
func (r *ActivityRepository) CreateActivity(ctx context.Context, activity *models.Activity) (*models.Activity, error) {
	if activity.ID.IsZero() {
		activity.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, activity); err != nil {
		logrus.WithError(err).Error("Failed to insert activity")
		return nil, wrapErr("insert", "activity", err)
	}
	return activity, nil
}

// GetActivity fetches an activity owned by userID.
func (r *ActivityRepository) GetActivity(ctx context.Context, userID, id primitive.ObjectID) (*models.Activity, error) {
	var activity models.Activity
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&activity)
	if err != nil {
		return nil, wrapErr("get", "activity", err)
	}
	return &activity, nil
}

// versionMatch selects records at version. Records written before versioning
// have no version field and count as version 0.
func versionMatch(version int64) interface{} {
	if version == 0 {
		return bson.M{"$in": bson.A{0, nil}}
	}
	return version
}

// missOrConflict tells a vanished record from one a concurrent writer moved on.
func (r *ActivityRepository) missOrConflict(ctx context.Context, userID, id primitive.ObjectID) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return wrapErr("count", "activity", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// UpdateActivity replaces the record if it is still at version expected and
// no live writer holds it.
func (r *ActivityRepository) UpdateActivity(ctx context.Context, activity *models.Activity, expected int64, leaseCutoff time.Time) error {
	filter := bson.M{
		"_id":     activity.ID,
		"user_id": activity.UserID,
		"version": versionMatch(expected),
		"$or": bson.A{
			bson.M{"pending_since": nil},
			bson.M{"pending_since": bson.M{"$lt": leaseCutoff}},
		},
	}
	res, err := r.collection.ReplaceOne(ctx, filter, activity)
	if err != nil {
		logrus.WithError(err).WithField("activityID", activity.ID.Hex()).Error("Failed to update activity")
		return wrapErr("update", "activity", err)
	}
	if res.MatchedCount == 0 {
		return r.missOrConflict(ctx, activity.UserID, activity.ID)
	}
	return nil
}

func (r *ActivityRepository) ReleaseActivity(ctx context.Context, userID, id primitive.ObjectID, version int64) error {
	filter := bson.M{"_id": id, "user_id": userID, "version": versionMatch(version)}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$unset": bson.M{"pending_since": ""}})
	if err != nil {
		return wrapErr("release", "activity", err)
	}
	if res.MatchedCount == 0 {
		return r.missOrConflict(ctx, userID, id)
	}
	return nil
}

func (r *ActivityRepository) DeleteActivity(ctx context.Context, userID, id primitive.ObjectID, version int64) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID, "version": versionMatch(version)})
	if err != nil {
		logrus.WithError(err).WithField("activityID", id.Hex()).Error("Failed to delete activity")
		return wrapErr("delete", "activity", err)
	}
	if res.DeletedCount == 0 {
		return r.missOrConflict(ctx, userID, id)
	}
	return nil
}

func listFilter(userID primitive.ObjectID, f models.ActivityFilter) bson.M {
	filter := bson.M{"user_id": userID}
	if f.CategoryID != "" {
		filter["category_id"] = f.CategoryID
	}
	if f.From != nil || f.To != nil {
		rng := bson.M{}
		if f.From != nil {
			rng["$gte"] = *f.From
		}
		if f.To != nil {
			rng["$lte"] = *f.To
		}
		filter["completed_at"] = rng
	}
	return filter
}

// ListActivities returns a page of activities ordered by completed_at desc
// together with the total number of matches.
func (r *ActivityRepository) ListActivities(ctx context.Context, userID primitive.ObjectID, f models.ActivityFilter) ([]models.Activity, int64, error) {
	filter := listFilter(userID, f)

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, wrapErr("count", "activity", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "completed_at", Value: -1}, {Key: "_id", Value: -1}})
	if f.Offset > 0 {
		opts.SetSkip(int64(f.Offset))
	}
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, wrapErr("list", "activity", err)
	}
	defer cursor.Close(ctx)

	activities := []models.Activity{}
	if err := cursor.All(ctx, &activities); err != nil {
		return nil, 0, wrapErr("decode", "activity", err)
	}
	return activities, total, nil
}

func (r *ActivityRepository) CompletionTimes(ctx context.Context, userID primitive.ObjectID, categoryID string) ([]time.Time, error) {
	filter := bson.M{"user_id": userID}
	if categoryID != "" {
		filter["category_id"] = categoryID
	}
	opts := options.Find().SetProjection(bson.M{"completed_at": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapErr("list", "completion", err)
	}
	defer cursor.Close(ctx)

	var times []time.Time
	for cursor.Next(ctx) {
		var row struct {
			CompletedAt time.Time `bson:"completed_at"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, wrapErr("decode", "completion", err)
		}
		times = append(times, row.CompletedAt)
	}
	return times, wrapErr("iterate", "completion", cursor.Err())
}

// ActivitiesForUsers returns the most recent activities across userIDs.
func (r *ActivityRepository) ActivitiesForUsers(ctx context.Context, userIDs []primitive.ObjectID, limit int) ([]models.Activity, error) {
	if len(userIDs) == 0 {
		return []models.Activity{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "completed_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": bson.M{"$in": userIDs}}, opts)
	if err != nil {
		return nil, wrapErr("list", "activity", err)
	}
	defer cursor.Close(ctx)

	activities := []models.Activity{}
	if err := cursor.All(ctx, &activities); err != nil {
		return nil, wrapErr("decode", "activity", err)
	}
	return activities, nil
}

// SumByCategory groups the ledger by (user_id, category_id).
func (r *ActivityRepository) SumByCategory(ctx context.Context, userIDs []primitive.ObjectID) ([]models.CategoryTotals, error) {
	pipeline := mongo.Pipeline{}
	if userIDs != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"user_id": bson.M{"$in": userIDs}}}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "user_id", Value: "$user_id"}, {Key: "category_id", Value: "$category_id"}}},
			{Key: "points", Value: bson.D{{Key: "$sum", Value: "$points"}}},
			{Key: "duration", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$duration", 0}}}}}},
			{Key: "activities", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "last_activity_at", Value: bson.D{{Key: "$max", Value: "$updated_at"}}},
		}}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "user_id", Value: "$_id.user_id"},
			{Key: "category_id", Value: "$_id.category_id"},
			{Key: "points", Value: 1},
			{Key: "duration", Value: 1},
			{Key: "activities", Value: 1},
			{Key: "last_activity_at", Value: 1},
		}}},
	)

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrapErr("aggregate", "activity", err)
	}
	defer cursor.Close(ctx)

	totals := []models.CategoryTotals{}
	if err := cursor.All(ctx, &totals); err != nil {
		return nil, wrapErr("decode", "activity totals", err)
	}
	return totals, nil
}

func (r *ActivityRepository) DeleteUserActivities(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, wrapErr("delete", "activity", err)
	}
	return res.DeletedCount, nil
}
