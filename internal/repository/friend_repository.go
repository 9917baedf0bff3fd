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

// FriendRepository stores directed edges in "friendships". The unique
// (user_id, friend_id) index rejects a second edge in the same direction.
type FriendRepository struct {
	collection *mongo.Collection
}

func NewFriendRepository(db *mongo.Database) *FriendRepository {
	return &FriendRepository{
		collection: db.Collection("friendships"),
	}
}

func (r *FriendRepository) CreateFriendship(ctx context.Context, f *models.Friendship) (*models.Friendship, error) {
	now := time.Now().UTC()
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	f.CreatedAt = now
	f.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, f); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			logrus.WithError(err).Error("Failed to insert friendship")
		}
		return nil, wrapErr("insert", "friendship", err)
	}
	return f, nil
}

func betweenFilter(a, b primitive.ObjectID) bson.M {
	return bson.M{"$or": []bson.M{
		{"user_id": a, "friend_id": b},
		{"user_id": b, "friend_id": a},
	}}
}

func (r *FriendRepository) FindBetween(ctx context.Context, a, b primitive.ObjectID) ([]models.Friendship, error) {
	cursor, err := r.collection.Find(ctx, betweenFilter(a, b))
	if err != nil {
		return nil, wrapErr("find", "friendship", err)
	}
	defer cursor.Close(ctx)

	edges := []models.Friendship{}
	if err := cursor.All(ctx, &edges); err != nil {
		return nil, wrapErr("decode", "friendship", err)
	}
	return edges, nil
}

func (r *FriendRepository) GetFriendship(ctx context.Context, id primitive.ObjectID) (*models.Friendship, error) {
	var f models.Friendship
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		return nil, wrapErr("get", "friendship", err)
	}
	return &f, nil
}

func (r *FriendRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.FriendStatus) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return wrapErr("update", "friendship", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *FriendRepository) DeleteFriendship(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapErr("delete", "friendship", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *FriendRepository) DeleteBetween(ctx context.Context, a, b primitive.ObjectID, status models.FriendStatus) (int64, error) {
	filter := betweenFilter(a, b)
	filter["status"] = status
	res, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, wrapErr("delete", "friendship", err)
	}
	return res.DeletedCount, nil
}

// ListFriendIDs returns the targets of the user's accepted outgoing edges.
func (r *FriendRepository) ListFriendIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	opts := options.Find().SetProjection(bson.M{"friend_id": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID, "status": models.FriendAccepted}, opts)
	if err != nil {
		return nil, wrapErr("list", "friendship", err)
	}
	defer cursor.Close(ctx)

	ids := []primitive.ObjectID{}
	for cursor.Next(ctx) {
		var edge models.Friendship
		if err := cursor.Decode(&edge); err != nil {
			return nil, wrapErr("decode", "friendship", err)
		}
		ids = append(ids, edge.FriendID)
	}
	return ids, wrapErr("iterate", "friendship", cursor.Err())
}

// ListIncoming returns pending requests addressed to userID, oldest first.
func (r *FriendRepository) ListIncoming(ctx context.Context, userID primitive.ObjectID) ([]models.Friendship, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"friend_id": userID, "status": models.FriendPending}, opts)
	if err != nil {
		return nil, wrapErr("list", "friendship", err)
	}
	defer cursor.Close(ctx)

	edges := []models.Friendship{}
	if err := cursor.All(ctx, &edges); err != nil {
		return nil, wrapErr("decode", "friendship", err)
	}
	return edges, nil
}

func (r *FriendRepository) DeleteUserFriendships(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"$or": []bson.M{
		{"user_id": userID},
		{"friend_id": userID},
	}})
	return wrapErr("delete", "friendship", err)
}
