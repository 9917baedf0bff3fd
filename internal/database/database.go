package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/SuperHuman/internal/config"
	"github.com/Dias221467/SuperHuman/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectDB opens a MongoDB client, pings it and returns the configured database.
func ConnectDB(cfg *config.Config) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Log.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")
	return client.Database(cfg.MongoDB), nil
}

// Indexes lists the indexes each collection needs, keyed by collection name.
func Indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		"user_progress": {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "category_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("user_category_unique"),
			},
			{Keys: bson.D{{Key: "category_id", Value: 1}, {Key: "updated_at", Value: -1}}},
		},
		"activities": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "completed_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "category_id", Value: 1}}},
		},
		"friendships": {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "friend_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("edge_unique"),
			},
			{Keys: bson.D{{Key: "friend_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		"users": {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "referral_code", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
		},
	}
}

// EnsureIndexes creates the indexes from Indexes. Existing ones are left alone.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for name, models := range Indexes() {
		created, err := db.Collection(name).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
		logger.Log.WithField("collection", name).Debugf("Ensured indexes %v", created)
	}
	return nil
}
