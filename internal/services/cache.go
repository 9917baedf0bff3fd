package services

import (
	"context"

	"github.com/Dias221467/SuperHuman/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LeaderboardCache is an optional read-through mirror of all-time totals.
// SetScore receives every aggregate after a write; mirrors carrying an older
// Version than one already seen are dropped. Top fails until the mirror has
// been loaded with Rebuild. Failures are logged and the store is used instead.
//
//go:generate mockgen -source=cache.go -destination=mock_cache_test.go -package=services
type LeaderboardCache interface {
	SetScore(ctx context.Context, p *models.Progress) error
	Top(ctx context.Context, categoryID string, limit int) ([]models.UserTotal, error)
	RemoveUser(ctx context.Context, userID primitive.ObjectID) error
	Rebuild(ctx context.Context, aggregates []models.Progress) error
}
