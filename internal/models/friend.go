package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FriendStatus string

const (
	FriendPending  FriendStatus = "pending"
	FriendAccepted FriendStatus = "accepted"
	FriendBlocked  FriendStatus = "blocked"
)

// Friendship is a directed edge UserID -> FriendID. An accepted friendship
// is stored as two reciprocal accepted edges; a pending request as one edge
// from the requester.
type Friendship struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	FriendID  primitive.ObjectID `bson:"friend_id" json:"friend_id"`
	Status    FriendStatus       `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// FriendRequest is an incoming pending edge with the requester's public profile.
type FriendRequest struct {
	ID        primitive.ObjectID `json:"id"`
	From      PublicUser         `json:"from"`
	CreatedAt time.Time          `json:"created_at"`
}

// Outcome is the success/message result of a social operation.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
