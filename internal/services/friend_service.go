package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dias221467/SuperHuman/internal/gamification"
	"github.com/Dias221467/SuperHuman/internal/models"
	"github.com/Dias221467/SuperHuman/internal/repository"
	"github.com/Dias221467/SuperHuman/pkg/logger"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	referralPrefix      = "SH"
	referralCodeLength  = 10
	referralMaxAttempts = 5
	maxFeedItems        = 50
)

// FriendService handles the friend graph, referrals and the social feed.
type FriendService struct {
	friends    repository.FriendStore
	users      repository.UserStore
	activities repository.ActivityStore
}

// NewFriendService creates a new FriendService.
func NewFriendService(friends repository.FriendStore, users repository.UserStore, activities repository.ActivityStore) *FriendService {
	return &FriendService{
		friends:    friends,
		users:      users,
		activities: activities,
	}
}

// SendFriendRequest creates a pending edge from userID to targetID.
func (s *FriendService) SendFriendRequest(ctx context.Context, userID, targetID primitive.ObjectID) (*models.Friendship, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if userID == targetID {
		return nil, conflict("cannot send a friend request to yourself")
	}

	if _, err := s.users.GetUserByID(ctx, targetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("user", targetID)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	edges, err := s.friends.FindBetween(ctx, userID, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to check friendship: %w", err)
	}
	for _, e := range edges {
		switch e.Status {
		case models.FriendAccepted:
			return nil, conflict("you are already friends")
		case models.FriendBlocked:
			return nil, conflict("friendship is blocked")
		case models.FriendPending:
			if e.UserID == userID {
				return nil, conflict("friend request already sent")
			}
			return nil, conflict("this user has already sent you a friend request")
		}
	}

	request, err := s.friends.CreateFriendship(ctx, &models.Friendship{
		UserID:   userID,
		FriendID: targetID,
		Status:   models.FriendPending,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, conflict("friend request already sent")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to send friend request: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"from": userID.Hex(),
		"to":   targetID.Hex(),
	}).Info("Friend request sent")
	return request, nil
}

// incomingRequest loads a pending request addressed to userID.
func (s *FriendService) incomingRequest(ctx context.Context, userID, requestID primitive.ObjectID) (*models.Friendship, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	request, err := s.friends.GetFriendship(ctx, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("friend request", requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load friend request: %w", err)
	}
	if request.FriendID != userID || request.Status != models.FriendPending {
		return nil, notFound("friend request", requestID)
	}
	return request, nil
}

// AcceptFriendRequest turns a pending request into two accepted edges.
func (s *FriendService) AcceptFriendRequest(ctx context.Context, userID, requestID primitive.ObjectID) error {
	request, err := s.incomingRequest(ctx, userID, requestID)
	if err != nil {
		return err
	}

	if err := s.friends.UpdateStatus(ctx, request.ID, models.FriendAccepted); err != nil {
		return fmt.Errorf("failed to accept friend request: %w", err)
	}

	_, err = s.friends.CreateFriendship(ctx, &models.Friendship{
		UserID:   userID,
		FriendID: request.UserID,
		Status:   models.FriendAccepted,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		err = s.acceptReverseEdge(ctx, userID, request.UserID)
	}
	if err != nil {
		// Friendships are two accepted edges or none.
		if revertErr := s.friends.UpdateStatus(ctx, request.ID, models.FriendPending); revertErr != nil {
			logger.Log.WithError(revertErr).WithField("requestID", request.ID.Hex()).Error("Failed to revert friend request after reciprocal failure")
		}
		return fmt.Errorf("failed to create reciprocal friendship: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"user":   userID.Hex(),
		"friend": request.UserID.Hex(),
	}).Info("Friend request accepted")
	return nil
}

func (s *FriendService) acceptReverseEdge(ctx context.Context, userID, friendID primitive.ObjectID) error {
	edges, err := s.friends.FindBetween(ctx, userID, friendID)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if e.UserID == userID {
			return s.friends.UpdateStatus(ctx, e.ID, models.FriendAccepted)
		}
	}
	return repository.ErrNotFound
}

// DeclineFriendRequest removes a pending request addressed to userID.
func (s *FriendService) DeclineFriendRequest(ctx context.Context, userID, requestID primitive.ObjectID) error {
	request, err := s.incomingRequest(ctx, userID, requestID)
	if err != nil {
		return err
	}
	if err := s.friends.DeleteFriendship(ctx, request.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("friend request", requestID)
		}
		return fmt.Errorf("failed to decline friend request: %w", err)
	}
	return nil
}

// RemoveFriend deletes both accepted edges between the two users.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID primitive.ObjectID) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	n, err := s.friends.DeleteBetween(ctx, userID, friendID, models.FriendAccepted)
	if err != nil {
		return fmt.Errorf("failed to remove friend: %w", err)
	}
	if n == 0 {
		return notFound("friend", friendID)
	}
	logger.Log.WithFields(logrus.Fields{
		"user":   userID.Hex(),
		"friend": friendID.Hex(),
	}).Info("Friend removed")
	return nil
}

// GetFriends lists the public profiles of accepted friends.
func (s *FriendService) GetFriends(ctx context.Context, userID primitive.ObjectID) ([]models.PublicUser, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ids, err := s.friends.ListFriendIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get friend IDs: %w", err)
	}
	if len(ids) == 0 {
		return []models.PublicUser{}, nil
	}

	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	friends := make([]models.PublicUser, 0, len(users))
	for i := range users {
		friends = append(friends, users[i].Public())
	}
	return friends, nil
}

// GetPendingRequests lists incoming requests with the requester's profile.
func (s *FriendService) GetPendingRequests(ctx context.Context, userID primitive.ObjectID) ([]models.FriendRequest, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	incoming, err := s.friends.ListIncoming(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friend requests: %w", err)
	}

	ids := make([]primitive.ObjectID, 0, len(incoming))
	for _, f := range incoming {
		ids = append(ids, f.UserID)
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	requests := make([]models.FriendRequest, 0, len(incoming))
	for _, f := range incoming {
		from := models.PublicUser{ID: f.UserID, Name: unknownUserName}
		if u, ok := byID[f.UserID]; ok {
			from = u.Public()
		}
		requests = append(requests, models.FriendRequest{ID: f.ID, From: from, CreatedAt: f.CreatedAt})
	}
	return requests, nil
}

func newReferralCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return referralPrefix + strings.ToUpper(raw[:referralCodeLength-len(referralPrefix)])
}

// assignReferralCode stores a fresh code for the user, retrying on collisions.
func assignReferralCode(ctx context.Context, users repository.UserStore, userID primitive.ObjectID) (string, error) {
	for attempt := 0; attempt < referralMaxAttempts; attempt++ {
		code := newReferralCode()
		err := users.SetReferralCode(ctx, userID, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return "", err
		}
	}
	return "", fmt.Errorf("failed to generate a unique referral code after %d attempts", referralMaxAttempts)
}

// GetReferralCode returns the user's code, creating one on first use.
func (s *FriendService) GetReferralCode(ctx context.Context, userID primitive.ObjectID) (string, error) {
	if err := requireUser(userID); err != nil {
		return "", err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", notFound("user", userID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	if user.ReferralCode != "" {
		return user.ReferralCode, nil
	}
	return assignReferralCode(ctx, s.users, userID)
}

// ApplyReferral sends a friend request from userID to the owner of code.
func (s *FriendService) ApplyReferral(ctx context.Context, userID primitive.ObjectID, code string) (*models.Friendship, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if len(normalized) != referralCodeLength || !strings.HasPrefix(normalized, referralPrefix) {
		return nil, &NotFoundError{Resource: "referral code", ID: code}
	}

	referrer, err := s.users.GetUserByReferralCode(ctx, normalized)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Resource: "referral code", ID: normalized}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve referral code: %w", err)
	}
	if referrer.ID == userID {
		return nil, conflict("cannot use your own referral code")
	}
	return s.SendFriendRequest(ctx, userID, referrer.ID)
}

// GetSocialFeed returns the most recent activities of accepted friends.
func (s *FriendService) GetSocialFeed(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.SocialActivity, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxFeedItems {
		limit = maxFeedItems
	}

	ids, err := s.friends.ListFriendIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get friend IDs: %w", err)
	}
	if len(ids) == 0 {
		return []models.SocialActivity{}, nil
	}

	activities, err := s.activities.ActivitiesForUsers(ctx, ids, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load friend activities: %w", err)
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	names := make(map[primitive.ObjectID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	feed := make([]models.SocialActivity, 0, len(activities))
	for _, a := range activities {
		info := gamification.Info(a.CategoryID)
		name := names[a.UserID]
		if name == "" {
			name = unknownUserName
		}
		feed = append(feed, models.SocialActivity{
			ID:            a.ID,
			UserID:        a.UserID,
			UserName:      name,
			ActivityName:  a.Name,
			CategoryID:    a.CategoryID,
			CategoryIcon:  info.Icon,
			CategoryColor: info.Color,
			Points:        a.Points,
			CompletedAt:   a.CompletedAt,
		})
	}
	return feed, nil
}
