package handlers

import (
	"errors"
	"net/http"

	"github.com/Dias221467/SuperHuman/internal/models"
	"github.com/Dias221467/SuperHuman/internal/services"
	"github.com/Dias221467/SuperHuman/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FriendHandler manages HTTP endpoints related to friends and referrals.
type FriendHandler struct {
	Service *services.FriendService
}

// NewFriendHandler initializes a new FriendHandler.
func NewFriendHandler(service *services.FriendService) *FriendHandler {
	return &FriendHandler{Service: service}
}

// writeOutcome reports social operations as {success, message}. Domain
// failures keep their status code; infrastructure failures fall through to
// writeError.
func writeOutcome(w http.ResponseWriter, err error, message string) {
	if err == nil {
		writeJSON(w, http.StatusOK, models.Outcome{Success: true, Message: message})
		return
	}

	status := 0
	switch {
	case services.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case services.IsNotFound(err):
		status = http.StatusNotFound
	case services.IsConflict(err):
		status = http.StatusConflict
	}
	if status == 0 {
		writeError(w, err)
		return
	}
	logger.Log.WithError(err).Warn("Friend operation rejected")
	writeJSON(w, status, models.Outcome{Success: false, Message: err.Error()})
}

// SendFriendRequestHandler allows a user to send a friend request.
func (h *FriendHandler) SendFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	target, err := primitive.ObjectIDFromHex(body.UserID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.Outcome{Success: false, Message: "Invalid user ID"})
		return
	}

	_, err = h.Service.SendFriendRequest(r.Context(), currentUserID(r), target)
	writeOutcome(w, err, "Friend request sent")
}

// GetPendingRequestsHandler shows all incoming friend requests.
func (h *FriendHandler) GetPendingRequestsHandler(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Service.GetPendingRequests(r.Context(), currentUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (h *FriendHandler) AcceptFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	err := h.Service.AcceptFriendRequest(r.Context(), currentUserID(r), id)
	writeOutcome(w, err, "Friend request accepted")
}

func (h *FriendHandler) DeclineFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	err := h.Service.DeclineFriendRequest(r.Context(), currentUserID(r), id)
	writeOutcome(w, err, "Friend request declined")
}

// GetFriendsHandler lists the caller's accepted friends.
func (h *FriendHandler) GetFriendsHandler(w http.ResponseWriter, r *http.Request) {
	friends, err := h.Service.GetFriends(r.Context(), currentUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, friends)
}

func (h *FriendHandler) RemoveFriendHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	err := h.Service.RemoveFriend(r.Context(), currentUserID(r), id)
	writeOutcome(w, err, "Friend removed")
}

func (h *FriendHandler) GetSocialFeedHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	feed, err := h.Service.GetSocialFeed(r.Context(), currentUserID(r), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *FriendHandler) GetReferralCodeHandler(w http.ResponseWriter, r *http.Request) {
	code, err := h.Service.GetReferralCode(r.Context(), currentUserID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

func (h *FriendHandler) ApplyReferralHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	_, err := h.Service.ApplyReferral(r.Context(), currentUserID(r), body.Code)
	writeOutcome(w, err, "Friend request sent")
}
