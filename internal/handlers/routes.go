package handlers

import (
	"net/http"

	"github.com/Dias221467/SuperHuman/pkg/middleware"
	"github.com/gorilla/mux"
)

// Handlers groups every HTTP handler of the API.
type Handlers struct {
	User        *UserHandler
	Activity    *ActivityHandler
	Progress    *ProgressHandler
	Leaderboard *LeaderboardHandler
	Friend      *FriendHandler
	Coach       *CoachHandler
	Admin       *AdminHandler
}

// RegisterRoutes mounts all routes on router. Everything except
// registration, login and the token-authenticated websocket needs a bearer token.
func RegisterRoutes(router *mux.Router, jwtSecret string, h Handlers) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	router.HandleFunc("/users/register", h.User.RegisterUserHandler).Methods("POST")
	router.HandleFunc("/users/login", h.User.LoginUserHandler).Methods("POST")
	router.HandleFunc("/coach/ws", h.Coach.ChatWebSocketHandler).Methods("GET")

	protected := router.NewRoute().Subrouter()
	protected.Use(middleware.AuthMiddleware(jwtSecret))

	protected.HandleFunc("/users/me", h.User.GetMeHandler).Methods("GET")
	protected.HandleFunc("/users/me", h.User.DeleteMeHandler).Methods("DELETE")

	protected.HandleFunc("/activities", h.Activity.CreateActivityHandler).Methods("POST")
	protected.HandleFunc("/activities", h.Activity.ListActivitiesHandler).Methods("GET")
	protected.HandleFunc("/activities/stats", h.Activity.GetActivityStatsHandler).Methods("GET")
	protected.HandleFunc("/activities/{id}", h.Activity.GetActivityHandler).Methods("GET")
	protected.HandleFunc("/activities/{id}", h.Activity.UpdateActivityHandler).Methods("PUT")
	protected.HandleFunc("/activities/{id}", h.Activity.DeleteActivityHandler).Methods("DELETE")

	protected.HandleFunc("/progress", h.Progress.GetProgressHandler).Methods("GET")
	protected.HandleFunc("/progress/{category}", h.Progress.GetCategoryProgressHandler).Methods("GET")

	protected.HandleFunc("/leaderboard", h.Leaderboard.GetLeaderboardHandler).Methods("GET")
	protected.HandleFunc("/leaderboard/friends", h.Leaderboard.GetFriendsLeaderboardHandler).Methods("GET")

	protected.HandleFunc("/friends", h.Friend.GetFriendsHandler).Methods("GET")
	protected.HandleFunc("/friends/feed", h.Friend.GetSocialFeedHandler).Methods("GET")
	protected.HandleFunc("/friends/requests", h.Friend.SendFriendRequestHandler).Methods("POST")
	protected.HandleFunc("/friends/requests", h.Friend.GetPendingRequestsHandler).Methods("GET")
	protected.HandleFunc("/friends/requests/{id}/accept", h.Friend.AcceptFriendRequestHandler).Methods("POST")
	protected.HandleFunc("/friends/requests/{id}/decline", h.Friend.DeclineFriendRequestHandler).Methods("POST")
	protected.HandleFunc("/friends/{id}", h.Friend.RemoveFriendHandler).Methods("DELETE")
	protected.HandleFunc("/referral", h.Friend.GetReferralCodeHandler).Methods("GET")
	protected.HandleFunc("/referral/apply", h.Friend.ApplyReferralHandler).Methods("POST")

	protected.HandleFunc("/coach/chat", h.Coach.ChatHandler).Methods("POST")

	if h.Admin != nil {
		admin := router.PathPrefix("/admin").Subrouter()
		admin.Use(middleware.AuthMiddleware(jwtSecret))
		admin.Use(middleware.RequireRole("admin"))
		admin.HandleFunc("/reconcile", h.Admin.ReconcileHandler).Methods("POST")
	}
}
