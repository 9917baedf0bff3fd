package handlers

import (
	"net/http"
	"time"

	"github.com/Dias221467/SuperHuman/internal/services"
	jwtutil "github.com/Dias221467/SuperHuman/pkg/jwt"
	log "github.com/sirupsen/logrus"
)

// UserHandler handles HTTP requests related to user operations.
type UserHandler struct {
	Service     *services.UserService
	JWTSecret   string
	TokenExpiry time.Duration
}

// NewUserHandler creates a new instance of UserHandler.
func NewUserHandler(service *services.UserService, jwtSecret string, tokenExpiry time.Duration) *UserHandler {
	return &UserHandler{
		Service:     service,
		JWTSecret:   jwtSecret,
		TokenExpiry: tokenExpiry,
	}
}

// RegisterUserHandler handles user registration.
func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	user, err := h.Service.RegisterUser(r.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	log.WithField("userID", user.ID.Hex()).Info("User registered successfully")
	writeJSON(w, http.StatusCreated, user)
}

// LoginUserHandler handles user login.
func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &credentials) {
		return
	}

	user, err := h.Service.AuthenticateUser(r.Context(), credentials.Email, credentials.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := jwtutil.GenerateToken(user.ID.Hex(), user.Email, user.Role, h.JWTSecret, h.TokenExpiry)
	if err != nil {
		writeError(w, err)
		return
	}

	log.WithField("userID", user.ID.Hex()).Info("User logged in successfully")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// GetMeHandler returns the caller's own profile.
func (h *UserHandler) GetMeHandler(w http.ResponseWriter, r *http.Request) {
	id := currentUserID(r)
	if id.IsZero() {
		writeError(w, services.ErrUnauthenticated)
		return
	}
	user, err := h.Service.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteMeHandler removes the caller's account and everything it owns.
func (h *UserHandler) DeleteMeHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteUser(r.Context(), currentUserID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
