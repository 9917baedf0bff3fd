package handlers

import (
	"net/http"
	"time"

	"github.com/Dias221467/SuperHuman/internal/services"
	jwtutil "github.com/Dias221467/SuperHuman/pkg/jwt"
	"github.com/Dias221467/SuperHuman/pkg/logger"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	wsReadLimit    = 16 << 10
	wsWriteTimeout = 10 * time.Second
)

// WSMessage is the frame exchanged on the coach socket. Clients send
// "text"; the server answers with "typing", "reply" or "error".
type WSMessage struct {
	Type        string   `json:"type"`
	Text        string   `json:"text,omitempty"`
	Content     string   `json:"content,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Typing      bool     `json:"typing,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// CoachHandler serves the coach over plain HTTP and a websocket.
type CoachHandler struct {
	Service   *services.CoachService
	JWTSecret string
	upgrader  websocket.Upgrader
}

// NewCoachHandler accepts websocket connections from allowedOrigins only;
// "*" allows any origin.
func NewCoachHandler(service *services.CoachService, jwtSecret string, allowedOrigins []string) *CoachHandler {
	h := &CoachHandler{Service: service, JWTSecret: jwtSecret}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// ChatHandler answers a single coach message.
func (h *CoachHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	resp, err := h.Service.Chat(r.Context(), currentUserID(r), body.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ChatWebSocketHandler authenticates with ?token= since browsers cannot set
// headers on websocket upgrades.
func (h *CoachHandler) ChatWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	claims, err := jwtutil.ValidateToken(token, h.JWTSecret)
	if err != nil {
		logger.Log.WithError(err).Warn("WebSocket auth failed")
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.Log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	log := logger.Log.WithField("userID", claims.UserID)
	log.Info("Coach websocket connected")
	defer log.Info("Coach websocket disconnected")

	send := func(msg WSMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(msg)
	}

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("WebSocket read error")
			}
			return
		}
		if msg.Type != "" && msg.Type != "text" {
			if err := send(WSMessage{Type: "error", Error: "unsupported message type"}); err != nil {
				return
			}
			continue
		}

		if err := send(WSMessage{Type: "typing", Typing: true}); err != nil {
			return
		}
		resp, err := h.Service.Chat(r.Context(), userID, msg.Text)
		if err != nil {
			reply := WSMessage{Type: "error", Error: "internal server error"}
			if services.IsValidation(err) {
				reply.Error = err.Error()
			} else {
				log.WithError(err).Error("Coach reply failed")
			}
			if err := send(reply); err != nil {
				return
			}
			continue
		}

		if err := send(WSMessage{Type: "reply", Content: resp.Content, Suggestions: resp.Suggestions}); err != nil {
			log.WithFields(logrus.Fields{"error": err}).Warn("WebSocket write failed")
			return
		}
	}
}
