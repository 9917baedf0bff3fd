package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dias221467/SuperHuman/internal/coach"
	"github.com/Dias221467/SuperHuman/internal/gamification"
	"github.com/Dias221467/SuperHuman/internal/jobs"
	"github.com/Dias221467/SuperHuman/internal/models"
	"github.com/Dias221467/SuperHuman/internal/repository/memstore"
	"github.com/Dias221467/SuperHuman/internal/services"
	jwtutil "github.com/Dias221467/SuperHuman/pkg/jwt"
	"github.com/golang/mock/gomock"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testApp struct {
	router    *mux.Router
	generator *MockGenerator
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	levels := gamification.DefaultLevels()
	store := memstore.New(levels)

	progress := services.NewProgressService(store, store, levels, time.UTC)
	activities := services.NewActivityService(store, progress)
	leaderboard := services.NewLeaderboardService(store, store, store, levels, time.UTC)
	friends := services.NewFriendService(store, store, store)
	users := services.NewUserService(store, store, store, store)

	gen := NewMockGenerator(gomock.NewController(t))
	coachService := services.NewCoachService(gen, progress, store)

	router := mux.NewRouter()
	RegisterRoutes(router, testSecret, Handlers{
		User:        NewUserHandler(users, testSecret, time.Hour),
		Activity:    NewActivityHandler(activities),
		Progress:    NewProgressHandler(progress),
		Leaderboard: NewLeaderboardHandler(leaderboard),
		Friend:      NewFriendHandler(friends),
		Coach:       NewCoachHandler(coachService, testSecret, []string{"http://localhost:3000"}),
		Admin:       NewAdminHandler(jobs.NewReconciler(store, store, progress)),
	})
	return &testApp{router: router, generator: gen}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

type session struct {
	token string
	user  models.User
}

func (a *testApp) signup(t *testing.T, name string) session {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/users/register", "", map[string]string{
		"name": name, "email": name + "@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/users/login", "", map[string]string{
		"email": name + "@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return session{token: out.Token, user: out.User}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAuthRequired(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(t, http.MethodGet, "/progress", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginFailure(t *testing.T) {
	app := newTestApp(t)
	app.signup(t, "ada")

	rec := app.do(t, http.MethodPost, "/users/login", "", map[string]string{"email": "ada@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterErrors(t *testing.T) {
	app := newTestApp(t)
	app.signup(t, "ada")

	rec := app.do(t, http.MethodPost, "/users/register", "", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodPost, "/users/register", "", map[string]string{
		"name": "Ada", "email": "bad", "password": "secret1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "email", body.Field)

	req := httptest.NewRequest(http.MethodPost, "/users/register", strings.NewReader("{"))
	raw := httptest.NewRecorder()
	app.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestActivityFlow(t *testing.T) {
	app := newTestApp(t)
	ada := app.signup(t, "ada")

	rec := app.do(t, http.MethodPost, "/activities", ada.token, map[string]interface{}{
		"category_id": "physical", "name": "Run", "points": 20, "duration": 30,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	activity := decode[models.Activity](t, rec)

	rec = app.do(t, http.MethodPost, "/activities", ada.token, map[string]interface{}{
		"category_id": "cooking", "name": "Cake", "points": 20,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "category_id", decode[errorResponse](t, rec).Field)

	rec = app.do(t, http.MethodGet, "/progress/physical", ada.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cp := decode[models.CategoryProgress](t, rec)
	assert.Equal(t, 20, cp.TotalPoints)
	assert.Equal(t, 80, cp.PointsToNextLevel)

	rec = app.do(t, http.MethodPut, "/activities/"+activity.ID.Hex(), ada.token, map[string]interface{}{"points": 45})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/activities?category=physical&limit=5", ada.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[models.ActivityPage](t, rec)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, 45, page.Items[0].Points)

	rec = app.do(t, http.MethodGet, "/activities?from=yesterday", ada.token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodGet, "/activities/stats", ada.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 45, decode[models.ActivityStats](t, rec).TotalPoints)

	rec = app.do(t, http.MethodGet, "/progress", ada.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 45, decode[models.ProgressSummary](t, rec).TotalScore)

	rec = app.do(t, http.MethodDelete, "/activities/"+activity.ID.Hex(), ada.token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = app.do(t, http.MethodGet, "/activities/"+activity.ID.Hex(), ada.token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodGet, "/activities/not-an-id", ada.token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaderboardAndFriends(t *testing.T) {
	app := newTestApp(t)
	ada, bob := app.signup(t, "ada"), app.signup(t, "bob")

	for _, s := range []struct {
		sess   session
		points int
	}{{ada, 30}, {bob, 70}} {
		rec := app.do(t, http.MethodPost, "/activities", s.sess.token, map[string]interface{}{
			"category_id": "mental", "name": "Read", "points": s.points,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := app.do(t, http.MethodGet, "/leaderboard?window=week&limit=5", ada.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[[]models.LeaderboardEntry](t, rec)
	require.Len(t, board, 2)
	assert.Equal(t, "bob", board[0].UserName)
	assert.Equal(t, 1, board[0].Rank)

	rec = app.do(t, http.MethodGet, "/leaderboard?window=decade", ada.token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Friendship through a referral code.
	rec = app.do(t, http.MethodGet, "/referral", bob.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	code := decode[map[string]string](t, rec)["code"]
	require.NotEmpty(t, code)

	rec = app.do(t, http.MethodPost, "/referral/apply", ada.token, map[string]string{"code": code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[models.Outcome](t, rec).Success)

	rec = app.do(t, http.MethodPost, "/friends/requests", ada.token, map[string]string{"user_id": bob.user.ID.Hex()})
	require.Equal(t, http.StatusConflict, rec.Code)
	outcome := decode[models.Outcome](t, rec)
	assert.False(t, outcome.Success)
	assert.NotEmpty(t, outcome.Message)

	rec = app.do(t, http.MethodGet, "/friends/requests", bob.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[[]models.FriendRequest](t, rec)
	require.Len(t, pending, 1)

	rec = app.do(t, http.MethodPost, "/friends/requests/"+pending[0].ID.Hex()+"/accept", bob.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/leaderboard/friends", ada.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	friendsBoard := decode[[]models.LeaderboardEntry](t, rec)
	require.Len(t, friendsBoard, 2)
	assert.Equal(t, 100, friendsBoard[0].TotalPoints+friendsBoard[1].TotalPoints)

	rec = app.do(t, http.MethodGet, "/friends/feed", ada.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decode[[]models.SocialActivity](t, rec)
	require.Len(t, feed, 1)
	assert.Equal(t, "bob", feed[0].UserName)

	rec = app.do(t, http.MethodDelete, "/friends/"+bob.user.ID.Hex(), ada.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/friends", ada.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.PublicUser](t, rec))
}

func TestCoachChat(t *testing.T) {
	app := newTestApp(t)
	ada := app.signup(t, "ada")

	app.generator.EXPECT().
		Generate(gomock.Any(), "how do I sleep better?", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, c coach.Context) (*coach.Response, error) {
			assert.Equal(t, "ada", c.UserName)
			return &coach.Response{Content: "Dim the lights.", Suggestions: []string{"More tips"}}, nil
		})

	rec := app.do(t, http.MethodPost, "/coach/chat", ada.token, map[string]string{"message": "how do I sleep better?"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[coach.Response](t, rec)
	assert.Equal(t, "Dim the lights.", resp.Content)

	rec = app.do(t, http.MethodPost, "/coach/chat", ada.token, map[string]string{"message": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	app.generator.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))
	rec = app.do(t, http.MethodPost, "/coach/chat", ada.token, map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode[errorResponse](t, rec).Error)
}

func TestCoachWebSocket(t *testing.T) {
	app := newTestApp(t)
	ada := app.signup(t, "ada")
	srv := httptest.NewServer(app.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/coach/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	app.generator.EXPECT().
		Generate(gomock.Any(), "motivate me", gomock.Any()).
		Return(&coach.Response{Content: "You got this.", Suggestions: []string{"Next step"}}, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+ada.token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WSMessage{Type: "text", Text: "motivate me"}))

	var typing, reply WSMessage
	require.NoError(t, conn.ReadJSON(&typing))
	assert.Equal(t, "typing", typing.Type)
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "reply", reply.Type)
	assert.Equal(t, "You got this.", reply.Content)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: "text", Text: "  "}))
	var errFrame WSMessage
	require.NoError(t, conn.ReadJSON(&typing))
	require.NoError(t, conn.ReadJSON(&errFrame))
	assert.Equal(t, "error", errFrame.Type)
	assert.Contains(t, errFrame.Error, "message")
}

func TestCoachWebSocketRejectsForeignOrigin(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000"})

	req := httptest.NewRequest(http.MethodGet, "/coach/ws", nil)
	assert.True(t, check(req))
	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, check(req))
	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(req))
	assert.True(t, originChecker([]string{"*"})(req))
}

func TestAdminReconcile(t *testing.T) {
	app := newTestApp(t)
	ada := app.signup(t, "ada")

	rec := app.do(t, http.MethodPost, "/admin/reconcile", ada.token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken, err := jwtutil.GenerateToken(ada.user.ID.Hex(), ada.user.Email, "admin", testSecret, time.Hour)
	require.NoError(t, err)
	rec = app.do(t, http.MethodPost, "/admin/reconcile", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, jobs.Report{}, decode[jobs.Report](t, rec))
}

func TestDeleteMe(t *testing.T) {
	app := newTestApp(t)
	ada := app.signup(t, "ada")

	rec := app.do(t, http.MethodGet, "/users/me", ada.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada@example.com", decode[models.User](t, rec).Email)

	rec = app.do(t, http.MethodDelete, "/users/me", ada.token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = app.do(t, http.MethodGet, "/users/me", ada.token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
