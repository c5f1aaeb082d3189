package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/application/command"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/application/query"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/application/saga"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/content"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/user"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/infrastructure/persistence/memory"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/logger"
)

const testSecret = "test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Meta    *ResponseMeta   `json:"meta"`
}

type testEnv struct {
	server   *Server
	contents *memory.ContentRepository
	ledger   *memory.LedgerRepository
}

func newTestEnv(t *testing.T, checker HealthChecker) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := memory.NewDB()
	users := memory.NewUserRepository(db)
	for _, id := range []string{"alice", "bob"} {
		u, err := user.New(id, id, "User "+id, time.Now())
		require.NoError(t, err)
		require.NoError(t, users.Create(context.Background(), u))
	}

	ledgerRepo := memory.NewLedgerRepository(db)
	achievements := memory.NewAchievementRepository(db)
	configs := memory.NewConfigRepository(db)
	contents := memory.NewContentRepository(db)
	friends := memory.NewSocialRepository(db)

	flow := saga.NewAchievementFlow(ledgerRepo, achievements, nil, nil, nil, nil)
	ledger := command.NewPointsLedger(ledgerRepo, flow, nil, nil, command.PointsLedgerConfig{})
	board := query.NewGetLeaderboardHandler(query.LeaderboardDeps{
		Users:        users,
		Statistics:   ledgerRepo,
		Windows:      ledgerRepo,
		Achievements: achievements,
		Friends:      friends,
		Snapshots:    memory.NewSnapshotRepository(db),
	}, nil, query.DefaultLeaderboardConfig())

	cfg := DefaultConfig()
	cfg.JWTSecret = testSecret
	cfg.RateLimitPerMinute = 0

	s := NewServer(cfg, Dependencies{
		RegisterUser:         command.NewRegisterUserHandler(users, nil),
		RecordActivity:       command.NewRecordActivityHandler(ledger, configs),
		AwardPoints:          command.NewAwardPointsHandler(ledger, command.AwardPointsConfig{MaxPoints: 500}),
		UpdatePointsConfig:   command.NewUpdatePointsConfigHandler(configs, nil, nil),
		MarkAchievementsSeen: command.NewMarkAchievementsSeenHandler(achievements),
		Friendships:          command.NewFriendshipHandler(users, friends),
		ContentUsage:         saga.NewCreatorRewardFlow(ledger, contents, nil, nil, nil, saga.DefaultCreatorRewardConfig()),
		GetLeaderboard:       board,
		GetUserRanking:       query.NewGetUserRankingHandler(board),
		ListAchievements:     query.NewListAchievementsHandler(achievements, ledgerRepo),
		PointsConfig:         configs,
		Logger:               logger.Nop(),
		HealthChecker:        checker,
	})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	return &testEnv{server: s, contents: contents, ledger: ledgerRepo}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.server.tokens.Issue(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	tok := ""
	if userID != "" {
		tok = e.token(t, userID)
	}
	return e.doToken(t, method, path, tok, body)
}

func (e *testEnv) doToken(t *testing.T, method, path, tok string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & AUTH
// ══════════════════════════════════════════════════════════════════════════════

func TestHealth_NoAuthAndDependencyStatus(t *testing.T) {
	checker := NewCompositeHealthChecker("test")
	checker.AddCheck("postgres", func(ctx context.Context) error { return nil })
	e := newTestEnv(t, checker)

	w, env := e.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	checker.AddCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") })
	w, env = e.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.False(t, status.Healthy)
	assert.Equal(t, "Some checks failed: redis", status.Message)
	assert.True(t, status.Checks["postgres"].Healthy)
}

func TestAuth_RejectsMissingAndInvalidTokens(t *testing.T) {
	e := newTestEnv(t, nil)

	w, env := e.do(t, http.MethodGet, "/api/v1/achievements", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "not_authenticated", env.Code)

	other := NewTokenVerifier("another-secret", "")
	forged, err := other.Issue("alice", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/achievements", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/achievements", nil)
	req.Header.Set("Authorization", "Token abc")
	rec = httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenVerifier(t *testing.T) {
	v := NewTokenVerifier(testSecret, "progress-tracker")

	tok, err := v.Issue("alice", time.Hour)
	require.NoError(t, err)
	claims, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.False(t, claims.HasScope(ScopeAwardPoints))

	scoped, err := v.Issue("svc", time.Hour, "profile:read", ScopeAwardPoints)
	require.NoError(t, err)
	claims, err = v.Verify(scoped)
	require.NoError(t, err)
	assert.True(t, claims.HasScope(ScopeAwardPoints))
	assert.False(t, claims.HasScope("points"))

	expired, err := v.Issue("alice", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	wrongIssuer, err := NewTokenVerifier(testSecret, "someone-else").Issue("alice", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenVerifier("", "").Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

func TestRecordActivity(t *testing.T) {
	e := newTestEnv(t, nil)

	w, env := e.do(t, http.MethodPost, "/api/v1/activities", "alice", map[string]any{
		"category":     "fitness",
		"activity_name": "Run",
		"points":       100,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res command.RecordActivityResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 100, res.TotalPoints)
	assert.Equal(t, 1, res.CurrentStreak)
	assert.Equal(t, "alice", res.Entry.UserID)
}

func TestRecordActivity_UsesPointsConfig(t *testing.T) {
	e := newTestEnv(t, nil)

	w, _ := e.do(t, http.MethodPut, "/api/v1/points-config", "alice", map[string]any{
		"category": "fitness", "base": 10, "multiplier": 1.5,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := e.do(t, http.MethodPost, "/api/v1/activities", "alice", map[string]any{
		"category": "fitness", "activity_name": "Sprints", "intensity": "intense",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res command.RecordActivityResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 23, res.TotalPoints)
}

func TestRecordActivity_ValidationErrors(t *testing.T) {
	e := newTestEnv(t, nil)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"unknown category", map[string]any{"category": "nope", "activity_name": "Run"}},
		{"negative points", map[string]any{"category": "fitness", "activity_name": "Run", "points": -1}},
		{"missing name", map[string]any{"category": "fitness"}},
		{"bad date", map[string]any{"category": "fitness", "activity_name": "Run", "date": "03/10/2024"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := e.do(t, http.MethodPost, "/api/v1/activities", "alice", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "validation_error", env.Code)
		})
	}

	sum, err := e.ledger.SumPoints(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestRecordActivity_MalformedBody(t *testing.T) {
	e := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/activities", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+e.token(t, "alice"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAwardPoints_IdempotencyConflict(t *testing.T) {
	e := newTestEnv(t, nil)
	body := map[string]any{"points": 10, "reason": "Referral", "idempotency_key": "ref-1"}

	w, env := e.do(t, http.MethodPost, "/api/v1/points/award", "alice", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res command.AwardPointsResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Success)
	assert.Equal(t, 10, res.NewTotal)

	w, env = e.do(t, http.MethodPost, "/api/v1/points/award", "alice", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_exists", env.Code)
}

func TestAwardPoints_OtherUserNeedsScope(t *testing.T) {
	e := newTestEnv(t, nil)
	body := map[string]any{"user_id": "bob", "points": 40, "reason": "Prize"}

	w, env := e.do(t, http.MethodPost, "/api/v1/points/award", "alice", body)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Equal(t, "forbidden", env.Code)

	sum, err := e.ledger.SumPoints(context.Background(), "bob")
	require.NoError(t, err)
	assert.Zero(t, sum)

	tok, err := e.server.tokens.Issue("alice", time.Hour, ScopeAwardPoints)
	require.NoError(t, err)
	w, env = e.doToken(t, http.MethodPost, "/api/v1/points/award", tok, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &raw))
	assert.JSONEq(t, "40", string(raw["new_total"]))
	assert.NotContains(t, raw, "newTotal")
}

func TestAwardPoints_RejectsOversizedAward(t *testing.T) {
	e := newTestEnv(t, nil)

	w, env := e.do(t, http.MethodPost, "/api/v1/points/award", "alice",
		map[string]any{"points": 1000000000, "reason": "Bonus"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", env.Code)

	sum, err := e.ledger.SumPoints(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestTrackUsage_RewardsConsumerAndCreator(t *testing.T) {
	e := newTestEnv(t, nil)

	c, ok := content.New(content.TypeRoutine, content.Item{ID: "r1", Creator: "bob", Cat: points.CategoryFitness, Title: "Leg day"})
	require.True(t, ok)
	require.NoError(t, e.contents.Save(context.Background(), c))

	w, env := e.do(t, http.MethodPost, "/api/v1/content/usage", "alice", map[string]any{
		"content_type": "routine", "content_id": "r1", "category": "fitness",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res saga.TrackUsageResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Success)
	assert.True(t, res.CreatorRewarded)
	assert.Equal(t, 1, res.UsageCount)

	alice, err := e.ledger.SumPoints(context.Background(), "alice")
	require.NoError(t, err)
	bob, err := e.ledger.SumPoints(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 5, alice)
	assert.Equal(t, 15, bob)
}

func TestTrackUsage_InvalidContentType(t *testing.T) {
	e := newTestEnv(t, nil)

	w, env := e.do(t, http.MethodPost, "/api/v1/content/usage", "alice", map[string]any{
		"content_type": "podcast", "content_id": "p1", "category": "fitness",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", env.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// READ ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

func TestLeaderboard(t *testing.T) {
	e := newTestEnv(t, nil)

	for user, pts := range map[string]int{"alice": 40, "bob": 90} {
		w, _ := e.do(t, http.MethodPost, "/api/v1/activities", user, map[string]any{
			"category": "work", "activity_name": "Deep work", "points": pts,
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, env := e.do(t, http.MethodGet, "/api/v1/leaderboard?scope=global&period=all_time&page=1&page_size=1", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res query.GetLeaderboardResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "bob", res.Rows[0].UserID)
	assert.Equal(t, shared.Rank(1), res.Rows[0].Rank)
	assert.Equal(t, 2, env.Meta.TotalCount)
	assert.True(t, env.Meta.HasMore)

	w, _ = e.do(t, http.MethodGet, "/api/v1/leaderboard?scope=everyone", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodGet, "/api/v1/leaderboard?page_size=abc", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserRanking(t *testing.T) {
	e := newTestEnv(t, nil)

	w, _ := e.do(t, http.MethodPost, "/api/v1/points/award", "bob", map[string]any{"points": 50, "reason": "Bonus"})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := e.do(t, http.MethodGet, "/api/v1/users/bob/ranking?period=weekly", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stats query.UserRankingStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.Rank)
	assert.Equal(t, 50, stats.TotalPoints)

	w, env = e.do(t, http.MethodGet, "/api/v1/users/nobody/ranking", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", env.Code)
}

func TestPointsConfig(t *testing.T) {
	e := newTestEnv(t, nil)

	w, env := e.do(t, http.MethodGet, "/api/v1/points-config", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var cfg points.ActivityPointsConfig
	require.NoError(t, json.Unmarshal(env.Data, &cfg))
	assert.Equal(t, points.DefaultCategoryConfigs[points.CategoryFitness], cfg.Categories[points.CategoryFitness])

	w, _ = e.do(t, http.MethodPut, "/api/v1/points-config", "alice", map[string]any{
		"category": "fitness", "base": 600, "multiplier": 1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAchievements(t *testing.T) {
	e := newTestEnv(t, nil)

	w, _ := e.do(t, http.MethodPost, "/api/v1/activities", "alice", map[string]any{
		"category": "mindset", "activity_name": "Meditate", "points": 100,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := e.do(t, http.MethodGet, "/api/v1/achievements", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res query.AchievementsResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.NotEmpty(t, res.Unlocked)
	assert.Equal(t, len(res.Unlocked), res.NewCount)

	w, _ = e.do(t, http.MethodPost, "/api/v1/achievements/seen", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, env = e.do(t, http.MethodGet, "/api/v1/achievements", "alice", nil)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Zero(t, res.NewCount)
}

func TestUsersAndFriends(t *testing.T) {
	e := newTestEnv(t, nil)

	w, _ := e.do(t, http.MethodPost, "/api/v1/users", "carol", map[string]any{"username": "carol", "display_name": "Carol"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = e.do(t, http.MethodPost, "/api/v1/users", "carol", map[string]any{"username": "carol2", "display_name": "Carol"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/v1/friends/bob", "carol", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = e.do(t, http.MethodPost, "/api/v1/friends/bob", "carol", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/v1/friends/carol/accept", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := e.do(t, http.MethodGet, "/api/v1/leaderboard?scope=friends", "carol", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res query.GetLeaderboardResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Len(t, res.Rows, 2)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{shared.ErrInvalidPeriod, http.StatusBadRequest, "validation_error"},
		{shared.NotAuthenticated("ledger", "RecordEvent"), http.StatusUnauthorized, "not_authenticated"},
		{shared.NewDomainError("ledger", "AwardPoints", shared.ErrForbidden, "no"), http.StatusForbidden, "forbidden"},
		{shared.ErrContentNotFound, http.StatusNotFound, "not_found"},
		{shared.ErrDuplicateEvent, http.StatusConflict, "already_exists"},
		{shared.ErrLostUpdate, http.StatusConflict, "conflict"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		status, code := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.Stop()

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"))
}
