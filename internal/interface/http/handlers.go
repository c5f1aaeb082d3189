package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/application/command"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/application/query"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/application/saga"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
	"github.com/Cosmin-Turcin/progress-tracker-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(c.Request.Context())
		if !status.Healthy {
			writeJSON(c, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(c, http.StatusOK, status)
		return
	}

	writeJSON(c, http.StatusOK, gin.H{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// USERS
// ══════════════════════════════════════════════════════════════════════════════

type registerUserRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// handleRegisterUser handles POST /api/v1/users. The token subject becomes
// the user id.
func (s *Server) handleRegisterUser(c *gin.Context) {
	var req registerUserRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, _ := actorID(c)

	u, err := s.deps.RegisterUser.Handle(c.Request.Context(), command.RegisterUserCommand{
		UserID:      actor,
		Username:    req.Username,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		s.writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, u)
}

// handleGetUserRanking handles GET /api/v1/users/:id/ranking
func (s *Server) handleGetUserRanking(c *gin.Context) {
	stats, err := s.deps.GetUserRanking.Handle(c.Request.Context(), query.GetUserRankingQuery{
		UserID: c.Param("id"),
		Period: c.DefaultQuery("period", "all_time"),
	})
	if err != nil {
		s.writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, stats)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

type recordActivityRequest struct {
	Category        string `json:"category"`
	ActivityName    string `json:"activity_name"`
	Points          *int   `json:"points"`
	Intensity       string `json:"intensity"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes *int   `json:"duration_minutes"`
	Notes           string `json:"notes"`
}

// handleRecordActivity handles POST /api/v1/activities
func (s *Server) handleRecordActivity(c *gin.Context) {
	var req recordActivityRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, _ := actorID(c)

	res, err := s.deps.RecordActivity.Handle(c.Request.Context(), command.RecordActivityCommand{
		UserID:          actor,
		Category:        req.Category,
		ActivityName:    req.ActivityName,
		Points:          req.Points,
		Intensity:       req.Intensity,
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		CorrelationID:   getRequestID(c),
	})
	if err != nil {
		s.writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, res)
}

type awardPointsRequest struct {
	UserID         string         `json:"user_id"`
	Points         int            `json:"points"`
	Reason         string         `json:"reason"`
	Category       string         `json:"category"`
	Metadata       map[string]any `json:"metadata"`
	IdempotencyKey string         `json:"idempotency_key"`
}

// handleAwardPoints handles POST /api/v1/points/award. The Idempotency-Key
// header is used when the body carries no key. Crediting another user
// needs the points:award scope.
func (s *Server) handleAwardPoints(c *gin.Context) {
	var req awardPointsRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, _ := actorID(c)

	key := req.IdempotencyKey
	if key == "" {
		key = c.GetHeader("Idempotency-Key")
	}

	res, err := s.deps.AwardPoints.Handle(c.Request.Context(), command.AwardPointsCommand{
		ActorID:        actor,
		UserID:         req.UserID,
		Privileged:     hasScope(c, ScopeAwardPoints),
		Points:         req.Points,
		Reason:         req.Reason,
		Category:       req.Category,
		Metadata:       req.Metadata,
		IdempotencyKey: key,
	})
	if err != nil {
		s.writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

type trackUsageRequest struct {
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
	CreatorID   string `json:"creator_id"`
	Category    string `json:"category"`
}

// handleTrackUsage handles POST /api/v1/content/usage. A creator-side
// failure still answers 200; only the consumer reward decides the status.
func (s *Server) handleTrackUsage(c *gin.Context) {
	var req trackUsageRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, _ := actorID(c)

	res, err := s.deps.ContentUsage.TrackUsage(c.Request.Context(), saga.TrackUsageInput{
		ActorID:       actor,
		ContentType:   req.ContentType,
		ContentID:     req.ContentID,
		CreatorID:     req.CreatorID,
		Category:      req.Category,
		CorrelationID: getRequestID(c),
	})
	if err != nil {
		s.writeDomainError(c, err)
		return
	}
	if res.PartialFailure != nil {
		logger.FromContext(c.Request.Context()).Warn("content usage partially rewarded",
			logger.UserID(actor), logger.ContentID(req.ContentID), logger.Err(res.PartialFailure))
	}
	writeJSON(c, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// POINTS CONFIG
// ══════════════════════════════════════════════════════════════════════════════

// handleGetPointsConfig handles GET /api/v1/points-config
func (s *Server) handleGetPointsConfig(c *gin.Context) {
	actor, _ := actorID(c)
	cfg, err := s.deps.PointsConfig.GetConfig(c.Request.Context(), actor)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cfg)
}

type updatePointsConfigRequest struct {
	Category   string  `json:"category"`
	Base       int     `json:"base"`
	Multiplier float64 `json:"multiplier"`
}

// handleUpdatePointsConfig handles PUT /api/v1/points-config
func (s *Server) handleUpdatePointsConfig(c *gin.Context) {
	var req updatePointsConfigRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, _ := actorID(c)

	cfg, err := s.deps.UpdatePointsConfig.Handle(c.Request.Context(), command.UpdatePointsConfigCommand{
		UserID:     actor,
		Category:   req.Category,
		Base:       req.Base,
		Multiplier: req.Multiplier,
	})
	if err != nil {
		s.writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cfg)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard
func (s *Server) handleGetLeaderboard(c *gin.Context) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	pageSize, ok := queryInt(c, "page_size", 0)
	if !ok {
		return
	}
	actor, _ := actorID(c)

	res, err := s.deps.GetLeaderboard.Handle(c.Request.Context(), query.GetLeaderboardQuery{
		Scope:       c.DefaultQuery("scope", "global"),
		Period:      c.DefaultQuery("period", "all_time"),
		RequesterID: actor,
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	meta := &ResponseMeta{TotalCount: res.TotalCount}
	if pageSize > 0 {
		meta.Page = page
		meta.PageSize = pageSize
		meta.HasMore = page*pageSize < res.TotalCount
	}
	writeJSONWithMeta(c, http.StatusOK, res, meta)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// handleListAchievements handles GET /api/v1/achievements
func (s *Server) handleListAchievements(c *gin.Context) {
	actor, _ := actorID(c)
	res, err := s.deps.ListAchievements.Handle(c.Request.Context(), actor)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// handleMarkAchievementsSeen handles POST /api/v1/achievements/seen
func (s *Server) handleMarkAchievementsSeen(c *gin.Context) {
	actor, _ := actorID(c)
	n, err := s.deps.MarkAchievementsSeen.Handle(c.Request.Context(), actor)
	if err != nil {
		s.writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"marked": n})
}

// ══════════════════════════════════════════════════════════════════════════════
// FRIENDS
// ══════════════════════════════════════════════════════════════════════════════

// handleRequestFriend handles POST /api/v1/friends/:id
func (s *Server) handleRequestFriend(c *gin.Context) {
	actor, _ := actorID(c)
	f, err := s.deps.Friendships.Request(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		s.writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, f)
}

// handleAcceptFriend handles POST /api/v1/friends/:id/accept
func (s *Server) handleAcceptFriend(c *gin.Context) {
	actor, _ := actorID(c)
	if err := s.deps.Friendships.Accept(c.Request.Context(), actor, c.Param("id")); err != nil {
		s.writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"accepted": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// statusFor maps a domain error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case shared.IsNotAuthenticated(err):
		return http.StatusUnauthorized, "not_authenticated"
	case shared.IsForbidden(err):
		return http.StatusForbidden, "forbidden"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeDomainError writes err with its mapped status. Internal errors are
// logged and their message is not exposed.
func (s *Server) writeDomainError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed",
			logger.String("path", c.FullPath()), logger.Err(err))
		msg = "internal error"
	}
	writeJSONError(c, status, code, msg)
}

// bindJSON decodes the body and answers 400 on malformed input.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeJSONError(c, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return false
	}
	return true
}

// queryInt reads an integer query parameter, answering 400 when it is not
// a number.
func queryInt(c *gin.Context, key string, defaultValue int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeJSONError(c, http.StatusBadRequest, "validation_error", key+" must be an integer")
		return 0, false
	}
	return v, true
}
