package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tabletop-service/internal/middleware"
	"tabletop-service/internal/service"
	catalogSvc "tabletop-service/internal/service/catalog"
	usersvc "tabletop-service/internal/service/user"
	"tabletop-service/internal/ws"
	appErr "tabletop-service/pkg/errors"
	"tabletop-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Game)

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})

	v1 := r.Group("/tabletopService/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", handler.Register)
			authGroup.POST("/login", handler.Login)
		}

		v1.GET("/gametypes", handler.ListGameTypes)
		v1.GET("/leaderboard", handler.Leaderboard)

		userGroup := v1.Group("/user")
		userGroup.Use(middleware.AuthRequired())
		{
			userGroup.GET("/profile", handler.GetProfile)
			userGroup.PUT("/profile", handler.UpdateProfile)
			userGroup.GET("/stats", handler.GetStats)
		}

		gameGroup := v1.Group("/games")
		gameGroup.Use(middleware.AuthRequired())
		{
			gameGroup.GET("", handler.ListGames)
			gameGroup.GET("/:id", handler.GetGame)
			gameGroup.GET("/:id/moves", handler.ListMoves)
			gameGroup.POST("/:id/moves", handler.SubmitMove)
			gameGroup.POST("/:id/finish", handler.FinishGame)
		}

		matchGroup := v1.Group("/match")
		matchGroup.Use(middleware.AuthRequired())
		{
			matchGroup.POST("/join", handler.MatchJoin)
			matchGroup.POST("/cancel", handler.MatchCancel)
			matchGroup.GET("/status", handler.MatchStatus)
		}
	}

	adminGroup := r.Group("/admin")
	{
		adminGroup.POST("/auth/login", handler.AdminLogin)

		protected := adminGroup.Group("/")
		protected.Use(middleware.AdminAuthRequired())
		{
			protected.GET("/users", handler.AdminListUsers)
			protected.GET("/users/:id", handler.AdminGetUser)
			protected.PUT("/users/:id/ban", handler.AdminBanUser)

			protected.GET("/gametypes", handler.AdminListGameTypes)
			protected.POST("/gametypes", handler.AdminCreateGameType)
			protected.PUT("/gametypes/:id", handler.AdminUpdateGameType)
		}
	}

	r.GET("/ws/game/:publicId", wsHandler.HandleGameWS)
}

type registerBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Nickname string `json:"nickname"`
}

type loginBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type updateProfileBody struct {
	Nickname *string `json:"nickname"`
	Avatar   *string `json:"avatar"`
}

type matchJoinBody struct {
	GameType string `json:"gameType" binding:"required"`
}

type moveBody struct {
	Payload json.RawMessage `json:"payload" binding:"required"`
	Board   json.RawMessage `json:"board"`
}

type finishBody struct {
	Outcome string `json:"outcome" binding:"required,oneof=win draw resign"`
}

type adminLoginBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type adminUserBanBody struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

type gameTypeBody struct {
	Name        string `json:"name" binding:"required"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Status      string `json:"status" binding:"omitempty,oneof=enabled disabled"`
}

func (b gameTypeBody) toParams() catalogSvc.MutationParams {
	return catalogSvc.MutationParams{
		Name:        b.Name,
		DisplayName: b.DisplayName,
		Description: b.Description,
		Status:      b.Status,
	}
}

func (h *Handler) Register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Auth.Register(c.Request.Context(), body.Username, body.Password, body.Nickname)
	if err != nil {
		status := http.StatusInternalServerError
		switch err {
		case appErr.ErrInvalidUsername, appErr.ErrWeakPassword:
			status = http.StatusBadRequest
		case appErr.ErrUsernameTaken:
			status = http.StatusConflict
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, result)
}

func (h *Handler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Auth.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		status := http.StatusInternalServerError
		switch err {
		case appErr.ErrInvalidCredentials:
			status = http.StatusUnauthorized
		case appErr.ErrUserBanned:
			status = http.StatusForbidden
		case appErr.ErrTooManyAttempts:
			status = http.StatusTooManyRequests
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, result)
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	profile, err := h.services.User.GetProfile(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, profile)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body updateProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.services.User.UpdateProfile(c.Request.Context(), userID, usersvc.UpdateProfileRequest{
		Nickname: body.Nickname,
		Avatar:   body.Avatar,
	})
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, updated)
}

func (h *Handler) GetStats(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	stats, err := h.services.User.GetStats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"stats": stats})
}

func (h *Handler) Leaderboard(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			response.Error(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := h.services.User.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"leaderboard": entries})
}

func (h *Handler) ListGameTypes(c *gin.Context) {
	types, err := h.services.Catalog.ListEnabled(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"gameTypes": types})
}

func (h *Handler) ListGames(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	page, err := parsePositiveIntQuery(c, "page", 1)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	size, err := parsePositiveIntQuery(c, "size", 20)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Game.ListGames(c.Request.Context(), userID, page, size)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Paginated(c, result.Items, result.Total, page, size)
}

func (h *Handler) GetGame(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	gameID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || gameID <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid game id")
		return
	}

	game, err := h.services.Game.GetGame(c.Request.Context(), gameID)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	if game.PlayerOneID != userID && game.PlayerTwoID != userID {
		response.Error(c, http.StatusForbidden, appErr.ErrGameAccessDenied.Error())
		return
	}
	response.Success(c, game)
}

func (h *Handler) ListMoves(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	gameID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || gameID <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid game id")
		return
	}

	game, err := h.services.Game.GetGame(c.Request.Context(), gameID)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	if game.PlayerOneID != userID && game.PlayerTwoID != userID {
		response.Error(c, http.StatusForbidden, appErr.ErrGameAccessDenied.Error())
		return
	}

	moves, err := h.services.Game.ListMoves(c.Request.Context(), gameID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"moves": moves})
}

func (h *Handler) SubmitMove(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	gameID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || gameID <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid game id")
		return
	}

	var body moveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	move, err := h.services.Game.SubmitMove(c.Request.Context(), gameID, userID, body.Payload, body.Board)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	response.Success(c, move)
}

func (h *Handler) FinishGame(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	gameID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || gameID <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid game id")
		return
	}

	var body finishBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	game, err := h.services.Game.FinishGame(c.Request.Context(), gameID, userID, body.Outcome)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	response.Success(c, game)
}

func (h *Handler) MatchJoin(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body matchJoinBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Match.Join(c.Request.Context(), userID, body.GameType)
	if err != nil {
		h.handleMatchError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) MatchCancel(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.services.Match.Cancel(c.Request.Context(), userID); err != nil {
		h.handleMatchError(c, err)
		return
	}
	response.SuccessWithMsg(c, gin.H{"status": "cancelled"}, "")
}

func (h *Handler) MatchStatus(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	gameType := strings.TrimSpace(c.Query("gameType"))
	status, err := h.services.Match.Status(c.Request.Context(), userID, gameType)
	if err != nil {
		h.handleMatchError(c, err)
		return
	}
	response.Success(c, status)
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var body adminLoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.services.Admin.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		status := http.StatusInternalServerError
		switch err {
		case appErr.ErrAdminNotFound, appErr.ErrInvalidAdminPassword:
			status = http.StatusUnauthorized
		case appErr.ErrAdminDisabled:
			status = http.StatusForbidden
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, resp)
}

func (h *Handler) AdminListUsers(c *gin.Context) {
	page, err := parsePositiveIntQuery(c, "page", 1)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	size, err := parsePositiveIntQuery(c, "size", 20)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	status := strings.ToLower(strings.TrimSpace(c.Query("status")))
	if status != "" && status != "normal" && status != "banned" {
		response.Error(c, http.StatusBadRequest, "invalid status filter")
		return
	}

	result, err := h.services.User.AdminListUsers(c.Request.Context(), usersvc.AdminListUsersFilter{
		Page:            page,
		Size:            size,
		Status:          status,
		UsernameKeyword: strings.TrimSpace(c.Query("username")),
	})
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Paginated(c, result.Items, result.Total, page, size)
}

func (h *Handler) AdminGetUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}

	profile, err := h.services.User.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, appErr.ErrUserNotFound) {
			response.Error(c, http.StatusNotFound, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Success(c, gin.H{"user": profile})
}

func (h *Handler) AdminBanUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}

	var body adminUserBanBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.services.User.AdminUpdateUserStatus(c.Request.Context(), userID, body.Status, body.Reason)
	if err != nil {
		statusCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, appErr.ErrUserNotFound):
			statusCode = http.StatusNotFound
		case errors.Is(err, appErr.ErrInvalidUserStatus):
			statusCode = http.StatusBadRequest
		}
		response.Error(c, statusCode, err.Error())
		return
	}

	response.Success(c, gin.H{"user": updated})
}

func (h *Handler) AdminListGameTypes(c *gin.Context) {
	page, err := parsePositiveIntQuery(c, "page", 1)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	size, err := parsePositiveIntQuery(c, "size", 20)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Catalog.AdminList(c.Request.Context(), page, size)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Paginated(c, result.Items, result.Total, page, size)
}

func (h *Handler) AdminCreateGameType(c *gin.Context) {
	var body gameTypeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	gameType, err := h.services.Catalog.Create(c.Request.Context(), body.toParams())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, appErr.ErrGameTypeExists) {
			status = http.StatusConflict
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, gin.H{"id": gameType.ID})
}

func (h *Handler) AdminUpdateGameType(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid game type id")
		return
	}

	var body gameTypeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	gameType, err := h.services.Catalog.Update(c.Request.Context(), id, body.toParams())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, appErr.ErrGameTypeNotFound) {
			status = http.StatusNotFound
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, gameType)
}

func (h *Handler) handleMatchError(c *gin.Context, err error) {
	switch err {
	case appErr.ErrPlayerNotFound:
		response.Error(c, http.StatusNotFound, err.Error())
	case appErr.ErrInvalidGameType:
		response.Error(c, http.StatusBadRequest, err.Error())
	case appErr.ErrNotInQueue:
		response.Error(c, http.StatusNotFound, err.Error())
	case appErr.ErrUserBanned:
		response.Error(c, http.StatusForbidden, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) handleGameError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appErr.ErrGameNotFound):
		response.Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, appErr.ErrGameAccessDenied):
		response.Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, appErr.ErrGameFinished), errors.Is(err, appErr.ErrNotYourTurn):
		response.Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, appErr.ErrInvalidOutcome):
		response.Error(c, http.StatusBadRequest, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, err.Error())
	}
}

func parsePositiveIntQuery(c *gin.Context, key string, defaultVal int) (int, error) {
	val := c.Query(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return parsed, nil
}

func getUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
