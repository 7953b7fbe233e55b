package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/timothysaatum/election-system/internal/core/port"
	"github.com/timothysaatum/election-system/internal/repository"
	"github.com/timothysaatum/election-system/internal/transport/http/middleware"
	"github.com/timothysaatum/election-system/internal/usecase"
)

// AuthHandler serves voter token redemption and staff login endpoints.
type AuthHandler struct {
	auth   *usecase.AuthService
	voters port.VoterRepository
	logger *zap.Logger
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, voters port.VoterRepository, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{auth: auth, voters: voters, logger: log}
}

// VerifyID exchanges a voting code for a session credential.
// POST /api/v1/auth/verify-id
func (h *AuthHandler) VerifyID(c *gin.Context) {
	var req VerifyIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token is required"))
		return
	}

	var userAgent *string
	if ua := strings.TrimSpace(c.Request.UserAgent()); ua != "" {
		userAgent = &ua
	}

	login, err := h.auth.RedeemToken(c.Request.Context(), req.Token, c.ClientIP(), userAgent)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidToken, Status: http.StatusUnauthorized, Message: "Invalid or expired voting token"},
			{Err: usecase.ErrAlreadyVoted, Status: http.StatusForbidden, Message: "You have already voted"},
			{Err: usecase.ErrVoterIneligible, Status: http.StatusForbidden, Message: "You are not eligible to vote"},
		}, http.StatusInternalServerError, "Unable to verify voting token")
		return
	}

	c.JSON(http.StatusOK, VoterLoginResponse{
		AccessToken: login.Credential,
		TokenType:   "bearer",
		ExpiresAt:   login.Session.ExpiresAt,
		Voter:       voterSummary(login.Voter),
		Session:     sessionSummary(login.Session),
	})
}

// Refresh reissues a credential for an active session without extending it.
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	credential := bearerOrQueryToken(c)
	if credential == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, middleware.SessionExpiredMessage))
		return
	}

	refreshed, session, err := h.auth.RefreshCredential(c.Request.Context(), credential)
	if err != nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, middleware.SessionExpiredMessage))
		return
	}

	c.JSON(http.StatusOK, RefreshResponse{
		AccessToken: refreshed,
		TokenType:   "bearer",
		ExpiresAt:   session.ExpiresAt,
	})
}

// VerifySession reports the state of the authenticated session.
// GET /api/v1/auth/verify-session (behind VoterAuth)
func (h *AuthHandler) VerifySession(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, middleware.SessionExpiredMessage))
		return
	}

	voter, err := h.voters.GetByID(c.Request.Context(), session.VoterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, middleware.SessionExpiredMessage))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "Unable to verify session"))
		return
	}

	c.JSON(http.StatusOK, SessionStatusResponse{
		Valid:     true,
		Voter:     voterSummary(*voter),
		Session:   sessionSummary(*session),
		HasVoted:  voter.HasVoted,
		ExpiresAt: session.ExpiresAt,
	})
}

// AdminLogin authenticates an election staff user.
// POST /api/v1/auth/admin/login
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username and password are required"))
		return
	}

	login, err := h.auth.LoginStaff(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "Invalid username or password"},
		}, http.StatusInternalServerError, "Unable to log in")
		return
	}

	c.JSON(http.StatusOK, AdminLoginResponse{
		AccessToken: login.Credential,
		TokenType:   "bearer",
		ExpiresAt:   login.ExpiresAt,
		Username:    login.User.Username,
		Role:        login.User.Role,
		Permissions: login.User.Permissions,
	})
}

// AdminVerify reports the authenticated staff identity.
// GET /api/v1/auth/admin/verify (behind AdminAuth)
func (h *AuthHandler) AdminVerify(c *gin.Context) {
	user := middleware.GetStaffUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	c.JSON(http.StatusOK, AdminVerifyResponse{
		Username:    user.Username,
		Role:        user.Role,
		Permissions: user.Permissions,
	})
}

func bearerOrQueryToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return strings.TrimSpace(c.Query("token"))
}
