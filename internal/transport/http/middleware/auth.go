package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/timothysaatum/election-system/internal/core/domain"
	"github.com/timothysaatum/election-system/internal/usecase"
)

// SessionExpiredMessage is the single message returned for every failed voter
// authentication. Voters never learn whether the credential was malformed,
// the session expired, or anomaly detection fired.
const SessionExpiredMessage = "Session expired or invalid. Please login again."

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// extractCredential pulls the credential from the Authorization header, or
// from the `token` query parameter for clients that cannot set headers
// (e.g. EventSource connections).
func extractCredential(c *gin.Context) string {
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

// VoterAuth validates the voting session credential, records request
// activity, and applies the IP anomaly policy. A session flagged during this
// request is terminated and the same request is rejected: the flagging
// request never reaches the protected handler.
func VoterAuth(auth *usecase.AuthService, sessions *usecase.SessionService, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	reject := func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, SessionExpiredMessage))
	}

	return func(c *gin.Context) {
		credential := extractCredential(c)
		if credential == "" {
			reject(c)
			return
		}

		ctx := c.Request.Context()
		session, err := auth.VerifyVotingCredential(ctx, credential)
		if err != nil {
			reject(c)
			return
		}

		clientIP := c.ClientIP()
		if err := sessions.RecordActivity(ctx, session, clientIP); err != nil {
			reject(c)
			return
		}

		if session.Suspicious {
			if err := sessions.Terminate(ctx, session, domain.TerminationSuspicious); err != nil {
				log.Warn("terminate suspicious session failed",
					zap.String("session_id", session.ID),
					zap.Error(err),
				)
			}
			reject(c)
			return
		}

		c.Set(VoterIDKey, session.VoterID)
		c.Set(SessionKey, session)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.VoterID = session.VoterID
		}

		c.Next()
	}
}

// AdminAuth validates a staff credential and attaches the staff user.
func AdminAuth(auth *usecase.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := extractCredential(c)
		if credential == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		user, err := auth.VerifyAdminCredential(credential)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid or expired credential"))
			return
		}

		c.Set(StaffUserKey, user)
		c.Next()
	}
}

// RequirePermission enforces that the authenticated staff user holds the
// supplied permission. Must run after AdminAuth.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetStaffUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		if !user.IsAdmin() && !user.HasPermission(permission) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}

// GetVoterID retrieves the authenticated voter ID placed by VoterAuth.
func GetVoterID(c *gin.Context) string {
	if value, exists := c.Get(VoterIDKey); exists {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

// GetSession retrieves the validated voting session placed by VoterAuth.
func GetSession(c *gin.Context) *domain.VotingSession {
	if value, exists := c.Get(SessionKey); exists {
		if session, ok := value.(*domain.VotingSession); ok {
			return session
		}
	}
	return nil
}

// GetStaffUser retrieves the authenticated staff user placed by AdminAuth.
func GetStaffUser(c *gin.Context) *domain.StaffUser {
	if value, exists := c.Get(StaffUserKey); exists {
		if user, ok := value.(*domain.StaffUser); ok {
			return user
		}
	}
	return nil
}
