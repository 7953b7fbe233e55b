package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timothysaatum/election-system/internal/core/port"
	"github.com/timothysaatum/election-system/internal/infra/config"
	redisinfra "github.com/timothysaatum/election-system/internal/infra/redis"
	"github.com/timothysaatum/election-system/internal/transport/http/handlers"
	"github.com/timothysaatum/election-system/internal/transport/http/middleware"
	"github.com/timothysaatum/election-system/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth     *usecase.AuthService
	Tokens   *usecase.TokenService
	Sessions *usecase.SessionService
	Votes    *usecase.VoteService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Voters      port.VoterRepository
	Database    *pgxpool.Pool
	Cache       *redisinfra.Client
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	voterAuth := middleware.VoterAuth(deps.Services.Auth, deps.Services.Sessions, deps.Logger)
	adminAuth := middleware.AdminAuth(deps.Services.Auth)

	healthHandler := handlers.NewHealthHandler(deps.Database, deps.Cache)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Voters, deps.Logger)
		votingHandler := handlers.NewVotingHandler(deps.Services.Votes, deps.Logger)
		adminHandler := handlers.NewAdminHandler(deps.Services.Tokens, deps.Services.Votes, deps.Logger)

		authGroup := api.Group("/auth")
		authLimit := buildLimitMiddlewares(deps, "auth_attempts_ip",
			deps.Config.RateLimit.AuthMaxAttempts, deps.Config.RateLimit.AuthWindow)
		authGroup.POST("/verify-id", append(authLimit, authHandler.VerifyID)...)
		authGroup.POST("/login", append(authLimit, authHandler.VerifyID)...)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.GET("/session", voterAuth, authHandler.VerifySession)
		authGroup.POST("/admin/login", append(authLimit, authHandler.AdminLogin)...)
		authGroup.GET("/admin/verify", adminAuth, authHandler.AdminVerify)

		votingGroup := api.Group("/voting")
		votingGroup.Use(voterAuth)
		voteLimit := buildLimitMiddlewares(deps, "vote_attempts_ip",
			deps.Config.RateLimit.VoteMaxAttempts, deps.Config.RateLimit.VoteWindow)
		votingGroup.GET("/ballot", votingHandler.Ballot)
		votingGroup.POST("/vote", append(voteLimit, votingHandler.CastVote)...)
		votingGroup.GET("/my-votes", votingHandler.MyVotes)
		votingGroup.GET("/status", votingHandler.Status)

		adminGroup := api.Group("/admin")
		adminGroup.Use(adminAuth)
		adminGroup.POST("/generate-tokens/all",
			middleware.RequirePermission("generate_tokens"), adminHandler.GenerateAll)
		adminGroup.POST("/generate-tokens/bulk",
			middleware.RequirePermission("generate_tokens"), adminHandler.GenerateBulk)
		adminGroup.POST("/generate-tokens/portfolio/:portfolio_id",
			middleware.RequirePermission("generate_tokens"), adminHandler.GenerateForPortfolio)
		adminGroup.POST("/regenerate-token/:voter_id",
			middleware.RequirePermission("generate_tokens"), adminHandler.RegenerateToken)
		adminGroup.GET("/voters",
			middleware.RequirePermission("view_voters"), adminHandler.Voters)
		adminGroup.GET("/statistics",
			middleware.RequirePermission("view_statistics"), adminHandler.Statistics)
		adminGroup.GET("/results",
			middleware.RequirePermission("view_results"), adminHandler.Results)
		adminGroup.GET("/recent-activity",
			middleware.RequirePermission("view_results"), adminHandler.RecentActivity)
	}

	return r
}

func buildLimitMiddlewares(deps Dependencies, name string, limit int, window time.Duration) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
