package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/timothysaatum/election-system/internal/core/port"
	"github.com/timothysaatum/election-system/internal/infra/config"
	"github.com/timothysaatum/election-system/internal/infra/database"
	kafkainfra "github.com/timothysaatum/election-system/internal/infra/kafka"
	"github.com/timothysaatum/election-system/internal/infra/logger"
	"github.com/timothysaatum/election-system/internal/infra/notify"
	redisinfra "github.com/timothysaatum/election-system/internal/infra/redis"
	"github.com/timothysaatum/election-system/internal/infra/security"
	postgresrepo "github.com/timothysaatum/election-system/internal/repository/postgres"
	redisrepo "github.com/timothysaatum/election-system/internal/repository/redis"
	"github.com/timothysaatum/election-system/internal/transport/http/middleware"
	"github.com/timothysaatum/election-system/internal/transport/http/routes"
	"github.com/timothysaatum/election-system/internal/usecase"
)

// Application holds the wired service graph and its long-lived resources.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	kafka  *kafkainfra.Producer
}

// New wires configuration into a runnable application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	signer, err := security.NewCredentialSigner(cfg.Auth.SecretKey, cfg.App.Name)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init credential signer: %w", err)
	}

	staff, err := security.NewStaffDirectory(
		cfg.Staff.AdminUsers,
		cfg.Staff.ECOfficialUsers,
		cfg.Staff.PollingAgentUsers,
	)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init staff directory: %w", err)
	}
	if staff.Count() == 0 {
		log.Warn("no staff users configured, admin endpoints will reject all logins")
	}

	var (
		eventPublisher port.EventPublisher
		kafkaProducer  *kafkainfra.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	voterRepo := postgresrepo.NewVoterRepository(pool)
	tokenRepo := postgresrepo.NewTokenRepository(pool)
	sessionRepo := postgresrepo.NewSessionRepository(pool)
	ballotRepo := postgresrepo.NewBallotRepository(pool)
	voteRepo := postgresrepo.NewVoteRepository(pool)
	txManager := postgresrepo.NewTxManager(pool)

	var notifier port.Notifier
	if cfg.Notification.Enabled {
		notifier = notify.NewLoggingNotifier(log)
	}

	tokenService := usecase.NewTokenService(voterRepo, tokenRepo, ballotRepo, eventPublisher, notifier, usecase.TokenConfig{
		Length: cfg.Token.Length,
		TTL:    cfg.Token.TTL,
	}, log)

	sessionService := usecase.NewSessionService(sessionRepo, eventPublisher, usecase.SessionConfig{
		TTL:               cfg.Session.TTL,
		IPPolicy:          cfg.Session.IPPolicy,
		IPChangeTolerance: cfg.Session.IPChangeTolerance,
	}, log)

	authService := usecase.NewAuthService(tokenService, sessionService, signer, staff, txManager, cfg.Auth.AdminTokenTTL, log)
	voteService := usecase.NewVoteService(voterRepo, ballotRepo, voteRepo, sessionService, eventPublisher, txManager, log)

	rateLimitTTL := cfg.RateLimit.AuthWindow
	if cfg.RateLimit.VoteWindow > rateLimitTTL {
		rateLimitTTL = cfg.RateLimit.VoteWindow
	}
	if rateLimitTTL <= 0 {
		rateLimitTTL = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "election:rate-limit",
		TTL:       rateLimitTTL * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	var metrics *middleware.HTTPMetrics
	if cfg.Telemetry.MetricsEnabled {
		metrics, err = middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{
			Registerer: prometheus.DefaultRegisterer,
			Namespace:  cfg.Telemetry.Namespace,
		})
		if err != nil {
			pool.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init http metrics: %w", err)
		}
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
		Voters:      voterRepo,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:     authService,
			Tokens:   tokenService,
			Sessions: sessionService,
			Votes:    voteService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		kafka:  kafkaProducer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.kafka != nil {
			_ = a.kafka.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting election API",
		zap.String("env", a.cfg.App.Env),
		zap.String("election", a.cfg.App.ElectionName),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
