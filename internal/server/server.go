package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tutorgate/tutorgate/internal/circuitbreaker"
	"github.com/tutorgate/tutorgate/internal/config"
	"github.com/tutorgate/tutorgate/internal/gateway"
	"github.com/tutorgate/tutorgate/internal/handler"
	"github.com/tutorgate/tutorgate/internal/middleware"
	"github.com/tutorgate/tutorgate/internal/provider"
	"github.com/tutorgate/tutorgate/internal/ratelimit"
	"github.com/tutorgate/tutorgate/internal/repository"
	"github.com/tutorgate/tutorgate/internal/retry"
	"github.com/tutorgate/tutorgate/internal/service"
	"github.com/tutorgate/tutorgate/internal/storage"
	"github.com/tutorgate/tutorgate/internal/tutor"
)

type Server struct {
	router     *gin.Engine
	config     *config.Config
	redis      *storage.RedisClient
	postgres   *storage.Postgres
	limiter    *ratelimit.Limiter
	breaker    *circuitbreaker.Breaker
	recorder   *middleware.UsageRecorder
	httpServer *http.Server
}

// New wires the whole service. Postgres and redis are optional: without
// postgres usage logging and the usage endpoint are disabled, without
// redis the rate limiter falls back to the in-memory store.
func New(cfg *config.Config, prov provider.Provider, postgres *storage.Postgres, redis *storage.RedisClient) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	store := ratelimit.NewStore(cfg.RateLimit.Store, cfg.RateLimit.MaxIdentities, redis)
	limiter := ratelimit.New(store, ratelimit.Caps{
		PerMinute: cfg.RateLimit.PerMinute,
		PerHour:   cfg.RateLimit.PerHour,
		PerDay:    cfg.RateLimit.PerDay,
	})

	breaker := circuitbreaker.New(circuitbreaker.Config{
		MaxFailures: cfg.Breaker.MaxFailures,
		Timeout:     time.Duration(cfg.Breaker.TimeoutSecs) * time.Second,
	})

	gw := gateway.New(limiter, prov, breaker,
		retry.Config{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: time.Duration(cfg.Retry.InitialDelayMs) * time.Millisecond,
			Multiplier:   cfg.Retry.Multiplier,
		},
		retry.Config{
			MaxAttempts:  cfg.Stream.MaxAttempts,
			InitialDelay: time.Duration(cfg.Stream.InitialDelayMs) * time.Millisecond,
			Multiplier:   cfg.Stream.Multiplier,
		})

	tutorService := tutor.NewService(gw)
	tutorHandler := handler.NewTutorHandler(tutorService)

	authService := service.NewAuthService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AdminUser,
		cfg.Auth.AdminPasswordHash,
		cfg.Auth.ExpiryHours,
	)

	var analyticsService *service.AnalyticsService
	var recorder *middleware.UsageRecorder
	if postgres != nil {
		usageRepo := repository.NewUsageLogRepository(postgres)
		analyticsService = service.NewAnalyticsService(usageRepo)
		recorder = middleware.NewUsageRecorder(usageRepo)
	}

	adminHandler := handler.NewAdminHandler(authService, analyticsService)

	s := &Server{
		router:   router,
		config:   cfg,
		redis:    redis,
		postgres: postgres,
		limiter:  limiter,
		breaker:  breaker,
		recorder: recorder,
	}

	s.setupMiddleware()
	s.setupRoutes(tutorHandler, adminHandler, authService)

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
}

func (s *Server) setupRoutes(tutorHandler *handler.TutorHandler, adminHandler *handler.AdminHandler, authService *service.AuthService) {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/v1")
	v1.Use(middleware.SessionIdentity())
	v1.Use(middleware.RateLimitHeaders(s.limiter))
	if s.recorder != nil {
		v1.Use(s.recorder.Middleware())
	}
	{
		v1.GET("/limits", tutorHandler.Limits)
		v1.POST("/explain", tutorHandler.Explain)
		v1.POST("/topics/stream", tutorHandler.SuggestTopics)
		v1.POST("/questions/stream", tutorHandler.GenerateQuestions)
	}

	admin := s.router.Group("/admin")
	admin.POST("/login", adminHandler.Login)

	protected := admin.Group("")
	protected.Use(middleware.RequireAuth(authService))
	{
		protected.GET("/status", s.adminStatus)
		protected.GET("/usage", adminHandler.GetUsage)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	status := "healthy"
	statusCode := http.StatusOK
	checks := gin.H{}

	if s.redis != nil {
		healthy := s.redis.Ping(c.Request.Context()) == nil
		checks["redis"] = healthy
		if !healthy {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}

	if s.postgres != nil {
		healthy := s.postgres.Ping(c.Request.Context()) == nil
		checks["database"] = healthy
		if !healthy {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "tutorgate",
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

func (s *Server) adminStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"gateway":   "running",
		"breaker":   s.breaker.State().String(),
		"uptime":    time.Since(startTime).Seconds(),
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: streaming responses stay open as long as the
		// provider keeps producing fragments.
	}

	slog.Info("starting tutorgate", "addr", addr, "environment", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.recorder != nil {
		s.recorder.Stop()
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

var startTime = time.Now()
