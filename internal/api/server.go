package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhima/followup-engine/internal/api/handlers"
	"github.com/dhima/followup-engine/internal/api/middleware"
	"github.com/dhima/followup-engine/internal/app"
	"github.com/dhima/followup-engine/internal/logging"
	"github.com/dhima/followup-engine/pkg/config"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Server orchestrates HTTP routing and dependencies for the API service.
type Server struct {
	config config.App
	logger logging.Logger
	router *gin.Engine
	app    *app.App
}

// NewServer wires the API dependencies together.
func NewServer() (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLoggerWithEncoding(cfg.Environment, cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	components, err := app.Build(ctx, cfg, logger.Zap())
	if err != nil {
		return nil, err
	}

	return &Server{
		config: cfg,
		logger: logger,
		app:    components,
		router: NewRouter(cfg.CORSOrigins, logger, components),
	}, nil
}

// NewRouter configures the Gin router with middleware and routes.
func NewRouter(origins []string, logger logging.Logger, components *app.App) *gin.Engine {
	router := gin.New()
	zapLogger := logger.Zap()

	// Recovery first so it catches panics from the rest of the chain.
	router.Use(ginzap.RecoveryWithZap(zapLogger, true))
	router.Use(middleware.RequestID())
	router.Use(ginzap.Ginzap(zapLogger, time.RFC3339, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", middleware.OrgIDHeader},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: !allowsAny(origins),
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", handlers.NewHealthHandler(logger, components.Store).Health)
	router.GET("/metrics", handlers.NewMetricsHandler(logger, components.Engine, components.Poller).Metrics)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1", middleware.RequireOrg())
	{
		followUpHandler := handlers.NewFollowUpHandler(logger, components.Engine, components.Sequences)
		activityHandler := handlers.NewActivityHandler(components.Events, logger)
		followUps := v1.Group("/followups")
		{
			followUps.GET("/due", followUpHandler.ListDue)
			followUps.POST("/batch", followUpHandler.ExecuteBatch)
			followUps.GET("/:id", followUpHandler.GetFollowUp)
			followUps.POST("/:id/execute", followUpHandler.Execute)
			followUps.POST("/:id/reschedule", followUpHandler.Reschedule)
			followUps.GET("/:id/activity", activityHandler.ListActivity)
		}

		sequenceHandler := handlers.NewSequenceHandler(logger, components.Sequences)
		sequences := v1.Group("/sequences")
		{
			sequences.POST("/:id/followups", sequenceHandler.GenerateFollowUps)
			sequences.POST("/:id/cancel", sequenceHandler.CancelSequence)
			sequences.GET("/:id/summary", sequenceHandler.SequenceSummary)
			sequences.POST("/:id/step-count", sequenceHandler.SyncStepCount)
		}
		v1.GET("/contacts/:id/sequences", sequenceHandler.ContactSequences)

		pollerHandler := handlers.NewPollerHandler(logger, components.Poller)
		poller := v1.Group("/poller")
		{
			poller.GET("", pollerHandler.Status)
			poller.POST("/start", pollerHandler.Start)
			poller.POST("/stop", pollerHandler.Stop)
		}

		v1.POST("/signals", handlers.NewSignalHandler(logger, components.Sequences).RecordSignal)
	}

	return router
}

// allowsAny reports whether the wildcard origin is configured; browsers reject
// credentials combined with "*".
func allowsAny(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// Serve starts the HTTP server with graceful shutdown support.
func (s *Server) Serve() error {
	addr := ":" + s.config.APIPort
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		s.logger.Info("starting API server",
			zap.String("address", addr),
			zap.String("environment", s.config.Environment),
			zap.String("log_level", s.config.LogLevel),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-quit
	s.logger.Info("shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	// Stops the poller before the connections it dispatches through.
	if err := s.app.Close(); err != nil {
		s.logger.Error("failed to release resources", zap.Error(err))
	}

	if err := s.logger.Sync(); err != nil {
		// Sync on a terminal stdout/stderr reports EINVAL.
		if err.Error() != "sync /dev/stdout: invalid argument" &&
			err.Error() != "sync /dev/stderr: invalid argument" {
			return err
		}
	}

	s.logger.Info("server stopped")
	return nil
}
