// Package server contains the HTTP handlers for Crabber's JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "crabber/docs" // swagger docs
	"crabber/internal/cache"
	"crabber/internal/config"
	"crabber/internal/database"
	"crabber/internal/feed"
	"crabber/internal/middleware"
	"crabber/internal/models"
	"crabber/internal/notify"
	"crabber/internal/repository"
	"crabber/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus

	crabRepo  repository.CrabRepository
	tokenRepo repository.TokenRepository
	cardRepo  repository.CardRepository

	feed          *feed.Engine
	notifications *notify.Engine

	moltService      *service.MoltService
	crabService      *service.CrabService
	developerService *service.DeveloperService
}

// NewServer connects to the database and Redis and wires every dependency.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching, rate limits and logout then degrade.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, errors.New("server requires a database")
	}

	if redisClient != nil {
		cache.SetClient(redisClient)
	}

	crabRepo := repository.NewCrabRepository(db)
	moltRepo := repository.NewMoltRepository(db)
	relationRepo := repository.NewRelationRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	cardRepo := repository.NewCardRepository(db)

	var trendingTTL time.Duration
	if redisClient != nil {
		trendingTTL = time.Duration(cfg.TrendingCacheSeconds) * time.Second
	}
	engine := feed.NewEngine(db,
		feed.WithTrendingWindow(cfg.TrendingWindow()),
		feed.WithTrendingCache(trendingTTL),
	)
	notifications := notify.NewEngine(db)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("crabber-api"),
		crabRepo:       crabRepo,
		tokenRepo:      tokenRepo,
		cardRepo:       cardRepo,
		feed:           engine,
		notifications:  notifications,
	}
	s.moltService = service.NewMoltService(moltRepo, crabRepo, relationRepo, cardRepo, engine, notifications, cfg.MoltCharLimit)
	s.crabService = service.NewCrabService(crabRepo, relationRepo, engine, notifications, cfg.RegistrationEnabled)
	s.developerService = service.NewDeveloperService(tokenRepo, cfg.APIMaxDeveloperKeys, cfg.APIMaxAccessTokens)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Tracing runs before the context middleware so the trace id reaches the logger.
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Every API route sees the viewer when credentials are sent.
	api.Use(s.OptionalAuth())
	authed := s.AuthRequired()

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", authed, s.Logout)

	api.Get("/me", authed, s.GetMe)
	api.Get("/featured", s.GetFeatured)

	api.Get("/timeline", authed, s.GetTimeline)
	api.Get("/timeline/since", authed, s.GetTimelineSince)
	api.Get("/wild", s.GetWild)
	api.Get("/crabtags/:tag", s.GetCrabtag)
	api.Get("/trending", s.GetTrending)
	api.Get("/search", middleware.RateLimit(s.redis, 30, time.Minute, "search"), s.Search)
	api.Get("/bookmarks", authed, s.GetBookmarks)
	api.Get("/stats", s.GetStats)

	crabs := api.Group("/crabs")
	crabs.Get("/:username", s.GetCrab)
	crabs.Get("/:username/molts", s.GetCrabMolts)
	crabs.Get("/:username/replies", s.GetCrabReplies)
	crabs.Get("/:username/likes", s.GetCrabLikes)
	crabs.Get("/:username/following", s.GetFollowing)
	crabs.Get("/:username/followers", s.GetFollowers)
	crabs.Get("/:username/mutuals", authed, s.GetMutuals)
	crabs.Post("/:username/follow", authed, s.Follow)
	crabs.Delete("/:username/follow", authed, s.Unfollow)
	crabs.Post("/:username/block", authed, s.Block)
	crabs.Delete("/:username/block", authed, s.Unblock)

	molts := api.Group("/molts")
	molts.Post("/", authed, middleware.RateLimit(s.redis, 10, time.Minute, "create_molt"), s.CreateMolt)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	molts.Get("/:id/replies", s.GetReplies)
	molts.Get("/:id/quotes", s.GetQuotes)
	molts.Post("/:id/like", authed, s.Like)
	molts.Delete("/:id/like", authed, s.Unlike)
	molts.Post("/:id/bookmark", authed, s.Bookmark)
	molts.Delete("/:id/bookmark", authed, s.Unbookmark)
	molts.Post("/:id/remolt", authed, s.Remolt)
	molts.Get("/:id", s.GetMolt)
	molts.Put("/:id", authed, s.EditMolt)
	molts.Delete("/:id", authed, s.DeleteMolt)

	notifications := api.Group("/notifications", authed)
	notifications.Get("/", s.GetNotifications)
	notifications.Get("/unread", s.GetUnreadCount)
	notifications.Post("/:id/read", s.MarkNotificationRead)

	settings := api.Group("/settings", authed)
	settings.Put("/profile", s.UpdateProfile)
	settings.Get("/preferences", s.GetPreferences)
	settings.Put("/preferences", s.SetPreferences)
	api.Delete("/account", authed, s.DeleteAccount)

	developer := api.Group("/developer", authed)
	developer.Get("/keys", s.GetDeveloperKeys)
	developer.Post("/keys", s.CreateDeveloperKey)
	developer.Delete("/keys/:id", s.DeleteDeveloperKey)
	developer.Get("/tokens", s.GetAccessTokens)
	developer.Post("/tokens", s.CreateAccessToken)
	developer.Delete("/tokens/:id", s.DeleteAccessToken)
}

// NewApp builds the Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:     "Crabber API",
		BodyLimit:   1 * 1024 * 1024,
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, err)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
				slog.String("path", c.Path()),
				slog.String("error", err.Error()),
			)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start listens on the configured port until Shutdown is called.
func (s *Server) Start() error {
	s.app = s.NewApp()
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}
	return database.Close(s.db)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional:
// without it the API still serves, so only the database gates readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}
