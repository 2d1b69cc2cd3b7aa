// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "cozytiny/docs" // swagger docs
	"cozytiny/internal/cache"
	"cozytiny/internal/config"
	"cozytiny/internal/database"
	"cozytiny/internal/middleware"
	"cozytiny/internal/models"
	"cozytiny/internal/notifications"
	"cozytiny/internal/repository"
	"cozytiny/internal/service"
	"cozytiny/internal/upload"

	"github.com/ansrivas/fiberprometheus/v2"
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

// wireableHub is implemented by every WebSocket hub that can be wired to
// Redis pub/sub and gracefully shut down.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	store          upload.Store
	postRepo       repository.PostRepository
	stepRepo       repository.StepRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	hubs           []wireableHub
	sweeper        *upload.Sweeper
	postService    *service.PostService
	stepService    *service.StepService
	uploadService  *service.UploadService
}

// NewServerWithDeps creates a Server using already-initialized dependencies
// from the bootstrap layer or a test. redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store upload.Store) (*Server, error) {
	if db == nil {
		return nil, errors.New("server: database is required")
	}
	if store == nil {
		return nil, errors.New("server: upload store is required")
	}

	c := cache.New(redisClient)
	postRepo := repository.NewPostRepository(db, c)
	stepRepo := repository.NewStepRepository(db, c)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("cozytiny-api"),
		store:          store,
		postRepo:       postRepo,
		stepRepo:       stepRepo,
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(notifications.DefaultMaxClients),
	}
	server.hubs = []wireableHub{server.hub}

	categories := models.NewCategorySet(cfg.CategoryList())
	server.postService = service.NewPostService(postRepo, stepRepo, categories, server.notifier, cfg.SlugSuffixOnConflict)
	server.stepService = service.NewStepService(stepRepo, server.notifier)
	server.uploadService = service.NewUploadService(store, cfg)

	if target, ok := store.(upload.SweepTarget); ok {
		grace := time.Duration(cfg.UploadSweepGraceHrs) * time.Hour
		server.sweeper = upload.NewSweeper(target, postRepo.MediaReferences, grace)
	}

	return server, nil
}

// NewApp builds the Fiber application with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "cozytiny",
		BodyLimit: int(s.uploadService.MaxUploadSizeBytes()) + 1024*1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, fe)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled request error",
				"path", c.Path(), "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Context Middleware to propagate the request and trace IDs
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers. Images are embedded by the front end from another origin.
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		MaxAge:       86400, // 24 hours
	}))

	// Global rate limiting per IP. Static images and preflights are exempt.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			if c.Method() == fiber.MethodOptions {
				return true
			}
			return isStaticPath(c.Path())
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
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// SEO
	app.Get("/sitemap.xml", s.GetSitemap)
	app.Get("/robots.txt", s.GetRobots)

	// Uploaded images. With S3 the URLs point at the bucket instead.
	if local, ok := s.store.(*upload.LocalStore); ok {
		static := fiber.Static{MaxAge: 86400, ByteRange: true}
		app.Static("/"+upload.DirThumbnails, filepath.Join(local.Root(), upload.DirThumbnails), static)
		app.Static("/"+upload.DirContentImages, filepath.Join(local.Root(), upload.DirContentImages), static)
	}

	api := app.Group("/api")

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	api.Get("/categories", s.GetCategories)

	// Define specific /category and /slug routes BEFORE generic /:id route
	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", middleware.RateLimit(
		s.redis, 20, 10*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/category/:category", s.GetPostsByCategory)
	posts.Get("/slug/:slug", s.GetPostBySlug)
	posts.Get("/:id", s.GetPost)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	steps := api.Group("/steps")
	steps.Get("/:postId", s.GetSteps)
	steps.Post("/:postId", s.CreateSteps)
	steps.Put("/:postId", s.ReplaceSteps)

	// Image uploads
	api.Post("/upload", middleware.RateLimit(
		s.redis, 60, 10*time.Minute, "upload"), s.UploadContentImage)
	api.Post("/uploads", middleware.RateLimit(
		s.redis, 60, 10*time.Minute, "upload"), s.UploadThumbnail)

	// Live content feed
	ws := api.Group("/ws", s.upgradeRequired())
	ws.Get("/posts", s.FeedWebsocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: without
// it the feed runs in-process, so only a configured but failing Redis is fatal.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "disabled"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"storage":  s.store.Backend(),
		},
		"feed_clients": s.hub.Count(),
		"time":         time.Now(),
	})
}

// StartBackground wires the hubs to the notifier and starts the upload
// sweeper. It is called by Start; tests call it directly.
func (s *Server) StartBackground(ctx context.Context) error {
	for _, h := range s.hubs {
		if err := h.StartWiring(ctx, s.notifier); err != nil {
			return fmt.Errorf("start %s wiring: %w", h.Name(), err)
		}
	}

	if s.sweeper != nil {
		schedule := s.config.UploadSweepSchedule
		if schedule == "" {
			schedule = upload.DefaultSweepSchedule
		}
		if err := s.sweeper.Start(schedule); err != nil {
			return fmt.Errorf("start upload sweeper: %w", err)
		}
	}
	return nil
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.NewApp()

	if err := s.StartBackground(s.shutdownCtx); err != nil {
		middleware.Logger.Error("background services failed to start", "error", err)
	}

	middleware.Logger.Info("server starting", "port", s.config.Port, "storage", s.store.Backend())
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop all wiring goroutines
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.sweeper != nil {
		select {
		case <-s.sweeper.Stop().Done():
		case <-ctx.Done():
			middleware.Logger.Warn("upload sweep still running at shutdown")
		}
	}

	// Shutdown the HTTP/WS server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	// Close WebSocket connections gracefully
	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub", "hub", h.Name(), "error", err)
		}
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
