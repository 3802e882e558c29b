// Package server contains the HTTP handlers for the circles API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "circles/docs" // swagger docs
	"circles/internal/bootstrap"
	"circles/internal/cache"
	"circles/internal/config"
	"circles/internal/middleware"
	"circles/internal/repository"
	"circles/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	loginRateWindow    = 5 * time.Minute
	registerRateWindow = 10 * time.Minute
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	rateLimiter    *middleware.RateLimiter
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	sweepDone      chan struct{}

	authService       *service.AuthService
	authenticator     *service.SessionAuthenticator
	circleService     *service.CircleService
	membershipService *service.MembershipService
	postService       *service.PostService
	userService       *service.UserService
	sweeper           *service.SessionSweeper
}

// NewServer initializes the runtime, including SEED_FIXTURE outside
// production, and builds the server on it.
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{ApplyFixture: true})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil, in which case session lookups go straight to the
// database and rate limits fail open.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("server requires config and database")
	}

	c := cache.New(redisClient)
	repos := repository.New(db, c)
	tx := repository.NewTransactor(db, c)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("circles-api"),
		rateLimiter:    middleware.NewRateLimiter(redisClient, cfg.Env),
	}

	server.authService = service.NewAuthService(repos.Users, repos.Sessions, cfg.SessionTTL())
	server.authenticator = service.NewSessionAuthenticator(repos.Sessions, repos.Users)
	server.circleService = service.NewCircleService(repos, tx)
	server.membershipService = service.NewMembershipService(repos.Circles, repos.Users, repos.Memberships)
	server.postService = service.NewPostService(repos.Posts, repos.Circles, repos.Memberships)
	server.userService = service.NewUserService(repos.Users, repos.Sessions, repos.Circles, repos.Memberships)
	server.sweeper = service.NewSessionSweeper(repos.Sessions, cfg.SessionSweepBatchSize)

	return server, nil
}

// App returns the Fiber app with middleware and routes installed, building it
// on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	app := fiber.New(fiber.Config{
		AppName:      "Circles API",
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Tracing sets the trace id local, which ContextMiddleware copies into
	// the request context for log correlation.
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
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
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, middleware.MetricsPath)
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Circles Backend Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	v1 := api.Group("/v1")
	v1.Get("/health", s.ReadinessCheck)

	sessionRequired := middleware.SessionRequired(s.authenticator, s.config.SessionCookieName)

	auth := v1.Group("/auth")
	auth.Post("/register",
		s.rateLimiter.Handler("register", s.config.RegisterRateLimit, registerRateWindow, middleware.FailOpen),
		s.Register)
	auth.Post("/login",
		s.rateLimiter.Handler("login", s.config.LoginRateLimit, loginRateWindow, middleware.FailOpen),
		s.Login)
	auth.Post("/logout", s.Logout)
	auth.Get("/me", sessionRequired, s.Me)

	users := v1.Group("/users", sessionRequired)
	users.Get("/", s.ListUsers)
	users.Get("/search", s.SearchUsers)
	users.Delete("/me", s.DeactivateMe)

	circles := v1.Group("/circles", sessionRequired)
	circles.Get("/my", s.GetMyCircles)
	circles.Post("/", s.CreateCircle)
	circles.Get("/:id", s.GetCircle)
	circles.Put("/:id", s.UpdateCircle)
	circles.Delete("/:id", s.DeleteCircle)
	circles.Post("/:id/members", s.AddMember)
	circles.Delete("/:id/members/:userId", s.RemoveMember)
	circles.Put("/:id/members/:userId/role", s.UpdateMemberRole)

	posts := v1.Group("/posts", sessionRequired)
	posts.Get("/feed", s.GetFeed)
	posts.Post("/", s.CreatePost)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", s.DeletePost)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and Redis. The database is required;
// without Redis the API still serves, so a Redis failure only degrades.
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
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	switch {
	case dbStatus != "healthy":
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	case redisStatus != "healthy":
		overallStatus = "degraded"
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

// StartBackground launches the session sweeper. It stops when ctx is done or
// Shutdown is called.
func (s *Server) StartBackground(ctx context.Context) {
	if s.shutdownFn != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	interval := s.config.SessionSweepInterval()
	if interval <= 0 {
		return
	}
	s.sweepDone = make(chan struct{})
	go func() {
		defer close(s.sweepDone)
		s.sweeper.Run(ctx, interval)
	}()
}

// Start starts the background workers and serves HTTP until the app is shut down.
func (s *Server) Start() error {
	s.StartBackground(context.Background())
	app := s.App()

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port), slog.String("env", s.config.Env))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.sweepDone != nil {
		select {
		case <-s.sweepDone:
		case <-ctx.Done():
			middleware.Logger.Warn("session sweeper did not stop before shutdown deadline")
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
