// Package server is the composition root: it builds every dependency from
// config, wires handlers to routes and runs the HTTP server until a
// shutdown signal arrives.
//
// DEPENDENCY CHAIN:
//
//	config → sqlite.DB → stores → services → handlers → chi routes
//
// ROUTES:
//
//	GET    /health                          liveness + database ping
//	GET    /metrics                         Prometheus exposition
//	POST   /auth/register|login|social      rate limited per client IP
//	POST   /auth/password-reset/request     rate limited
//	POST   /auth/password-reset/confirm     rate limited
//	GET    /auth/google/login|callback      browser sign-in (optional)
//	GET    /users/me, PATCH /users/me       bearer token required below
//	GET    /logs/{date}, POST /logs/sync, DELETE /logs/{date}[/{entryID}]
//	GET    /mixtures, POST /mixtures, PUT|DELETE /mixtures/{id}
//	GET    /ingredients, POST /ingredients, DELETE /ingredients/{id}
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jborcher/vegfuel/internal/auth"
	"github.com/jborcher/vegfuel/internal/config"
	"github.com/jborcher/vegfuel/internal/handler"
	"github.com/jborcher/vegfuel/internal/mail"
	"github.com/jborcher/vegfuel/internal/metrics"
	"github.com/jborcher/vegfuel/internal/middleware"
	"github.com/jborcher/vegfuel/internal/model"
	"github.com/jborcher/vegfuel/internal/ratelimit"
	sqliteRepo "github.com/jborcher/vegfuel/internal/repository/sqlite"
	"github.com/jborcher/vegfuel/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns the router and every resource that must be released on
// shutdown: the database, the rate limiter and the mail dispatcher.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger

	db         *sqliteRepo.DB
	limiter    ratelimit.Limiter
	dispatcher *mail.Dispatcher
	metrics    *metrics.Metrics
}

// New opens the database, builds all services and registers the routes.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: metrics.New(),
	}
	s.limiter = s.newLimiter(ctx)
	s.dispatcher = mail.NewDispatcher(mail.NewSender(cfg.Mail, logger), cfg.Mail.Timeout, logger)

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// newLimiter prefers Redis when configured so several instances share one
// budget. If Redis is unreachable at startup the process still serves,
// limited per instance.
func (s *Server) newLimiter(ctx context.Context) ratelimit.Limiter {
	lc := s.config.Limits
	if lc.RedisAddr == "" {
		return ratelimit.NewMemory()
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	l, err := ratelimit.NewRedis(pingCtx, lc.RedisAddr, lc.RedisPassword, lc.RedisDB, s.logger)
	if err != nil {
		s.logger.Warn("redis rate limiter unavailable, using in-memory limiter",
			slog.String("addr", lc.RedisAddr),
			slog.String("error", err.Error()),
		)
		return ratelimit.NewMemory()
	}
	s.logger.Info("rate limiting via redis", slog.String("addr", lc.RedisAddr))
	return l
}

func (s *Server) setupRoutes() error {
	cfg := s.config

	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return err
	}

	// === Global middleware ===
	// Order matters: RequestID before Logger so every line carries the id,
	// RealIP before the rate limiter so limits apply per client.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(middleware.RealIP(trusted))
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(s.metrics.Middleware)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS)

	// === Auth building blocks ===
	tokens, err := auth.NewTokenService(cfg.Token)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords, err := auth.NewPasswordService(cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("creating password service: %w", err)
	}

	providerClient := auth.NewHTTPClient(cfg.Identity.HTTPTimeout)
	registry := auth.NewRegistry()
	registry.Register(model.ProviderGoogle, auth.NewGoogleVerifier(cfg.Identity, providerClient))
	if len(cfg.Identity.GoogleClientIDs) == 0 {
		s.logger.Warn("VEGFUEL_GOOGLE_CLIENT_IDS not set, Google token audience is not checked")
	}
	if cfg.Identity.AppleClientID != "" {
		registry.Register(model.ProviderApple, auth.NewAppleVerifier(cfg.Identity, providerClient))
	} else {
		s.logger.Warn("VEGFUEL_APPLE_CLIENT_ID not set, Sign in with Apple is disabled")
	}
	webFlow := auth.NewGoogleWebFlow(cfg.Identity, providerClient)

	// === Stores and services ===
	users := s.db.Users()
	authService := service.NewAuthService(users, tokens, passwords, registry, s.metrics, s.logger)
	resetService := service.NewResetService(users, s.db.ResetTokens(), passwords, s.dispatcher, cfg.Reset, s.logger)

	authHandler := handler.NewAuthHandler(authService, resetService, webFlow, cfg.IsProduction(), s.logger)
	userHandler := handler.NewUserHandler(service.NewProfileService(users, s.logger), s.logger)
	logHandler := handler.NewLogHandler(service.NewFoodLogService(s.db.FoodLogs(), s.logger), s.logger)
	mixtureHandler := handler.NewMixtureHandler(service.NewMixtureService(s.db.Mixtures(), s.logger), s.logger)
	ingredientHandler := handler.NewIngredientHandler(service.NewIngredientService(s.db.Ingredients(), s.logger), s.logger)
	healthHandler := handler.NewHealthHandler(s.db, cfg.Env, s.logger)

	// === Public routes ===
	s.router.Get("/health", healthHandler.HandleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	authLimit := ratelimit.Middleware(s.limiter, ratelimit.Policy{
		Name:      "auth",
		Limit:     cfg.Limits.AuthRequests,
		Window:    cfg.Limits.AuthWindow,
		OnLimited: s.metrics.RateLimited,
	})

	s.router.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authLimit)
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/social", authHandler.HandleSocial)
			r.Post("/password-reset/request", authHandler.HandleResetRequest)
			r.Post("/password-reset/confirm", authHandler.HandleResetConfirm)
		})
		r.Get("/google/login", authHandler.HandleGoogleLogin)
		r.Get("/google/callback", authHandler.HandleGoogleCallback)
	})

	// === Authenticated routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens, users, s.logger))

		r.Get("/users/me", userHandler.HandleMe)
		r.Patch("/users/me", userHandler.HandleUpdateMe)

		r.Route("/logs", func(r chi.Router) {
			r.Post("/sync", logHandler.HandleSync)
			r.Get("/{date}", logHandler.HandleGetDay)
			r.Delete("/{date}", logHandler.HandleClearDay)
			r.Delete("/{date}/{entryID}", logHandler.HandleDeleteEntry)
		})

		r.Route("/mixtures", func(r chi.Router) {
			r.Get("/", mixtureHandler.HandleList)
			r.Post("/", mixtureHandler.HandleSave)
			r.Put("/{id}", mixtureHandler.HandleUpdate)
			r.Delete("/{id}", mixtureHandler.HandleDelete)
		})

		r.Route("/ingredients", func(r chi.Router) {
			r.Get("/", ingredientHandler.HandleList)
			r.Post("/", ingredientHandler.HandleSave)
			r.Delete("/{id}", ingredientHandler.HandleDelete)
		})
	})

	return nil
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the limiter and the database. It does not wait for
// queued mail; Start does that during graceful shutdown.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("closing database", slog.String("error", err.Error()))
	}
}

// Start serves HTTP until SIGINT or SIGTERM, then shuts down gracefully:
// stop accepting connections, let in-flight requests finish, flush queued
// mail, and close the limiter and database.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.Env),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		if err := s.dispatcher.Wait(ctx); err != nil {
			s.logger.Warn("pending mail not delivered before shutdown", slog.String("error", err.Error()))
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
