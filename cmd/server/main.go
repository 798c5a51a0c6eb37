package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/quizsets/backend/internal/auth"
	"github.com/quizsets/backend/internal/cache"
	"github.com/quizsets/backend/internal/catalog"
	"github.com/quizsets/backend/internal/config"
	"github.com/quizsets/backend/internal/database"
	"github.com/quizsets/backend/internal/generator"
	"github.com/quizsets/backend/internal/logger"
	"github.com/quizsets/backend/internal/middleware"
	"github.com/quizsets/backend/internal/quiz"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Initialize database
	db, err := database.Connect(cfg, log)
	if err != nil {
		log.Fatal("failed to connect to database", "driver", cfg.DBDriver, "error", err)
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}

	// Stats cache
	var statsCache cache.StatsCache = cache.Nop{}
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisStats(cfg.RedisAddr, cfg.StatsCacheTTL, log)
		if err != nil {
			log.Warn("redis unavailable, stats cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			statsCache = rc
			log.Info("stats cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.StatsCacheTTL)
		}
	}
	defer statsCache.Close()

	// Initialize services and handlers
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	authHandler := auth.NewHandler(auth.NewStore(db), tokens, cfg.AdminEmails, log)

	quizService := quiz.NewService(db, statsCache, log)
	quizHandler := quiz.NewHandler(quizService, log)

	gen := generator.NewGenerator(cfg, log)
	catalogService := catalog.NewService(db, gen, log)
	catalogHandler := catalog.NewHandler(catalogService, log)

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(log))
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	authHandler.RegisterPublic(api)

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth(tokens))
	authHandler.RegisterProtected(protected)
	quizHandler.Register(protected)

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)
	catalogHandler.Register(protected, admin)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server starting", "port", cfg.Port, "db_driver", cfg.DBDriver, "generator", gen.ModelName())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down", "timeout", cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
