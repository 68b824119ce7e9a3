package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/answerkey"
	"github.com/stemsi/ielts-mock/internal/config"
	"github.com/stemsi/ielts-mock/internal/database"
	"github.com/stemsi/ielts-mock/internal/handler"
	"github.com/stemsi/ielts-mock/internal/logger"
	"github.com/stemsi/ielts-mock/internal/notify"
	"github.com/stemsi/ielts-mock/internal/realtime"
	"github.com/stemsi/ielts-mock/internal/repository"
	"github.com/stemsi/ielts-mock/internal/router"
	"github.com/stemsi/ielts-mock/internal/service"
	"github.com/stemsi/ielts-mock/internal/session"
	"github.com/stemsi/ielts-mock/internal/store"
	"github.com/stemsi/ielts-mock/internal/validator"
	"github.com/stemsi/ielts-mock/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("timer_profile", cfg.TimerProfile).
		Msg("Starting IELTS mock exam server")

	// Fail fast on a bad profile; it is never guessed.
	timers, err := session.ParseTimerProfile(cfg.TimerProfile)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid timer profile")
	}

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Apply Migrations ──────────────────────────────────────────────
	if cfg.MigrateOnStart {
		migrator, err := database.NewMigrator(cfg.MigrationsDir, cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open migrations")
		}
		if err := migrator.Up(); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		if err := migrator.Close(); err != nil {
			log.Warn().Err(err).Msg("Migration handles not closed cleanly")
		}
	}

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Load Answer Keys ──────────────────────────────────────────────
	catalog := answerkey.Default()
	if cfg.AnswerKeysFile != "" {
		catalog, err = answerkey.LoadFile(cfg.AnswerKeysFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load answer keys")
		}
		log.Info().Str("file", cfg.AnswerKeysFile).Msg("Answer keys loaded")
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	sessionStore := store.NewRedisStore(rdb)
	resultRepo := repository.NewTestResultRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	dispatcher := notify.NewDispatcher(notify.NewRedisQueue(rdb), cfg.NotifyTimeout, log)
	hub := realtime.NewHub(rdb, log)

	evalService := service.NewEvaluationService(catalog, log)
	assignmentService := service.NewAssignmentService(assignmentRepo, catalog, log)
	resultService := service.NewResultService(resultRepo, evalService, dispatcher, log)
	sessionService := service.NewSessionService(service.SessionServiceConfig{
		Store:        sessionStore,
		Evaluator:    evalService,
		Results:      resultRepo,
		Notifier:     dispatcher,
		Publisher:    hub,
		Assignments:  assignmentService,
		Timers:       timers,
		Clock:        session.SystemClock(),
		TickInterval: cfg.TickInterval,
	}, log)
	monitorService := service.NewMonitorService(sessionService)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.HealthCheck{
			"postgres": database.PostgresCheck(pool),
			"redis":    database.RedisCheck(rdb),
		}, log),
		Session:    handler.NewSessionHandler(sessionService, log),
		Result:     handler.NewResultHandler(resultService, log),
		Assignment: handler.NewAssignmentHandler(assignmentService, catalog, log),
		Monitor:    handler.NewMonitorHandler(monitorService, cfg.MonitorRefresh, log),
		WS:         handler.NewWSHandler(hub, sessionService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	notificationWorker := worker.NewNotificationWorker(worker.NewPgOutbox(pool), rdb, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		notificationWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r, limiter := router.SetupRouter(handlers, cfg, log)
	defer limiter.Stop()

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop countdowns. Saved sessions resume on the next page load.
	sessionService.Shutdown()

	// 3. Let queued notifications reach Redis, then drain the worker.
	dispatcher.Wait()
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
