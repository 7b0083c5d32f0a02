package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/topiclens/topiclens-backend/internal/ai"
	"github.com/topiclens/topiclens-backend/internal/config"
	"github.com/topiclens/topiclens-backend/internal/database"
	"github.com/topiclens/topiclens-backend/internal/handler"
	"github.com/topiclens/topiclens-backend/internal/logger"
	"github.com/topiclens/topiclens-backend/internal/repository"
	"github.com/topiclens/topiclens-backend/internal/router"
	"github.com/topiclens/topiclens-backend/internal/service"
	"github.com/topiclens/topiclens-backend/internal/session"
	"github.com/topiclens/topiclens-backend/internal/validator"
	"github.com/topiclens/topiclens-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting TopicLens Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	// ─── Initialize Repositories ───────────────────────────────────────
	teacherRepo := repository.NewTeacherRepository(pool)
	curriculumRepo := repository.NewCurriculumRepository(pool)
	topicRepo := repository.NewTopicRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	reportRepo := repository.NewReportRepository(pool)

	// ─── Initialize AI Client ──────────────────────────────────────────
	aiClient := ai.NewClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, log)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	monitorService := service.NewMonitorService(rdb, log)
	examService := service.NewExamService(examRepo, questionRepo, rdb, log)
	scoringService := service.NewScoringService(
		attemptRepo, answerRepo, questionRepo, topicRepo, reportRepo,
		examService, aiClient, rdb, log,
	)
	sessionManager := session.NewManager()
	attemptService := service.NewAttemptService(
		attemptRepo, answerRepo, examRepo, reportRepo,
		examService, scoringService, sessionManager,
		authService, monitorService, rdb, cfg, log,
	)
	curriculumService := service.NewCurriculumService(
		curriculumRepo, topicRepo, questionRepo, examRepo, aiClient, cfg, log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService, teacherRepo),
		Exam:       handler.NewExamHandler(examService, attemptService),
		Curriculum: handler.NewCurriculumHandler(curriculumService, cfg.MaxUploadBytes),
		Attempt:    handler.NewAttemptHandler(attemptService),
		WS:         handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
		Monitor:    handler.NewMonitorHandler(examService, monitorService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	autosaveWorker := worker.NewAutosaveWorker(pool, rdb, log)
	reportWorker := worker.NewReportWorker(pool, rdb, log)

	go autosaveWorker.Start(workerCtx)
	go reportWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published exams into Redis BEFORE accepting traffic.
	// This avoids race conditions from lazy loading under thundering herd.
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
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

	// 2. Flush live sessions so pending answers reach the autosave queue.
	sessionManager.Shutdown(shutdownCtx)

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
