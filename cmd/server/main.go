package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/scholarpath/testportal-backend/internal/config"
	"github.com/scholarpath/testportal-backend/internal/database"
	"github.com/scholarpath/testportal-backend/internal/engine"
	"github.com/scholarpath/testportal-backend/internal/generator"
	"github.com/scholarpath/testportal-backend/internal/handler"
	"github.com/scholarpath/testportal-backend/internal/logger"
	"github.com/scholarpath/testportal-backend/internal/repository"
	"github.com/scholarpath/testportal-backend/internal/router"
	"github.com/scholarpath/testportal-backend/internal/service"
	"github.com/scholarpath/testportal-backend/internal/validator"
	"github.com/scholarpath/testportal-backend/internal/worker"
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
		Msg("Starting ScholarPath Test Portal")

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
	applicationRepo := repository.NewApplicationRepository(pool)
	candidateRepo := repository.NewCandidateRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	snapshotRepo := repository.NewSnapshotRepository(rdb)
	resultQueue := repository.NewResultQueue(rdb)
	answerQueue := repository.NewAnswerQueue(rdb)

	// ─── Question Generator ────────────────────────────────────────────
	var questionGen generator.QuestionGenerator
	if cfg.GeneratorURL != "" {
		questionGen = generator.NewHTTPGenerator(cfg.GeneratorURL, cfg.GeneratorTimeout, log)
	} else {
		log.Warn().Msg("GENERATOR_URL not set, using built-in template generator")
		questionGen = generator.NewTemplateGenerator()
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	submissionGuard := service.NewSubmissionGuard(resultQueue, resultRepo)
	eligibilityService := service.NewEligibilityService(testRepo, applicationRepo, submissionGuard, log)
	sourceService := service.NewQuestionSourceService(questionGen, questionRepo, cfg.ShortfallPolicy, log)
	submitter := engine.NewSubmitter(snapshotRepo, resultQueue, cfg.PassThresholdPercent, log)
	sessionService := service.NewSessionService(
		eligibilityService, sourceService, testRepo, snapshotRepo, submitter,
		answerQueue, resultRepo, cfg.SnapshotInterval, log,
	)
	testService := service.NewTestService(testRepo, questionRepo, rdb, log)
	qbankService := service.NewQBankService(questionRepo, log)
	applicationService := service.NewApplicationService(applicationRepo, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	wsOrigins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		wsOrigins[origin] = true
	}

	handlers := &router.Handlers{
		Auth:        handler.NewAuthHandler(authService, candidateRepo, adminRepo),
		Session:     handler.NewSessionHandler(sessionService, testService),
		AdminTest:   handler.NewAdminTestHandler(testService, resultRepo),
		Application: handler.NewApplicationHandler(applicationService),
		QBank:       handler.NewQBankHandler(qbankService),
		WS:          handler.NewWSHandler(sessionService, wsOrigins, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	answerWorker := worker.NewAnswerPersistWorker(pool, rdb, log)
	resultWorker := worker.NewResultPersistWorker(pool, rdb, resultRepo, log)

	go answerWorker.Start(workerCtx)
	go resultWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published tests into Redis BEFORE accepting traffic so a
	// thundering herd at test start never hits lazy loading.
	if err := testService.PrewarmAllCaches(ctx); err != nil {
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

	// 2. Snapshot live sessions so a restarted instance resumes them.
	sessionService.Shutdown(shutdownCtx)

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
