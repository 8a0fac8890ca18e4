package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/tweet-pipeline/config"
	"github.com/ErlanBelekov/tweet-pipeline/internal/collector"
	"github.com/ErlanBelekov/tweet-pipeline/internal/health"
	"github.com/ErlanBelekov/tweet-pipeline/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/tweet-pipeline/internal/log"
	"github.com/ErlanBelekov/tweet-pipeline/internal/metrics"
	"github.com/ErlanBelekov/tweet-pipeline/internal/monitor"
	"github.com/ErlanBelekov/tweet-pipeline/internal/ratelimit"
	"github.com/ErlanBelekov/tweet-pipeline/internal/retry"
	"github.com/ErlanBelekov/tweet-pipeline/internal/scheduler"
	httptransport "github.com/ErlanBelekov/tweet-pipeline/internal/transport/http"
	"github.com/ErlanBelekov/tweet-pipeline/internal/transport/http/handler"
	"github.com/ErlanBelekov/tweet-pipeline/internal/twitterapi"
	"github.com/ErlanBelekov/tweet-pipeline/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	db, err := postgres.NewManager(ctx, postgres.PoolConfig{
		DatabaseURL:     cfg.DatabaseURL,
		MaxConns:        int32(cfg.PoolMaxConns),
		MinConns:        int32(cfg.PoolMinConns),
		ConnTimeout:     time.Duration(cfg.ConnTimeoutSec) * time.Second,
		MaxConnIdleTime: time.Duration(cfg.ConnIdleTimeoutSec) * time.Second,
		HealthInterval:  time.Duration(cfg.HealthIntervalSec) * time.Second,
	}, logger)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	logger.Info("db connected")

	metrics.Register()
	checker := health.NewChecker(db, logger, prometheus.DefaultRegisterer)

	mon := monitor.New(monitor.Config{
		BufferSize: cfg.MetricBufferSize,
		SlowQuery:  cfg.SlowQuery(),
		LongTx:     cfg.LongTx(),
	}, logger)

	tweetRepo := postgres.NewTweetRepository(db, mon, cfg.WriteChunkSize)
	profileRepo := postgres.NewProfileRepository(db, mon)
	runRepo := postgres.NewRunRepository(db, mon)

	limiter := ratelimit.NewLimiter(logger)
	client := twitterapi.NewClient(cfg.TwitterAPIBaseURL, cfg.TwitterAPIKey, limiter, retry.DefaultPolicy(), logger)

	worker := scheduler.NewWorker(client, limiter, tweetRepo, profileRepo, runRepo, collector.Config{
		PageSize:      cfg.PageSize,
		CourtesyDelay: cfg.CourtesyDelay(),
	}, logger)

	sched := scheduler.New(scheduler.Config{
		MaxWorkers:    cfg.MaxWorkers,
		MaxQueue:      cfg.MaxQueueSize,
		TerminateWait: time.Duration(cfg.TerminateWaitSec) * time.Second,
	}, worker, logger)

	refresher := scheduler.NewRefresher(sched, profileRepo, cfg.RefreshCron, cfg.TargetTweetCount, logger)
	go func() {
		if err := refresher.Start(ctx); err != nil {
			logger.Error("refresher", "error", err)
		}
	}()

	janitor := scheduler.NewJanitor(db, time.Duration(cfg.HealthIntervalSec)*time.Second, logger)
	go janitor.Start(ctx)

	collections := usecase.NewCollectionUsecase(sched, tweetRepo, profileRepo, runRepo, cfg.TargetTweetCount, logger)
	collectionHandler := handler.NewCollectionHandler(collections, logger)
	tweetHandler := handler.NewTweetHandler(collections, logger)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, collectionHandler, tweetHandler, cfg.APIKey),
	}
	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown", "error", err)
	}

	logger.Info("pipeline shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
