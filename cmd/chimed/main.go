package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sloreti/chime/internal/backoff"
	"github.com/sloreti/chime/internal/circuitbreaker"
	"github.com/sloreti/chime/internal/clock"
	"github.com/sloreti/chime/internal/config"
	"github.com/sloreti/chime/internal/dispatch"
	"github.com/sloreti/chime/internal/gateway"
	"github.com/sloreti/chime/internal/metrics"
	"github.com/sloreti/chime/internal/observ"
	"github.com/sloreti/chime/internal/prefs"
	"github.com/sloreti/chime/internal/queue"
	"github.com/sloreti/chime/internal/queue/postgres"
	"github.com/sloreti/chime/internal/render"
	"github.com/sloreti/chime/internal/scheduler"
	"github.com/sloreti/chime/internal/track"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting chimed",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.String("store", cfg.Store),
		zap.String("gateway", cfg.Gateway),
	)

	ctx := context.Background()

	// Queue store
	var store queue.Store
	var database *postgres.DB
	if cfg.Store == "postgres" {
		database, err = postgres.New(ctx, postgres.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Database: cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
		store = postgres.NewStore(database, logger)
	} else {
		logger.Warn("using in-memory queue store, single instance only")
		store = queue.NewMemoryStore()
	}

	// Preference provider, optionally cached in Redis
	staticPrefs := prefs.NewStaticProvider()
	var provider prefs.Provider = staticPrefs
	if cfg.RedisHost != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, preference cache disabled",
				zap.Error(err),
				zap.String("host", cfg.RedisHost),
			)
		} else {
			defer func() { _ = rdb.Close() }()
			provider = prefs.NewCachedProvider(rdb, staticPrefs, cfg.PrefsCacheTTL, logger)
			logger.Info("preference cache enabled",
				zap.Duration("ttl", cfg.PrefsCacheTTL),
			)
		}
	}

	// Delivery gateway behind a circuit breaker
	var transport gateway.Gateway
	switch cfg.Gateway {
	case "webhook":
		if cfg.WebhookURL == "" {
			return fmt.Errorf("GATEWAY=webhook requires WEBHOOK_URL")
		}
		transport = gateway.NewWebhookGateway(cfg.WebhookURL, cfg.WebhookTimeout, logger)
	case "sns":
		if cfg.SNSTopicARN == "" {
			return fmt.Errorf("GATEWAY=sns requires SNS_TOPIC_ARN")
		}
		transport, err = gateway.NewSNSGateway(ctx, gateway.SNSConfig{
			Region:   cfg.AWSRegion,
			TopicARN: cfg.SNSTopicARN,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create SNS gateway: %w", err)
		}
	default:
		transport = gateway.NewLogGateway(logger)
	}
	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig(cfg.Gateway), logger)
	protected := gateway.NewProtected(transport, breaker, logger)

	// Tracking sink
	var sink track.Sink
	if cfg.TrackSink == "sqs" {
		if cfg.SQSQueueURL == "" {
			return fmt.Errorf("TRACK_SINK=sqs requires SQS_QUEUE_URL")
		}
		sink, err = track.NewSQSSink(ctx, track.SQSConfig{
			Region:   cfg.AWSRegion,
			QueueURL: cfg.SQSQueueURL,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create SQS sink: %w", err)
		}
	} else {
		sink = track.NewLogSink(logger)
	}

	templates := render.NewTemplateSet()
	sched := scheduler.New(store, provider, templates, clock.Real{}, logger)

	dispatcher := dispatch.New(store, protected, sink, clock.Real{}, dispatch.Config{
		Interval:  cfg.DispatchInterval,
		BatchSize: cfg.DispatchBatchSize,
		Backoff:   backoff.Policy{BaseDelay: cfg.RetryBaseDelay},
	}, logger)

	loopCtx, loopCancel := context.WithCancel(context.Background())
	defer loopCancel()
	go dispatcher.Start(loopCtx)

	// Operational HTTP surface: health, metrics and queue stats.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if database != nil {
			if err := database.Health(req.Context()); err != nil {
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/v1/queue/stats", func(w http.ResponseWriter, req *http.Request) {
		stats, err := sched.QueueStats(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"queue":   stats,
			"breaker": breaker.Snapshot(),
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		loopCancel()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server stopped gracefully")
	}

	return nil
}
