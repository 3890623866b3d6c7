package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"verity/internal/analyzer/awsanalyzer"
	"verity/internal/audit"
	"verity/internal/document"
	"verity/internal/face"
	"verity/internal/imagestore"
	"verity/internal/jwttoken"
	"verity/internal/platform/config"
	"verity/internal/platform/httpserver"
	"verity/internal/platform/logger"
	"verity/internal/platform/postgres"
	platformredis "verity/internal/platform/redis"
	"verity/internal/ratelimit/bucket"
	"verity/internal/retention"
	"verity/internal/verification/handler"
	"verity/internal/verification/metrics"
	"verity/internal/verification/service"
	"verity/internal/verification/store"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		log.Error("failed to load AWS configuration", "error", err)
		os.Exit(1)
	}

	// Image blobs: S3 when a bucket is configured, in-memory otherwise.
	var images imagestore.Store
	if cfg.AWS.S3Bucket != "" {
		images = imagestore.NewS3Store(s3.NewFromConfig(awsCfg), cfg.AWS.S3Bucket)
		log.Info("using S3 image store", "bucket", cfg.AWS.S3Bucket)
	} else {
		images = imagestore.NewInMemoryStore()
		log.Warn("using in-memory image store; images do not survive restarts")
	}

	// Verification records: postgres, then redis, then in-memory.
	var records interface {
		service.RecordStore
		retention.RecordReaper
	}
	switch {
	case cfg.PostgresURL != "":
		pool, err := postgres.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		pgStore := store.NewPostgresRecordStore(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Error("failed to migrate postgres schema", "error", err)
			os.Exit(1)
		}
		records = pgStore
		log.Info("using postgres record store")
	case cfg.Redis.URL != "":
		redisClient, err := platformredis.New(cfg.Redis)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		records = store.NewRedisRecordStore(redisClient.Client)
		log.Info("using redis record store")
	default:
		records = store.NewInMemoryRecordStore()
		log.Warn("using in-memory record store; records do not survive restarts")
	}

	// Audit: always the in-memory log, mirrored to Kafka when configured.
	var sinks []audit.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			log.Error("failed to connect audit kafka sink", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.Info("audit events mirrored to kafka", "topic", cfg.Kafka.AuditTopic)
	}
	auditPublisher := audit.NewPublisher(audit.NewInMemoryStore(), log, sinks...)

	verifications := service.New(
		records,
		images,
		document.NewStep(awsanalyzer.NewDocumentAnalyzer(awsCfg)),
		face.NewStep(awsanalyzer.NewFaceAnalyzer(awsCfg)),
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(metrics.New()),
	)

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, "verity", "verity-api")

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	verificationHandler := handler.New(
		verifications,
		log,
		jwtService,
		bucket.NewInMemoryBucketStore(),
		cfg.RateLimit.Limit,
		cfg.RateLimit.Window,
		cfg.Server.MaxUploadBytes,
	)
	verificationHandler.Register(router)

	// Background retention sweeps.
	reaper := retention.NewWorker(
		records,
		images,
		cfg.Retention.RecordMaxAge,
		cfg.Retention.ImageMaxAge,
		cfg.Retention.Interval,
		log,
	)
	go func() {
		if err := reaper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("retention worker stopped", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Server.Addr, router)

	go func() {
		log.Info("starting verity", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
