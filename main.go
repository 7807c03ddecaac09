package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BRO3886/restaurant-search/internal/api"
	"github.com/BRO3886/restaurant-search/internal/config"
	"github.com/BRO3886/restaurant-search/internal/indexsync"
	"github.com/BRO3886/restaurant-search/internal/kafka"
	"github.com/BRO3886/restaurant-search/internal/logger"
	"github.com/BRO3886/restaurant-search/internal/metrics"
	mongostore "github.com/BRO3886/restaurant-search/internal/mongo"
	"github.com/BRO3886/restaurant-search/internal/opensearch"
	"github.com/BRO3886/restaurant-search/internal/queue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	mode       string
	configPath string
)

func init() {
	flag.StringVar(&mode, "mode", "serve", "mode to run in: serve, repair or reindex")
	flag.StringVar(&configPath, "config", config.DefaultPath, "path to the config file")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	logr, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("error creating logger: %v", err)
	}
	defer func() { _ = logr.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, err := mongostore.Connect(ctx, cfg.Mongo.URI, time.Duration(cfg.Mongo.TimeoutMs)*time.Millisecond)
	if err != nil {
		logr.Fatal("error connecting to mongo", zap.Error(err))
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logr.Error("error disconnecting from mongo", zap.Error(err))
		}
	}()
	st := mongostore.NewStore(mongoClient.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))

	searcher, err := opensearch.New(cfg, logr)
	if err != nil {
		logr.Fatal("error starting opensearch searcher", zap.Error(err))
	}
	if err := searcher.EnsureIndex(ctx); err != nil {
		logr.Fatal("error ensuring search index", zap.Error(err))
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	reporters := indexsync.Reporters{indexsync.NewLogReporter(logr), m}

	kafkaCfg := kafkaConfig(cfg)

	if cfg.KafkaEnabled() && mode == "serve" {
		enqueuer, err := kafka.NewEnqueuer(ctx, kafkaCfg, logr)
		if err != nil {
			logr.Fatal("error starting kafka enqueuer", zap.Error(err))
		}
		defer enqueuer.Close()
		reporters = append(reporters, indexsync.NewQueueReporter(enqueuer, cfg.Kafka.Topic.Name, logr))
	}

	coord := indexsync.New(st, searcher, logr,
		indexsync.WithReporter(reporters),
		indexsync.WithMetrics(m),
		indexsync.WithBatchSize(cfg.Opensearch.Index.BuffSize),
	)

	switch mode {
	case "serve":
		handler := api.NewHandler(coord, searcher, logr)
		router := api.NewRouter(handler, m, promhttp.Handler())
		runServer(ctx, cfg, router, logr)
	case "repair":
		if !cfg.KafkaEnabled() {
			logr.Fatal("repair mode needs kafka.brokers and kafka.topic.name")
		}
		dequeuer, err := kafka.NewDequeuer(ctx, kafkaCfg, logr)
		if err != nil {
			logr.Fatal("error starting kafka dequeuer", zap.Error(err))
		}
		runRepair(ctx, cfg, dequeuer, coord, logr)
	case "reindex":
		runReindex(ctx, coord, logr)
	default:
		logr.Fatal("unknown mode", zap.String("mode", mode))
	}
}

// kafkaConfig uses the async producer: drift events are published from the
// request path and must not wait on broker acks or retries.
func kafkaConfig(cfg *config.Config) *kafka.Config {
	return kafka.NewConfig(
		kafka.WithBrokers(cfg.Kafka.Brokers...),
		kafka.WithConsumeOldest(),
		kafka.WithTopics(cfg.Kafka.Topic.Name),
		kafka.WithConsumerGroup(cfg.Kafka.ConsumerGroup),
		kafka.WithClientID("restaurant-search"),
		kafka.WithRetry(
			cfg.Kafka.Retry.Max,
			time.Duration(cfg.Kafka.Retry.Backoff)*time.Millisecond,
		),
	)
}

func runServer(ctx context.Context, cfg *config.Config, handler http.Handler, logr *zap.Logger) {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("starting http server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logr.Error("http server failed", zap.Error(err))
	case <-ctx.Done():
		logr.Info("shutting down http server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http server shutdown failed", zap.Error(err))
	}
}

// runRepair replays drift events against the primary store until ctx ends.
func runRepair(
	ctx context.Context,
	cfg *config.Config,
	dequeuer queue.Dequeuer,
	coord *indexsync.Coordinator,
	logr *zap.Logger,
) {
	logr.Info("started repair", zap.String("topic", cfg.Kafka.Topic.Name))
	defer dequeuer.Close()

	if err := dequeuer.Dequeue(ctx, cfg.Kafka.Topic.Name, coord.RepairHandler()); err != nil {
		logr.Error("error dequeuing drift events", zap.Error(err))
	}
}

func runReindex(ctx context.Context, coord *indexsync.Coordinator, logr *zap.Logger) {
	logr = logr.Named("reindex")
	logr.Info("started reindex")

	start := time.Now()
	n, err := coord.Reindex(ctx)
	if err != nil {
		logr.Fatal("reindex failed", zap.Int("indexed", n), zap.Error(err))
	}
	logr.Info("reindex completed", zap.Int("indexed", n), zap.Duration("took", time.Since(start)))
}
