// Command worker drains the analytics Kafka topics into ClickHouse. It is
// the persistence half of EVENT_SINK=kafka.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"nmafoods/api/batch"
	"nmafoods/api/config"
	"nmafoods/api/database"
	"nmafoods/api/ingest"
	"nmafoods/api/logging"
	"nmafoods/api/models"
	"nmafoods/api/store"
	"nmafoods/api/tracing"
)

const shutdownTimeout = 30 * time.Second

// runner is a consumer whose batcher must be flushed after it stops.
type runner struct {
	name  string
	run   func(context.Context)
	close func(context.Context) error
}

func pipeline[T any](topic string, cfg *config.Config, size int, timeout time.Duration, sink batch.Sink[T], log zerolog.Logger) runner {
	b := batch.New[T](batch.Config{
		Name:        topic,
		Size:        size,
		Timeout:     timeout,
		MaxQueue:    cfg.Analytics.MaxQueue,
		SendTimeout: cfg.Analytics.SendTimeout,
	}, sink, batch.WithLogger(log))

	reader := ingest.NewReader(cfg.Kafka.Brokers, topic, cfg.Kafka.GroupID)
	consumer := ingest.NewConsumer[T](reader, b, cfg.Kafka.WorkersPerTopic, log.With().Str("topic", topic).Logger())

	return runner{
		name: topic,
		run:  consumer.Run,
		close: func(ctx context.Context) error {
			return errors.Join(consumer.Close(), b.Close(ctx))
		},
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New(cfg.AppEnv).With().Str("service", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.OTel, "nmafoods-worker")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	chClient, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize ClickHouse")
	}
	defer chClient.Close()
	if err := chClient.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap ClickHouse schema")
	}
	analytics := store.NewAnalyticsStore(chClient.Conn, log)

	runners := []runner{
		pipeline[models.AnalyticsEvent](cfg.Kafka.EventsTopic, cfg,
			cfg.Analytics.BatchSize, cfg.Analytics.BatchTimeout,
			batch.SinkFunc[models.AnalyticsEvent](analytics.InsertEvents), log),
		pipeline[models.Conversion](cfg.Kafka.ConversionsTopic, cfg,
			cfg.Analytics.BatchSize, cfg.Analytics.BatchTimeout,
			batch.SinkFunc[models.Conversion](analytics.InsertConversions), log),
		pipeline[models.PerformanceMetric](cfg.Kafka.PerformanceTopic, cfg,
			cfg.Performance.BatchSize, cfg.Performance.BatchTimeout,
			batch.SinkFunc[models.PerformanceMetric](analytics.InsertPerformance), log),
	}

	log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("group", cfg.Kafka.GroupID).Msg("worker starting")

	var wg sync.WaitGroup
	for _, r := range runners {
		wg.Add(1)
		go func(r runner) {
			defer wg.Done()
			r.run(ctx)
		}(r)
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, r := range runners {
		if err := r.close(shutdownCtx); err != nil {
			log.Error().Err(err).Str("pipeline", r.name).Msg("shutdown incomplete")
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown failed")
	}
	log.Info().Msg("worker exited")
}
