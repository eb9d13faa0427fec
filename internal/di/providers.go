// Package di assembles the object graph with google/wire.
package di

import (
	"context"
	"fmt"
	"time"

	"PairPulse/internal/aggregator"
	domrepo "PairPulse/internal/domain/repository"
	mid "PairPulse/internal/middleware"
	internalrepo "PairPulse/internal/repository"
	"PairPulse/internal/service/binance"
	"PairPulse/internal/services/alerts"
	"PairPulse/internal/tickstore"
	"PairPulse/internal/usecase"
	pkgcache "PairPulse/pkg/cache"
	pkgch "PairPulse/pkg/clickhouse"
	"PairPulse/pkg/config"
	pkgkafka "PairPulse/pkg/kafka"
	applogger "PairPulse/pkg/logger"
	"PairPulse/pkg/metrics"
	"PairPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when
// persistence is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideStorage creates ClickHouse-backed storage with its schema
// initialized, or nil when persistence is disabled.
func ProvideStorage(chClient *pkgch.Client) (domrepo.Storage, error) {
	if chClient == nil {
		return nil, nil
	}
	s := internalrepo.NewClickHouseStorage(chClient.DB())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Init(ctx); err != nil {
		return nil, fmt.Errorf("storage schema: %w", err)
	}
	return s, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher creates the Kafka-backed bar and alert publisher.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.BarsTopic, cfg.Kafka.AlertsTopic)
}

// ProvideResultCache picks the analytics result cache backend. With
// Redis enabled a layered cache keeps hot entries in memory.
func ProvideResultCache(cfg *config.Config) (pkgcache.Service, error) {
	if cfg.Redis.Enabled {
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(cfg.Redis.Host),
			pkgcache.WithRedisPort(cfg.Redis.Port),
			pkgcache.WithRedisPassword(cfg.Redis.Password),
			pkgcache.WithRedisDB(cfg.Redis.DB),
			pkgcache.WithRedisPrefix("pairpulse"),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return pkgcache.NewLayeredCache(rc), nil
	}
	return pkgcache.NewMemoryCache(), nil
}

// ProvideTickStore creates the in-memory tick ring.
func ProvideTickStore(cfg *config.Config) *tickstore.Store {
	return tickstore.New(
		tickstore.WithMaxTicks(cfg.Engine.MaxTicksPerSeries),
		tickstore.WithRetention(cfg.Engine.TickRetention),
	)
}

// ProvideAggregator creates the multi-resolution bar aggregator.
func ProvideAggregator(cfg *config.Config) *aggregator.Aggregator {
	return aggregator.New(
		aggregator.WithMaxBars(cfg.Engine.MaxBarsPerSeries),
	)
}

// ProvideAlertEngine creates the alert rule registry.
func ProvideAlertEngine() *alerts.Engine {
	return alerts.NewEngine()
}

// ProvideEngine assembles the analytics engine facade.
func ProvideEngine(
	log *applogger.Logger,
	m domrepo.Metrics,
	ticks *tickstore.Store,
	bars *aggregator.Aggregator,
	alertEngine *alerts.Engine,
	storage domrepo.Storage,
	pub domrepo.Publisher,
	resultCache pkgcache.Service,
	cfg *config.Config,
) *usecase.Engine {
	opts := []usecase.EngineOption{
		usecase.WithSeriesLimit(cfg.Engine.SeriesLimit),
		usecase.WithResultCache(resultCache, cfg.Engine.CacheTTL),
		usecase.WithAlertDefaults(domrepo.NormalizeResolution(cfg.Alerts.Resolution), cfg.Alerts.Window),
	}
	if storage != nil {
		opts = append(opts, usecase.WithStorage(storage))
	}
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	return usecase.NewEngine(log, m, ticks, bars, alertEngine, opts...)
}

// ProvideProcessor creates the tick processor in front of the engine.
func ProvideProcessor(engine *usecase.Engine, storage domrepo.Storage, m domrepo.Metrics, cfg *config.Config) *usecase.TickProcessor {
	return usecase.NewTickProcessor(engine, storage, m, cfg.Engine.Durable)
}

// ProvideMarketStream creates the Binance WebSocket stream.
func ProvideMarketStream(cfg *config.Config, log *applogger.Logger) domrepo.MarketStream {
	return binance.New(
		cfg.Binance.WebSocketURL,
		cfg.Binance.Instruments,
		cfg.Binance.ReconnectDelay,
		cfg.Binance.PingInterval,
		log,
	)
}

// ProvideCollector creates the tick collector with its pipeline.
func ProvideCollector(
	stream domrepo.MarketStream,
	proc *usecase.TickProcessor,
	m domrepo.Metrics,
	cfg *config.Config,
) *usecase.TickCollector {
	pipe := mid.NewRealtimePipeline(proc, m,
		mid.WithMaxRPS(cfg.Pipeline.MaxRPS),
		mid.WithBufferSize(cfg.Pipeline.BufferSize),
	)
	return usecase.NewTickCollector(stream, proc, m, pipe)
}

// ProvideKafkaConsumer creates a Kafka consumer for the alternate tick
// ingestion path, or nil when not configured.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.TicksTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideTicksHandler registers the consumer handler for the ticks
// topic.
func ProvideTicksHandler(proc *usecase.TickProcessor, m domrepo.Metrics, cfg *config.Config) pkgkafka.MessageHandler {
	if cfg.Kafka.TicksTopic == "" {
		return nil
	}
	return usecase.NewKafkaTicksHandler(cfg.Kafka.TicksTopic, proc, m)
}

// kafkaLogPublisher adapts the producer to the log collector's
// publisher interface.
type kafkaLogPublisher struct {
	p *pkgkafka.Producer
}

func (k kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return k.p.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.Engine,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if producer != nil {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      kafkaLogPublisher{p: producer},
		})
	}
	return server.New(cfg, log, engine, collector, consumer, kh, chClient)
}
