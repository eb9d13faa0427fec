package repository

import (
	"context"
	"time"

	"PairPulse/internal/domain/models"
)

// MarketStream is the external trade feed. Reconnection policy lives with
// the stream implementation; the engine only reads.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher is the notification sink for newly closed bars and triggered
// alerts (Kafka in production).
type Publisher interface {
	PublishBar(ctx context.Context, b *models.Bar) error
	PublishAlert(ctx context.Context, r *models.AlertRule, value float64) error
	Close() error
}

// Storage persists ticks, closed bars, and alert rules so the engine can
// resume after restart.
type Storage interface {
	Init(ctx context.Context) error
	StoreTick(ctx context.Context, t *models.Tick) error
	StoreTickBatch(ctx context.Context, ticks []*models.Tick) error
	QueryTicks(ctx context.Context, instrument string, from, to time.Time, limit int) ([]*models.Tick, error)
	StoreBar(ctx context.Context, b *models.Bar) error
	QueryBars(ctx context.Context, instrument string, res Resolution, from, to time.Time, limit int) ([]*models.Bar, error)
	SaveAlertRules(ctx context.Context, rules []*models.AlertRule) error
	LoadAlertRules(ctx context.Context) ([]*models.AlertRule, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics is the observability surface implemented by pkg/metrics.
type Metrics interface {
	RecordTickIngested(instrument string)
	RecordBarClosed(instrument string, res string)
	RecordAlertTriggered(metric string)
	RecordError(kind string)
	RecordLastPrice(instrument string, price float64)
	RecordLatency(op string, seconds float64)
}
