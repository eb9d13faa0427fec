package repository

import (
	"context"
	"time"

	"PairPulse/internal/domain/models"
	domrepo "PairPulse/internal/domain/repository"
	pkgkafka "PairPulse/pkg/kafka"
)

// KafkaPublisher fans closed bars and triggered alerts out to Kafka.
// Messages are keyed by instrument so a partition preserves per-series
// ordering.
type KafkaPublisher struct {
	producer   *pkgkafka.Producer
	barTopic   string
	alertTopic string
}

// NewKafkaPublisher creates a publisher over the shared producer.
func NewKafkaPublisher(producer *pkgkafka.Producer, barTopic, alertTopic string) domrepo.Publisher {
	return &KafkaPublisher{producer: producer, barTopic: barTopic, alertTopic: alertTopic}
}

type barEvent struct {
	Instrument  string    `json:"instrument"`
	Resolution  string    `json:"resolution"`
	BucketStart time.Time `json:"bucket_start"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
}

type alertEvent struct {
	ID          string    `json:"id"`
	Instrument  string    `json:"instrument"`
	Metric      string    `json:"metric"`
	Comparator  string    `json:"comparator"`
	Threshold   float64   `json:"threshold"`
	Value       float64   `json:"value"`
	TriggeredAt time.Time `json:"triggered_at"`
}

func (p *KafkaPublisher) PublishBar(ctx context.Context, b *models.Bar) error {
	ev := barEvent{
		Instrument:  b.Instrument,
		Resolution:  string(b.Resolution),
		BucketStart: b.BucketStart,
		Open:        b.Open,
		High:        b.High,
		Low:         b.Low,
		Close:       b.Close,
		Volume:      b.Volume,
	}
	return p.producer.Publish(ctx, p.barTopic, []byte(b.Instrument), ev)
}

func (p *KafkaPublisher) PublishAlert(ctx context.Context, r *models.AlertRule, value float64) error {
	ev := alertEvent{
		ID:         r.ID,
		Instrument: r.Instrument,
		Metric:     string(r.Metric),
		Comparator: string(r.Comparator),
		Threshold:  r.Threshold,
		Value:      value,
	}
	if r.LastTriggered != nil {
		ev.TriggeredAt = *r.LastTriggered
	} else {
		ev.TriggeredAt = time.Now().UTC()
	}
	return p.producer.Publish(ctx, p.alertTopic, []byte(r.Instrument), ev)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
