package usecase

import (
	"context"
	"encoding/json"
	"time"

	"PairPulse/internal/domain/models"
	domrepo "PairPulse/internal/domain/repository"
	pkgkafka "PairPulse/pkg/kafka"
)

// KafkaTicksHandler feeds ticks from a Kafka topic into the processor,
// the alternate ingestion path next to the WebSocket stream.
type KafkaTicksHandler struct {
	topic   string
	proc    *TickProcessor
	metrics domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, proc *TickProcessor, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// incoming message schema: {instrument, t, p, q}
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Instrument string  `json:"instrument"`
		T          int64   `json:"t"`
		P          float64 `json:"p"`
		Q          float64 `json:"q"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	ts := time.UnixMilli(m.T).UTC()
	if m.T < 1e11 { // seconds, not millis
		ts = time.Unix(m.T, 0).UTC()
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(ts).Seconds())

	return h.proc.Process(ctx, &models.Tick{
		Instrument: m.Instrument,
		Timestamp:  ts,
		Price:      m.P,
		Quantity:   m.Q,
	})
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
