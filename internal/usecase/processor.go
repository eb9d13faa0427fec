package usecase

import (
	"context"
	"fmt"
	"time"

	"PairPulse/internal/domain/models"
	domrepo "PairPulse/internal/domain/repository"
)

// TickProcessor feeds validated ticks into the engine and mirrors them
// to durable storage so the engine can resume after restart. A storage
// failure does not fail the in-memory path; the pipeline's buffer only
// retries ticks the engine itself rejected transiently.
type TickProcessor struct {
	engine  *Engine
	store   domrepo.Storage
	metrics domrepo.Metrics
	durable bool
}

// NewTickProcessor creates a processor in front of the engine. store may
// be nil for a purely in-memory deployment.
func NewTickProcessor(engine *Engine, store domrepo.Storage, metrics domrepo.Metrics, durable bool) *TickProcessor {
	return &TickProcessor{
		engine:  engine,
		store:   store,
		metrics: metrics,
		durable: durable && store != nil,
	}
}

// Process handles a single tick.
func (p *TickProcessor) Process(ctx context.Context, t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}

	start := time.Now()
	if err := p.engine.Ingest(ctx, t); err != nil {
		return fmt.Errorf("process tick: %w", err)
	}

	if p.durable {
		if err := p.store.StoreTick(ctx, t); err != nil {
			// The in-memory state already advanced; surface the write
			// failure without rolling anything back.
			p.metrics.RecordError("tick_store")
			return fmt.Errorf("store tick: %w", err)
		}
	}

	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

// ProcessBatch handles a batch of ticks, used by the restart replay and
// the Kafka ingestion path.
func (p *TickProcessor) ProcessBatch(ctx context.Context, ticks []*models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	start := time.Now()
	for _, t := range ticks {
		if err := p.engine.Ingest(ctx, t); err != nil {
			return fmt.Errorf("process batch: %w", err)
		}
	}
	if p.durable {
		if err := p.store.StoreTickBatch(ctx, ticks); err != nil {
			p.metrics.RecordError("tick_store_batch")
			return fmt.Errorf("store tick batch: %w", err)
		}
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

// Close releases the storage handle.
func (p *TickProcessor) Close() {
	if p.store != nil {
		_ = p.store.Close()
	}
}
