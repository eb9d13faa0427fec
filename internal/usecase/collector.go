// Package usecase wires the ingestion path (collector, pipeline,
// processor) to the analytics engine and exposes the engine facade its
// collaborators call.
package usecase

import (
	"context"

	"PairPulse/internal/domain/models"
	domrepo "PairPulse/internal/domain/repository"
	mid "PairPulse/internal/middleware"
)

// TickCollector reads the market stream and drives ticks through the
// pipeline into the processor. Reconnection is delegated back to the
// stream implementation.
type TickCollector struct {
	stream  domrepo.MarketStream
	proc    *TickProcessor
	metrics domrepo.Metrics
	pipe    *mid.RealtimePipeline
}

// NewTickCollector creates a collector over the given stream.
func NewTickCollector(stream domrepo.MarketStream, proc *TickProcessor, metrics domrepo.Metrics, pipe *mid.RealtimePipeline) *TickCollector {
	return &TickCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected reports whether the market stream is up.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes, and begins consuming in the background.
func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	tickCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tickCh, errCh)
	return nil
}

// consume drains the stream's channels and feeds ticks downstream. When
// the stream fails its read loop closes both channels; once both are
// drained the collector reconnects and resumes on fresh channels.
func (c *TickCollector) consume(ctx context.Context, tickCh <-chan *models.Tick, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				break
			}
			if err != nil {
				c.metrics.RecordError("stream")
			}
		case t, ok := <-tickCh:
			if !ok {
				tickCh = nil
				break
			}
			if t == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, t)
			} else {
				_ = c.proc.Process(ctx, t)
			}
		}
		if tickCh == nil && errCh == nil {
			tickCh, errCh = c.reconnect(ctx)
			if tickCh == nil {
				return
			}
		}
	}
}

// reconnect retries until the stream is back or the context ends. The
// stream implementation paces each attempt with its own delay.
func (c *TickCollector) reconnect(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	for {
		if ctx.Err() != nil {
			return nil, nil
		}
		if err := c.stream.Reconnect(ctx); err != nil {
			c.metrics.RecordError("stream_reconnect")
			continue
		}
		return c.stream.Read(ctx)
	}
}

// Processor returns the downstream processor for lifecycle management.
func (c *TickCollector) Processor() *TickProcessor { return c.proc }

// Shutdown stops the pipeline and closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
