package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksIngested   *prometheus.CounterVec
	barsClosed      *prometheus.CounterVec
	alertsTriggered *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	lastPrice       *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairpulse_ticks_ingested_total",
				Help: "Total number of ticks accepted into the engine",
			},
			[]string{"instrument"},
		),
		barsClosed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairpulse_bars_closed_total",
				Help: "Total number of closed bars per instrument and resolution",
			},
			[]string{"instrument", "resolution"},
		),
		alertsTriggered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairpulse_alerts_triggered_total",
				Help: "Total number of alert firings by metric",
			},
			[]string{"metric"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairpulse_last_price",
				Help: "Last recorded price for an instrument",
			},
			[]string{"instrument"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pairpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordTickIngested counts an accepted tick.
func (r *Recorder) RecordTickIngested(instrument string) {
	r.ticksIngested.WithLabelValues(instrument).Inc()
}

// RecordBarClosed counts a closed bar.
func (r *Recorder) RecordBarClosed(instrument, res string) {
	r.barsClosed.WithLabelValues(instrument, res).Inc()
}

// RecordAlertTriggered counts an alert firing.
func (r *Recorder) RecordAlertTriggered(metric string) {
	r.alertsTriggered.WithLabelValues(metric).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for an instrument.
func (r *Recorder) RecordLastPrice(instrument string, price float64) {
	r.lastPrice.WithLabelValues(instrument).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
