package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"PairPulse/internal/aggregator"
	"PairPulse/internal/domain/models"
	domrepo "PairPulse/internal/domain/repository"
	svcache "PairPulse/internal/service/cache"
	"PairPulse/internal/services/alerts"
	"PairPulse/internal/services/analytics"
	"PairPulse/internal/tickstore"
	"PairPulse/pkg/cache"
	"PairPulse/pkg/logger"
)

// Engine is the analytics core facade. Ticks flow in through Ingest;
// every read operation works on closed-bar snapshots plus a guarded copy
// of the open bar, so readers never block the ingestion path.
type Engine struct {
	log       *logger.Logger
	metrics   domrepo.Metrics
	ticks     *tickstore.Store
	bars      *aggregator.Aggregator
	estimator *analytics.HedgeEstimator
	alerts    *alerts.Engine

	storage domrepo.Storage   // optional, resume + warm bar queries
	pub     domrepo.Publisher // optional, closed bars + alerts outward
	cache   cache.Service     // optional, hedge/correlation results

	cacheTTL    time.Duration
	seriesLimit int
	alertRes    domrepo.Resolution
	alertWindow int
	alertSnap   *svcache.TTLCache // metric snapshots within one eval cycle

	barCh chan *models.Bar
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithStorage wires the persistence collaborator used for restart resume
// and warm bar queries.
func WithStorage(s domrepo.Storage) EngineOption {
	return func(e *Engine) { e.storage = s }
}

// WithPublisher wires the notification sink for closed bars and alerts.
func WithPublisher(p domrepo.Publisher) EngineOption {
	return func(e *Engine) { e.pub = p }
}

// WithResultCache caches hedge-ratio and correlation-matrix results.
func WithResultCache(c cache.Service, ttl time.Duration) EngineOption {
	return func(e *Engine) {
		e.cache = c
		if ttl > 0 {
			e.cacheTTL = ttl
		}
	}
}

// WithSeriesLimit bounds how many aligned points derived series use.
func WithSeriesLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.seriesLimit = n
		}
	}
}

// WithAlertDefaults sets the resolution and window pair-metric alert
// rules are evaluated with.
func WithAlertDefaults(res domrepo.Resolution, window int) EngineOption {
	return func(e *Engine) {
		if domrepo.IsValidResolution(res) {
			e.alertRes = res
		}
		if window > 1 {
			e.alertWindow = window
		}
	}
}

// NewEngine wires the tick store into the aggregator and returns the
// facade. Sinks are registered here, before any ingestion starts.
func NewEngine(
	log *logger.Logger,
	metrics domrepo.Metrics,
	ticks *tickstore.Store,
	bars *aggregator.Aggregator,
	alertEngine *alerts.Engine,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		log:         log,
		metrics:     metrics,
		ticks:       ticks,
		bars:        bars,
		estimator:   analytics.NewHedgeEstimator(),
		alerts:      alertEngine,
		cacheTTL:    5 * time.Second,
		seriesLimit: 500,
		alertRes:    domrepo.DefaultResolution(),
		alertWindow: 20,
		alertSnap:   svcache.NewTTLCache(),
		barCh:       make(chan *models.Bar, 1024),
	}
	for _, opt := range opts {
		opt(e)
	}

	ticks.AddSink(func(t *models.Tick) { e.bars.OnTick(t) })
	bars.AddSink(e.onBarClosed)
	return e
}

// Start launches the background worker that persists and publishes
// closed bars. It returns once the worker is running.
func (e *Engine) Start(ctx context.Context) {
	go e.drainBars(ctx)
}

// Ingest appends one tick. The call validates, stores, and advances the
// aggregators synchronously; it never waits on analytics readers.
func (e *Engine) Ingest(ctx context.Context, t *models.Tick) error {
	if err := e.ticks.Append(t); err != nil {
		e.metrics.RecordError("ingest")
		return fmt.Errorf("ingest: %w", err)
	}
	e.metrics.RecordTickIngested(t.Instrument)
	e.metrics.RecordLastPrice(t.Instrument, t.Price)
	return nil
}

// FlushBars closes every open bar whose bucket has elapsed at now.
// Driven by the server's clock so idle instruments still emit their
// final bar.
func (e *Engine) FlushBars(now time.Time) {
	e.bars.Flush(now)
}

// Instruments lists every instrument the engine has seen, sorted.
func (e *Engine) Instruments() []string {
	return e.ticks.Instruments()
}

// Restore replays recent ticks from storage through the aggregators and
// reloads persisted alert rules. Called once on startup, before the live
// stream is attached.
func (e *Engine) Restore(ctx context.Context, instruments []string, retention time.Duration) error {
	if e.storage == nil {
		return nil
	}
	since := time.Now().UTC().Add(-retention)
	for _, inst := range instruments {
		ticks, err := e.storage.QueryTicks(ctx, inst, since, time.Time{}, 0)
		if err != nil {
			return fmt.Errorf("restore %s: %w", inst, err)
		}
		for _, t := range ticks {
			if err := e.ticks.Append(t); err != nil {
				e.log.Warn("restore: skip tick", logger.String("instrument", inst), logger.Error(err))
			}
		}
		e.log.Info("restored instrument",
			logger.String("instrument", inst),
			logger.Int("ticks", len(ticks)))
	}

	rules, err := e.storage.LoadAlertRules(ctx)
	if err != nil {
		return fmt.Errorf("restore alerts: %w", err)
	}
	e.alerts.Load(rules)
	return nil
}

// GetBars returns the bar series for (instrument, resolution) in
// [from, to]. Ranges older than the in-memory horizon fall back to
// storage when it is configured.
func (e *Engine) GetBars(ctx context.Context, instrument string, res domrepo.Resolution, from, to time.Time, limit int) ([]models.Bar, error) {
	if !domrepo.IsValidResolution(res) {
		return nil, fmt.Errorf("%w: resolution %q", models.ErrInvalidParameter, res)
	}
	out := e.bars.Bars(instrument, res, from, to, limit)
	if len(out) > 0 {
		return out, nil
	}
	if e.storage != nil {
		stored, err := e.storage.QueryBars(ctx, instrument, res, from, to, limit)
		if err == nil && len(stored) > 0 {
			out = make([]models.Bar, len(stored))
			for i, b := range stored {
				out[i] = *b
			}
			return out, nil
		}
	}
	if e.ticks.Len(instrument) == 0 {
		return nil, fmt.Errorf("instrument %q: %w", instrument, models.ErrNotFound)
	}
	return nil, nil
}

// GetPriceStats computes windowed descriptive statistics over the most
// recent closed bars.
func (e *Engine) GetPriceStats(ctx context.Context, instrument string, res domrepo.Resolution, window int) (*models.PriceStats, error) {
	if !domrepo.IsValidResolution(res) {
		return nil, fmt.Errorf("%w: resolution %q", models.ErrInvalidParameter, res)
	}
	if window < 1 {
		return nil, fmt.Errorf("%w: window %d", models.ErrInvalidParameter, window)
	}
	bars, err := e.bars.LastNClosed(instrument, res, window)
	if err != nil {
		return nil, err
	}
	return analytics.ComputeStats(bars, window)
}

// GetLiquidity derives volume metrics over the most recent closed bars.
func (e *Engine) GetLiquidity(ctx context.Context, instrument string, res domrepo.Resolution, window int) (*models.LiquidityStats, error) {
	if !domrepo.IsValidResolution(res) {
		return nil, fmt.Errorf("%w: resolution %q", models.ErrInvalidParameter, res)
	}
	if window < 1 {
		return nil, fmt.Errorf("%w: window %d", models.ErrInvalidParameter, window)
	}
	bars, err := e.bars.LastNClosed(instrument, res, window)
	if err != nil {
		return nil, err
	}
	return analytics.ComputeLiquidity(bars, window)
}

// GetHedgeRatio estimates the hedge ratio of a against b. Batch methods
// are cached briefly; the Kalman filter state persists per
// (pair, resolution, window) and is never cached.
func (e *Engine) GetHedgeRatio(ctx context.Context, a, b string, res domrepo.Resolution, method string, window int) (*models.HedgeRatioResult, error) {
	m, err := analytics.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	if !domrepo.IsValidResolution(res) {
		return nil, fmt.Errorf("%w: resolution %q", models.ErrInvalidParameter, res)
	}

	cacheKey := cache.GenerateKeyWithParams("hedge", a, b, res, m, window)
	if e.cache != nil && m != analytics.MethodKalman {
		var cached models.HedgeRatioResult
		if err := e.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	pair, err := e.alignedPair(a, b, res, window*2)
	if err != nil {
		return nil, err
	}
	stateKey := fmt.Sprintf("%s|%s|%s|%d", a, b, res, window)

	start := time.Now()
	result, err := e.estimator.Estimate(m, stateKey, a, b, pair, window)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordLatency("hedge_ratio", time.Since(start).Seconds())

	if e.cache != nil && m != analytics.MethodKalman {
		if err := e.cache.Set(ctx, cacheKey, result, e.cacheTTL); err != nil {
			e.log.Debug("hedge cache set failed", logger.Error(err))
		}
	}
	return result, nil
}

// GetSpread builds spread = closeA - ratio*closeB over the aligned pair.
// When ratio is nil it is estimated by OLS over the window.
func (e *Engine) GetSpread(ctx context.Context, a, b string, res domrepo.Resolution, window int, ratio *float64) ([]models.SeriesPoint, error) {
	pair, h, err := e.pairWithRatio(ctx, a, b, res, window, ratio)
	if err != nil {
		return nil, err
	}
	return analytics.Spread(pair, h), nil
}

// GetZScore returns the rolling z-score of the pair's spread. The series
// is NaN-free: flat windows yield 0 and leading short windows are
// omitted.
func (e *Engine) GetZScore(ctx context.Context, a, b string, res domrepo.Resolution, window int) ([]models.SeriesPoint, error) {
	pair, h, err := e.pairWithRatio(ctx, a, b, res, window, nil)
	if err != nil {
		return nil, err
	}
	return analytics.ZScores(analytics.Spread(pair, h), window)
}

// GetCorrelation returns the trailing-window Pearson correlation series
// of the pair's closes.
func (e *Engine) GetCorrelation(ctx context.Context, a, b string, res domrepo.Resolution, window int) ([]models.SeriesPoint, error) {
	if !domrepo.IsValidResolution(res) {
		return nil, fmt.Errorf("%w: resolution %q", models.ErrInvalidParameter, res)
	}
	pair, err := e.alignedPair(a, b, res, e.seriesLimit)
	if err != nil {
		return nil, err
	}
	return analytics.RollingCorrelation(pair, window)
}

// GetCorrelationMatrix computes the pairwise correlation matrix. An
// empty instrument list means every instrument the engine has seen.
func (e *Engine) GetCorrelationMatrix(ctx context.Context, instruments []string, res domrepo.Resolution, window int) (*models.CorrelationMatrix, error) {
	if !domrepo.IsValidResolution(res) {
		return nil, fmt.Errorf("%w: resolution %q", models.ErrInvalidParameter, res)
	}
	if len(instruments) == 0 {
		instruments = e.Instruments()
	}

	cacheKey := cache.GenerateKeyWithParams("corr", res, window, strings.Join(instruments, ","))
	if e.cache != nil {
		var cached models.CorrelationMatrix
		if err := e.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	series := make(map[string][]models.Bar, len(instruments))
	for _, inst := range instruments {
		bars, err := e.closedBars(inst, res, window*2)
		if err != nil {
			continue // unseen or still warming: nil cells
		}
		series[inst] = bars
	}

	start := time.Now()
	m, err := analytics.BuildCorrelationMatrix(instruments, series, window)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordLatency("correlation_matrix", time.Since(start).Seconds())

	if e.cache != nil {
		if err := e.cache.Set(ctx, cacheKey, m, e.cacheTTL); err != nil {
			e.log.Debug("corr cache set failed", logger.Error(err))
		}
	}
	return m, nil
}

// RunADFTest tests the pair's OLS spread for stationarity.
func (e *Engine) RunADFTest(ctx context.Context, a, b string, res domrepo.Resolution) (*models.StationarityResult, error) {
	if !domrepo.IsValidResolution(res) {
		return nil, fmt.Errorf("%w: resolution %q", models.ErrInvalidParameter, res)
	}
	pair, err := e.alignedPair(a, b, res, e.seriesLimit)
	if err != nil {
		return nil, err
	}
	hedge, err := e.estimator.Estimate(analytics.MethodOLS, "", a, b, pair, pair.Len())
	if err != nil {
		return nil, err
	}
	spread := analytics.Spread(pair, hedge.Ratio)
	values := make([]float64, len(spread))
	for i, p := range spread {
		values[i] = p.Value
	}
	return analytics.ADFTest(values)
}

// RunBacktest replays the mean-reversion rule over the pair's z-score
// series.
func (e *Engine) RunBacktest(ctx context.Context, a, b string, res domrepo.Resolution, entryZ, exitZ float64, window int) (*models.BacktestResult, error) {
	pair, h, err := e.pairWithRatio(ctx, a, b, res, window, nil)
	if err != nil {
		return nil, err
	}
	spread := analytics.Spread(pair, h)
	zs, err := analytics.ZScores(spread, window)
	if err != nil {
		return nil, err
	}

	// zs[i] corresponds to spread[window-1+i]; join them by index.
	points := make([]analytics.BacktestPoint, len(zs))
	for i := range zs {
		points[i] = analytics.BacktestPoint{
			Timestamp: zs[i].Timestamp,
			Spread:    spread[window-1+i].Value,
			Z:         zs[i].Value,
		}
	}

	result, err := analytics.Backtest(points, entryZ, exitZ)
	if err != nil {
		return nil, err
	}
	result.InstrumentA = a
	result.InstrumentB = b
	result.Window = window
	return result, nil
}

// CreateAlert registers a rule from its condition string. Pair metrics
// (zscore, spread) take the instrument as "A/B".
func (e *Engine) CreateAlert(ctx context.Context, instrument, condition string, threshold float64) (*models.AlertRule, error) {
	r, err := e.alerts.Create(instrument, condition, threshold)
	if err != nil {
		return nil, err
	}
	e.persistAlerts(ctx)
	return r, nil
}

// DeleteAlert removes a rule.
func (e *Engine) DeleteAlert(ctx context.Context, id string) error {
	if err := e.alerts.Delete(id); err != nil {
		return err
	}
	e.persistAlerts(ctx)
	return nil
}

// ListAlerts returns all rules ordered by ID.
func (e *Engine) ListAlerts() []*models.AlertRule {
	return e.alerts.List()
}

// SetAlertEnabled toggles a rule.
func (e *Engine) SetAlertEnabled(ctx context.Context, id string, enabled bool) error {
	if err := e.alerts.SetEnabled(id, enabled); err != nil {
		return err
	}
	e.persistAlerts(ctx)
	return nil
}

// EvaluateAlerts runs one evaluation cycle against the latest analytics
// values and publishes every firing. Called on a timer independent of
// ingestion; it tolerates stale-by-one-cycle data.
func (e *Engine) EvaluateAlerts(ctx context.Context) []alerts.Triggered {
	fired := e.alerts.Evaluate(func(r *models.AlertRule) (float64, bool) {
		return e.alertValue(ctx, r)
	})
	for _, f := range fired {
		e.metrics.RecordAlertTriggered(string(f.Rule.Metric))
		e.log.Info("alert triggered",
			logger.String("id", f.Rule.ID),
			logger.String("instrument", f.Rule.Instrument),
			logger.String("condition", f.Rule.Condition()),
			logger.Any("value", f.Value))
		if e.pub != nil {
			rule := f.Rule
			if err := e.pub.PublishAlert(ctx, &rule, f.Value); err != nil {
				e.metrics.RecordError("alert_publish")
				e.log.Error("publish alert", logger.Error(err))
			}
		}
	}
	if len(fired) > 0 {
		e.persistAlerts(ctx)
	}
	return fired
}

// alertValue resolves the current metric value for a rule. Price rules
// read the newest tick; pair rules compute the latest spread or z-score
// with the engine's alert defaults.
func (e *Engine) alertValue(ctx context.Context, r *models.AlertRule) (float64, bool) {
	switch r.Metric {
	case models.MetricPrice:
		ticks, err := e.ticks.Range(r.Instrument, time.Time{}, time.Time{}, 1)
		if err != nil || len(ticks) == 0 {
			return 0, false
		}
		return ticks[len(ticks)-1].Price, true
	case models.MetricSpread, models.MetricZScore:
		a, b, ok := splitPair(r.Instrument)
		if !ok {
			return 0, false
		}
		snapKey := string(r.Metric) + ":" + r.Instrument
		if v, ok := e.alertSnap.Get(snapKey); ok {
			return v.(float64), true
		}
		var series []models.SeriesPoint
		var err error
		if r.Metric == models.MetricSpread {
			series, err = e.GetSpread(ctx, a, b, e.alertRes, e.alertWindow, nil)
		} else {
			series, err = e.GetZScore(ctx, a, b, e.alertRes, e.alertWindow)
		}
		if err != nil || len(series) == 0 {
			return 0, false
		}
		v := series[len(series)-1].Value
		// Rules sharing a pair reuse the value within one eval cycle.
		e.alertSnap.Set(snapKey, v, time.Second)
		return v, true
	}
	return 0, false
}

func (e *Engine) persistAlerts(ctx context.Context) {
	if e.storage == nil {
		return
	}
	if err := e.storage.SaveAlertRules(ctx, e.alerts.Export()); err != nil {
		e.metrics.RecordError("alert_persist")
		e.log.Error("persist alert rules", logger.Error(err))
	}
}

// pairWithRatio fetches the aligned pair and resolves the hedge ratio,
// estimating it by OLS over the window when none is supplied.
func (e *Engine) pairWithRatio(ctx context.Context, a, b string, res domrepo.Resolution, window int, ratio *float64) (*analytics.AlignedPair, float64, error) {
	if !domrepo.IsValidResolution(res) {
		return nil, 0, fmt.Errorf("%w: resolution %q", models.ErrInvalidParameter, res)
	}
	pair, err := e.alignedPair(a, b, res, e.seriesLimit)
	if err != nil {
		return nil, 0, err
	}
	if ratio != nil {
		return pair, *ratio, nil
	}
	hedge, err := e.estimator.Estimate(analytics.MethodOLS, "", a, b, pair, max(window, analytics.MinHedgePoints))
	if err != nil {
		return nil, 0, err
	}
	return pair, hedge.Ratio, nil
}

func (e *Engine) alignedPair(a, b string, res domrepo.Resolution, maxBars int) (*analytics.AlignedPair, error) {
	aa, err := e.closedBars(a, res, maxBars)
	if err != nil {
		return nil, err
	}
	bb, err := e.closedBars(b, res, maxBars)
	if err != nil {
		return nil, err
	}
	return analytics.AlignBars(aa, bb), nil
}

// closedBars returns up to maxBars of the most recent closed bars.
func (e *Engine) closedBars(instrument string, res domrepo.Resolution, maxBars int) ([]models.Bar, error) {
	n := e.bars.ClosedCount(instrument, res)
	if n == 0 {
		// Distinguishes unknown instrument from one still warming up.
		if _, err := e.bars.LastNClosed(instrument, res, 1); err != nil {
			return nil, err
		}
	}
	if maxBars > 0 && n > maxBars {
		n = maxBars
	}
	return e.bars.LastNClosed(instrument, res, n)
}

// onBarClosed runs on the ingestion path; it records the close and hands
// the bar to the background worker without blocking.
func (e *Engine) onBarClosed(b *models.Bar) {
	e.metrics.RecordBarClosed(b.Instrument, b.Resolution)
	select {
	case e.barCh <- b:
	default:
		e.metrics.RecordError("bar_queue_full")
	}
}

func (e *Engine) drainBars(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-e.barCh:
			if e.storage != nil {
				if err := e.storage.StoreBar(ctx, b); err != nil {
					e.metrics.RecordError("bar_store")
					e.log.Error("store bar", logger.Error(err))
				}
			}
			if e.pub != nil {
				if err := e.pub.PublishBar(ctx, b); err != nil {
					e.metrics.RecordError("bar_publish")
					e.log.Error("publish bar", logger.Error(err))
				}
			}
		}
	}
}

func splitPair(s string) (a, b string, ok bool) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
