package alerts

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairPulse/internal/domain/models"
)

func constLookup(v float64) Lookup {
	return func(*models.AlertRule) (float64, bool) { return v, true }
}

func TestCreateParsesCondition(t *testing.T) {
	e := NewEngine()

	r, err := e.Create("BTCUSDT", "zscore >", 2.0)
	require.NoError(t, err)
	assert.Equal(t, "alert-1", r.ID)
	assert.Equal(t, models.MetricZScore, r.Metric)
	assert.Equal(t, models.CompareAbove, r.Comparator)
	assert.True(t, r.Enabled)
	assert.False(t, r.Triggered)

	_, err = e.Create("BTCUSDT", "volume >", 2.0)
	assert.True(t, errors.Is(err, models.ErrInvalidParameter))

	_, err = e.Create("", "price >", 2.0)
	assert.True(t, errors.Is(err, models.ErrInvalidParameter))
}

func TestCRUD(t *testing.T) {
	e := NewEngine()
	r1, err := e.Create("BTCUSDT", "price >", 50000)
	require.NoError(t, err)
	_, err = e.Create("ETHUSDT", "price <", 2000)
	require.NoError(t, err)

	all := e.List()
	require.Len(t, all, 2)
	assert.Equal(t, "alert-1", all[0].ID)
	assert.Equal(t, "alert-2", all[1].ID)

	got, err := e.Get(r1.ID)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, got.Threshold)

	require.NoError(t, e.Delete(r1.ID))
	_, err = e.Get(r1.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.True(t, errors.Is(e.Delete(r1.ID), models.ErrNotFound))
}

func TestEvaluateFiresOnEdgeOnly(t *testing.T) {
	e := NewEngine()
	_, err := e.Create("BTCUSDT", "zscore >", 2.0)
	require.NoError(t, err)

	// First crossing fires.
	fired := e.Evaluate(constLookup(2.5))
	require.Len(t, fired, 1)
	assert.Equal(t, 2.5, fired[0].Value)
	assert.True(t, fired[0].Rule.Triggered)
	require.NotNil(t, fired[0].Rule.LastTriggered)

	// Condition still true: latched, no repeat.
	assert.Empty(t, e.Evaluate(constLookup(3.0)))
	assert.Empty(t, e.Evaluate(constLookup(2.1)))

	// Condition false re-arms without firing.
	assert.Empty(t, e.Evaluate(constLookup(1.0)))

	// Next crossing fires again.
	fired = e.Evaluate(constLookup(2.2))
	require.Len(t, fired, 1)
}

func TestEvaluateBelowComparator(t *testing.T) {
	e := NewEngine()
	_, err := e.Create("ETHUSDT", "price <", 2000)
	require.NoError(t, err)

	assert.Empty(t, e.Evaluate(constLookup(2500)))
	fired := e.Evaluate(constLookup(1900))
	require.Len(t, fired, 1)
	assert.Equal(t, 1900.0, fired[0].Value)
}

func TestEvaluateSkipsDisabledAndUnresolvable(t *testing.T) {
	e := NewEngine()
	r, err := e.Create("BTCUSDT", "spread >", 10)
	require.NoError(t, err)

	require.NoError(t, e.SetEnabled(r.ID, false))
	assert.Empty(t, e.Evaluate(constLookup(100)))

	require.NoError(t, e.SetEnabled(r.ID, true))
	noValue := func(*models.AlertRule) (float64, bool) { return 0, false }
	assert.Empty(t, e.Evaluate(noValue))

	fired := e.Evaluate(constLookup(100))
	require.Len(t, fired, 1)
}

func TestDisableRearms(t *testing.T) {
	e := NewEngine()
	r, err := e.Create("BTCUSDT", "zscore >", 2.0)
	require.NoError(t, err)

	require.Len(t, e.Evaluate(constLookup(3.0)), 1)
	require.NoError(t, e.SetEnabled(r.ID, false))
	require.NoError(t, e.SetEnabled(r.ID, true))

	// Re-enabled rule behaves like a fresh one even though the condition
	// never went false in between.
	require.Len(t, e.Evaluate(constLookup(3.0)), 1)
}

func TestExportLoadRoundTrip(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine(WithClock(func() time.Time { return now }))
	_, err := e.Create("BTCUSDT", "zscore >", 2.0)
	require.NoError(t, err)
	_, err = e.Create("ETHUSDT", "price <", 2000)
	require.NoError(t, err)
	require.Len(t, e.Evaluate(func(r *models.AlertRule) (float64, bool) {
		return 3.0, r.Metric == models.MetricZScore
	}), 1)

	restored := NewEngine()
	restored.Load(e.Export())

	rules := restored.List()
	require.Len(t, rules, 2)
	assert.True(t, rules[0].Triggered)
	require.NotNil(t, rules[0].LastTriggered)
	assert.Equal(t, now, rules[0].LastTriggered.UTC())

	// The ID counter continues past loaded rules.
	r3, err := restored.Create("SOLUSDT", "price >", 100)
	require.NoError(t, err)
	assert.Equal(t, "alert-3", r3.ID)

	// A latched loaded rule does not refire until it re-arms.
	assert.Empty(t, restored.Evaluate(func(r *models.AlertRule) (float64, bool) {
		return 3.0, r.Metric == models.MetricZScore
	}))
}
