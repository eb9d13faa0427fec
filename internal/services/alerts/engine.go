// Package alerts manages user-defined threshold rules and their
// edge-triggered evaluation against live analytics values.
package alerts

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"PairPulse/internal/domain/models"
)

// Lookup resolves the current value of a rule's metric. ok is false when
// the value is not computable yet, which leaves the rule untouched.
type Lookup func(r *models.AlertRule) (value float64, ok bool)

// Engine is the in-memory rule registry. Mutations and evaluation are
// safe for concurrent use; persistence is the caller's concern via
// Export and Load.
type Engine struct {
	mu     sync.RWMutex
	rules  map[string]*models.AlertRule
	nextID uint64
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the trigger timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an empty rule registry.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rules: make(map[string]*models.AlertRule),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create registers a rule from its condition string, e.g. "zscore >".
// New rules start enabled and armed.
func (e *Engine) Create(instrument, condition string, threshold float64) (*models.AlertRule, error) {
	if instrument == "" {
		return nil, fmt.Errorf("%w: empty instrument", models.ErrInvalidParameter)
	}
	metric, cmp, err := models.ParseAlertCondition(condition)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	r := &models.AlertRule{
		ID:         fmt.Sprintf("alert-%d", e.nextID),
		Instrument: instrument,
		Metric:     metric,
		Comparator: cmp,
		Threshold:  threshold,
		Enabled:    true,
	}
	e.rules[r.ID] = r
	return cloneRule(r), nil
}

// Get returns a copy of the rule or models.ErrNotFound.
func (e *Engine) Get(id string) (*models.AlertRule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.rules[id]
	if !ok {
		return nil, fmt.Errorf("alert %q: %w", id, models.ErrNotFound)
	}
	return cloneRule(r), nil
}

// List returns copies of all rules ordered by ID.
func (e *Engine) List() []*models.AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*models.AlertRule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, cloneRule(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Delete removes a rule, failing with models.ErrNotFound when absent.
func (e *Engine) Delete(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rules[id]; !ok {
		return fmt.Errorf("alert %q: %w", id, models.ErrNotFound)
	}
	delete(e.rules, id)
	return nil
}

// SetEnabled toggles a rule. Disabling re-arms it, so re-enabling
// behaves like a fresh rule.
func (e *Engine) SetEnabled(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rules[id]
	if !ok {
		return fmt.Errorf("alert %q: %w", id, models.ErrNotFound)
	}
	r.Enabled = enabled
	if !enabled {
		r.Triggered = false
	}
	return nil
}

// Triggered is one alert firing with the value that crossed it.
type Triggered struct {
	Rule  models.AlertRule
	Value float64
}

// Evaluate runs every enabled rule against the lookup. A rule fires only
// on the edge: the first evaluation where the condition holds after one
// where it did not. It re-arms the first time the condition evaluates
// false again. Returned rules are copies taken at trigger time.
func (e *Engine) Evaluate(lookup Lookup) []Triggered {
	e.mu.Lock()
	defer e.mu.Unlock()

	var fired []Triggered
	ids := make([]string, 0, len(e.rules))
	for id := range e.rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		r := e.rules[id]
		if !r.Enabled {
			continue
		}
		value, ok := lookup(r)
		if !ok {
			continue
		}
		if !r.Matches(value) {
			r.Triggered = false // re-arm
			continue
		}
		if r.Triggered {
			continue // still latched from the previous crossing
		}
		r.Triggered = true
		ts := e.now().UTC()
		r.LastTriggered = &ts
		fired = append(fired, Triggered{Rule: *cloneRule(r), Value: value})
	}
	return fired
}

// Export returns copies of all rules for persistence, ordered by ID.
func (e *Engine) Export() []*models.AlertRule {
	return e.List()
}

// Load replaces the registry with persisted rules, keeping the ID
// counter ahead of any numeric suffix already in use.
func (e *Engine) Load(rules []*models.AlertRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = make(map[string]*models.AlertRule, len(rules))
	for _, r := range rules {
		if r == nil || r.ID == "" {
			continue
		}
		e.rules[r.ID] = cloneRule(r)
		var n uint64
		if _, err := fmt.Sscanf(r.ID, "alert-%d", &n); err == nil && n > e.nextID {
			e.nextID = n
		}
	}
}

func cloneRule(r *models.AlertRule) *models.AlertRule {
	c := *r
	if r.LastTriggered != nil {
		ts := *r.LastTriggered
		c.LastTriggered = &ts
	}
	return &c
}
