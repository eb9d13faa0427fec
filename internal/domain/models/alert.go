package models

import (
	"fmt"
	"strings"
	"time"
)

// AlertMetric names the analytics value an alert rule watches.
type AlertMetric string

const (
	MetricZScore AlertMetric = "zscore"
	MetricPrice  AlertMetric = "price"
	MetricSpread AlertMetric = "spread"
)

// AlertComparator is the comparison applied against the threshold.
type AlertComparator string

const (
	CompareAbove AlertComparator = ">"
	CompareBelow AlertComparator = "<"
)

// AlertRule is a user-defined threshold condition. Triggered and
// LastTriggered are mutated only by the alert engine; triggering is
// edge-based with re-arm on the condition first evaluating false again.
type AlertRule struct {
	ID            string
	Instrument    string
	Metric        AlertMetric
	Comparator    AlertComparator
	Threshold     float64
	Enabled       bool
	Triggered     bool
	LastTriggered *time.Time
}

// ParseAlertCondition splits a condition like "zscore >" into its metric
// and comparator parts.
func ParseAlertCondition(s string) (AlertMetric, AlertComparator, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return "", "", fmt.Errorf("%w: condition %q", ErrInvalidParameter, s)
	}
	m := AlertMetric(fields[0])
	switch m {
	case MetricZScore, MetricPrice, MetricSpread:
	default:
		return "", "", fmt.Errorf("%w: unknown metric %q", ErrInvalidParameter, fields[0])
	}
	c := AlertComparator(fields[1])
	switch c {
	case CompareAbove, CompareBelow:
	default:
		return "", "", fmt.Errorf("%w: unknown comparator %q", ErrInvalidParameter, fields[1])
	}
	return m, c, nil
}

// Condition renders the rule back to its "metric comparator" form.
func (r *AlertRule) Condition() string {
	return string(r.Metric) + " " + string(r.Comparator)
}

// Matches evaluates the rule's comparison against a metric value.
func (r *AlertRule) Matches(value float64) bool {
	if r.Comparator == CompareAbove {
		return value > r.Threshold
	}
	return value < r.Threshold
}
