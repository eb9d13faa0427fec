package models

import "errors"

// Typed failures returned by the engine. Callers match with errors.Is; the
// transport collaborator decides presentation. Degenerate denominators are
// never errors: the affected field is reported as nil instead (see
// PriceStats.ChangePct and CorrelationMatrix cells).
var (
	// ErrInsufficientData: a window or minimum sample requirement is unmet.
	// Recoverable by waiting for more data or widening the window.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNotFound: unknown instrument or alert id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidParameter: non-positive window, unknown estimator method,
	// unknown alert condition, or an otherwise malformed argument.
	ErrInvalidParameter = errors.New("invalid parameter")
)
