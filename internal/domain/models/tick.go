package models

import (
	"fmt"
	"time"
)

// Tick is a single trade observation for one instrument. Immutable once
// stored; ordering per instrument is by Timestamp.
type Tick struct {
	Instrument string
	Timestamp  time.Time // UTC
	Price      float64
	Quantity   float64
}

// Validate rejects malformed ticks before they reach the store.
func (t *Tick) Validate() error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}
	if t.Instrument == "" {
		return fmt.Errorf("tick instrument empty")
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("tick timestamp zero")
	}
	if t.Price <= 0 {
		return fmt.Errorf("tick price must be positive, got %v", t.Price)
	}
	if t.Quantity < 0 {
		return fmt.Errorf("tick quantity negative: %v", t.Quantity)
	}
	return nil
}

// Equal reports full-field equality, the identity used for idempotent appends.
func (t *Tick) Equal(o *Tick) bool {
	return o != nil &&
		t.Instrument == o.Instrument &&
		t.Timestamp.Equal(o.Timestamp) &&
		t.Price == o.Price &&
		t.Quantity == o.Quantity
}
