package models

import (
	"errors"
	"time"
)

// Bar is an OHLCV bucket for one (instrument, resolution). BucketStart is
// the inclusive lower bound of the bucket; the bar covers
// [BucketStart, BucketStart+resolution).
type Bar struct {
	Instrument  string
	Resolution  string
	BucketStart time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
}

// Validate checks the OHLC invariants every emitted bar must hold.
func (b *Bar) Validate() error {
	if b.Instrument == "" {
		return errors.New("bar instrument empty")
	}
	if b.Resolution == "" {
		return errors.New("bar resolution empty")
	}
	if b.BucketStart.IsZero() {
		return errors.New("bar bucket start zero")
	}
	if b.High < b.Low {
		return errors.New("bar high below low")
	}
	if b.Open < b.Low || b.Open > b.High {
		return errors.New("bar open outside high/low range")
	}
	if b.Close < b.Low || b.Close > b.High {
		return errors.New("bar close outside high/low range")
	}
	if b.Volume < 0 {
		return errors.New("bar volume negative")
	}
	return nil
}
