package telemetry

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultRate is used when a source's rate is unset.
	DefaultRate = 30
	// MaxRate bounds source rates in frames per second.
	MaxRate = 1000
)

// Sink receives decoded frames. It is called from the source's goroutine.
type Sink func(Frame)

// Source produces frames until its context is cancelled.
type Source interface {
	Run(ctx context.Context, sink Sink) error
}

// ValidRate reports whether rate is usable as a configured source rate.
// Zero selects DefaultRate.
func ValidRate(rate float64) bool {
	return !math.IsNaN(rate) && rate >= 0 && rate <= MaxRate
}

// effectiveRate applies the default and clamps to MaxRate.
func effectiveRate(rate float64) float64 {
	switch {
	case math.IsNaN(rate) || rate <= 0:
		return DefaultRate
	case rate > MaxRate:
		return MaxRate
	}
	return rate
}

func tickInterval(rate float64) time.Duration {
	return time.Duration(float64(time.Second) / effectiveRate(rate))
}
