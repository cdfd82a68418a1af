package telemetry

import (
	"context"
	"math"
	"time"
)

// SineSource emits a sine wave per column with evenly spread phases. It is
// used for demos and for driving the panel without a broker.
type SineSource struct {
	Columns   []string
	Rate      float64 // frames per second
	Period    time.Duration
	Amplitude float64 // radians

	now func() time.Time
}

// Sample returns the frame for elapsed time t.
func (s *SineSource) Sample(t time.Duration) Frame {
	period := s.Period
	if period <= 0 {
		period = 8 * time.Second
	}
	amp := s.Amplitude
	if amp == 0 {
		amp = math.Pi / 4
	}
	w := 2 * math.Pi * t.Seconds() / period.Seconds()
	f := Frame{Columns: make([]Column, len(s.Columns))}
	for i, name := range s.Columns {
		phase := 2 * math.Pi * float64(i) / float64(len(s.Columns))
		f.Columns[i] = NumberColumn(name, amp*math.Sin(w+phase))
	}
	return f
}

func (s *SineSource) Run(ctx context.Context, sink Sink) error {
	now := s.now
	if now == nil {
		now = time.Now
	}
	start := now()
	ticker := time.NewTicker(tickInterval(s.Rate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t := now()
			f := s.Sample(t.Sub(start))
			f.At = t
			sink(f)
		}
	}
}
