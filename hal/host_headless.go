package hal

import (
	"context"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	Hz      int
	Ticks   uint64
	Width   int
	Height  int
}

// RunHeadless runs the panel without opening a window. The surface keeps the
// configured size for the whole run.
func RunHeadless(ctx context.Context, h HAL, newApp func(HAL) App, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	host, ok := h.(*hostHAL)
	if !ok {
		return fmt.Errorf("headless runner needs the host HAL, got %T", h)
	}

	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}

	app := newApp(h)
	if app.Close != nil {
		defer app.Close()
	}
	if app.Layout != nil {
		w, ht := cfg.Width, cfg.Height
		if w <= 0 || ht <= 0 {
			w, ht = host.fb.Width(), host.fb.Height()
		}
		app.Layout(w, ht)
	}

	t := time.NewTicker(d)
	defer t.Stop()

	var tick uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if app.Step != nil {
				if err := app.Step(); err != nil {
					return err
				}
			}
			host.frames.run()
			tick++
			if cfg.Ticks > 0 && tick >= cfg.Ticks {
				return nil
			}
		}
	}
}
