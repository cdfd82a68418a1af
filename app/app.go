// Package app wires the panel to a host: event queue, option store,
// telemetry sources, model loader and input.
package app

import (
	"context"
	"errors"
	"sync"

	"urdfpanel/hal"
	"urdfpanel/internal/config"
	"urdfpanel/internal/logging"
	"urdfpanel/kernel"
	"urdfpanel/panel"
	"urdfpanel/panel/metrics"
	"urdfpanel/panel/model"
	"urdfpanel/panel/options"
	"urdfpanel/panel/telemetry"
)

type Config struct {
	Cfg     *config.Config
	Log     *logging.Root
	Metrics *metrics.Manager
	// Model overrides the persisted variant for this run.
	Model options.Variant
}

type system struct {
	h   hal.HAL
	cfg Config
	log logging.Log

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	loop   *kernel.Loop
	loader *model.FetchLoader
	store  *options.Store
	panel  *panel.Panel
	opts   options.Options

	sources []telemetry.Source
	started bool
	failed  error
}

// New builds the application for h. Construction errors surface from the
// first Step.
func New(h hal.HAL, cfg Config) hal.App {
	s := &system{h: h, cfg: cfg, log: cfg.Log.Get("app")}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if err := s.init(); err != nil {
		s.log.Errorf("init: %v", err)
		s.failed = err
	}
	return hal.App{Layout: s.layout, Step: s.step, Close: s.close}
}

func (s *system) init() error {
	c := s.cfg.Cfg
	if c == nil {
		return errors.New("app: missing config")
	}
	s.loop = kernel.NewLoop()
	s.cfg.Metrics.RegisterMailbox(s.loop.Pending, s.loop.Dropped)

	s.loader = model.NewFetchLoader(model.FetchOptions{
		CacheTTL: c.Loader.CacheTTL,
		Timeout:  c.Loader.Timeout,
		Log:      s.cfg.Log.Get("loader"),
	})

	store, err := options.NewStore(c.Options.File, s.cfg.Log.Get("options"))
	if err != nil {
		return err
	}
	s.store = store
	s.opts, err = store.Load()
	if err != nil {
		s.log.Warnf("options: %v, using defaults", err)
		s.opts = options.Defaults()
	}
	if s.cfg.Model != "" {
		s.opts.Model = s.cfg.Model
	}

	p, err := panel.New(panel.Config{
		Frames:            s.h.Frames(),
		Exec:              s.loop,
		Loader:            s.loader,
		Joints:            c.Joints,
		AssetsBase:        c.Assets.Base,
		WatchDescriptions: c.Assets.Watch,
		Persist:           store.Save,
		Log:               s.cfg.Log.Get("panel"),
		Metrics:           s.cfg.Metrics,
	})
	if err != nil {
		return err
	}
	s.panel = p
	s.sources = s.buildSources()
	return nil
}

func (s *system) buildSources() []telemetry.Source {
	c := s.cfg.Cfg
	var out []telemetry.Source
	if c.MQTT.Broker != "" {
		src := telemetry.NewMQTTSource(c.MQTT.Broker, c.MQTT.Topic, c.MQTT.ClientID, s.cfg.Log.Get("mqtt"))
		src.QoS = c.MQTT.QoS
		out = append(out, src)
	}
	if c.Replay.File != "" {
		out = append(out, &telemetry.ReplaySource{
			Path: c.Replay.File,
			Rate: c.Replay.Rate,
			Loop: c.Replay.Loop,
			Log:  s.cfg.Log.Get("replay"),
		})
	}
	if c.Sine.Enabled {
		cols := make([]string, 0, len(c.Joints))
		for _, b := range c.Joints {
			if b.Source != "" {
				cols = append(cols, b.Source)
			}
		}
		out = append(out, &telemetry.SineSource{
			Columns:   cols,
			Rate:      c.Sine.Rate,
			Period:    c.Sine.Period,
			Amplitude: c.Sine.Amplitude,
		})
	}
	return out
}

// layout mounts on the first call and resizes afterwards.
func (s *system) layout(w, h int) {
	if s.failed != nil {
		return
	}
	if !s.panel.Mounted() {
		if err := s.panel.Mount(s.h.Display().Framebuffer(), w, h, s.opts); err != nil {
			s.failed = err
			return
		}
		s.start()
		return
	}
	s.panel.OnResize(w, h)
}

// start launches the producers. Each posts its results onto the loop.
func (s *system) start() {
	if s.started {
		return
	}
	s.started = true
	sink := func(f telemetry.Frame) {
		s.loop.Post(func() { s.panel.OnFrame(f) })
	}
	for _, src := range s.sources {
		src := src
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := src.Run(s.ctx, sink); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Errorf("telemetry source stopped: %v", err)
			}
		}()
	}
	err := s.store.Watch(func(o options.Options) {
		s.loop.Post(func() { s.panel.OnOptions(o) })
	})
	if err != nil {
		s.log.Warnf("options watch: %v", err)
	}
}

func (s *system) step() error {
	if s.failed != nil {
		return s.failed
	}
	s.pollInput()
	s.loop.Drain(0)
	return nil
}

func (s *system) pollInput() {
	in := s.h.Input()
	if in == nil {
		return
	}
	if kbd := in.Keyboard(); kbd != nil {
		for drained := false; !drained; {
			select {
			case ev := <-kbd.Events():
				s.panel.HandleKey(ev)
			default:
				drained = true
			}
		}
	}
	if ptr := in.Pointer(); ptr != nil {
		for drained := false; !drained; {
			select {
			case ev := <-ptr.Events():
				s.panel.HandlePointer(ev)
			default:
				drained = true
			}
		}
	}
}

func (s *system) close() {
	s.cancel()
	s.wg.Wait()
	if s.store != nil {
		s.store.Close()
	}
	if s.panel != nil {
		s.panel.Unmount()
	}
	if s.loader != nil {
		s.loader.Close()
	}
	// Completions still queued only dispose their orphans.
	if s.loop != nil {
		s.loop.Drain(0)
	}
}
