package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"gopkg.in/natefinch/lumberjack.v2"

	"urdfpanel/app"
	"urdfpanel/hal"
	"urdfpanel/internal/buildinfo"
	"urdfpanel/internal/config"
	"urdfpanel/internal/logging"
	"urdfpanel/panel/metrics"
	"urdfpanel/panel/options"
)

type cli struct {
	Config   string           `help:"YAML config file." type:"path" env:"URDFPANEL_CONFIG"`
	Headless bool             `help:"Run without a window."`
	Hz       int              `help:"Tick rate in headless mode."`
	Ticks    uint64           `help:"Stop after N ticks in headless mode (0 = run forever)."`
	Model    string           `help:"Model variant to show (ur16e, ur10e); overrides the saved option."`
	LogLevel string           `help:"Log level (debug, info, warn, error, off)."`
	Version  kong.VersionFlag `help:"Print version and exit."`
}

func main() {
	var c cli
	kong.Parse(&c,
		kong.Name("urdfpanel"),
		kong.Description("Robot arm panel driven by live joint telemetry."),
		kong.Vars{"version": buildinfo.Version + " (" + buildinfo.Commit + ")"},
		kong.UsageOnError(),
	)
	if err := run(c); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c cli) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if c.Hz > 0 {
		cfg.Headless.Hz = c.Hz
	}
	if c.Ticks > 0 {
		cfg.Headless.Ticks = c.Ticks
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	var variant options.Variant
	if c.Model != "" {
		if variant, err = options.ParseVariant(c.Model); err != nil {
			return err
		}
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}

	var logw io.Writer = os.Stdout
	if cfg.Log.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			LocalTime:  true,
		}
		defer lj.Close()
		logw = lj
	}

	h := hal.New(hal.Config{LogWriter: logw, Width: cfg.Surface.Width, Height: cfg.Surface.Height})
	root := logging.New(h.Logger(), level)
	log := root.Get("main")
	log.Infof("urdfpanel %s starting", buildinfo.Short())

	m := metrics.NewManager(metrics.WithProcessCollectors())
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, m, log)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	newApp := func(h hal.HAL) hal.App {
		return app.New(h, app.Config{Cfg: cfg, Log: root, Metrics: m, Model: variant})
	}

	if c.Headless {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return hal.RunHeadless(ctx, h, newApp, hal.HeadlessConfig{
			Enabled: true,
			Hz:      cfg.Headless.Hz,
			Ticks:   cfg.Headless.Ticks,
			Width:   cfg.Surface.Width,
			Height:  cfg.Surface.Height,
		})
	}
	return hal.RunWindow(h, newApp, hal.WindowConfig{
		Title:  cfg.Surface.Title,
		Width:  cfg.Surface.Width,
		Height: cfg.Surface.Height,
	})
}

func serveMetrics(addr string, m *metrics.Manager, log logging.Log) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server: %v", err)
		}
	}()
	log.Infof("metrics on %s/metrics", addr)
	return srv
}
