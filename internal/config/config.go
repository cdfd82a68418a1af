// Package config defines the process configuration and how it is layered
// from defaults, an optional YAML file and the environment.
package config

import (
	"time"

	"urdfpanel/panel/joints"
)

type Config struct {
	Log      LogConfig      `koanf:"log"`
	Assets   AssetsConfig   `koanf:"assets"`
	Options  OptionsConfig  `koanf:"options"`
	Joints   joints.Config  `koanf:"joints"`
	Surface  SurfaceConfig  `koanf:"surface"`
	Headless HeadlessConfig `koanf:"headless"`
	MQTT     MQTTConfig     `koanf:"mqtt"`
	Replay   ReplayConfig   `koanf:"replay"`
	Sine     SineConfig     `koanf:"sine"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Loader   LoaderConfig   `koanf:"loader"`
}

type LogConfig struct {
	// Level is debug, info, warn, error or off.
	Level string `koanf:"level"`
	// File switches logging from stdout to a rotated file.
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
}

type AssetsConfig struct {
	// Base is a directory or http(s) URL holding <variant>.urdf files.
	Base string `koanf:"base"`
	// Watch reloads a local description when it changes on disk.
	Watch bool `koanf:"watch"`
}

type OptionsConfig struct {
	File string `koanf:"file"`
}

type SurfaceConfig struct {
	Width  int    `koanf:"width"`
	Height int    `koanf:"height"`
	Title  string `koanf:"title"`
}

type HeadlessConfig struct {
	Hz    int    `koanf:"hz"`
	Ticks uint64 `koanf:"ticks"`
}

type MQTTConfig struct {
	// Broker enables the MQTT source, e.g. tcp://localhost:1883.
	Broker   string `koanf:"broker"`
	Topic    string `koanf:"topic"`
	ClientID string `koanf:"client_id"`
	QoS      byte   `koanf:"qos"`
}

type ReplayConfig struct {
	// File enables replay of recorded JSON-lines frames.
	File string  `koanf:"file"`
	Rate float64 `koanf:"rate"`
	Loop bool    `koanf:"loop"`
}

type SineConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Rate      float64       `koanf:"rate"`
	Period    time.Duration `koanf:"period"`
	Amplitude float64       `koanf:"amplitude"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. :9464.
	Addr string `koanf:"addr"`
}

type LoaderConfig struct {
	CacheTTL time.Duration `koanf:"cache_ttl"`
	// Timeout bounds one model load; 0 disables it.
	Timeout time.Duration `koanf:"timeout"`
}

// New returns the defaults.
func New() *Config {
	return &Config{
		Log:      LogConfig{Level: "info", MaxSizeMB: 10, MaxBackups: 3},
		Assets:   AssetsConfig{Base: "assets/ur_description/urdf", Watch: true},
		Options:  OptionsConfig{File: "urdfpanel-options.yaml"},
		Surface:  SurfaceConfig{Width: 960, Height: 640, Title: "urdfpanel"},
		Headless: HeadlessConfig{Hz: 60},
		MQTT:     MQTTConfig{Topic: "robot/telemetry"},
		Replay:   ReplayConfig{Rate: 30},
		Sine:     SineConfig{Rate: 30, Period: 8 * time.Second, Amplitude: 1},
		Loader:   LoaderConfig{CacheTTL: 5 * time.Minute},
	}
}
