package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"urdfpanel/internal/logging"
	"urdfpanel/panel/joints"
	"urdfpanel/panel/telemetry"
)

const (
	EnvPrefix = "URDFPANEL_"
	EnvConfig = EnvPrefix + "CONFIG"
)

// Load builds a Config by layering, lowest precedence first:
//  1. defaults (New)
//  2. the YAML file at path, or at $URDFPANEL_CONFIG when path is empty
//  3. environment variables, URDFPANEL_<SECTION>_<KEY>
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// URDFPANEL_MQTT_CLIENT_ID -> mqtt.client_id
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.Replace(s, "_", ".", 1)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	cfg.normalize(jointKeys(k))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// jointKeys lists, per joints entry, the keys the config sources set.
func jointKeys(k *koanf.Koanf) []map[string]bool {
	raw, _ := k.Get("joints").([]interface{})
	out := make([]map[string]bool, len(raw))
	for i, e := range raw {
		out[i] = map[string]bool{}
		if m, ok := e.(map[string]interface{}); ok {
			for key := range m {
				out[i][key] = true
			}
		}
	}
	return out
}

// normalize fills in values a config file left out. Values it did set, zero
// included, are kept for Validate to judge.
func (c *Config) normalize(set []map[string]bool) {
	if len(c.Joints) == 0 {
		c.Joints = joints.DefaultConfig()
		return
	}
	for i := range c.Joints {
		given := func(key string) bool { return i < len(set) && set[i][key] }
		if c.Joints[i].Sign == 0 && !given("sign") {
			c.Joints[i].Sign = 1
		}
		if c.Joints[i].Scale == 0 && !given("scale") {
			c.Joints[i].Scale = 1
		}
	}
}

// Validate reports the first problem in c.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	if c.Assets.Base == "" {
		return fmt.Errorf("%w: assets.base must not be empty", ErrInvalidConfig)
	}
	if err := c.Joints.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Surface.Width <= 0 || c.Surface.Height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d", ErrInvalidConfig, c.Surface.Width, c.Surface.Height)
	}
	if c.Headless.Hz <= 0 {
		return fmt.Errorf("%w: headless.hz must be positive", ErrInvalidConfig)
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return fmt.Errorf("%w: mqtt.topic is required with mqtt.broker", ErrInvalidConfig)
	}
	if !telemetry.ValidRate(c.Sine.Rate) {
		return fmt.Errorf("%w: sine.rate %v, want 0..%d", ErrInvalidConfig, c.Sine.Rate, telemetry.MaxRate)
	}
	if !telemetry.ValidRate(c.Replay.Rate) {
		return fmt.Errorf("%w: replay.rate %v, want 0..%d", ErrInvalidConfig, c.Replay.Rate, telemetry.MaxRate)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("%w: mqtt.qos %d", ErrInvalidConfig, c.MQTT.QoS)
	}
	if c.Loader.CacheTTL < 0 || c.Loader.Timeout < 0 {
		return fmt.Errorf("%w: loader durations must not be negative", ErrInvalidConfig)
	}
	return nil
}
