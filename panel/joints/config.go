// Package joints maps telemetry columns onto joint targets.
package joints

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("joints: invalid config")

// Binding ties one telemetry column to one joint.
type Binding struct {
	Source string  `koanf:"source" yaml:"source"`
	Joint  string  `koanf:"joint" yaml:"joint"`
	Sign   float64 `koanf:"sign" yaml:"sign"`
	Scale  float64 `koanf:"scale" yaml:"scale"`
}

// Config is the ordered joint table. Order fixes the known joint set and the
// order in which joints are pushed to the model.
type Config []Binding

// DefaultConfig is the table for the six-axis arms shipped with the panel.
func DefaultConfig() Config {
	return Config{
		{Source: "base", Joint: "shoulder_pan_joint", Sign: 1, Scale: 1},
		{Source: "shoulder", Joint: "shoulder_lift_joint", Sign: 1, Scale: 1},
		{Source: "elbow", Joint: "elbow_joint", Sign: 1, Scale: 1},
		{Source: "wrist1", Joint: "wrist_1_joint", Sign: 1, Scale: 1},
		{Source: "wrist2", Joint: "wrist_2_joint", Sign: 1, Scale: 1},
		{Source: "wrist3", Joint: "wrist_3_joint", Sign: 1, Scale: 1},
	}
}

// Validate checks that joints and sources are unique, signs are ±1 and
// scales are positive. A binding with an empty source declares a joint that
// telemetry never writes.
func (c Config) Validate() error {
	joints := make(map[string]struct{}, len(c))
	sources := make(map[string]struct{}, len(c))
	for i, b := range c {
		if b.Joint == "" {
			return fmt.Errorf("%w: entry %d: empty joint", ErrInvalidConfig, i)
		}
		if _, dup := joints[b.Joint]; dup {
			return fmt.Errorf("%w: joint %q listed twice", ErrInvalidConfig, b.Joint)
		}
		joints[b.Joint] = struct{}{}
		if b.Source == "" {
			continue
		}
		if _, dup := sources[b.Source]; dup {
			return fmt.Errorf("%w: source %q drives more than one joint", ErrInvalidConfig, b.Source)
		}
		sources[b.Source] = struct{}{}
		if b.Sign != 1 && b.Sign != -1 {
			return fmt.Errorf("%w: joint %q: sign %v, want 1 or -1", ErrInvalidConfig, b.Joint, b.Sign)
		}
		if !(b.Scale > 0) {
			return fmt.Errorf("%w: joint %q: scale %v, want > 0", ErrInvalidConfig, b.Joint, b.Scale)
		}
	}
	return nil
}

// Joints returns the known joint identifiers in table order.
func (c Config) Joints() []string {
	out := make([]string, len(c))
	for i, b := range c {
		out[i] = b.Joint
	}
	return out
}
