// Package options holds the user-selectable panel options and their
// persistence.
package options

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownVariant = errors.New("options: unknown model variant")

// Variant selects which robot description the panel shows.
type Variant string

const (
	UR16e Variant = "ur16e"
	UR10e Variant = "ur10e"

	Default = UR16e
)

// Choice is one entry of the variant picker.
type Choice struct {
	Label string
	Value Variant
}

var choices = []Choice{
	{Label: "UR16e", Value: UR16e},
	{Label: "UR10e", Value: UR10e},
}

// Choices lists the selectable variants in display order.
func Choices() []Choice { return append([]Choice(nil), choices...) }

// ParseVariant accepts a variant key or its label, ignoring case.
func ParseVariant(s string) (Variant, error) {
	s = strings.TrimSpace(s)
	for _, c := range choices {
		if strings.EqualFold(s, string(c.Value)) || strings.EqualFold(s, c.Label) {
			return c.Value, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

func (v Variant) Valid() bool {
	_, err := ParseVariant(string(v))
	return err == nil && string(v) == strings.ToLower(string(v))
}

func (v Variant) Label() string {
	for _, c := range choices {
		if c.Value == v {
			return c.Label
		}
	}
	return string(v)
}

// Locator returns the description location for v under base, which is a
// directory or an http(s) URL.
func (v Variant) Locator(base string) string {
	return strings.TrimRight(base, "/") + "/" + string(v) + ".urdf"
}

// Options is the persisted panel options record.
type Options struct {
	Model Variant `koanf:"model" yaml:"model"`
}

func Defaults() Options { return Options{Model: Default} }

// Normalize canonicalizes the variant, falling back to Default for an
// empty or unknown one. ok is false when a fallback happened for a
// non-empty value.
func (o Options) Normalize() (out Options, ok bool) {
	if o.Model == "" {
		return Defaults(), true
	}
	v, err := ParseVariant(string(o.Model))
	if err != nil {
		return Defaults(), false
	}
	return Options{Model: v}, true
}
