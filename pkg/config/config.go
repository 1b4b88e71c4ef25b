// Package config resolves lane-grid configuration.
//
// A [Config] is always fully populated. Callers describe only what they want
// to change with a [Partial], which [Resolve] merges over a set of defaults
// field by field: absent fields inherit the default, present scalar and list
// fields replace it verbatim, and present lane objects merge per bound.
//
// Resolution never validates. Range and gravity checks live in
// [Config.Validate] so that callers can decide per call site whether to
// reject a configuration or carry on with it.
//
//	partial := &config.Partial{XLanes: &config.PartialLanes{Max: config.Int(20)}}
//	cfg := config.Resolve(partial, config.Default())
//	// cfg.XLanes == config.Lanes{Min: 3, Max: 20}
package config

import (
	"slices"
	"strings"

	"github.com/matzehuels/lanegrid/pkg/errors"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultGravity is the compaction direction applied after each placement.
	DefaultGravity = "nw"

	// DefaultMinLanes is the minimum grid extent on both axes.
	DefaultMinLanes = 3

	// DefaultMaxLanes is the bound items are clamped into on both axes.
	DefaultMaxLanes = 9

	// DefaultNamespace is the single partition label of a fresh configuration.
	DefaultNamespace = "default"
)

// ValidGravities is the set of accepted gravity directions.
var ValidGravities = map[string]bool{
	"n": true, "e": true, "s": true, "w": true,
	"ne": true, "nw": true, "en": true, "es": true,
	"sw": true, "se": true, "wn": true, "ws": true,
}

// =============================================================================
// Types
// =============================================================================

// Lanes bounds one axis of the grid, in lane units.
type Lanes struct {
	Min int `json:"min" yaml:"min" toml:"min" mapstructure:"min"`
	Max int `json:"max" yaml:"max" toml:"max" mapstructure:"max"`
}

// Config is a fully resolved grid configuration.
type Config struct {
	Gravity string `json:"gravity" yaml:"gravity" toml:"gravity" mapstructure:"gravity"`
	XLanes  Lanes  `json:"x_lanes" yaml:"x_lanes" toml:"x_lanes" mapstructure:"x_lanes"`
	YLanes  Lanes  `json:"y_lanes" yaml:"y_lanes" toml:"y_lanes" mapstructure:"y_lanes"`

	// Namespace lists partition labels. It is carried through resolution
	// and serialization but never read by placement.
	Namespace []string `json:"namespace" yaml:"namespace" toml:"namespace" mapstructure:"namespace"`
}

// PartialLanes is a lanes object where each bound may be absent.
type PartialLanes struct {
	Min *int `json:"min,omitempty" yaml:"min,omitempty" toml:"min,omitempty" mapstructure:"min"`
	Max *int `json:"max,omitempty" yaml:"max,omitempty" toml:"max,omitempty" mapstructure:"max"`
}

// Partial is a configuration where every field may be absent.
// A nil pointer or nil slice means "inherit the default"; an empty,
// non-nil Namespace overrides the default with no labels.
type Partial struct {
	Gravity   *string       `json:"gravity,omitempty" yaml:"gravity,omitempty" toml:"gravity,omitempty" mapstructure:"gravity"`
	XLanes    *PartialLanes `json:"x_lanes,omitempty" yaml:"x_lanes,omitempty" toml:"x_lanes,omitempty" mapstructure:"x_lanes"`
	YLanes    *PartialLanes `json:"y_lanes,omitempty" yaml:"y_lanes,omitempty" toml:"y_lanes,omitempty" mapstructure:"y_lanes"`
	Namespace []string      `json:"namespace,omitempty" yaml:"namespace,omitempty" toml:"namespace,omitempty" mapstructure:"namespace"`
}

// Int returns a pointer to v. It keeps partial literals short.
func Int(v int) *int { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// =============================================================================
// Resolution
// =============================================================================

// Default returns the documented default configuration.
func Default() Config {
	return Config{
		Gravity:   DefaultGravity,
		XLanes:    Lanes{Min: DefaultMinLanes, Max: DefaultMaxLanes},
		YLanes:    Lanes{Min: DefaultMinLanes, Max: DefaultMaxLanes},
		Namespace: []string{DefaultNamespace},
	}
}

// Resolve merges partial over defaults. A nil partial yields a copy of
// defaults. The result never shares slices with either input.
func Resolve(partial *Partial, defaults Config) Config {
	out := defaults.Clone()
	if partial == nil {
		return out
	}
	if partial.Gravity != nil {
		out.Gravity = *partial.Gravity
	}
	out.XLanes = resolveLanes(partial.XLanes, defaults.XLanes)
	out.YLanes = resolveLanes(partial.YLanes, defaults.YLanes)
	if partial.Namespace != nil {
		out.Namespace = slices.Clone(partial.Namespace)
	}
	return out
}

func resolveLanes(p *PartialLanes, def Lanes) Lanes {
	if p == nil {
		return def
	}
	if p.Min != nil {
		def.Min = *p.Min
	}
	if p.Max != nil {
		def.Max = *p.Max
	}
	return def
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	c.Namespace = slices.Clone(c.Namespace)
	return c
}

// Partial converts c back into a partial with every field present.
func (c Config) Partial() *Partial {
	return &Partial{
		Gravity:   String(c.Gravity),
		XLanes:    &PartialLanes{Min: Int(c.XLanes.Min), Max: Int(c.XLanes.Max)},
		YLanes:    &PartialLanes{Min: Int(c.YLanes.Min), Max: Int(c.YLanes.Max)},
		Namespace: slices.Clone(c.Namespace),
	}
}

// =============================================================================
// Validation
// =============================================================================

// Validate reports an INVALID_CONFIG error when a lane bound is negative,
// when min exceeds max on an axis, or when gravity is not a known direction.
func (c Config) Validate() error {
	if err := validateLanes("x_lanes", c.XLanes); err != nil {
		return err
	}
	if err := validateLanes("y_lanes", c.YLanes); err != nil {
		return err
	}
	if !ValidGravities[c.Gravity] {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid gravity %q", c.Gravity)
	}
	return nil
}

func validateLanes(axis string, l Lanes) error {
	if l.Min < 0 || l.Max < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "%s bounds must be non-negative (min=%d, max=%d)", axis, l.Min, l.Max)
	}
	if l.Min > l.Max {
		return errors.New(errors.ErrCodeInvalidConfig, "%s min %d exceeds max %d", axis, l.Min, l.Max)
	}
	return nil
}

// Directions decomposes the gravity string into single-character directions,
// in the order they are applied.
func (c Config) Directions() []string {
	if len(c.Gravity) <= 1 {
		if c.Gravity == "" {
			return nil
		}
		return []string{c.Gravity}
	}
	return strings.Split(c.Gravity, "")
}
