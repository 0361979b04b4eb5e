package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// ErrUnknownSetting is returned for an override key that does not exist.
var ErrUnknownSetting = errors.New("unknown setting")

type setter func(c *Config, value string) error

func floatSetter(field func(c *Config) *float64) setter {
	return func(c *Config, value string) error {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		*field(c) = v
		return nil
	}
}

func intSetter(field func(c *Config) *int64) setter {
	return func(c *Config, value string) error {
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		*field(c) = v
		return nil
	}
}

func boolSetter(field func(c *Config) *bool) setter {
	return func(c *Config, value string) error {
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		*field(c) = v
		return nil
	}
}

func stringSetter(field func(c *Config) *string) setter {
	return func(c *Config, value string) error {
		*field(c) = value
		return nil
	}
}

// overridable lists the runtime-tunable keys. They are the YAML paths of
// the engine and overlay sections.
var overridable = map[string]setter{
	"engine.smoothing":                 floatSetter(func(c *Config) *float64 { return &c.Engine.Smoothing }),
	"engine.dwell_threshold":           floatSetter(func(c *Config) *float64 { return &c.Engine.DwellThreshold }),
	"engine.dwell_time_ms":             intSetter(func(c *Config) *int64 { return &c.Engine.DwellTimeMs }),
	"engine.refractory_ms":             intSetter(func(c *Config) *int64 { return &c.Engine.RefractoryMs }),
	"engine.scroll_velocity_threshold": floatSetter(func(c *Config) *float64 { return &c.Engine.ScrollVelocityThreshold }),
	"engine.scroll_reset_threshold":    floatSetter(func(c *Config) *float64 { return &c.Engine.ScrollResetThreshold }),
	"engine.scroll_multiplier":         floatSetter(func(c *Config) *float64 { return &c.Engine.ScrollMultiplier }),
	"engine.track_match_distance":      floatSetter(func(c *Config) *float64 { return &c.Engine.TrackMatchDistance }),
	"engine.track_timeout_ms":          intSetter(func(c *Config) *int64 { return &c.Engine.TrackTimeoutMs }),
	"engine.pointer_gesture":           stringSetter(func(c *Config) *string { return &c.Engine.PointerGesture }),
	"engine.scroll_gesture":            stringSetter(func(c *Config) *string { return &c.Engine.ScrollGesture }),
	"engine.max_hands": func(c *Config, value string) error {
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.Engine.MaxHands = v
		return nil
	},
	"overlay.dwell_ring":    boolSetter(func(c *Config) *bool { return &c.Overlay.DwellRing }),
	"overlay.scroll_cursor": boolSetter(func(c *Config) *bool { return &c.Overlay.ScrollCursor }),
	"overlay.mirror":        boolSetter(func(c *Config) *bool { return &c.Overlay.Mirror }),
	"overlay.labels":        boolSetter(func(c *Config) *bool { return &c.Overlay.Labels }),
}

// SettingKeys returns the keys ApplyOverrides accepts, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(overridable))
	for k := range overridable {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WithOverrides returns a copy of c with every override applied, validated.
// c itself is never modified.
func (c *Config) WithOverrides(overrides map[string]string) (*Config, error) {
	out := *c
	if err := out.ApplyOverrides(overrides); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// ApplyOverrides sets each key to its value in place.
func (c *Config) ApplyOverrides(overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		set, ok := overridable[k]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSetting, k)
		}
		if err := set(c, overrides[k]); err != nil {
			return fmt.Errorf("setting %s: %w", k, err)
		}
	}
	return nil
}
