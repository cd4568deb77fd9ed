// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

// Package config loads and validates recording configuration from a
// YAML file, environment variables, or defaults, and converts it into
// the session config the recorder consumes.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/s1alknau/Nematostella-time-series/internal/phase"
	"github.com/s1alknau/Nematostella-time-series/internal/recorder"
	"github.com/s1alknau/Nematostella-time-series/pkg/lumen"
)

// Config is the on-disk recording configuration.
type Config struct {
	Session SessionSection `mapstructure:"session" yaml:"session"`
	Phases  PhaseSection   `mapstructure:"phases" yaml:"phases"`
	Device  DeviceSection  `mapstructure:"device" yaml:"device"`
	Output  OutputSection  `mapstructure:"output" yaml:"output"`
}

type SessionSection struct {
	DurationMinutes float64 `mapstructure:"duration_minutes" yaml:"duration_minutes"`
	IntervalSeconds float64 `mapstructure:"interval_seconds" yaml:"interval_seconds"`

	// Continuous-mode fields, authoritative only when phases.enabled
	// is false.
	Channel string `mapstructure:"channel" yaml:"channel"`
	Power   int    `mapstructure:"power" yaml:"power"`
}

type PhaseSection struct {
	Enabled         bool    `mapstructure:"enabled" yaml:"enabled"`
	LightMinutes    float64 `mapstructure:"light_minutes" yaml:"light_minutes"`
	DarkMinutes     float64 `mapstructure:"dark_minutes" yaml:"dark_minutes"`
	StartWithLight  bool    `mapstructure:"start_with_light" yaml:"start_with_light"`
	DualLight       bool    `mapstructure:"dual_light" yaml:"dual_light"`
	LightWhitePower int     `mapstructure:"light_white_power" yaml:"light_white_power"`
	LightIRPower    int     `mapstructure:"light_ir_power" yaml:"light_ir_power"`
	DarkIRPower     int     `mapstructure:"dark_ir_power" yaml:"dark_ir_power"`
}

type DeviceSection struct {
	Port            string `mapstructure:"port" yaml:"port"`
	Baud            int    `mapstructure:"baud" yaml:"baud"`
	StabilizationMs int    `mapstructure:"stabilization_ms" yaml:"stabilization_ms"`
	ExposureMs      int    `mapstructure:"exposure_ms" yaml:"exposure_ms"`
}

type OutputSection struct {
	Directory  string `mapstructure:"directory" yaml:"directory"`
	FlushEvery int    `mapstructure:"flush_every" yaml:"flush_every"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Session: SessionSection{
			DurationMinutes: 120,
			IntervalSeconds: 5,
			Channel:         "ir",
			Power:           80,
		},
		Phases: PhaseSection{
			Enabled:         true,
			LightMinutes:    60,
			DarkMinutes:     60,
			StartWithLight:  true,
			LightWhitePower: 60,
			DarkIRPower:     80,
		},
		Device: DeviceSection{
			Baud:            115200,
			StabilizationMs: 1000,
			ExposureMs:      10,
		},
		Output: OutputSection{
			Directory:  "recordings",
			FlushEvery: 10,
		},
	}
}

// Load reads path (YAML) over the defaults. Environment variables with
// the NEMACAP prefix override file values. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("NEMACAP")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SessionConfig converts the file config into a validated recorder
// session config.
func (c Config) SessionConfig() (recorder.SessionConfig, error) {
	ch, err := parseChannel(c.Session.Channel)
	if err != nil && !c.Phases.Enabled {
		return recorder.SessionConfig{}, err
	}

	sc := recorder.SessionConfig{
		Duration: time.Duration(c.Session.DurationMinutes * float64(time.Minute)),
		Interval: time.Duration(c.Session.IntervalSeconds * float64(time.Second)),
		Phased:   c.Phases.Enabled,
		Channel:  ch,
		Power:    clampPercent(c.Session.Power),
		Timing: lumen.Timing{
			StabilizationMs: c.Device.StabilizationMs,
			ExposureMs:      c.Device.ExposureMs,
		},
	}
	if c.Phases.Enabled {
		sc.Phase = phase.Config{
			LightDuration:  time.Duration(c.Phases.LightMinutes * float64(time.Minute)),
			DarkDuration:   time.Duration(c.Phases.DarkMinutes * float64(time.Minute)),
			StartWithLight: c.Phases.StartWithLight,
			DualLight:      c.Phases.DualLight,
		}
		sc.LightPowers = recorder.PhasePowers{
			IR:    clampPercent(c.Phases.LightIRPower),
			White: clampPercent(c.Phases.LightWhitePower),
		}
		sc.DarkPowers = recorder.PhasePowers{
			IR: clampPercent(c.Phases.DarkIRPower),
		}
	}

	if err := sc.Validate(); err != nil {
		return recorder.SessionConfig{}, err
	}
	return sc, nil
}

func parseChannel(name string) (lumen.Channel, error) {
	switch name {
	case "ir", "":
		return lumen.ChannelIR, nil
	case "white":
		return lumen.ChannelWhite, nil
	default:
		return 0, fmt.Errorf("unknown channel %q (want ir or white)", name)
	}
}

func clampPercent(p int) uint8 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return uint8(p)
}
