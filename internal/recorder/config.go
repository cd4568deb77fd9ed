// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

// Package recorder runs the frame-capture schedule that drives a
// recording session: absolute-time frame targets, phase-aware
// illumination, the sync-capture handshake, and metadata bookkeeping.
package recorder

import (
	"fmt"
	"time"

	"github.com/s1alknau/Nematostella-time-series/internal/phase"
	"github.com/s1alknau/Nematostella-time-series/pkg/lumen"
)

// PhasePowers holds the per-channel LED powers applied during one
// illumination phase. Percent, 0-100.
type PhasePowers struct {
	IR    uint8
	White uint8
}

// SessionConfig is the immutable input to a recording session. When
// Phased is set the per-phase power fields are authoritative and must
// be populated; otherwise the legacy Channel/Power pair applies to
// every frame.
type SessionConfig struct {
	Duration time.Duration
	Interval time.Duration

	Phased      bool
	Phase       phase.Config
	LightPowers PhasePowers
	DarkPowers  PhasePowers

	Channel lumen.Channel
	Power   uint8

	Timing lumen.Timing

	// CaptureRetries bounds camera re-polls within a single frame
	// before the frame is recorded as failed.
	CaptureRetries int
	// RetryDelay is the pause between camera re-polls.
	RetryDelay time.Duration
}

// TotalFrames returns floor(Duration/Interval)+1, sampling both the
// session start and the session end instant.
func (c SessionConfig) TotalFrames() int {
	return int(c.Duration/c.Interval) + 1
}

// Validate fails fast on configurations that would otherwise surface
// mid-session. Phased sessions must carry powers for every channel
// their phases will drive; falling back to stale or zero values here
// has historically produced silently-dark recordings.
func (c SessionConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %v", c.Duration)
	}
	if !c.Phased {
		if !c.Channel.Valid() {
			return fmt.Errorf("invalid channel %d", c.Channel)
		}
		if c.Power == 0 {
			return fmt.Errorf("power must be set for continuous recording")
		}
		return nil
	}
	if err := c.Phase.Validate(); err != nil {
		return err
	}
	if c.DarkPowers.IR == 0 {
		return fmt.Errorf("phased recording requires a dark-phase IR power")
	}
	if c.LightPowers.White == 0 {
		return fmt.Errorf("phased recording requires a light-phase white power")
	}
	if c.Phase.DualLight && c.LightPowers.IR == 0 {
		return fmt.Errorf("dual light phase requires a light-phase IR power")
	}
	return nil
}

// powersFor maps a queried phase to the powers the client must apply.
func (c SessionConfig) powersFor(k phase.Kind) PhasePowers {
	if k == phase.Dark {
		return c.DarkPowers
	}
	return c.LightPowers
}
