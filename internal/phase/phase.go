// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

// Package phase tracks the light/dark illumination cycle during a
// recording session. The machine is driven purely by the timestamps the
// caller passes in, which keeps it deterministic under test.
package phase

import (
	"fmt"
	"math"
	"time"

	"github.com/s1alknau/Nematostella-time-series/pkg/lumen"
)

// Kind names an illumination phase.
type Kind int

const (
	Light Kind = iota
	Dark
)

// String returns the phase name.
func (k Kind) String() string {
	if k == Light {
		return "light"
	}
	return "dark"
}

// other returns the opposite phase.
func (k Kind) other() Kind {
	if k == Light {
		return Dark
	}
	return Light
}

// Config describes the phase cycle.
type Config struct {
	LightDuration  time.Duration
	DarkDuration   time.Duration
	StartWithLight bool
	// DualLight runs both channels simultaneously during light phases.
	DualLight bool
}

// Validate checks the cycle configuration.
func (c Config) Validate() error {
	if c.LightDuration <= 0 {
		return fmt.Errorf("light duration %v must be positive", c.LightDuration)
	}
	if c.DarkDuration <= 0 {
		return fmt.Errorf("dark duration %v must be positive", c.DarkDuration)
	}
	return nil
}

// Info is the answer to a phase query. It is a value recomputed on every
// call, never stored by the machine.
type Info struct {
	Phase       Kind
	Cycle       int
	TotalCycles int
	Remaining   time.Duration
	// Channels to illuminate with for this phase. Dark always uses IR;
	// light uses white, or IR+white when DualLight is set.
	Channels []lumen.Channel
	Dual     bool
}

// Machine is the two-state phase machine. It has no terminal state: it
// simply stops being queried when the session ends.
type Machine struct {
	cfg Config

	current     Kind
	start       Kind
	cycle       int
	totalCycles int
	phaseStart  time.Time
	started     bool
}

// NewMachine builds a machine for a session of the given total duration.
// Total cycles counts partial cycles, minimum one.
func NewMachine(cfg Config, sessionDuration time.Duration) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cycleDur := cfg.LightDuration + cfg.DarkDuration
	total := int(math.Ceil(float64(sessionDuration) / float64(cycleDur)))
	if total < 1 {
		total = 1
	}

	start := Dark
	if cfg.StartWithLight {
		start = Light
	}

	return &Machine{
		cfg:         cfg,
		start:       start,
		totalCycles: total,
	}, nil
}

// Start arms the machine at now in the configured first phase.
func (m *Machine) Start(now time.Time) {
	m.current = m.start
	m.cycle = 1
	m.phaseStart = now
	m.started = true
}

// Query evaluates the machine at now and returns the active phase.
//
// Unless suppressed, a transition fires when the elapsed time within the
// current phase has reached that phase's duration; the phase-relative
// clock resets to the transition instant and the cycle counter increments
// when the configured first phase comes around again.
//
// The suppress flag exists for exactly one caller: the scheduler's final
// frame, whose capture instant can coincide with a phase boundary. Without
// suppression that frame would silently capture under the wrong
// illumination.
func (m *Machine) Query(now time.Time, suppress bool) Info {
	if !m.started {
		m.Start(now)
	}

	if !suppress {
		// Boundaries may be skipped entirely when queries are sparse;
		// walk forward until the phase clock catches up with now.
		for {
			dur := m.durationOf(m.current)
			if now.Sub(m.phaseStart) < dur {
				break
			}
			m.phaseStart = m.phaseStart.Add(dur)
			m.current = m.current.other()
			if m.current == m.start {
				m.cycle++
			}
		}
	}

	remaining := m.durationOf(m.current) - now.Sub(m.phaseStart)
	if remaining < 0 {
		remaining = 0
	}

	return Info{
		Phase:       m.current,
		Cycle:       m.cycle,
		TotalCycles: m.totalCycles,
		Remaining:   remaining,
		Channels:    m.channelsFor(m.current),
		Dual:        m.current == Light && m.cfg.DualLight,
	}
}

func (m *Machine) durationOf(k Kind) time.Duration {
	if k == Light {
		return m.cfg.LightDuration
	}
	return m.cfg.DarkDuration
}

func (m *Machine) channelsFor(k Kind) []lumen.Channel {
	if k == Dark {
		return []lumen.Channel{lumen.ChannelIR}
	}
	if m.cfg.DualLight {
		return []lumen.Channel{lumen.ChannelIR, lumen.ChannelWhite}
	}
	return []lumen.Channel{lumen.ChannelWhite}
}

// TotalCycles returns the number of cycles the session spans, partial
// cycles included.
func (m *Machine) TotalCycles() int {
	return m.totalCycles
}
