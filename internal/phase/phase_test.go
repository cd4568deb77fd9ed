// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package phase

import (
	"testing"
	"time"

	"github.com/s1alknau/Nematostella-time-series/pkg/lumen"
)

func m(t *testing.T, cfg Config, session time.Duration) *Machine {
	t.Helper()
	machine, err := NewMachine(cfg, session)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return machine
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{LightDuration: time.Minute, DarkDuration: time.Minute}, false},
		{"zero light", Config{DarkDuration: time.Minute}, true},
		{"negative dark", Config{LightDuration: time.Minute, DarkDuration: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTotalCycles(t *testing.T) {
	tests := []struct {
		name    string
		light   time.Duration
		dark    time.Duration
		session time.Duration
		want    int
	}{
		{"exact single cycle", time.Minute, time.Minute, 2 * time.Minute, 1},
		{"two full cycles", time.Minute, time.Minute, 4 * time.Minute, 2},
		{"partial counts", time.Minute, time.Minute, 3 * time.Minute, 2},
		{"shorter than one cycle", 30 * time.Minute, 30 * time.Minute, 10 * time.Minute, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := m(t, Config{LightDuration: tt.light, DarkDuration: tt.dark, StartWithLight: true}, tt.session)
			if got := machine.TotalCycles(); got != tt.want {
				t.Errorf("TotalCycles() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestQuery_TransitionsAtBoundary(t *testing.T) {
	start := time.Unix(1000, 0)
	machine := m(t, Config{LightDuration: time.Minute, DarkDuration: time.Minute, StartWithLight: true}, 4*time.Minute)
	machine.Start(start)

	info := machine.Query(start, false)
	if info.Phase != Light || info.Cycle != 1 {
		t.Fatalf("at t=0: %+v", info)
	}
	if info.Remaining != time.Minute {
		t.Errorf("remaining = %v, want 1m", info.Remaining)
	}

	info = machine.Query(start.Add(59*time.Second), false)
	if info.Phase != Light {
		t.Errorf("at t=59s still light, got %v", info.Phase)
	}

	info = machine.Query(start.Add(60*time.Second), false)
	if info.Phase != Dark || info.Cycle != 1 {
		t.Errorf("at t=60s expected dark cycle 1, got %+v", info)
	}

	info = machine.Query(start.Add(120*time.Second), false)
	if info.Phase != Light || info.Cycle != 2 {
		t.Errorf("at t=120s expected light cycle 2, got %+v", info)
	}
}

func TestQuery_SparseQueriesWalkMissedBoundaries(t *testing.T) {
	start := time.Unix(0, 0)
	machine := m(t, Config{LightDuration: time.Minute, DarkDuration: time.Minute, StartWithLight: true}, 10*time.Minute)
	machine.Start(start)

	// Jump straight past three boundaries: light(0-60), dark(60-120),
	// light(120-180); at t=185s we are in cycle 2's light phase.
	info := machine.Query(start.Add(185*time.Second), false)
	if info.Phase != Light || info.Cycle != 2 {
		t.Errorf("after sparse jump: %+v", info)
	}
	if want := 55 * time.Second; info.Remaining != want {
		t.Errorf("remaining = %v, want %v", info.Remaining, want)
	}
}

func TestQuery_SuppressHoldsPhaseAtBoundary(t *testing.T) {
	start := time.Unix(0, 0)
	machine := m(t, Config{LightDuration: time.Minute, DarkDuration: time.Minute, StartWithLight: true}, 2*time.Minute)
	machine.Start(start)

	machine.Query(start.Add(60*time.Second), false) // now dark

	// t=120s lands exactly on the dark→light boundary. Suppressed query
	// must hold dark; the machine state must not advance either.
	info := machine.Query(start.Add(120*time.Second), true)
	if info.Phase != Dark {
		t.Errorf("suppressed query transitioned: %+v", info)
	}

	info = machine.Query(start.Add(120*time.Second), false)
	if info.Phase != Light {
		t.Errorf("unsuppressed query after suppression should transition, got %v", info.Phase)
	}
}

func TestQuery_StartWithDark(t *testing.T) {
	start := time.Unix(0, 0)
	machine := m(t, Config{LightDuration: time.Minute, DarkDuration: 2 * time.Minute, StartWithLight: false}, 6*time.Minute)
	machine.Start(start)

	info := machine.Query(start, false)
	if info.Phase != Dark {
		t.Fatalf("start phase = %v, want dark", info.Phase)
	}

	// Cycle increments when the start phase (dark) comes around again.
	info = machine.Query(start.Add(3*time.Minute), false)
	if info.Phase != Dark || info.Cycle != 2 {
		t.Errorf("at t=3m: %+v", info)
	}
}

func TestChannelsPerPhase(t *testing.T) {
	tests := []struct {
		name     string
		dual     bool
		kind     Kind
		want     []lumen.Channel
		wantDual bool
	}{
		{"dark is always ir", false, Dark, []lumen.Channel{lumen.ChannelIR}, false},
		{"light single", false, Light, []lumen.Channel{lumen.ChannelWhite}, false},
		{"light dual", true, Light, []lumen.Channel{lumen.ChannelIR, lumen.ChannelWhite}, true},
		{"dark in dual config stays ir", true, Dark, []lumen.Channel{lumen.ChannelIR}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Unix(0, 0)
			cfg := Config{
				LightDuration:  time.Minute,
				DarkDuration:   time.Minute,
				StartWithLight: tt.kind == Light,
				DualLight:      tt.dual,
			}
			machine := m(t, cfg, 2*time.Minute)
			machine.Start(start)

			info := machine.Query(start, false)
			if len(info.Channels) != len(tt.want) {
				t.Fatalf("channels = %v, want %v", info.Channels, tt.want)
			}
			for i := range tt.want {
				if info.Channels[i] != tt.want[i] {
					t.Errorf("channels = %v, want %v", info.Channels, tt.want)
				}
			}
			if info.Dual != tt.wantDual {
				t.Errorf("dual = %v, want %v", info.Dual, tt.wantDual)
			}
		})
	}
}

// The session-end scenario: 120s session, 5s interval, 60s/60s phases
// starting light. Frames 0-11 are light, 12-24 dark; frame 24's nominal
// timestamp sits exactly on a full-cycle boundary and must stay dark.
func TestQuery_SessionEndScenario(t *testing.T) {
	start := time.Unix(0, 0)
	machine := m(t, Config{LightDuration: time.Minute, DarkDuration: time.Minute, StartWithLight: true}, 2*time.Minute)
	machine.Start(start)

	const interval = 5 * time.Second
	const totalFrames = 25

	for i := 0; i < totalFrames; i++ {
		at := start.Add(time.Duration(i) * interval)
		isLast := i == totalFrames-1
		info := machine.Query(at, isLast)

		want := Light
		if i >= 12 {
			want = Dark
		}
		if info.Phase != want {
			t.Errorf("frame %d: phase = %v, want %v", i, info.Phase, want)
		}
	}
}
