// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package calibration

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/s1alknau/Nematostella-time-series/pkg/lumen"
)

// bench simulates the optical bench: intensity responds linearly to
// the applied per-channel powers.
type bench struct {
	busy bool

	irGain    float64
	whiteGain float64

	irPower    int
	whitePower int

	tested  map[lumen.Channel][]int
	allOffs int
}

func newBench(irGain, whiteGain float64) *bench {
	return &bench{irGain: irGain, whiteGain: whiteGain, tested: map[lumen.Channel][]int{}}
}

func (b *bench) Acquire(owner string) (func(), error) {
	if b.busy {
		return nil, lumen.ErrBusy
	}
	b.busy = true
	return func() { b.busy = false }, nil
}

func (b *bench) SelectChannel(lumen.Channel) error { return nil }
func (b *bench) LEDOn() error                      { return nil }
func (b *bench) AllOff() error                     { b.allOffs++; return nil }

func (b *bench) SetPower(ch lumen.Channel, power int) error {
	b.tested[ch] = append(b.tested[ch], power)
	if ch == lumen.ChannelIR {
		b.irPower = power
	} else {
		b.whitePower = power
	}
	return nil
}

func (b *bench) intensity() (float64, error) {
	return b.irGain*float64(b.irPower) + b.whiteGain*float64(b.whitePower), nil
}

func newTestEngine(b *bench) *Engine {
	e := New(b, b.intensity, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.sleep = func(time.Duration) {}
	return e
}

func TestCalibrateSingleConverges(t *testing.T) {
	tests := []struct {
		name   string
		gain   float64
		target float64
		floor  uint8
	}{
		{"mid range", 2.0, 120, 0},
		{"high gain", 4.0, 200, 0},
		{"with floor", 2.0, 180, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBench(tt.gain, 0)
			e := newTestEngine(b)

			res, err := e.CalibrateSingle(lumen.ChannelIR, Params{
				Target: tt.target,
				Floor:  tt.floor,
			})
			if err != nil {
				t.Fatalf("CalibrateSingle: %v", err)
			}
			if !res.Success {
				t.Fatalf("did not converge: %+v", res)
			}

			got := tt.gain * float64(res.Power)
			relErr := (got - tt.target) / tt.target
			if relErr < -0.05 || relErr > 0.05 {
				t.Errorf("power %d gives %.1f, outside 5%% of %.1f", res.Power, got, tt.target)
			}
			for _, p := range b.tested[lumen.ChannelIR] {
				if p < int(tt.floor) {
					t.Errorf("tested power %d below floor %d", p, tt.floor)
				}
			}
			if b.allOffs == 0 {
				t.Error("lights left on after calibration")
			}
		})
	}
}

func TestCalibrateSingleNonConvergence(t *testing.T) {
	// Gain too weak to ever reach the target: best candidate is full
	// power, success stays false.
	b := newBench(0.5, 0)
	e := newTestEngine(b)

	res, err := e.CalibrateSingle(lumen.ChannelIR, Params{Target: 200})
	if err != nil {
		t.Fatalf("CalibrateSingle: %v", err)
	}
	if res.Success {
		t.Fatalf("converged on unreachable target: %+v", res)
	}
	if res.Power != 100 {
		t.Errorf("best candidate power = %d, want 100", res.Power)
	}
	if res.Iterations == 0 {
		t.Error("iterations not counted")
	}
}

func TestCalibrateSingleRejectsBadParams(t *testing.T) {
	b := newBench(1, 0)
	e := newTestEngine(b)

	if _, err := e.CalibrateSingle(lumen.ChannelIR, Params{Target: 0}); err == nil {
		t.Error("zero target accepted")
	}
	if _, err := e.CalibrateSingle(lumen.ChannelIR, Params{Target: 500}); err == nil {
		t.Error("out-of-range target accepted")
	}
}

func TestCalibrateSingleBusyDevice(t *testing.T) {
	b := newBench(1, 0)
	b.busy = true
	e := newTestEngine(b)

	if _, err := e.CalibrateSingle(lumen.ChannelIR, Params{Target: 100}); !errors.Is(err, lumen.ErrBusy) {
		t.Errorf("error = %v, want ErrBusy", err)
	}
}

func TestCalibrateSingleMeasureFailure(t *testing.T) {
	b := newBench(1, 0)
	e := New(b, func() (float64, error) {
		return 0, errors.New("camera offline")
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.sleep = func(time.Duration) {}

	if _, err := e.CalibrateSingle(lumen.ChannelIR, Params{Target: 100}); err == nil {
		t.Error("measurement failure not propagated")
	}
}

func TestCalibrateDualTwoStage(t *testing.T) {
	b := newBench(1.0, 2.0)
	e := newTestEngine(b)

	res, err := e.CalibrateDual(DualParams{Target: 180})
	if err != nil {
		t.Fatalf("CalibrateDual: %v", err)
	}
	if !res.White.Success {
		t.Fatalf("combined stage did not converge: %+v", res)
	}

	// IR stage ran before any white power was applied and respected
	// the default floor.
	for _, p := range b.tested[lumen.ChannelIR] {
		if p < DefaultIRFloor {
			t.Errorf("ir stage tested %d%%, below floor %d%%", p, DefaultIRFloor)
		}
	}

	// Combined intensity with the resolved powers lands within
	// tolerance of the target.
	combined := 1.0*float64(res.IR.Power) + 2.0*float64(res.White.Power)
	relErr := (combined - 180) / 180
	if relErr < -0.05 || relErr > 0.05 {
		t.Errorf("combined %.1f outside 5%% of 180 (ir=%d white=%d)", combined, res.IR.Power, res.White.Power)
	}
	if b.allOffs == 0 {
		t.Error("lights left on after dual calibration")
	}
}

func TestCalibrateDualHoldsIRDuringWhiteStage(t *testing.T) {
	b := newBench(1.0, 2.0)
	e := newTestEngine(b)

	res, err := e.CalibrateDual(DualParams{Target: 180})
	if err != nil {
		t.Fatalf("CalibrateDual: %v", err)
	}
	// After the run, the applied IR power matches stage one's result:
	// stage two never touched it.
	if b.irPower != int(res.IR.Power) {
		t.Errorf("ir power drifted to %d during white stage, want %d", b.irPower, res.IR.Power)
	}
}
