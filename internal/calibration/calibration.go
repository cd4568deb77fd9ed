// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

// Package calibration finds the LED power that brings a region of
// interest to a target mean brightness, by bounded binary search over
// the power range. Single-channel and two-stage dual-channel searches
// are supported.
package calibration

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/s1alknau/Nematostella-time-series/pkg/lumen"
)

// Defaults for search parameters left zero by the caller.
const (
	DefaultTolerancePercent = 5.0
	DefaultMaxIterations    = 8
	DefaultIRFloor          = 20
	DefaultSettleDelay      = 300 * time.Millisecond

	// DefaultIRTargetFraction is the share of the combined target the
	// IR stage of a dual calibration aims for on its own. IR is the
	// minority contributor in dual mode; it exists to preserve
	// contrast, not to carry the exposure.
	DefaultIRTargetFraction = 0.3
)

// Measure captures one frame under the currently applied illumination
// and returns its region-of-interest mean intensity.
type Measure func() (float64, error)

// Lights is the subset of the illumination client the engine drives.
// *lumen.Client satisfies it.
type Lights interface {
	Acquire(owner string) (func(), error)
	SelectChannel(ch lumen.Channel) error
	SetPower(ch lumen.Channel, power int) error
	LEDOn() error
	AllOff() error
}

// Params configures a single-channel search.
type Params struct {
	Target           float64 // target ROI mean, 0-255
	TolerancePercent float64
	MaxIterations    int
	Floor            uint8 // powers below this are never tested
	SettleDelay      time.Duration
}

func (p *Params) fill() error {
	if p.Target <= 0 || p.Target > 255 {
		return fmt.Errorf("target intensity %.1f out of range (0, 255]", p.Target)
	}
	if p.TolerancePercent <= 0 {
		p.TolerancePercent = DefaultTolerancePercent
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = DefaultMaxIterations
	}
	if p.Floor > 100 {
		return fmt.Errorf("floor %d%% above maximum power", p.Floor)
	}
	if p.SettleDelay <= 0 {
		p.SettleDelay = DefaultSettleDelay
	}
	return nil
}

// DualParams configures the two-stage dual-channel search.
type DualParams struct {
	Target           float64 // combined target ROI mean
	IRTarget         float64 // stage-one IR-only target; 0 picks DefaultIRTargetFraction*Target
	TolerancePercent float64
	MaxIterations    int
	IRFloor          uint8 // 0 picks DefaultIRFloor
	SettleDelay      time.Duration
}

// Result reports one search's outcome. Success is false when the
// search exhausted its iteration budget; Power then holds the best
// candidate seen, and the caller decides whether to use it.
type Result struct {
	Success       bool
	Power         uint8
	Intensity     float64
	Target        float64
	RelativeError float64
	Iterations    int
}

// DualResult reports both stages of a dual calibration. Success
// requires the combined (white) stage to converge.
type DualResult struct {
	IR       Result
	White    Result
	Combined float64
}

// Engine runs calibration searches. It acquires the device ownership
// gate for the duration of each run, so calibration can never overlap
// an active recording.
type Engine struct {
	lights  Lights
	measure Measure
	sleep   func(time.Duration)
	log     *slog.Logger
}

// New builds an engine over lights and a measurement function.
func New(lights Lights, measure Measure, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		lights:  lights,
		measure: measure,
		sleep:   time.Sleep,
		log:     log,
	}
}

// CalibrateSingle searches channel ch for the power whose ROI mean hits
// p.Target. Illumination is turned off before returning.
func (e *Engine) CalibrateSingle(ch lumen.Channel, p Params) (Result, error) {
	if err := p.fill(); err != nil {
		return Result{}, err
	}
	release, err := e.lights.Acquire("calibration")
	if err != nil {
		return Result{}, fmt.Errorf("device busy: %w", err)
	}
	defer release()
	defer e.lights.AllOff()

	if err := e.lights.SelectChannel(ch); err != nil {
		return Result{}, err
	}
	if err := e.lights.LEDOn(); err != nil {
		return Result{}, err
	}

	res, err := e.search(ch, p)
	if err != nil {
		return Result{}, err
	}
	e.log.Info("calibration finished",
		"channel", ch.String(),
		"power", res.Power,
		"intensity", res.Intensity,
		"target", res.Target,
		"converged", res.Success,
		"iterations", res.Iterations)
	return res, nil
}

// CalibrateDual runs the two-stage search: the IR channel is calibrated
// alone first under its floor, then held while the white power is
// searched for the combined target. Combined intensity from two active
// channels is not separable by one 1-D search, so one variable must be
// fixed before the other is searched.
func (e *Engine) CalibrateDual(p DualParams) (DualResult, error) {
	if p.IRFloor == 0 {
		p.IRFloor = DefaultIRFloor
	}
	if p.IRTarget <= 0 {
		p.IRTarget = p.Target * DefaultIRTargetFraction
	}

	release, err := e.lights.Acquire("calibration")
	if err != nil {
		return DualResult{}, fmt.Errorf("device busy: %w", err)
	}
	defer release()
	defer e.lights.AllOff()

	// Stage one: IR alone.
	if err := e.lights.SelectChannel(lumen.ChannelIR); err != nil {
		return DualResult{}, err
	}
	if err := e.lights.LEDOn(); err != nil {
		return DualResult{}, err
	}
	irParams := Params{
		Target:           p.IRTarget,
		TolerancePercent: p.TolerancePercent,
		MaxIterations:    p.MaxIterations,
		Floor:            p.IRFloor,
		SettleDelay:      p.SettleDelay,
	}
	if err := irParams.fill(); err != nil {
		return DualResult{}, err
	}
	irRes, err := e.search(lumen.ChannelIR, irParams)
	if err != nil {
		return DualResult{}, err
	}

	// Stage two: hold IR, bring the white channel up until the
	// combined measurement reaches the full target.
	if err := e.lights.SetPower(lumen.ChannelIR, int(irRes.Power)); err != nil {
		return DualResult{}, err
	}
	if err := e.lights.SelectChannel(lumen.ChannelWhite); err != nil {
		return DualResult{}, err
	}
	if err := e.lights.LEDOn(); err != nil {
		return DualResult{}, err
	}
	whiteParams := Params{
		Target:           p.Target,
		TolerancePercent: p.TolerancePercent,
		MaxIterations:    p.MaxIterations,
		SettleDelay:      p.SettleDelay,
	}
	if err := whiteParams.fill(); err != nil {
		return DualResult{}, err
	}
	whiteRes, err := e.search(lumen.ChannelWhite, whiteParams)
	if err != nil {
		return DualResult{}, err
	}

	e.log.Info("dual calibration finished",
		"ir_power", irRes.Power,
		"white_power", whiteRes.Power,
		"combined", whiteRes.Intensity,
		"target", p.Target,
		"converged", whiteRes.Success)
	return DualResult{
		IR:       irRes,
		White:    whiteRes,
		Combined: whiteRes.Intensity,
	}, nil
}

// search is the bounded binary search over [p.Floor, 100]. The best
// candidate by absolute relative error is tracked throughout so a
// non-converging run still returns something usable.
func (e *Engine) search(ch lumen.Channel, p Params) (Result, error) {
	lo, hi := int(p.Floor), 100
	tol := p.TolerancePercent / 100.0

	best := Result{Target: p.Target, RelativeError: 2} // any real measurement beats this
	iters := 0
	for lo <= hi && iters < p.MaxIterations {
		mid := (lo + hi) / 2
		iters++

		if err := e.lights.SetPower(ch, mid); err != nil {
			return Result{}, fmt.Errorf("failed to set %s power %d%%: %w", ch, mid, err)
		}
		e.sleep(p.SettleDelay)
		measured, err := e.measure()
		if err != nil {
			return Result{}, fmt.Errorf("measurement at %d%% failed: %w", mid, err)
		}

		relErr := (measured - p.Target) / p.Target
		if abs(relErr) < abs(best.RelativeError) {
			best = Result{
				Power:         uint8(mid),
				Intensity:     measured,
				Target:        p.Target,
				RelativeError: relErr,
			}
		}
		e.log.Debug("calibration step",
			"channel", ch.String(),
			"power", mid,
			"intensity", measured,
			"rel_error", relErr)

		if abs(relErr) <= tol {
			best.Success = true
			break
		}
		if measured < p.Target {
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	best.Iterations = iters
	return best, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
