// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/s1alknau/Nematostella-time-series/internal/phase"
	"github.com/s1alknau/Nematostella-time-series/internal/storage"
	"github.com/s1alknau/Nematostella-time-series/pkg/lumen"
)

// Illuminator is the subset of the illumination client the scheduler
// drives. *lumen.Client satisfies it.
type Illuminator interface {
	Acquire(owner string) (func(), error)
	Bootstrap(timing lumen.Timing) error
	SelectChannel(ch lumen.Channel) error
	SetPower(ch lumen.Channel, power int) error
	BeginSync(dual bool) (time.Time, error)
	AwaitSyncComplete(timeout time.Duration) (lumen.SyncResponse, error)
	AllOff() error
}

// Options tune scheduler behavior outside the session config. Zero
// values pick sane defaults.
type Options struct {
	Clock       Clock
	Logger      *slog.Logger
	SyncTimeout time.Duration
}

// Scheduler runs one recording session. Frame targets are computed as
// start + i*interval from the fixed session start, never by sleeping
// the interval per loop: absolute targets absorb per-frame overhead
// each cycle instead of compounding it into cumulative drift.
type Scheduler struct {
	cfg    SessionConfig
	lights Illuminator
	camera Camera
	sink   storage.Sink

	clock       Clock
	log         *slog.Logger
	syncTimeout time.Duration

	state State
}

// New validates cfg and builds a scheduler.
func New(cfg SessionConfig, lights Illuminator, camera Camera, sink storage.Sink, opts Options) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	if cfg.CaptureRetries <= 0 {
		cfg.CaptureRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = lumen.DefaultSyncTimeout
	}
	return &Scheduler{
		cfg:         cfg,
		lights:      lights,
		camera:      camera,
		sink:        sink,
		clock:       opts.Clock,
		log:         opts.Logger,
		syncTimeout: opts.SyncTimeout,
	}, nil
}

// Snapshot returns a read-only copy of the running session state.
func (s *Scheduler) Snapshot() Snapshot { return s.state.Snapshot() }

// Summary builds the end-of-session report from the final state.
// runErr is the error Run returned, nil for a clean finish.
func (s *Scheduler) Summary(runErr error) storage.SessionSummary {
	snap := s.state.Snapshot()
	sum := storage.SessionSummary{
		StartedAt:         snap.Start,
		FinishedAt:        s.clock.Now(),
		DurationSeconds:   s.cfg.Duration.Seconds(),
		IntervalSeconds:   s.cfg.Interval.Seconds(),
		TotalFrames:       snap.TotalFrames,
		CapturedFrames:    snap.Captured,
		FailedFrames:      snap.Failed,
		SuccessRate:       snap.SuccessRate,
		FinalDriftSeconds: snap.Drift.Seconds(),
		Phased:            s.cfg.Phased,
		FinalPhase:        snap.Phase,
		CyclesTotal:       snap.Cycle,
	}
	if runErr != nil {
		sum.Aborted = true
		sum.AbortReason = runErr.Error()
	}
	return sum
}

// frameTarget describes what one frame should apply and record.
type frameTarget struct {
	channels  []lumen.Channel
	powers    PhasePowers
	dual      bool
	phaseName string
	cycle     int
}

// Run executes the full session. It returns nil on normal completion,
// ctx.Err() on cooperative stop, and the underlying error when a
// session-fatal condition (device disconnect, sink write failure)
// aborts early. The sink is flushed on every exit path.
func (s *Scheduler) Run(ctx context.Context) error {
	release, err := s.lights.Acquire("recording")
	if err != nil {
		return fmt.Errorf("illumination busy: %w", err)
	}
	defer release()

	if err := s.lights.Bootstrap(s.cfg.Timing); err != nil {
		return fmt.Errorf("failed to bootstrap controller: %w", err)
	}

	start := s.clock.Now()
	total := s.cfg.TotalFrames()
	s.state.begin(start, total)
	defer s.state.end()

	var machine *phase.Machine
	if s.cfg.Phased {
		machine, err = phase.NewMachine(s.cfg.Phase, s.cfg.Duration)
		if err != nil {
			return err
		}
		machine.Start(start)
	}

	s.log.Info("recording started",
		"total_frames", total,
		"interval", s.cfg.Interval,
		"duration", s.cfg.Duration,
		"phased", s.cfg.Phased)

	var (
		prevCapture time.Time
		abortErr    error
	)
	for i := 0; i < total; i++ {
		target := start.Add(time.Duration(i) * s.cfg.Interval)
		if !s.clock.SleepUntil(ctx, target) {
			s.log.Info("recording stopped", "frame", i)
			abortErr = ctx.Err()
			break
		}

		isLast := i == total-1
		now := s.clock.Now()
		ft := s.targetFor(machine, now, isLast)

		frameErr, sessionErr := s.captureFrame(ctx, i, start, target, now, prevCapture, ft)
		ok := frameErr == nil && sessionErr == nil

		elapsed := s.clock.Now().Sub(start)
		drift := elapsed - time.Duration(i)*s.cfg.Interval
		s.state.frameDone(i, drift, ft.phaseName, ft.cycle, ok)
		prevCapture = now

		if sessionErr != nil {
			s.log.Error("recording aborted", "frame", i, "error", sessionErr)
			abortErr = sessionErr
			break
		}
		if frameErr != nil {
			s.log.Warn("frame failed", "frame", i, "error", frameErr)
		}
	}

	_ = s.lights.AllOff()
	if err := s.sink.Flush(); err != nil {
		if abortErr == nil {
			abortErr = fmt.Errorf("failed to flush sink: %w", err)
		}
	}
	if abortErr == nil {
		s.log.Info("recording complete",
			"captured", s.state.Snapshot().Captured,
			"failed", s.state.Snapshot().Failed)
	}
	return abortErr
}

// targetFor resolves the illumination a frame must use. The phase
// machine is queried with suppression only for the final frame, whose
// nominal timestamp can land exactly on a phase boundary.
func (s *Scheduler) targetFor(machine *phase.Machine, now time.Time, isLast bool) frameTarget {
	if machine == nil {
		return frameTarget{
			channels:  []lumen.Channel{s.cfg.Channel},
			powers:    powersForChannel(s.cfg.Channel, s.cfg.Power),
			phaseName: "continuous",
		}
	}
	info := machine.Query(now, isLast)
	return frameTarget{
		channels:  info.Channels,
		powers:    s.cfg.powersFor(info.Phase),
		dual:      info.Dual,
		phaseName: info.Phase.String(),
		cycle:     info.Cycle,
	}
}

func powersForChannel(ch lumen.Channel, power uint8) PhasePowers {
	if ch == lumen.ChannelIR {
		return PhasePowers{IR: power}
	}
	return PhasePowers{White: power}
}

// captureFrame performs one frame's full exchange and appends exactly
// one record to the sink. The first return value is a frame-level
// failure (recorded, non-fatal); the second is session-fatal.
func (s *Scheduler) captureFrame(ctx context.Context, i int, start, target, now time.Time, prev time.Time, ft frameTarget) (frameErr, sessionErr error) {
	var (
		frame  Frame
		sync   lumen.SyncResponse
		syncOK bool
	)

	frameErr = s.runExchange(ctx, ft, &frame, &sync, &syncOK)
	if frameErr != nil && errors.Is(frameErr, lumen.ErrLinkDown) {
		// Record the frame as failed before aborting so the log
		// carries the disconnect.
		_ = s.appendRecord(i, start, target, now, prev, ft, frame, sync, syncOK, frameErr)
		return nil, fmt.Errorf("device disconnected at frame %d: %w", i, frameErr)
	}

	if err := s.appendRecord(i, start, target, now, prev, ft, frame, sync, syncOK, frameErr); err != nil {
		return frameErr, fmt.Errorf("sink write failed at frame %d: %w", i, err)
	}
	return frameErr, nil
}

// runExchange applies illumination, runs the sync pulse, and polls the
// camera while the device holds the LEDs on.
func (s *Scheduler) runExchange(ctx context.Context, ft frameTarget, frame *Frame, sync *lumen.SyncResponse, syncOK *bool) error {
	if ft.dual {
		if err := s.lights.SetPower(lumen.ChannelIR, int(ft.powers.IR)); err != nil {
			return fmt.Errorf("failed to set ir power: %w", err)
		}
		if err := s.lights.SetPower(lumen.ChannelWhite, int(ft.powers.White)); err != nil {
			return fmt.Errorf("failed to set white power: %w", err)
		}
	} else {
		ch := ft.channels[0]
		if err := s.lights.SelectChannel(ch); err != nil {
			return fmt.Errorf("failed to select channel: %w", err)
		}
		if err := s.lights.SetPower(ch, int(powerOn(ft.powers, ch))); err != nil {
			return fmt.Errorf("failed to set power: %w", err)
		}
	}

	if _, err := s.lights.BeginSync(ft.dual); err != nil {
		return fmt.Errorf("sync start failed: %w", err)
	}

	// The device is now holding illumination through stabilization and
	// exposure; grab the frame inside that window.
	capErr := s.pollCamera(ctx, frame)

	resp, err := s.lights.AwaitSyncComplete(s.syncTimeout)
	if err != nil {
		// Timeout here, after the device acknowledged, is a protocol
		// failure for this frame.
		return fmt.Errorf("sync completion failed: %w", err)
	}
	*sync = resp
	*syncOK = true

	if capErr != nil {
		return capErr
	}
	return nil
}

// pollCamera retries transient frame absence within the frame's budget.
func (s *Scheduler) pollCamera(ctx context.Context, frame *Frame) error {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.CaptureRetries; attempt++ {
		if attempt > 0 {
			if !s.clock.SleepUntil(ctx, s.clock.Now().Add(s.cfg.RetryDelay)) {
				return ctx.Err()
			}
		}
		f, err := s.camera.Capture()
		if err == nil {
			*frame = f
			return nil
		}
		lastErr = err
		if !errors.Is(err, ErrNoFrame) {
			break
		}
	}
	return fmt.Errorf("camera capture failed: %w", lastErr)
}

func (s *Scheduler) appendRecord(i int, start, target, now time.Time, prev time.Time, ft frameTarget, frame Frame, sync lumen.SyncResponse, syncOK bool, frameErr error) error {
	elapsed := now.Sub(start)
	expected := target.Sub(start)

	meta := storage.FrameMeta{
		ElapsedSeconds:  elapsed.Seconds(),
		ExpectedSeconds: expected.Seconds(),
		DriftSeconds:    (elapsed - expected).Seconds(),
		Phase:           ft.phaseName,
		Cycle:           ft.cycle,
		Channels:        channelNames(ft.channels),
		IRPower:         ft.powers.IR,
		WhitePower:      ft.powers.White,
		SyncOK:          syncOK,
	}
	if !prev.IsZero() {
		meta.ActualIntervalSeconds = now.Sub(prev).Seconds()
	}
	if frameErr != nil {
		meta.Failed = true
		meta.Error = frameErr.Error()
	} else {
		meta.MeanIntensity = MeanIntensity(frame, DefaultROIFraction)
	}
	if syncOK {
		meta.Temperature, meta.Humidity = lumen.CalibrateSensorReading(sync.Temperature, sync.Humidity)
	}

	return s.sink.Append(i, frame.Pix, frame.Width, frame.Height, meta)
}

func channelNames(chs []lumen.Channel) []string {
	names := make([]string, len(chs))
	for i, ch := range chs {
		names[i] = ch.String()
	}
	return names
}

func powerOn(p PhasePowers, ch lumen.Channel) uint8 {
	if ch == lumen.ChannelIR {
		return p.IR
	}
	return p.White
}
