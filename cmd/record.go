// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/s1alknau/Nematostella-time-series/internal/config"
	"github.com/s1alknau/Nematostella-time-series/internal/recorder"
	"github.com/s1alknau/Nematostella-time-series/internal/storage"
)

var (
	recordDuration float64
	recordInterval float64
	recordOutDir   string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Run a recording session",
	Long: `Run a full time-series recording session.

Frames are captured on a fixed schedule computed from the session start,
with the light/dark phase cycle (when enabled) driving per-frame
illumination through the controller's sync pulse. Frames and metadata
land in an append-only CBOR log; a YAML summary is written at the end.

Ctrl+C stops the session cooperatively at the next frame boundary and
still flushes everything captured so far.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().Float64Var(&recordDuration, "duration", 0, "Session duration in minutes (overrides config)")
	recordCmd.Flags().Float64Var(&recordInterval, "interval", 0, "Frame interval in seconds (overrides config)")
	recordCmd.Flags().StringVarP(&recordOutDir, "out", "o", "", "Output directory (overrides config)")
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("duration") {
		cfg.Session.DurationMinutes = recordDuration
	}
	if cmd.Flags().Changed("interval") {
		cfg.Session.IntervalSeconds = recordInterval
	}
	if recordOutDir != "" {
		cfg.Output.Directory = recordOutDir
	}
	// Transport flags win over the config file
	if portName == "" && wsURL == "" {
		portName = cfg.Device.Port
	}
	if !cmd.Flags().Changed("baud") && cfg.Device.Baud > 0 {
		baudRate = cfg.Device.Baud
	}

	sc, err := cfg.SessionConfig()
	if err != nil {
		return err
	}

	client, info, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close()
	slog.Info("controller connected", "connection", info)

	if err := os.MkdirAll(cfg.Output.Directory, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	base := filepath.Join(cfg.Output.Directory, "session_"+time.Now().Format("20060102_150405"))
	sink, err := storage.NewCBORLog(base+".cbor", cfg.Output.FlushEvery)
	if err != nil {
		return err
	}
	defer sink.Close()

	camera := &recorder.SyntheticCamera{}
	sched, err := recorder.New(sc, client, camera, sink, recorder.Options{})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Periodic progress while the session runs
	progressDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-progressDone:
				return
			case <-ticker.C:
				snap := sched.Snapshot()
				if snap.Running {
					slog.Info("recording progress",
						"frame", snap.FrameIndex+1,
						"total", snap.TotalFrames,
						"phase", snap.Phase,
						"cycle", snap.Cycle,
						"drift", snap.Drift.Round(time.Millisecond),
						"failed", snap.Failed)
				}
			}
		}
	}()

	runErr := sched.Run(ctx)
	close(progressDone)

	summary := sched.Summary(runErr)
	if err := storage.WriteSummary(base+".yaml", summary); err != nil {
		slog.Error("summary write failed", "error", err)
	}

	fmt.Printf("\nSession: %s\n", base)
	fmt.Printf("Frames:  %d captured, %d failed of %d\n",
		summary.CapturedFrames, summary.FailedFrames, summary.TotalFrames)
	fmt.Printf("Drift:   %.3fs\n", summary.FinalDriftSeconds)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
