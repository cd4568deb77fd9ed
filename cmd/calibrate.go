// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/s1alknau/Nematostella-time-series/internal/calibration"
	"github.com/s1alknau/Nematostella-time-series/internal/recorder"
	"github.com/s1alknau/Nematostella-time-series/pkg/lumen"
)

var (
	calChannel    string
	calTarget     float64
	calTolerance  float64
	calIterations int
	calFloor      int
	calDual       bool
	calSettleMs   int
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Find the LED power for a target image brightness",
	Long: `Binary-search the LED power until the centered region of interest
reaches the target mean intensity.

Single-channel mode searches one channel between --floor and 100%.
Dual mode (--dual) calibrates the IR channel first under its floor,
holds it, then searches the white channel for the combined target.

Calibration drives illumination exclusively and is refused while a
recording session is using the device.`,
	RunE: runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
	calibrateCmd.Flags().StringVar(&calChannel, "channel", "ir", "Channel to calibrate (ir or white)")
	calibrateCmd.Flags().Float64Var(&calTarget, "target", 128, "Target ROI mean intensity (0-255)")
	calibrateCmd.Flags().Float64Var(&calTolerance, "tolerance", 5, "Convergence tolerance (percent)")
	calibrateCmd.Flags().IntVar(&calIterations, "max-iterations", 8, "Search iteration budget")
	calibrateCmd.Flags().IntVar(&calFloor, "floor", 0, "Minimum power to test (percent)")
	calibrateCmd.Flags().BoolVar(&calDual, "dual", false, "Two-stage IR+white calibration")
	calibrateCmd.Flags().IntVar(&calSettleMs, "settle", 300, "Settle delay after power changes (ms)")
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	client, info, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close()
	slog.Info("controller connected", "connection", info)

	camera := &recorder.SyntheticCamera{}
	measure := func() (float64, error) {
		frame, err := camera.Capture()
		if err != nil {
			return 0, err
		}
		return recorder.MeanIntensity(frame, recorder.DefaultROIFraction), nil
	}
	engine := calibration.New(client, measure, slog.Default())

	settle := time.Duration(calSettleMs) * time.Millisecond

	if calDual {
		res, err := engine.CalibrateDual(calibration.DualParams{
			Target:           calTarget,
			TolerancePercent: calTolerance,
			MaxIterations:    calIterations,
			IRFloor:          uint8(calFloor),
			SettleDelay:      settle,
		})
		if err != nil {
			return err
		}
		fmt.Printf("IR power:     %d%% (intensity %.1f)\n", res.IR.Power, res.IR.Intensity)
		fmt.Printf("White power:  %d%% (combined %.1f, target %.1f)\n", res.White.Power, res.Combined, calTarget)
		if !res.White.Success {
			fmt.Println("Did not converge; values above are the best candidates found.")
		}
		fmt.Printf("\nConfig values:\n  light_ir_power: %d\n  light_white_power: %d\n", res.IR.Power, res.White.Power)
		return nil
	}

	var ch lumen.Channel
	switch calChannel {
	case "ir":
		ch = lumen.ChannelIR
	case "white":
		ch = lumen.ChannelWhite
	default:
		return fmt.Errorf("unknown channel %q (want ir or white)", calChannel)
	}

	res, err := engine.CalibrateSingle(ch, calibration.Params{
		Target:           calTarget,
		TolerancePercent: calTolerance,
		MaxIterations:    calIterations,
		Floor:            uint8(calFloor),
		SettleDelay:      settle,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Channel:    %s\n", ch)
	fmt.Printf("Power:      %d%%\n", res.Power)
	fmt.Printf("Intensity:  %.1f (target %.1f, error %.1f%%)\n", res.Intensity, res.Target, res.RelativeError*100)
	fmt.Printf("Iterations: %d\n", res.Iterations)
	if !res.Success {
		fmt.Println("Did not converge; value above is the best candidate found.")
	}
	return nil
}
