// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query controller sensor and LED state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, info, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Printf("Connection: %s\n\n", info)

	sensor, err := client.SensorStatus()
	if err != nil {
		return fmt.Errorf("sensor status failed: %w", err)
	}
	fmt.Printf("Temperature: %.1f °C\n", sensor.Temperature)
	fmt.Printf("Humidity:    %.1f %%RH\n", sensor.Humidity)
	fmt.Printf("LED active:  %v\n\n", sensor.LEDOn)

	leds, err := client.LEDStatus()
	if err != nil {
		return fmt.Errorf("led status failed: %w", err)
	}
	fmt.Printf("Selected:    %s\n", leds.Selected)
	fmt.Printf("IR:          on=%v power=%d%%\n", leds.IROn, leds.IRPower)
	fmt.Printf("White:       on=%v power=%d%%\n", leds.WhiteOn, leds.WhitePower)
	return nil
}
