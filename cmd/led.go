// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/s1alknau/Nematostella-time-series/pkg/lumen"
)

var ledCmd = &cobra.Command{
	Use:   "led",
	Short: "Manual LED control",
	Long: `Directly drive the controller's LED channels.

Useful for bench checks and focusing, outside of a recording session.
The device ownership gate applies: these commands are refused while a
recording or calibration holds the controller.`,
}

var ledOnCmd = &cobra.Command{
	Use:   "on [ir|white]",
	Short: "Turn the selected (or given) channel on",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLEDOn,
}

var ledOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Turn all channels off",
	RunE:  runLEDOff,
}

var ledPowerCmd = &cobra.Command{
	Use:   "power <ir|white> <percent>",
	Short: "Set a channel's power",
	Args:  cobra.ExactArgs(2),
	RunE:  runLEDPower,
}

func init() {
	rootCmd.AddCommand(ledCmd)
	ledCmd.AddCommand(ledOnCmd)
	ledCmd.AddCommand(ledOffCmd)
	ledCmd.AddCommand(ledPowerCmd)
}

func channelArg(name string) (lumen.Channel, error) {
	switch name {
	case "ir":
		return lumen.ChannelIR, nil
	case "white":
		return lumen.ChannelWhite, nil
	default:
		return 0, fmt.Errorf("unknown channel %q (want ir or white)", name)
	}
}

// withClient runs fn while holding the device ownership gate, then
// detaches without an implicit all-off so manual LED state survives the
// command.
func withClient(fn func(*lumen.Client) error) error {
	client, _, err := openClient()
	if err != nil {
		return err
	}
	defer client.Detach()

	release, err := client.Acquire("cli")
	if err != nil {
		return err
	}
	defer release()

	return fn(client)
}

func runLEDOn(cmd *cobra.Command, args []string) error {
	return withClient(func(client *lumen.Client) error {
		if len(args) == 1 {
			ch, err := channelArg(args[0])
			if err != nil {
				return err
			}
			if err := client.SelectChannel(ch); err != nil {
				return err
			}
		}
		if err := client.LEDOn(); err != nil {
			return err
		}
		fmt.Println("LED on")
		return nil
	})
}

func runLEDOff(cmd *cobra.Command, args []string) error {
	return withClient(func(client *lumen.Client) error {
		if err := client.AllOff(); err != nil {
			return err
		}
		fmt.Println("All channels off")
		return nil
	})
}

func runLEDPower(cmd *cobra.Command, args []string) error {
	ch, err := channelArg(args[0])
	if err != nil {
		return err
	}
	power, err := strconv.Atoi(args[1])
	if err != nil || power < 0 || power > 100 {
		return fmt.Errorf("power must be 0-100, got %q", args[1])
	}

	return withClient(func(client *lumen.Client) error {
		if err := client.SetPower(ch, power); err != nil {
			return err
		}
		fmt.Printf("%s power set to %d%%\n", ch, power)
		return nil
	})
}
