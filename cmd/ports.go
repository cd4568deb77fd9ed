// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

// Known USB-serial bridges on controller boards, scored so the most
// likely candidate sorts first.
var knownBridges = map[string]string{
	"10C4:EA60": "CP210x",
	"1A86:7523": "CH340",
	"0403:6001": "FTDI",
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports, most likely controller first",
	RunE:  runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

type scoredPort struct {
	details *enumerator.PortDetails
	score   int
	label   string
}

func scorePort(p *enumerator.PortDetails) scoredPort {
	sp := scoredPort{details: p}
	if !p.IsUSB {
		return sp
	}
	sp.score = 1

	id := strings.ToUpper(p.VID + ":" + p.PID)
	if name, ok := knownBridges[id]; ok {
		sp.score = 3
		sp.label = name
	}
	// Espressif's native USB interface uses its own vendor ID
	if strings.EqualFold(p.VID, "303A") {
		sp.score = 4
		sp.label = "Espressif"
	}
	if strings.Contains(strings.ToLower(p.Product), "cp210") ||
		strings.Contains(strings.ToLower(p.Product), "ch340") {
		if sp.score < 3 {
			sp.score = 3
		}
	}
	return sp
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}

	scored := make([]scoredPort, 0, len(ports))
	for _, p := range ports {
		scored = append(scored, scorePort(p))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	for _, sp := range scored {
		p := sp.details
		marker := " "
		if sp.score >= 3 {
			marker = "*"
		}
		line := fmt.Sprintf("%s %s", marker, p.Name)
		if p.IsUSB {
			line += fmt.Sprintf("  [%s:%s]", p.VID, p.PID)
			if sp.label != "" {
				line += "  " + sp.label
			}
			if p.Product != "" {
				line += "  " + p.Product
			}
		}
		fmt.Println(line)
	}
	fmt.Println("\n* likely controller")
	return nil
}
