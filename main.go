// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau
//
// Nemacap - Nematostella time-series capture
//
// Drives long-running image-acquisition sessions: drift-free frame
// scheduling, light/dark illumination phases, and the synchronized
// LED pulse protocol of the lumen controller.

package main

import (
	"os"

	"github.com/s1alknau/Nematostella-time-series/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
