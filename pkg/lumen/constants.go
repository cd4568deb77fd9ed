// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

// Package lumen provides a Go implementation of the Lumen serial protocol.
//
// Lumen is a byte-oriented protocol for talking to the LED illumination
// controller used during time-series recordings. This package provides
// command building, typed response decoding, the link reliability layer
// (bounded reads, multi-pass buffer draining, ack retries) and a high-level
// illumination client.
package lumen

import "time"

// Command bytes (host → controller)
const (
	CmdLEDOff          = 0x00
	CmdLEDOn           = 0x01
	CmdStatus          = 0x02
	CmdSyncCapture     = 0x0C
	CmdSetPower        = 0x10 // + 1 power byte, currently selected channel
	CmdSetTiming       = 0x11 // + 2x uint16 big-endian (stabilization, exposure) ms
	CmdSelectIR        = 0x20
	CmdSelectWhite     = 0x21
	CmdAllOff          = 0x22
	CmdLEDStatus       = 0x23
	CmdSetIRPower      = 0x24 // + 1 power byte
	CmdSetWhitePower   = 0x25 // + 1 power byte
	CmdSyncCaptureDual = 0x2C
)

// Response bytes (controller → host)
const (
	RespAck           = 0xAA
	RespSyncComplete  = 0x1B
	RespTimingSet     = 0x21
	RespStatusOff     = 0x10
	RespStatusOn      = 0x11
	RespIRSelected    = 0x30
	RespWhiteSelected = 0x31
	RespLEDStatus     = 0x32
	RespError         = 0xFF
)

// Fixed response lengths, header byte included
const (
	SyncResponseSize   = 15
	SensorStatusSize   = 5
	LEDStatusSize      = 6
	AckSize            = 1
	SelectResponseSize = 1
)

// Timing command limits enforced by the firmware. Values outside these
// ranges are clamped before transmission.
const (
	MinStabilizationMs = 10
	MaxStabilizationMs = 10000
	MinExposureMs      = 0
	MaxExposureMs      = 30000
)

// Link defaults
const (
	DefaultReadTimeout = 2 * time.Second
	DefaultAckTimeout  = 2 * time.Second
	DefaultSyncTimeout = 5 * time.Second

	// Multi-pass draining: some transports keep emitting buffered bytes
	// for a short window after the host clears its side. A single clear
	// pass is demonstrably insufficient on the bench.
	DefaultDrainPasses = 3
	DefaultDrainSettle = 50 * time.Millisecond

	// Maximum bytes scanned while hunting for an expected ack byte.
	DefaultAckScanLimit = 100
)

// Channel identifies an illumination channel.
type Channel uint8

// Channel values as used on the wire.
const (
	ChannelIR    Channel = 0
	ChannelWhite Channel = 1
)

// String returns the channel name.
func (c Channel) String() string {
	switch c {
	case ChannelIR:
		return "ir"
	case ChannelWhite:
		return "white"
	default:
		return "unknown"
	}
}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelIR || c == ChannelWhite
}
