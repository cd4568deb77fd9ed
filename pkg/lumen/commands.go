// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package lumen

import "encoding/binary"

// Command builder functions produce wire bytes ready for transmission.
// Power and timing values are clamped to the ranges the firmware accepts,
// matching the controller's own input validation.

// BuildLEDOn builds the LED_ON command (turns on the selected channel).
func BuildLEDOn() []byte {
	return []byte{CmdLEDOn}
}

// BuildLEDOff builds the LED_OFF command (turns off the selected channel).
func BuildLEDOff() []byte {
	return []byte{CmdLEDOff}
}

// BuildAllOff builds the ALL_OFF command (turns off every channel).
func BuildAllOff() []byte {
	return []byte{CmdAllOff}
}

// BuildStatus builds the STATUS command. The controller answers with a
// 5-byte sensor status response.
func BuildStatus() []byte {
	return []byte{CmdStatus}
}

// BuildLEDStatus builds the LED_STATUS query. The controller answers with
// a 6-byte LED status response.
func BuildLEDStatus() []byte {
	return []byte{CmdLEDStatus}
}

// BuildSelectChannel builds the channel select command for ch.
func BuildSelectChannel(ch Channel) []byte {
	if ch == ChannelWhite {
		return []byte{CmdSelectWhite}
	}
	return []byte{CmdSelectIR}
}

// BuildSyncCapture builds the sync-capture command. When dual is true both
// channels are pulsed simultaneously.
func BuildSyncCapture(dual bool) []byte {
	if dual {
		return []byte{CmdSyncCaptureDual}
	}
	return []byte{CmdSyncCapture}
}

// BuildSetPower builds the per-channel power command. Power is a percentage
// and is clamped to 0-100.
func BuildSetPower(ch Channel, power int) []byte {
	cmd := byte(CmdSetIRPower)
	if ch == ChannelWhite {
		cmd = CmdSetWhitePower
	}
	return []byte{cmd, clampByte(power, 0, 100)}
}

// BuildSetSelectedPower builds the power command for whichever channel is
// currently selected on the controller.
func BuildSetSelectedPower(power int) []byte {
	return []byte{CmdSetPower, clampByte(power, 0, 100)}
}

// BuildSetTiming builds the timing command: stabilization and exposure
// windows in milliseconds, each encoded as big-endian uint16.
func BuildSetTiming(stabilizationMs, exposureMs int) []byte {
	stab := clampUint16(stabilizationMs, MinStabilizationMs, MaxStabilizationMs)
	exp := clampUint16(exposureMs, MinExposureMs, MaxExposureMs)

	buf := make([]byte, 5)
	buf[0] = CmdSetTiming
	binary.BigEndian.PutUint16(buf[1:3], stab)
	binary.BigEndian.PutUint16(buf[3:5], exp)
	return buf
}

func clampByte(v, lo, hi int) byte {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return byte(v)
}

func clampUint16(v, lo, hi int) uint16 {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return uint16(v)
}
