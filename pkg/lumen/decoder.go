// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package lumen

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Typed decoders for the fixed-layout controller responses. Each decoder
// validates the header byte before interpreting any payload bytes and
// returns a decode error on mismatch, never a panic.

// SyncResponse is the controller's report after a completed sync pulse.
type SyncResponse struct {
	TimingMs      uint16  // device-side elapsed time for the pulse
	Temperature   float64 // degrees Celsius, raw (uncalibrated)
	Humidity      float64 // percent relative humidity
	Channel       Channel // channel that was active ("ir" in dual mode reports the primary)
	LEDDurationMs uint16  // how long the LED was actually on
	Power         uint8   // power percentage actually applied
}

// DecodeSyncResponse decodes a 15-byte sync-complete response:
//
//	byte 0      header (0x1B)
//	bytes 1-2   timing ms, uint16 big-endian
//	bytes 3-6   temperature, float32 little-endian
//	bytes 7-10  humidity, float32 little-endian
//	byte 11     channel id
//	bytes 12-13 LED duration ms, uint16 big-endian
//	byte 14     power percent
func DecodeSyncResponse(data []byte) (SyncResponse, error) {
	if len(data) < SyncResponseSize {
		return SyncResponse{}, fmt.Errorf("sync response too short: %d bytes: %w", len(data), ErrShortResponse)
	}
	if data[0] != RespSyncComplete {
		return SyncResponse{}, fmt.Errorf("sync response header 0x%02X, want 0x%02X: %w", data[0], RespSyncComplete, ErrBadResponse)
	}

	return SyncResponse{
		TimingMs:      binary.BigEndian.Uint16(data[1:3]),
		Temperature:   float64(math.Float32frombits(binary.LittleEndian.Uint32(data[3:7]))),
		Humidity:      float64(math.Float32frombits(binary.LittleEndian.Uint32(data[7:11]))),
		Channel:       Channel(data[11]),
		LEDDurationMs: binary.BigEndian.Uint16(data[12:14]),
		Power:         data[14],
	}, nil
}

// EncodeSyncResponse encodes r to wire format. Used by device simulators
// and the round-trip tests; the real controller produces these bytes.
func EncodeSyncResponse(r SyncResponse) []byte {
	buf := make([]byte, SyncResponseSize)
	buf[0] = RespSyncComplete
	binary.BigEndian.PutUint16(buf[1:3], r.TimingMs)
	binary.LittleEndian.PutUint32(buf[3:7], math.Float32bits(float32(r.Temperature)))
	binary.LittleEndian.PutUint32(buf[7:11], math.Float32bits(float32(r.Humidity)))
	buf[11] = byte(r.Channel)
	binary.BigEndian.PutUint16(buf[12:14], r.LEDDurationMs)
	buf[14] = r.Power
	return buf
}

// SensorStatus is the controller's answer to the STATUS command.
type SensorStatus struct {
	LEDOn       bool    // header 0x11 means the selected LED is on
	Temperature float64 // degrees Celsius, quantized to 0.1
	Humidity    float64 // percent RH, quantized to 0.1
}

// DecodeSensorStatus decodes the 5-byte status response:
//
//	byte 0    header (0x10 off / 0x11 on)
//	bytes 1-2 temperature x10, int16 big-endian
//	bytes 3-4 humidity x10, uint16 big-endian
func DecodeSensorStatus(data []byte) (SensorStatus, error) {
	if len(data) < SensorStatusSize {
		return SensorStatus{}, fmt.Errorf("sensor status too short: %d bytes: %w", len(data), ErrShortResponse)
	}
	if data[0] != RespStatusOn && data[0] != RespStatusOff {
		return SensorStatus{}, fmt.Errorf("sensor status header 0x%02X: %w", data[0], ErrBadResponse)
	}

	tempRaw := int16(binary.BigEndian.Uint16(data[1:3]))
	humRaw := binary.BigEndian.Uint16(data[3:5])

	return SensorStatus{
		LEDOn:       data[0] == RespStatusOn,
		Temperature: float64(tempRaw) / 10.0,
		Humidity:    float64(humRaw) / 10.0,
	}, nil
}

// EncodeSensorStatus encodes s to wire format, quantizing temperature and
// humidity to 0.1 as the firmware does.
func EncodeSensorStatus(s SensorStatus) []byte {
	header := byte(RespStatusOff)
	if s.LEDOn {
		header = RespStatusOn
	}
	buf := make([]byte, SensorStatusSize)
	buf[0] = header
	binary.BigEndian.PutUint16(buf[1:3], uint16(int16(math.Round(s.Temperature*10))))
	binary.BigEndian.PutUint16(buf[3:5], uint16(math.Round(s.Humidity*10)))
	return buf
}

// LEDStatus mirrors the controller's per-channel LED state.
type LEDStatus struct {
	Selected   Channel
	IROn       bool
	WhiteOn    bool
	IRPower    uint8
	WhitePower uint8
}

// DecodeLEDStatus decodes the 6-byte LED status response:
//
//	byte 0 header (0x32)
//	byte 1 selected channel
//	byte 2 IR state (0/1)
//	byte 3 white state (0/1)
//	byte 4 IR power percent
//	byte 5 white power percent
func DecodeLEDStatus(data []byte) (LEDStatus, error) {
	if len(data) < LEDStatusSize {
		return LEDStatus{}, fmt.Errorf("LED status too short: %d bytes: %w", len(data), ErrShortResponse)
	}
	if data[0] != RespLEDStatus {
		return LEDStatus{}, fmt.Errorf("LED status header 0x%02X, want 0x%02X: %w", data[0], RespLEDStatus, ErrBadResponse)
	}

	return LEDStatus{
		Selected:   Channel(data[1]),
		IROn:       data[2] == 1,
		WhiteOn:    data[3] == 1,
		IRPower:    data[4],
		WhitePower: data[5],
	}, nil
}

// EncodeLEDStatus encodes s to wire format.
func EncodeLEDStatus(s LEDStatus) []byte {
	buf := make([]byte, LEDStatusSize)
	buf[0] = RespLEDStatus
	buf[1] = byte(s.Selected)
	if s.IROn {
		buf[2] = 1
	}
	if s.WhiteOn {
		buf[3] = 1
	}
	buf[4] = s.IRPower
	buf[5] = s.WhitePower
	return buf
}
