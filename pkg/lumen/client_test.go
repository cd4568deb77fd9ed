// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package lumen

import (
	"errors"
	"testing"
	"time"
)

// scriptedDevice emulates controller firmware: every command written to
// the transport is answered with the bytes the device would emit.
func scriptedDevice() func(cmd []byte) []byte {
	return func(cmd []byte) []byte {
		switch cmd[0] {
		case CmdStatus:
			return EncodeSensorStatus(SensorStatus{LEDOn: false, Temperature: 25.0, Humidity: 50.0})
		case CmdSelectIR:
			return []byte{RespIRSelected}
		case CmdSelectWhite:
			return []byte{RespWhiteSelected}
		case CmdSetIRPower, CmdSetWhitePower, CmdSetPower, CmdLEDOn:
			return []byte{RespAck}
		case CmdSetTiming:
			return []byte{RespTimingSet}
		case CmdSyncCapture, CmdSyncCaptureDual:
			// Immediate ack, then the completion report.
			resp := SyncResponse{
				TimingMs:      1010,
				Temperature:   24.2,
				Humidity:      48.7,
				Channel:       ChannelIR,
				LEDDurationMs: 1010,
				Power:         80,
			}
			return append([]byte{RespAck}, EncodeSyncResponse(resp)...)
		case CmdLEDStatus:
			return EncodeLEDStatus(LEDStatus{Selected: ChannelIR, IRPower: 80, WhitePower: 35})
		default:
			return nil
		}
	}
}

func newTestClient() (*Client, *fakeTransport) {
	ft := &fakeTransport{script: scriptedDevice()}
	return NewClient(ft, quietOpts()), ft
}

func TestClient_ProbeAndBootstrap(t *testing.T) {
	c, _ := newTestClient()

	if err := c.Probe(); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if err := c.Bootstrap(Timing{StabilizationMs: 1000, ExposureMs: 20}); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if got := c.Timing(); got.StabilizationMs != 1000 || got.ExposureMs != 20 {
		t.Errorf("timing not cached: %+v", got)
	}
}

func TestClient_SelectChannel(t *testing.T) {
	c, ft := newTestClient()

	if err := c.SelectChannel(ChannelWhite); err != nil {
		t.Fatalf("SelectChannel: %v", err)
	}
	last := ft.writes[len(ft.writes)-1]
	if last[0] != CmdSelectWhite {
		t.Errorf("wrote 0x%02X, want select-white", last[0])
	}

	if err := c.SelectChannel(Channel(7)); err == nil {
		t.Error("invalid channel should be rejected before hitting the wire")
	}
}

func TestClient_SyncCaptureExchange(t *testing.T) {
	c, _ := newTestClient()

	start, err := c.BeginSync(false)
	if err != nil {
		t.Fatalf("BeginSync: %v", err)
	}
	if start.IsZero() {
		t.Error("pulse start time not set")
	}

	resp, err := c.AwaitSyncComplete(time.Second)
	if err != nil {
		t.Fatalf("AwaitSyncComplete: %v", err)
	}
	if resp.TimingMs != 1010 || resp.Power != 80 || resp.Channel != ChannelIR {
		t.Errorf("unexpected sync response: %+v", resp)
	}
}

func TestClient_SyncCompleteTimeoutAfterAck(t *testing.T) {
	// Ack arrives but the completion report never does: protocol failure
	// for this frame, not a retryable ack timeout.
	ft := &fakeTransport{script: func(cmd []byte) []byte {
		if cmd[0] == CmdSyncCapture {
			return []byte{RespAck}
		}
		return nil
	}}
	c := NewClient(ft, quietOpts())

	if _, err := c.BeginSync(false); err != nil {
		t.Fatalf("BeginSync: %v", err)
	}
	_, err := c.AwaitSyncComplete(30 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestClient_SyncCompleteCorruptHeaderDrains(t *testing.T) {
	garbage := make([]byte, SyncResponseSize)
	for i := range garbage {
		garbage[i] = 0x5A
	}
	ft := &fakeTransport{script: func(cmd []byte) []byte {
		if cmd[0] == CmdSyncCapture {
			return append([]byte{RespAck}, garbage...)
		}
		return nil
	}}
	c := NewClient(ft, quietOpts())

	if _, err := c.BeginSync(false); err != nil {
		t.Fatalf("BeginSync: %v", err)
	}
	resets := ft.resetCalls
	_, err := c.AwaitSyncComplete(time.Second)
	if !errors.Is(err, ErrBadResponse) {
		t.Fatalf("error = %v, want ErrBadResponse", err)
	}
	if ft.resetCalls <= resets {
		t.Error("corrupt response should trigger a drain before the next exchange")
	}
}

func TestClient_SensorStatusAppliesOffsetAndClamps(t *testing.T) {
	tests := []struct {
		name     string
		raw      SensorStatus
		wantTemp float64
		wantHum  float64
	}{
		{"normal", SensorStatus{Temperature: 25.0, Humidity: 50.0}, 23.0, 50.0},
		{"implausible temp replaced", SensorStatus{Temperature: 200.0, Humidity: 50.0}, fallbackTemp, 50.0},
		{"humidity clamped", SensorStatus{Temperature: 25.0, Humidity: 120.0}, 23.0, 100.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := &fakeTransport{script: func(cmd []byte) []byte {
				return EncodeSensorStatus(tt.raw)
			}}
			c := NewClient(ft, quietOpts())

			got, err := c.SensorStatus()
			if err != nil {
				t.Fatalf("SensorStatus: %v", err)
			}
			if got.Temperature != tt.wantTemp {
				t.Errorf("temperature = %f, want %f", got.Temperature, tt.wantTemp)
			}
			if got.Humidity != tt.wantHum {
				t.Errorf("humidity = %f, want %f", got.Humidity, tt.wantHum)
			}
		})
	}
}

func TestClient_AcquireIsExclusive(t *testing.T) {
	c, _ := newTestClient()

	release, err := c.Acquire("recording")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if _, err := c.Acquire("calibration"); !errors.Is(err, ErrBusy) {
		t.Errorf("second acquire error = %v, want ErrBusy", err)
	}

	release()
	release() // double release must be harmless

	release2, err := c.Acquire("calibration")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release2()
}

func TestClient_SetPowerFailureSurfaces(t *testing.T) {
	ft := &fakeTransport{} // never acks
	c := NewClient(ft, quietOpts())

	err := c.SetPower(ChannelIR, 80)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}
