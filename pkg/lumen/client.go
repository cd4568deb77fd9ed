// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package lumen

import (
	"fmt"
	"sync"
	"time"
)

// TemperatureOffset compensates for controller self-heating (~+1°C) and
// LED proximity heating (~+1°C) in sensor status reads.
const TemperatureOffset = -2.0

// Sensor plausibility bounds. Readings outside them are replaced/clamped
// rather than propagated, since a single garbled read should not poison a
// session's telemetry.
const (
	minPlausibleTemp = -40.0
	maxPlausibleTemp = 85.0
	fallbackTemp     = 25.0
)

// Client is the high-level illumination client. All mutating operations
// drain stale bytes before sending, because a half-consumed previous
// response corrupts the framing of the next exchange.
//
// The client also acts as the device ownership gate: recording and
// calibration both drive illumination state exclusively and must never run
// concurrently.
type Client struct {
	link *Link

	gate  sync.Mutex
	owner string

	mu       sync.Mutex
	selected Channel
	timing   Timing
}

// Timing is the controller-side pulse timing configuration.
type Timing struct {
	StabilizationMs int
	ExposureMs      int
}

// NewClient builds a client over t.
func NewClient(t Transport, opts LinkOptions) *Client {
	return &Client{
		link:     NewLink(t, opts),
		selected: ChannelIR,
		timing:   Timing{StabilizationMs: 1000, ExposureMs: 10},
	}
}

// Acquire claims exclusive use of the device for owner (e.g. "recording",
// "calibration"). It fails with ErrBusy when another owner holds the gate;
// the returned release function must be called exactly once.
func (c *Client) Acquire(owner string) (func(), error) {
	if !c.gate.TryLock() {
		c.mu.Lock()
		holder := c.owner
		c.mu.Unlock()
		return nil, fmt.Errorf("device held by %q: %w", holder, ErrBusy)
	}
	c.mu.Lock()
	c.owner = owner
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.owner = ""
			c.mu.Unlock()
			c.gate.Unlock()
		})
	}, nil
}

// Probe checks that a controller is answering by sending STATUS and
// reading the 5-byte sensor response.
func (c *Client) Probe() error {
	if err := c.link.Drain(); err != nil {
		return err
	}
	if err := c.link.Send(BuildStatus()); err != nil {
		return err
	}
	data, err := c.link.ReadFull(SensorStatusSize, DefaultReadTimeout)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	if _, err := DecodeSensorStatus(data); err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	return nil
}

// Bootstrap probes the controller and pushes the initial pulse timing.
func (c *Client) Bootstrap(timing Timing) error {
	if err := c.Probe(); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if err := c.SetTiming(timing.StabilizationMs, timing.ExposureMs); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return nil
}

// SelectChannel makes ch the active channel on the controller.
func (c *Client) SelectChannel(ch Channel) error {
	if !ch.Valid() {
		return fmt.Errorf("select channel %d: invalid channel", ch)
	}

	if err := c.link.Drain(); err != nil {
		return err
	}

	want := byte(RespIRSelected)
	if ch == ChannelWhite {
		want = RespWhiteSelected
	}
	if err := c.link.SendAwaitAck(BuildSelectChannel(ch), want, DefaultAckTimeout, DefaultAckRetry); err != nil {
		return fmt.Errorf("select %s: %w", ch, err)
	}

	c.mu.Lock()
	c.selected = ch
	c.mu.Unlock()
	return nil
}

// SetPower sets the power percentage for ch. The drain here is aggressive
// on purpose: dual-channel setup sends power commands back to back and
// stale ack bytes from the previous one corrupt the next exchange.
func (c *Client) SetPower(ch Channel, power int) error {
	if err := c.link.Drain(); err != nil {
		return err
	}
	if err := c.link.SendAwaitAck(BuildSetPower(ch, power), RespAck, time.Second, DefaultAckRetry); err != nil {
		return fmt.Errorf("set %s power %d%%: %w", ch, power, err)
	}
	return nil
}

// SetTiming configures the stabilization and exposure windows in
// milliseconds.
func (c *Client) SetTiming(stabilizationMs, exposureMs int) error {
	if err := c.link.Drain(); err != nil {
		return err
	}
	if err := c.link.SendAwaitAck(BuildSetTiming(stabilizationMs, exposureMs), RespTimingSet, DefaultAckTimeout, DefaultAckRetry); err != nil {
		return fmt.Errorf("set timing %d/%dms: %w", stabilizationMs, exposureMs, err)
	}

	c.mu.Lock()
	c.timing = Timing{StabilizationMs: stabilizationMs, ExposureMs: exposureMs}
	c.mu.Unlock()
	return nil
}

// Timing returns the last timing pushed to the controller.
func (c *Client) Timing() Timing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timing
}

// LEDOn turns on the selected channel and waits for the ack.
func (c *Client) LEDOn() error {
	if err := c.link.Drain(); err != nil {
		return err
	}
	if err := c.link.SendAwaitAck(BuildLEDOn(), RespAck, DefaultAckTimeout, DefaultAckRetry); err != nil {
		return fmt.Errorf("led on: %w", err)
	}
	return nil
}

// LEDOff turns off the selected channel. The controller does not ack this
// reliably, so the command is fire-and-confirm-later: failures surface on
// the next exchange.
func (c *Client) LEDOff() error {
	if err := c.link.Drain(); err != nil {
		return err
	}
	if err := c.link.Send(BuildLEDOff()); err != nil {
		return fmt.Errorf("led off: %w", err)
	}
	return nil
}

// AllOff turns off every channel.
func (c *Client) AllOff() error {
	if err := c.link.Drain(); err != nil {
		return err
	}
	if err := c.link.Send(BuildAllOff()); err != nil {
		return fmt.Errorf("all off: %w", err)
	}
	return nil
}

// BeginSync starts a synchronized exposure pulse. The controller turns the
// illumination on and acks immediately so the host knows power is applied;
// it then runs the stabilization and exposure windows on its own clock.
// Returns the host-side pulse start time.
func (c *Client) BeginSync(dual bool) (time.Time, error) {
	if err := c.link.Drain(); err != nil {
		return time.Time{}, err
	}
	if err := c.link.Send(BuildSyncCapture(dual)); err != nil {
		return time.Time{}, err
	}
	if err := c.link.WaitForByte(RespAck, DefaultAckTimeout); err != nil {
		return time.Time{}, fmt.Errorf("sync begin (dual=%v): %w", dual, err)
	}
	return time.Now(), nil
}

// AwaitSyncComplete blocks until the controller reports the pulse finished
// and returns the decoded response. A timeout here, after the begin ack
// was seen, is a protocol failure for this frame rather than a retryable
// condition.
func (c *Client) AwaitSyncComplete(timeout time.Duration) (SyncResponse, error) {
	if timeout <= 0 {
		timeout = DefaultSyncTimeout
	}
	data, err := c.link.ReadFull(SyncResponseSize, timeout)
	if err != nil {
		return SyncResponse{}, fmt.Errorf("sync complete: %w", err)
	}
	resp, err := DecodeSyncResponse(data)
	if err != nil {
		// Header mismatch means the stream is desynced; clear it so the
		// next exchange starts clean.
		_ = c.link.Drain()
		return SyncResponse{}, fmt.Errorf("sync complete: %w", err)
	}
	return resp, nil
}

// SensorStatus queries temperature and humidity. The temperature offset
// compensates for controller self-heating; implausible readings are
// replaced or clamped.
func (c *Client) SensorStatus() (SensorStatus, error) {
	if err := c.link.Drain(); err != nil {
		return SensorStatus{}, err
	}
	if err := c.link.Send(BuildStatus()); err != nil {
		return SensorStatus{}, err
	}
	data, err := c.link.ReadFull(SensorStatusSize, DefaultReadTimeout)
	if err != nil {
		return SensorStatus{}, fmt.Errorf("sensor status: %w", err)
	}
	status, err := DecodeSensorStatus(data)
	if err != nil {
		_ = c.link.Drain()
		return SensorStatus{}, fmt.Errorf("sensor status: %w", err)
	}

	status.Temperature, status.Humidity = CalibrateSensorReading(status.Temperature, status.Humidity)
	return status, nil
}

// CalibrateSensorReading applies the temperature offset and plausibility
// bounds to a raw sensor pair. Used for both status reads and the
// telemetry embedded in sync-complete responses.
func CalibrateSensorReading(temp, humidity float64) (float64, float64) {
	temp += TemperatureOffset
	if temp < minPlausibleTemp || temp > maxPlausibleTemp {
		temp = fallbackTemp
	}
	if humidity < 0 {
		humidity = 0
	}
	if humidity > 100 {
		humidity = 100
	}
	return temp, humidity
}

// LEDStatus queries per-channel LED state and powers.
func (c *Client) LEDStatus() (LEDStatus, error) {
	if err := c.link.Drain(); err != nil {
		return LEDStatus{}, err
	}
	if err := c.link.Send(BuildLEDStatus()); err != nil {
		return LEDStatus{}, err
	}
	data, err := c.link.ReadFull(LEDStatusSize, DefaultReadTimeout)
	if err != nil {
		return LEDStatus{}, fmt.Errorf("led status: %w", err)
	}
	status, err := DecodeLEDStatus(data)
	if err != nil {
		_ = c.link.Drain()
		return LEDStatus{}, fmt.Errorf("led status: %w", err)
	}

	c.mu.Lock()
	c.selected = status.Selected
	c.mu.Unlock()
	return status, nil
}

// Close turns everything off and closes the link. The all-off is best
// effort; an unplugged device should not block shutdown.
func (c *Client) Close() error {
	_ = c.AllOff()
	return c.link.Close()
}

// Detach closes the link without changing LED state, for tooling that
// intentionally leaves illumination running.
func (c *Client) Detach() error {
	return c.link.Close()
}
