// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package lumen

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Link errors. ErrTimeout (no bytes arrived within the deadline) is a
// retryable condition; ErrBadResponse (bytes arrived but the header does
// not match) indicates protocol corruption and triggers an aggressive
// drain before the next exchange. ErrLinkDown wraps transport write/read
// failures and is unrecoverable for the session.
var (
	ErrTimeout     = errors.New("lumen: read timed out")
	ErrBadResponse = errors.New("lumen: unexpected response")
	ErrShortResponse = errors.New("lumen: short response")
	ErrLinkDown    = errors.New("lumen: transport failed")
	ErrBusy        = errors.New("lumen: device busy")
)

// Transport is the byte-level connection to the controller. Read must
// return (0, nil) when no bytes arrive within the configured read timeout,
// matching go.bug.st/serial semantics.
type Transport interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	SetReadTimeout(d time.Duration) error
}

// Sleeper lets tests replace real delays. The default sleeps on the wall
// clock.
type Sleeper func(d time.Duration)

// LinkOptions tune the reliability layer.
type LinkOptions struct {
	ReadTimeout  time.Duration
	DrainPasses  int
	DrainSettle  time.Duration
	AckScanLimit int
	Sleep        Sleeper
}

func (o *LinkOptions) fill() {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.DrainPasses <= 0 {
		o.DrainPasses = DefaultDrainPasses
	}
	if o.DrainSettle <= 0 {
		o.DrainSettle = DefaultDrainSettle
	}
	if o.AckScanLimit <= 0 {
		o.AckScanLimit = DefaultAckScanLimit
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
}

// Link implements reliable command/response exchange over an unreliable
// byte stream: bounded reads, stale-byte draining and ack scanning.
type Link struct {
	t    Transport
	opts LinkOptions
}

// NewLink wraps t with the reliability layer.
func NewLink(t Transport, opts LinkOptions) *Link {
	opts.fill()
	return &Link{t: t, opts: opts}
}

// Send writes cmd fully before returning. There is no fire-and-forget: a
// partial write is a link failure.
func (l *Link) Send(cmd []byte) error {
	n, err := l.t.Write(cmd)
	if err != nil {
		return fmt.Errorf("write %d bytes: %v: %w", len(cmd), err, ErrLinkDown)
	}
	if n != len(cmd) {
		return fmt.Errorf("short write: %d of %d bytes: %w", n, len(cmd), ErrLinkDown)
	}
	return nil
}

// ReadFull reads exactly n bytes, waiting up to timeout for the first byte
// and for each subsequent chunk. Zero bytes within the timeout yields
// ErrTimeout; a partial response yields ErrShortResponse wrapping the byte
// counts.
func (l *Link) ReadFull(n int, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = l.opts.ReadTimeout
	}
	if err := l.t.SetReadTimeout(timeout); err != nil {
		return nil, fmt.Errorf("set read timeout: %v: %w", err, ErrLinkDown)
	}

	buf := make([]byte, n)
	got := 0
	deadline := time.Now().Add(timeout)

	for got < n {
		if time.Now().After(deadline) {
			break
		}
		r, err := l.t.Read(buf[got:])
		if err != nil {
			return nil, fmt.Errorf("read: %v: %w", err, ErrLinkDown)
		}
		if r == 0 {
			// Transport-level timeout slice expired.
			break
		}
		got += r
	}

	if got == 0 {
		return nil, fmt.Errorf("no response within %v: %w", timeout, ErrTimeout)
	}
	if got < n {
		return buf[:got], fmt.Errorf("got %d of %d bytes: %w", got, n, ErrShortResponse)
	}
	return buf, nil
}

// WaitForByte scans incoming bytes for want, discarding anything else,
// until timeout expires or the scan limit is reached. Discarded bytes are
// stale output from a previous exchange.
func (l *Link) WaitForByte(want byte, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = l.opts.ReadTimeout
	}
	// Short read slices so the deadline is honored even on a silent line.
	if err := l.t.SetReadTimeout(100 * time.Millisecond); err != nil {
		return fmt.Errorf("set read timeout: %v: %w", err, ErrLinkDown)
	}

	deadline := time.Now().Add(timeout)
	scanned := 0
	one := make([]byte, 1)

	for time.Now().Before(deadline) && scanned < l.opts.AckScanLimit {
		n, err := l.t.Read(one)
		if err != nil {
			return fmt.Errorf("read: %v: %w", err, ErrLinkDown)
		}
		if n == 0 {
			continue
		}
		scanned++
		if one[0] == want {
			return nil
		}
	}

	if scanned > 0 {
		return fmt.Errorf("0x%02X not seen in %d bytes: %w", want, scanned, ErrBadResponse)
	}
	return fmt.Errorf("0x%02X not seen within %v: %w", want, timeout, ErrTimeout)
}

// Drain clears stale bytes from the transport in repeated clear-and-wait
// passes. Some transports continue to emit buffered bytes for a short
// window after the host clears its side; a single pass leaves those bytes
// behind to corrupt the framing of the next exchange.
func (l *Link) Drain() error {
	if err := l.t.SetReadTimeout(10 * time.Millisecond); err != nil {
		return fmt.Errorf("set read timeout: %v: %w", err, ErrLinkDown)
	}

	junk := make([]byte, 256)
	for pass := 0; pass < l.opts.DrainPasses; pass++ {
		for {
			n, err := l.t.Read(junk)
			if err != nil {
				return fmt.Errorf("drain read: %v: %w", err, ErrLinkDown)
			}
			if n == 0 {
				break
			}
		}
		if err := l.t.ResetInputBuffer(); err != nil {
			return fmt.Errorf("reset input buffer: %v: %w", err, ErrLinkDown)
		}
		if pass < l.opts.DrainPasses-1 {
			l.opts.Sleep(l.opts.DrainSettle)
		}
	}
	return nil
}

// RetryPolicy bounds a retry loop with a fixed step delay. It replaces
// open-ended delay-and-poll loops with an explicit attempt budget.
type RetryPolicy struct {
	Attempts int
	Step     time.Duration
}

// DefaultAckRetry is the policy used for simple command acknowledgements.
var DefaultAckRetry = RetryPolicy{Attempts: 3, Step: 200 * time.Millisecond}

// SendAwaitAck sends cmd and waits for the ack byte, retrying the whole
// exchange on timeout. Corruption (wrong bytes seen) is not retried here:
// the caller must drain and decide.
func (l *Link) SendAwaitAck(cmd []byte, ack byte, timeout time.Duration, policy RetryPolicy) error {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if attempt > 0 {
			l.opts.Sleep(policy.Step)
		}
		if err := l.Send(cmd); err != nil {
			return err
		}
		err := l.WaitForByte(ack, timeout)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.Is(err, ErrTimeout) {
			// Corrupted line; retrying blind would desync further.
			return err
		}
	}
	return fmt.Errorf("after %d attempts: %w", policy.Attempts, lastErr)
}

// Close closes the underlying transport.
func (l *Link) Close() error {
	return l.t.Close()
}
