// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package lumen

import (
	"time"
)

// fakeTransport simulates the controller end of the serial line. Reads
// return (0, nil) when no bytes are pending, matching the real transport's
// timeout behavior. An optional script maps each written command to the
// response bytes the device would emit.
type fakeTransport struct {
	rx     []byte
	writes [][]byte
	script func(cmd []byte) []byte

	// leak simulates a transport that keeps emitting buffered bytes after
	// the host clears its side: each ResetInputBuffer call surfaces the
	// next batch.
	leak [][]byte

	resetCalls int
	closed     bool
	readErr    error
	writeErr   error
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.rx) == 0 {
		return 0, nil // timeout slice expired with no bytes
	}
	n := copy(p, f.rx)
	f.rx = f.rx[n:]
	return n, nil
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	cmd := append([]byte(nil), p...)
	f.writes = append(f.writes, cmd)
	if f.script != nil {
		f.rx = append(f.rx, f.script(cmd)...)
	}
	return len(p), nil
}

func (f *fakeTransport) ResetInputBuffer() error {
	f.resetCalls++
	f.rx = nil
	if len(f.leak) > 0 {
		f.rx = append([]byte(nil), f.leak[0]...)
		f.leak = f.leak[1:]
	}
	return nil
}

func (f *fakeTransport) SetReadTimeout(time.Duration) error { return nil }

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

// quietOpts disables real sleeping so link tests run instantly.
func quietOpts() LinkOptions {
	return LinkOptions{
		ReadTimeout: 50 * time.Millisecond,
		DrainSettle: time.Millisecond,
		Sleep:       func(time.Duration) {},
	}
}
