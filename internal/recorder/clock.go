// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package recorder

import (
	"context"
	"time"
)

// Clock abstracts time so the scheduler can be driven by tests without
// waiting out real intervals.
type Clock interface {
	Now() time.Time
	// SleepUntil blocks until t or until ctx is cancelled. It returns
	// false on cancellation. A target in the past returns immediately.
	SleepUntil(ctx context.Context, t time.Time) bool
}

// RealClock is the wall-clock implementation used outside tests.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) SleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
