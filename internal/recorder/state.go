// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package recorder

import (
	"sync"
	"time"
)

// State is the mutable bookkeeping of a running session. The scheduler
// is its only writer; everyone else reads through Snapshot.
type State struct {
	mu sync.Mutex

	running     bool
	start       time.Time
	frameIndex  int
	totalFrames int
	drift       time.Duration

	captured int
	failed   int

	phaseName string
	cycle     int
}

// Snapshot is a read-only copy of the session state at one instant.
type Snapshot struct {
	Running     bool
	Start       time.Time
	FrameIndex  int
	TotalFrames int
	Drift       time.Duration

	Captured    int
	Failed      int
	SuccessRate float64

	Phase string
	Cycle int
}

func (s *State) begin(start time.Time, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.start = start
	s.frameIndex = 0
	s.totalFrames = total
	s.drift = 0
	s.captured = 0
	s.failed = 0
	s.phaseName = ""
	s.cycle = 0
}

func (s *State) frameDone(index int, drift time.Duration, phaseName string, cycle int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameIndex = index
	s.drift = drift
	s.phaseName = phaseName
	s.cycle = cycle
	if ok {
		s.captured++
	} else {
		s.failed++
	}
}

func (s *State) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Running:     s.running,
		Start:       s.start,
		FrameIndex:  s.frameIndex,
		TotalFrames: s.totalFrames,
		Drift:       s.drift,
		Captured:    s.captured,
		Failed:      s.failed,
		Phase:       s.phaseName,
		Cycle:       s.cycle,
	}
	if done := s.captured + s.failed; done > 0 {
		snap.SuccessRate = float64(s.captured) / float64(done)
	}
	return snap
}
