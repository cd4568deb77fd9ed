// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package storage

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SessionSummary is the end-of-session report written next to the
// record log.
type SessionSummary struct {
	StartedAt       time.Time `yaml:"started_at"`
	FinishedAt      time.Time `yaml:"finished_at"`
	DurationSeconds float64   `yaml:"duration_s"`
	IntervalSeconds float64   `yaml:"interval_s"`

	TotalFrames    int     `yaml:"total_frames"`
	CapturedFrames int     `yaml:"captured_frames"`
	FailedFrames   int     `yaml:"failed_frames"`
	SuccessRate    float64 `yaml:"success_rate"`

	FinalDriftSeconds float64 `yaml:"final_drift_s"`

	Phased      bool   `yaml:"phased"`
	CyclesTotal int    `yaml:"cycles_total,omitempty"`
	FinalPhase  string `yaml:"final_phase,omitempty"`

	Aborted     bool   `yaml:"aborted"`
	AbortReason string `yaml:"abort_reason,omitempty"`
}

// WriteSummary marshals the summary to YAML at path.
func WriteSummary(path string, s SessionSummary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session summary: %w", err)
	}
	return nil
}

// ReadSummary loads a previously written summary.
func ReadSummary(path string) (SessionSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SessionSummary{}, fmt.Errorf("failed to read session summary: %w", err)
	}
	var s SessionSummary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return SessionSummary{}, fmt.Errorf("failed to parse session summary: %w", err)
	}
	return s, nil
}
