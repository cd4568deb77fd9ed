// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

// Package storage persists captured frames and their per-frame metadata.
// Records go into an append-only CBOR log with periodic durability; a
// YAML session summary is written once when a recording finalizes.
package storage

import "time"

// FrameMeta is the per-frame metadata record handed to a Sink alongside
// the image buffer. Durations are stored as seconds so the log stays
// readable by non-Go tooling.
type FrameMeta struct {
	ElapsedSeconds        float64  `cbor:"elapsed_s"`
	ExpectedSeconds       float64  `cbor:"expected_s"`
	DriftSeconds          float64  `cbor:"drift_s"`
	ActualIntervalSeconds float64  `cbor:"actual_interval_s"`
	Phase                 string   `cbor:"phase"`
	Cycle                 int      `cbor:"cycle"`
	Channels              []string `cbor:"channels"`
	IRPower               uint8    `cbor:"ir_power"`
	WhitePower            uint8    `cbor:"white_power"`
	SyncOK                bool     `cbor:"sync_ok"`
	MeanIntensity         float64  `cbor:"mean_intensity"`
	Temperature           float64  `cbor:"temperature_c"`
	Humidity              float64  `cbor:"humidity_pct"`
	Failed                bool     `cbor:"failed"`
	Error                 string   `cbor:"error,omitempty"`
}

// FrameRecord is one entry in the record log.
type FrameRecord struct {
	Index     int       `cbor:"index"`
	Timestamp time.Time `cbor:"ts"`
	Width     int       `cbor:"width"`
	Height    int       `cbor:"height"`
	Pix       []byte    `cbor:"pix"`
	Meta      FrameMeta `cbor:"meta"`
}

// Sink accepts frames during a recording session. Append may buffer;
// Flush forces buffered records to durable storage. Implementations
// flush periodically on their own, but callers must still Flush (or
// Close) at session end or cancellation.
type Sink interface {
	Append(index int, pix []byte, width, height int, meta FrameMeta) error
	Flush() error
	Close() error
}
