// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func TestCBORLogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.cbor")
	log, err := NewCBORLog(path, 3)
	if err != nil {
		t.Fatalf("NewCBORLog: %v", err)
	}

	pix := []byte{10, 20, 30, 40}
	for i := 0; i < 5; i++ {
		meta := FrameMeta{
			ElapsedSeconds: float64(i) * 5.0,
			Phase:          "light",
			Cycle:          1,
			Channels:       []string{"white"},
			WhitePower:     60,
			SyncOK:         true,
			MeanIntensity:  128.5,
			Temperature:    23.0,
			Humidity:       55.0,
		}
		if err := log.Append(i, pix, 2, 2, meta); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	recs, err := ReadLog(path)
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("got %d records, want 5", len(recs))
	}
	if recs[3].Index != 3 {
		t.Errorf("record 3 index = %d", recs[3].Index)
	}
	if recs[0].Meta.Phase != "light" || recs[0].Meta.WhitePower != 60 {
		t.Errorf("metadata mismatch: %+v", recs[0].Meta)
	}
	if len(recs[0].Pix) != 4 || recs[0].Width != 2 || recs[0].Height != 2 {
		t.Errorf("image mismatch: %d bytes, %dx%d", len(recs[0].Pix), recs[0].Width, recs[0].Height)
	}
}

func TestCBORLogFailedFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.cbor")
	log, err := NewCBORLog(path, 0)
	if err != nil {
		t.Fatalf("NewCBORLog: %v", err)
	}

	meta := FrameMeta{Failed: true, Error: "sync timeout"}
	if err := log.Append(0, nil, 0, 0, meta); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	recs, err := ReadLog(path)
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if len(recs) != 1 || !recs[0].Meta.Failed || recs[0].Meta.Error != "sync timeout" {
		t.Errorf("failed frame not preserved: %+v", recs)
	}
}

// Records buffered below the flush threshold must still be readable
// after Close.
func TestCBORLogFinalFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.cbor")
	log, err := NewCBORLog(path, 100)
	if err != nil {
		t.Fatalf("NewCBORLog: %v", err)
	}
	if err := log.Append(0, []byte{1}, 1, 1, FrameMeta{}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	recs, err := ReadLog(path)
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("got %d records after close, want 1", len(recs))
	}
}

func TestSummaryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.yaml")
	want := SessionSummary{
		StartedAt:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt:        time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC),
		DurationSeconds:   7200,
		IntervalSeconds:   5,
		TotalFrames:       1441,
		CapturedFrames:    1439,
		FailedFrames:      2,
		SuccessRate:       0.9986,
		FinalDriftSeconds: 0.12,
		Phased:            true,
		CyclesTotal:       60,
		FinalPhase:        "dark",
	}
	if err := WriteSummary(path, want); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}

	got, err := ReadSummary(path)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if got != want {
		t.Errorf("summary round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}
