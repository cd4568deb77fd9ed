// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// DefaultFlushEvery is how many appended frames pass between durable
// flushes. Per-frame fsync would turn every capture into a blocking
// disk flush; once per ten frames keeps the loss window small without
// stalling the schedule.
const DefaultFlushEvery = 10

// CBORLog is an append-only frame log. Records are CBOR-encoded and
// buffered; every flushEvery appends the buffer is written out and the
// file synced.
type CBORLog struct {
	f          *os.File
	buf        *bufio.Writer
	enc        *cbor.Encoder
	flushEvery int
	pending    int
}

// NewCBORLog creates (or truncates) the log file at path. flushEvery
// values below 1 fall back to DefaultFlushEvery.
func NewCBORLog(path string, flushEvery int) (*CBORLog, error) {
	if flushEvery < 1 {
		flushEvery = DefaultFlushEvery
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create record log: %w", err)
	}
	buf := bufio.NewWriter(f)
	return &CBORLog{
		f:          f,
		buf:        buf,
		enc:        cbor.NewEncoder(buf),
		flushEvery: flushEvery,
	}, nil
}

// Append encodes one frame record. Write errors are session-fatal for
// the caller; the log makes no attempt to recover from them.
func (l *CBORLog) Append(index int, pix []byte, width, height int, meta FrameMeta) error {
	rec := FrameRecord{
		Index:     index,
		Timestamp: time.Now().UTC(),
		Width:     width,
		Height:    height,
		Pix:       pix,
		Meta:      meta,
	}
	if err := l.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to append frame %d: %w", index, err)
	}
	l.pending++
	if l.pending >= l.flushEvery {
		return l.Flush()
	}
	return nil
}

// Flush writes buffered records and syncs the file.
func (l *CBORLog) Flush() error {
	if err := l.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush record log: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync record log: %w", err)
	}
	l.pending = 0
	return nil
}

// Close flushes and closes the log file.
func (l *CBORLog) Close() error {
	flushErr := l.Flush()
	if err := l.f.Close(); err != nil {
		return fmt.Errorf("failed to close record log: %w", err)
	}
	return flushErr
}

// ReadLog decodes every record in a log file, mainly for tooling and
// tests.
func ReadLog(path string) ([]FrameRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record log: %w", err)
	}
	defer f.Close()

	dec := cbor.NewDecoder(bufio.NewReader(f))
	var recs []FrameRecord
	for {
		var rec FrameRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode record log: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
