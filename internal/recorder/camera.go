// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package recorder

import "errors"

// ErrNoFrame indicates the camera had no frame ready. Transient: the
// scheduler re-polls within the frame's retry budget before giving up
// on that frame.
var ErrNoFrame = errors.New("no frame available")

// Frame is a single grayscale image buffer, row-major, one byte per
// pixel.
type Frame struct {
	Pix    []byte
	Width  int
	Height int
}

// Camera exposes the current frame of an acquisition device. Capture
// returns ErrNoFrame when nothing is ready yet; any other error is
// treated as a camera fault for that frame.
type Camera interface {
	Capture() (Frame, error)
}
