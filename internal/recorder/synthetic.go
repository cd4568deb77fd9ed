// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package recorder

// SyntheticCamera produces deterministic gradient frames, for running
// sessions and exercising the storage path without acquisition
// hardware on the bench.
type SyntheticCamera struct {
	Width  int
	Height int
	Level  uint8

	frames int
}

// Capture returns a frame whose rows ramp from Level downward, with a
// per-frame phase shift so consecutive frames differ.
func (c *SyntheticCamera) Capture() (Frame, error) {
	w, h := c.Width, c.Height
	if w <= 0 {
		w = 640
	}
	if h <= 0 {
		h = 480
	}
	level := c.Level
	if level == 0 {
		level = 128
	}

	pix := make([]byte, w*h)
	shift := c.frames % 32
	for y := 0; y < h; y++ {
		v := int(level) - (y+shift)%64
		if v < 0 {
			v = 0
		}
		row := pix[y*w : y*w+w]
		for x := range row {
			row[x] = byte(v)
		}
	}
	c.frames++
	return Frame{Pix: pix, Width: w, Height: h}, nil
}
