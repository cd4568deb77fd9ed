// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package recorder

import "testing"

func TestMeanIntensityUniform(t *testing.T) {
	f := uniformFrame(16, 16, 200)
	if got := MeanIntensity(f, 0.75); got != 200.0 {
		t.Errorf("MeanIntensity = %v, want 200", got)
	}
}

// A bright border around a dark center: the centered ROI must exclude
// the border entirely.
func TestMeanIntensityCenteredROI(t *testing.T) {
	f := uniformFrame(4, 4, 255)
	for _, i := range []int{5, 6, 9, 10} { // center 2x2
		f.Pix[i] = 10
	}
	if got := MeanIntensity(f, 0.5); got != 10.0 {
		t.Errorf("MeanIntensity = %v, want 10", got)
	}
}

func TestMeanIntensityDegenerate(t *testing.T) {
	if got := MeanIntensity(Frame{}, 0.75); got != 0 {
		t.Errorf("empty frame intensity = %v, want 0", got)
	}
	short := Frame{Pix: []byte{1, 2}, Width: 2, Height: 2}
	if got := MeanIntensity(short, 0.75); got != 0 {
		t.Errorf("truncated frame intensity = %v, want 0", got)
	}
	// Out-of-range fraction falls back to the default rather than
	// producing an empty ROI.
	f := uniformFrame(8, 8, 42)
	if got := MeanIntensity(f, 2.0); got != 42.0 {
		t.Errorf("fallback fraction intensity = %v, want 42", got)
	}
}
