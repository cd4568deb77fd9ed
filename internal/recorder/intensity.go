// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 s1alknau

package recorder

// DefaultROIFraction is the centered fraction of each image dimension
// used for mean-intensity measurement. Restricting to the middle of
// the frame keeps vignetting and edge artifacts out of the measurement.
const DefaultROIFraction = 0.75

// MeanIntensity returns the mean pixel value over a centered region of
// interest covering fraction of each dimension. A fraction outside
// (0, 1] falls back to DefaultROIFraction. Returns 0 for empty frames.
func MeanIntensity(f Frame, fraction float64) float64 {
	if f.Width <= 0 || f.Height <= 0 || len(f.Pix) < f.Width*f.Height {
		return 0
	}
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultROIFraction
	}

	roiW := int(float64(f.Width) * fraction)
	roiH := int(float64(f.Height) * fraction)
	if roiW < 1 {
		roiW = 1
	}
	if roiH < 1 {
		roiH = 1
	}
	x0 := (f.Width - roiW) / 2
	y0 := (f.Height - roiH) / 2

	var sum uint64
	for y := y0; y < y0+roiH; y++ {
		row := f.Pix[y*f.Width : y*f.Width+f.Width]
		for x := x0; x < x0+roiW; x++ {
			sum += uint64(row[x])
		}
	}
	return float64(sum) / float64(roiW*roiH)
}
