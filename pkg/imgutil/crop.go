package imgutil

import (
	"image"
	"math"

	"scanstream/internal/scanerr"
)

// MaxCropPercent is the largest inset fraction ComputeCrop accepts.
const MaxCropPercent = 0.9

// ValidateCropPercent rejects fractions outside [0, MaxCropPercent].
func ValidateCropPercent(cropPercent float64) error {
	if math.IsNaN(cropPercent) || cropPercent < 0 || cropPercent > MaxCropPercent {
		return scanerr.Config("computeCrop", "cropPercent %v must be within [0, %v]", cropPercent, MaxCropPercent)
	}
	return nil
}

// ComputeCrop returns the region of a width×height frame to keep.
//
// A cropPercent of 0 keeps the whole frame. Any other value keeps the
// centered square of side min(width, height) shrunk inward by
// cropPercent×side, split evenly between opposite edges, so 0.9 keeps the
// middle tenth. Coordinates are rounded to the nearest pixel and the result
// is always contained in the frame.
func ComputeCrop(width, height int, cropPercent float64) (image.Rectangle, error) {
	if err := ValidateCropPercent(cropPercent); err != nil {
		return image.Rectangle{}, err
	}
	if width < 0 || height < 0 {
		return image.Rectangle{}, scanerr.Config("computeCrop", "negative frame size %dx%d", width, height)
	}
	if cropPercent == 0 {
		return image.Rect(0, 0, width, height), nil
	}

	side := float64(min(width, height))
	inset := cropPercent * side / 2
	x0 := (float64(width)-side)/2 + inset
	y0 := (float64(height)-side)/2 + inset
	size := side - 2*inset

	rect := image.Rect(
		int(math.Round(x0)),
		int(math.Round(y0)),
		int(math.Round(x0+size)),
		int(math.Round(y0+size)),
	)
	if side > 0 && rect.Empty() {
		rect.Max = rect.Min.Add(image.Pt(1, 1))
	}
	return rect.Intersect(image.Rect(0, 0, width, height)), nil
}
