package imgutil

import (
	"image"
	"math"
	"testing"

	"scanstream/internal/scanerr"
)

func TestComputeCropZeroKeepsFrame(t *testing.T) {
	rect, err := ComputeCrop(1280, 720, 0)
	if err != nil {
		t.Fatalf("crop: %v", err)
	}
	if rect != image.Rect(0, 0, 1280, 720) {
		t.Fatalf("expected full frame, got %v", rect)
	}
}

func TestComputeCropCentersSquare(t *testing.T) {
	rect, err := ComputeCrop(1280, 720, 0.1)
	if err != nil {
		t.Fatalf("crop: %v", err)
	}
	// side 720, 36 off each edge: x from 280+36, y from 36, size 648.
	want := image.Rect(316, 36, 964, 684)
	if rect != want {
		t.Fatalf("expected %v, got %v", want, rect)
	}
}

func TestComputeCropContained(t *testing.T) {
	sizes := []image.Point{{640, 480}, {480, 640}, {1, 1}, {3, 7}, {1920, 1080}, {101, 99}}
	for _, size := range sizes {
		frame := image.Rect(0, 0, size.X, size.Y)
		for p := 0.0; p <= MaxCropPercent+1e-9; p += 0.05 {
			cp := math.Min(p, MaxCropPercent)
			rect, err := ComputeCrop(size.X, size.Y, cp)
			if err != nil {
				t.Fatalf("crop %v at %.2f: %v", size, cp, err)
			}
			if !rect.In(frame) {
				t.Fatalf("crop %v at %.2f escaped frame: %v", size, cp, rect)
			}
			if rect.Empty() {
				t.Fatalf("crop %v at %.2f is empty", size, cp)
			}
		}
	}
}

func TestComputeCropRejectsOutOfRange(t *testing.T) {
	for _, cp := range []float64{-0.01, 0.91, 1, math.NaN(), math.Inf(1)} {
		if _, err := ComputeCrop(640, 480, cp); !scanerr.Is(err, scanerr.KindConfig) {
			t.Fatalf("cropPercent %v: expected config error, got %v", cp, err)
		}
	}
}

func TestSniffBytes(t *testing.T) {
	if got := SniffBytes([]byte("GIF89a\x01\x00\x01\x00")); got != KindGIF {
		t.Fatalf("expected gif, got %v", got)
	}
	if got := SniffBytes([]byte{0xff, 0xd8, 0xff, 0xe0, 0, 0, 0, 0}); got != KindJPEG {
		t.Fatalf("expected jpeg, got %v", got)
	}
	if got := SniffBytes([]byte("short")); got != KindUnknown {
		t.Fatalf("expected unknown for short input, got %v", got)
	}
	if got := KindFromMIME("image/jpeg"); got.Ext() != ".jpg" {
		t.Fatalf("unexpected jpeg extension %q", got.Ext())
	}
}
