// Package capture models video input devices and the reusable frame buffer
// a scan session samples from.
package capture

import (
	"context"
	"errors"
	"image"
)

// KindVideoInput is the only device kind a scan session opens.
const KindVideoInput = "videoinput"

// ErrNotReady is returned while a device has not produced its first frame.
// It is not fatal; the caller retries on the next tick.
var ErrNotReady = errors.New("capture: frame not ready")

// Facing is the direction a camera points.
type Facing int

const (
	FacingUnknown Facing = iota
	FacingBack
	FacingFront
)

func (f Facing) String() string {
	switch f {
	case FacingBack:
		return "back"
	case FacingFront:
		return "front"
	default:
		return "unknown"
	}
}

// DeviceInfo describes one enumerated input.
type DeviceInfo struct {
	ID     string
	Label  string
	Kind   string
	Facing Facing
}

// Constraints select and shape the stream of an opened device.
type Constraints struct {
	DeviceID    string
	Facing      Facing
	IdealWidth  int
	IdealHeight int
}

// Capabilities reports what an open track supports.
type Capabilities struct {
	Torch  bool
	Width  int
	Height int
}

// Track is an open device stream.
type Track interface {
	// Snapshot returns the current frame. A zero-sized image means the
	// device is still warming up.
	Snapshot() (image.Image, error)
	Capabilities() Capabilities
	// ApplyTorch requests a torch change. The driver's verdict arrives on
	// the returned channel.
	ApplyTorch(enabled bool) <-chan error
	// Stop releases the device. It is safe to call more than once.
	Stop()
}

// Enumerator lists and opens devices.
type Enumerator interface {
	Devices(ctx context.Context) ([]DeviceInfo, error)
	Open(ctx context.Context, c Constraints) (Track, error)
}

// SelectDevice picks the input a scan should use: the first back-facing
// video input, else the last video input enumerated, which on most phones
// is the rear camera.
func SelectDevice(devices []DeviceInfo) (DeviceInfo, bool) {
	var last DeviceInfo
	found := false
	for _, d := range devices {
		if d.Kind != KindVideoInput {
			continue
		}
		if d.Facing == FacingBack {
			return d, true
		}
		last, found = d, true
	}
	return last, found
}
