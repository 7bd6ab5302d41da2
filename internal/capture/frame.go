package capture

import (
	"image"

	xdraw "golang.org/x/image/draw"

	"scanstream/internal/prepare"
	"scanstream/internal/scanerr"
)

// Frame is the reusable buffer a session copies device frames into. It is
// owned by a single scheduler goroutine and is not safe for concurrent use.
type Frame struct {
	track Track
	buf   *image.RGBA
}

// NewFrame returns an empty, unattached frame buffer.
func NewFrame() *Frame {
	return &Frame{}
}

// Attach binds the buffer to a live track.
func (f *Frame) Attach(t Track) {
	f.track = t
}

// Capture copies the track's current frame into the buffer and returns its
// size. The buffer is reallocated only when the frame size changes.
func (f *Frame) Capture() (image.Point, error) {
	if f.track == nil {
		return image.Point{}, scanerr.New(scanerr.KindDevice, "capture", "no track attached")
	}
	img, err := f.track.Snapshot()
	if err != nil {
		return image.Point{}, scanerr.Wrap(scanerr.KindDevice, "capture", err)
	}
	if img == nil || img.Bounds().Empty() {
		return image.Point{}, ErrNotReady
	}

	b := img.Bounds()
	size := b.Size()
	if f.buf == nil || f.buf.Bounds().Size() != size {
		f.buf = image.NewRGBA(image.Rectangle{Max: size})
	}
	xdraw.Draw(f.buf, f.buf.Bounds(), img, b.Min, xdraw.Src)
	return size, nil
}

// Size is the size of the last captured frame.
func (f *Frame) Size() image.Point {
	if f.buf == nil {
		return image.Point{}
	}
	return f.buf.Bounds().Size()
}

// Image returns a view of the last captured frame, restricted to crop when
// it is non-nil. The view shares the buffer and is only valid until the
// next Capture.
func (f *Frame) Image(crop *image.Rectangle) image.Image {
	if f.buf == nil {
		return image.NewRGBA(image.Rectangle{})
	}
	if crop == nil {
		return f.buf
	}
	return f.buf.SubImage(crop.Intersect(f.buf.Bounds()))
}

// Export converts and encodes the last captured frame.
func (f *Frame) Export(conv prepare.Conversion, crop *image.Rectangle) (prepare.Payload, error) {
	if f.buf == nil {
		return "", ErrNotReady
	}
	return prepare.Prepare(f.Image(crop), conv)
}
