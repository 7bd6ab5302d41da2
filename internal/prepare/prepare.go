// Package prepare converts images into the payloads sent to the recognition
// service: resize, optional greyscale, and export as a data URL.
package prepare

import (
	"image"
	"image/color"
	"math"
	"os"

	xdraw "golang.org/x/image/draw"

	"scanstream/internal/scanerr"
	"scanstream/pkg/imgutil"
)

// MinSize is the smallest edge the recognition service accepts.
const MinSize = 144

const (
	FormatPNG  = "image/png"
	FormatJPEG = "image/jpeg"
)

// Conversion controls how a frame is turned into a payload.
//
// Zero fields take their value from the defaults passed to WithDefaults.
// A negative ResizeTo disables resizing. KeepColour skips the greyscale
// pass, which runs by default.
type Conversion struct {
	ResizeTo      int
	KeepColour    bool
	ExportFormat  string
	ExportQuality float64
	CropPercent   float64
}

// DefaultStream applies to frames exported from a live capture session.
var DefaultStream = Conversion{
	ResizeTo:      600,
	ExportFormat:  FormatPNG,
	ExportQuality: 0.8,
}

// DefaultStill applies to user-supplied still images.
var DefaultStill = Conversion{
	ResizeTo:      480,
	ExportFormat:  FormatPNG,
	ExportQuality: 0.9,
}

// WithDefaults fills the unset fields of c from base.
func (c Conversion) WithDefaults(base Conversion) Conversion {
	if c.ResizeTo == 0 {
		c.ResizeTo = base.ResizeTo
	}
	if c.ExportFormat == "" {
		c.ExportFormat = base.ExportFormat
	}
	if c.ExportQuality == 0 {
		c.ExportQuality = base.ExportQuality
	}
	if c.CropPercent == 0 {
		c.CropPercent = base.CropPercent
	}
	return c
}

// Validate reports the first unusable setting as a config error.
func (c Conversion) Validate() error {
	if imgutil.KindFromMIME(c.ExportFormat) == imgutil.KindUnknown {
		return scanerr.Config("imageConversion", "unsupported exportFormat %q", c.ExportFormat)
	}
	if math.IsNaN(c.ExportQuality) || c.ExportQuality < 0 || c.ExportQuality > 1 {
		return scanerr.Config("imageConversion", "exportQuality %v must be within [0, 1]", c.ExportQuality)
	}
	return imgutil.ValidateCropPercent(c.CropPercent)
}

// Resize scales img so its smaller edge equals max(resizeTo, MinSize).
// Smoothing is off: nearest-neighbour keeps code edges sharp.
func Resize(img image.Image, resizeTo int) image.Image {
	if resizeTo <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Empty() {
		return img
	}

	smaller := float64(max(resizeTo, MinSize))
	w, h := float64(b.Dx()), float64(b.Dy())
	zoom := smaller / math.Min(w, h)

	width, height := smaller, h*zoom
	if w > h {
		width, height = w*zoom, smaller
	}

	dst := image.NewRGBA(image.Rect(0, 0, int(math.Round(width)), int(math.Round(height))))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// Greyscale returns the luma of img using 0.3R + 0.59G + 0.11B.
func Greyscale(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			lum := 0.3*float64(r>>8) + 0.59*float64(g>>8) + 0.11*float64(bl>>8)
			out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: uint8(math.Min(255, math.Round(lum)))})
		}
	}
	return out
}

// Convert applies the resize and greyscale steps of conv.
func Convert(img image.Image, conv Conversion) image.Image {
	img = Resize(img, conv.ResizeTo)
	if !conv.KeepColour {
		return Greyscale(img)
	}
	return img
}

// Prepare converts img and exports it as a payload.
func Prepare(img image.Image, conv Conversion) (Payload, error) {
	if err := conv.Validate(); err != nil {
		return "", err
	}
	return Export(Convert(img, conv), conv.ExportFormat, conv.ExportQuality)
}

// PrepareDataURL decodes an image data URL and prepares it.
func PrepareDataURL(dataURL string, conv Conversion) (Payload, error) {
	_, data, err := ParseDataURL(dataURL)
	if err != nil {
		return "", err
	}
	img, err := Decode(data)
	if err != nil {
		return "", err
	}
	return Prepare(img, conv)
}

// PrepareFile loads an image file, honouring its EXIF orientation, and
// prepares it.
func PrepareFile(path string, conv Conversion) (Payload, error) {
	img, err := LoadFile(path)
	if err != nil {
		return "", err
	}
	return Prepare(img, conv)
}

// LoadFile decodes an image file upright.
func LoadFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
