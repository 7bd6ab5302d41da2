package prepare

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/image/tiff"

	"scanstream/internal/scanerr"
	"scanstream/pkg/imgutil"
)

// Payload is an encoded image carried as a data URL.
type Payload string

var dataURLPattern = regexp.MustCompile(`^\s*data:(image/\w+)(;charset=[\w-]+)?(;base64)?,`)

// NewPayload wraps encoded image bytes of the given kind.
func NewPayload(kind imgutil.Kind, data []byte) Payload {
	return Payload("data:" + kind.MIMEType() + ";base64," + base64.StdEncoding.EncodeToString(data))
}

func (p Payload) String() string {
	return string(p)
}

// Bytes returns the decoded image bytes.
func (p Payload) Bytes() ([]byte, error) {
	_, data, err := ParseDataURL(string(p))
	return data, err
}

// Kind sniffs the encoded bytes rather than trusting the declared type.
func (p Payload) Kind() imgutil.Kind {
	data, err := p.Bytes()
	if err != nil {
		return imgutil.KindUnknown
	}
	return imgutil.SniffBytes(data)
}

// IsDataURL reports whether s looks like an image data URL.
func IsDataURL(s string) bool {
	return dataURLPattern.MatchString(s)
}

// ParseDataURL splits an image data URL into its media type and bytes.
func ParseDataURL(s string) (string, []byte, error) {
	m := dataURLPattern.FindStringSubmatchIndex(s)
	if m == nil {
		return "", nil, scanerr.Config("parseDataURL", "invalid image data URL")
	}
	mime := s[m[2]:m[3]]
	body := s[m[1]:]

	if m[6] >= 0 {
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(body))
		if err != nil {
			return "", nil, scanerr.Wrap(scanerr.KindConfig, "parseDataURL", err)
		}
		return mime, data, nil
	}
	text, err := url.PathUnescape(body)
	if err != nil {
		return "", nil, scanerr.Wrap(scanerr.KindConfig, "parseDataURL", err)
	}
	return mime, []byte(text), nil
}

// Encode serializes img in the given export format. quality applies to JPEG
// only and is a fraction in (0, 1].
func Encode(img image.Image, format string, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch imgutil.KindFromMIME(format) {
	case imgutil.KindPNG:
		err = png.Encode(&buf, img)
	case imgutil.KindJPEG:
		q := int(quality * 100)
		if q < 1 {
			q = jpeg.DefaultQuality
		}
		if q > 100 {
			q = 100
		}
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: q})
	case imgutil.KindGIF:
		err = gif.Encode(&buf, img, nil)
	case imgutil.KindTIFF:
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return nil, scanerr.Config("encode", "unsupported export format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// Export encodes img and wraps it as a payload.
func Export(img image.Image, format string, quality float64) (Payload, error) {
	data, err := Encode(img, format, quality)
	if err != nil {
		return "", err
	}
	return NewPayload(imgutil.KindFromMIME(format), data), nil
}

// Decode reads an encoded image and rotates it upright per its EXIF
// orientation, when present.
func Decode(data []byte) (image.Image, error) {
	kind := imgutil.SniffBytes(data)
	if kind == imgutil.KindUnknown {
		return nil, scanerr.Config("decode", "unsupported image data")
	}

	var img image.Image
	var err error
	switch kind {
	case imgutil.KindJPEG:
		img, err = jpeg.Decode(bytes.NewReader(data))
	case imgutil.KindPNG:
		img, err = png.Decode(bytes.NewReader(data))
	case imgutil.KindGIF:
		img, err = gif.Decode(bytes.NewReader(data))
	case imgutil.KindTIFF:
		img, err = tiff.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}

	if kind == imgutil.KindJPEG || kind == imgutil.KindTIFF {
		if o, err := Orientation(bytes.NewReader(data)); err == nil {
			img = Orient(img, o)
		}
	}
	return img, nil
}
