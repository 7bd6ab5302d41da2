package prepare

import (
	"errors"
	"image"
	"io"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// Orientation returns the EXIF orientation tag (1-8) of an encoded image,
// or 1 when the image carries no EXIF data.
func Orientation(rs io.ReadSeeker) (int, error) {
	tags, err := readExifTags(rs)
	if err != nil {
		return 1, err
	}

	for _, tag := range tags {
		if tag.TagName != "Orientation" || !strings.HasPrefix(tag.IfdPath, "IFD") {
			continue
		}
		switch v := tag.Value.(type) {
		case []uint16:
			if len(v) > 0 && v[0] >= 1 && v[0] <= 8 {
				return int(v[0]), nil
			}
		case uint16:
			if v >= 1 && v <= 8 {
				return int(v), nil
			}
		}
	}
	return 1, nil
}

// readExifTags locates the EXIF block of an encoded image and flattens its
// tags. Images without one yield no tags and no error.
func readExifTags(rs io.ReadSeeker) ([]exif.ExifTag, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	raw, err := exif.SearchAndExtractExifWithReader(rs)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return nil, nil
		}
		return nil, err
	}
	tags, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// Orient rotates or mirrors img so that EXIF orientation o displays upright.
func Orient(img image.Image, o int) image.Image {
	if o <= 1 || o > 8 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	size := image.Rect(0, 0, w, h)
	if o >= 5 {
		size = image.Rect(0, 0, h, w)
	}
	dst := image.NewRGBA(size)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch o {
			case 2:
				dx, dy = w-1-x, y
			case 3:
				dx, dy = w-1-x, h-1-y
			case 4:
				dx, dy = x, h-1-y
			case 5:
				dx, dy = y, x
			case 6:
				dx, dy = h-1-y, x
			case 7:
				dx, dy = h-1-y, w-1-x
			case 8:
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
