package prepare

import (
	"io"
	"strings"
)

// SourceMetadata summarises the EXIF data carried by a still image.
// Exported payloads are re-encoded from pixels, so none of it reaches the
// recognition service.
type SourceMetadata struct {
	Tags         int
	GPSTags      int
	HasModel     bool
	HasTimestamp bool
	SerialTags   int
}

// Empty reports whether the image carried no EXIF tags at all.
func (m SourceMetadata) Empty() bool {
	return m.Tags == 0
}

// ReadMetadata inspects the EXIF block of an encoded image. Images without
// EXIF data yield an empty summary.
func ReadMetadata(rs io.ReadSeeker) (SourceMetadata, error) {
	var m SourceMetadata
	tags, err := readExifTags(rs)
	if err != nil {
		return m, err
	}

	for _, tag := range tags {
		m.Tags++
		switch {
		case strings.HasPrefix(tag.TagName, "GPS") || strings.Contains(tag.IfdPath, "GPS"):
			m.GPSTags++
		case tag.TagName == "Model":
			m.HasModel = true
		case tag.TagName == "DateTimeOriginal" || tag.TagName == "DateTimeDigitized" || tag.TagName == "DateTime":
			m.HasTimestamp = true
		case strings.Contains(strings.ToLower(tag.TagName), "serial"):
			m.SerialTags++
		}
	}
	return m, nil
}
