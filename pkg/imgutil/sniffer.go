package imgutil

import (
	"errors"
	"io"
	"os"
	"strings"
)

// Kind identifies a supported image type.
type Kind int

const (
	KindUnknown Kind = iota
	KindJPEG
	KindPNG
	KindGIF
	KindTIFF
)

func (k Kind) String() string {
	switch k {
	case KindJPEG:
		return "jpeg"
	case KindPNG:
		return "png"
	case KindGIF:
		return "gif"
	case KindTIFF:
		return "tiff"
	default:
		return "unknown"
	}
}

// MIMEType returns the media type used in data URLs for k.
func (k Kind) MIMEType() string {
	if k == KindUnknown {
		return ""
	}
	return "image/" + k.String()
}

// Ext returns the usual file extension for k, including the dot.
func (k Kind) Ext() string {
	switch k {
	case KindJPEG:
		return ".jpg"
	case KindUnknown:
		return ""
	default:
		return "." + k.String()
	}
}

// KindFromMIME maps an export format such as "image/jpeg" to a Kind.
func KindFromMIME(mime string) Kind {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return KindJPEG
	case "image/png":
		return KindPNG
	case "image/gif":
		return KindGIF
	case "image/tiff":
		return KindTIFF
	default:
		return KindUnknown
	}
}

var (
	pngSig    = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	jpegSig   = []byte{0xff, 0xd8, 0xff}
	gif87Sig  = []byte("GIF87a")
	gif89Sig  = []byte("GIF89a")
	tiffSigLE = []byte{0x49, 0x49, 0x2a, 0x00}
	tiffSigBE = []byte{0x4d, 0x4d, 0x00, 0x2a}
)

// DetectHeader inspects the first 8 bytes of a file for known signatures.
func DetectHeader(header []byte) (Kind, error) {
	if len(header) < 8 {
		return KindUnknown, errors.New("header too short")
	}

	if hasPrefix(header, jpegSig) {
		return KindJPEG, nil
	}
	if hasPrefix(header, pngSig) {
		return KindPNG, nil
	}
	if hasPrefix(header, gif87Sig) || hasPrefix(header, gif89Sig) {
		return KindGIF, nil
	}
	if hasPrefix(header, tiffSigLE) || hasPrefix(header, tiffSigBE) {
		return KindTIFF, nil
	}

	return KindUnknown, nil
}

// SniffBytes determines the type of an in-memory image.
func SniffBytes(data []byte) Kind {
	kind, err := DetectHeader(data)
	if err != nil {
		return KindUnknown
	}
	return kind
}

// SniffFile reads the first 8 bytes of a file to determine its type.
func SniffFile(path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, err
	}
	defer f.Close()

	return SniffReader(f)
}

// SniffReader reads the first 8 bytes from r and determines its type.
// Readers shorter than a header are reported as KindUnknown without error.
func SniffReader(r io.Reader) (Kind, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return KindUnknown, nil
		}
		return KindUnknown, err
	}

	return DetectHeader(header)
}

func hasPrefix(buf, prefix []byte) bool {
	if len(buf) < len(prefix) {
		return false
	}
	for i := range prefix {
		if buf[i] != prefix[i] {
			return false
		}
	}
	return true
}
