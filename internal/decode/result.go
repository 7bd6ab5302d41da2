// Package decode maps a scan filter to the strategy that extracts a value
// from a captured frame: local matrix and barcode decoders, a watermark
// pre-filter, or the remote recognition service.
package decode

import (
	"context"
	"image"
	"strings"

	"scanstream/internal/prepare"
	"scanstream/internal/recognition"
	"scanstream/internal/scanerr"
)

// ResultKind tags a decode attempt.
type ResultKind int

const (
	NotFound ResultKind = iota
	LocalValue
	RemoteValue
)

func (k ResultKind) String() string {
	switch k {
	case LocalValue:
		return "local"
	case RemoteValue:
		return "remote"
	default:
		return "not found"
	}
}

// Result is the outcome of one decode attempt.
type Result struct {
	Kind    ResultKind
	Text    string
	Matches recognition.ResultList
	// Filter is the filter in effect after the attempt. Barcode decoders
	// relabel its Type with the symbology they actually read.
	Filter Filter
	// Frame is the exported frame, when the strategy exported one.
	Frame prepare.Payload
}

// Found reports whether the attempt produced a value.
func (r Result) Found() bool {
	return r.Kind != NotFound
}

// Filter selects what kind of code to look for.
type Filter struct {
	Method string
	Type   string
}

// Normalize lower-cases and trims both fields.
func (f Filter) Normalize() Filter {
	return Filter{
		Method: strings.ToLower(strings.TrimSpace(f.Method)),
		Type:   strings.ToLower(strings.TrimSpace(f.Type)),
	}
}

// Validate requires both method and type.
func (f Filter) Validate() error {
	if f.Method == "" || f.Type == "" {
		return scanerr.Config("filter", "both method and type are required")
	}
	return nil
}

// Query encodes the filter the way the recognition service expects it.
func (f Filter) Query() string {
	return "method=" + f.Method + "&type=" + f.Type
}

func (f Filter) String() string {
	return f.Method + "/" + f.Type
}

// Source is a captured frame a strategy can read or export.
type Source interface {
	Size() image.Point
	// Image returns the frame, restricted to crop when it is non-nil.
	Image(crop *image.Rectangle) image.Image
	// Export converts and encodes the frame, restricted to crop when it is
	// non-nil.
	Export(conv prepare.Conversion, crop *image.Rectangle) (prepare.Payload, error)
}

// Request carries the per-attempt inputs of a strategy.
type Request struct {
	Filter     Filter
	Conversion prepare.Conversion
	// Crop is the region remote and watermark strategies look at. Local
	// matrix and barcode decoders always read the whole frame.
	Crop *image.Rectangle
	// OnDetection receives every watermark pre-filter result.
	OnDetection func(Detection)
	// OnExport receives every payload sent to the recognition service.
	OnExport func(prepare.Payload)
}

// Strategy extracts a value from a frame.
//
// Decode returns a NotFound result, not an error, when the frame simply
// holds no code. Errors are fatal to the session.
type Strategy interface {
	Name() string
	// Remote reports whether Decode may call the recognition service, and
	// so must run under the caller's backpressure gate.
	Remote() bool
	Decode(ctx context.Context, src Source, req Request) (Result, error)
}
