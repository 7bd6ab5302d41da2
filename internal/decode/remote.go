package decode

import (
	"context"
	"fmt"
	"image"

	"scanstream/internal/prepare"
	"scanstream/internal/recognition"
	"scanstream/internal/scanerr"
)

// Recognizer is the remote recognition service.
type Recognizer interface {
	Scan(ctx context.Context, payload prepare.Payload, opts recognition.ScanOptions) (recognition.ResultList, error)
}

// Detection is the raw result of the watermark pre-filter.
type Detection struct {
	// ReadyForRead means the frame likely holds a decodable watermark.
	ReadyForRead bool
	Watermark    bool
	Raw          any
}

// WatermarkDetector is a cheap local check run before a remote watermark
// read.
type WatermarkDetector interface {
	Detect(img image.Image) (Detection, error)
}

type remote struct {
	rec Recognizer
}

func (s remote) Name() string { return "remote" }

func (s remote) Remote() bool { return true }

func (s remote) Decode(ctx context.Context, src Source, req Request) (Result, error) {
	payload, err := src.Export(req.Conversion, req.Crop)
	if err != nil {
		return Result{}, fmt.Errorf("export frame: %w", err)
	}
	if req.OnExport != nil {
		req.OnExport(payload)
	}

	list, err := s.rec.Scan(ctx, payload, recognition.ScanOptions{Filter: req.Filter.Query()})
	if err != nil {
		if recognition.IsInsufficientDetail(err) {
			return Result{Kind: NotFound, Filter: req.Filter, Frame: payload}, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, scanerr.Wrap(scanerr.KindRemote, "scan", err)
	}
	if !list.Found() {
		return Result{Kind: NotFound, Filter: req.Filter, Frame: payload}, nil
	}
	return Result{Kind: RemoteValue, Matches: list, Filter: req.Filter, Frame: payload}, nil
}

type watermark struct {
	det    WatermarkDetector
	remote remote
}

func (s watermark) Name() string { return "local-watermark" }

func (s watermark) Remote() bool { return true }

func (s watermark) Decode(ctx context.Context, src Source, req Request) (Result, error) {
	det, err := s.det.Detect(src.Image(req.Crop))
	if err != nil {
		return Result{}, fmt.Errorf("watermark pre-filter: %w", err)
	}
	if req.OnDetection != nil {
		req.OnDetection(det)
	}
	if !det.ReadyForRead {
		return Result{Kind: NotFound, Filter: req.Filter}, nil
	}
	return s.remote.Decode(ctx, src, req)
}
