package decode

import (
	"context"
	"image"
	"strings"
)

// Symbol is a code read by a local decoder.
type Symbol struct {
	Text string
	// Format is the decoder's symbology name, e.g. "QR_CODE" or "EAN_13".
	Format string
}

// MatrixDecoder reads QR codes.
type MatrixDecoder interface {
	DecodeMatrix(img image.Image) (Symbol, bool)
}

// BarcodeDecoder reads linear barcodes and DataMatrix codes. symbology is
// the requested filter type; "auto" accepts any supported format.
type BarcodeDecoder interface {
	DecodeBarcode(img image.Image, symbology string) (Symbol, bool)
}

type local2D struct {
	dec MatrixDecoder
}

func (s local2D) Name() string { return "local-2d" }

func (s local2D) Remote() bool { return false }

func (s local2D) Decode(_ context.Context, src Source, req Request) (Result, error) {
	sym, ok := s.dec.DecodeMatrix(src.Image(nil))
	if !ok || sym.Text == "" {
		return Result{Kind: NotFound, Filter: req.Filter}, nil
	}
	return Result{Kind: LocalValue, Text: sym.Text, Filter: req.Filter}, nil
}

type localBarcode struct {
	dec BarcodeDecoder
}

func (s localBarcode) Name() string { return "local-barcode" }

func (s localBarcode) Remote() bool { return false }

func (s localBarcode) Decode(_ context.Context, src Source, req Request) (Result, error) {
	sym, ok := s.dec.DecodeBarcode(src.Image(nil), req.Filter.Type)
	if !ok || sym.Text == "" {
		return Result{Kind: NotFound, Filter: req.Filter}, nil
	}

	filter := req.Filter
	if typ := SymbologyType(sym.Format); typ != "" {
		filter.Type = typ
	}
	return Result{Kind: LocalValue, Text: sym.Text, Filter: filter}, nil
}

// SymbologyType maps a decoder format name to the filter type the
// recognition service uses for lookups.
func SymbologyType(format string) string {
	switch format {
	case "":
		return ""
	case "DATA_MATRIX":
		return "dm"
	}
	return strings.ToLower(format)
}
