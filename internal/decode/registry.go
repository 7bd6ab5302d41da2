package decode

import (
	"scanstream/internal/scanerr"
)

const (
	Method2D       = "2d"
	Method1D       = "1d"
	MethodDigimarc = "digimarc"

	TypeQRCode     = "qr_code"
	TypeDataMatrix = "dm"
	TypeAuto       = "auto"
)

// Registry holds the local decoders available to a session. A nil field
// means that decoder is not installed.
type Registry struct {
	Matrix    MatrixDecoder
	Barcode   BarcodeDecoder
	Watermark WatermarkDetector
}

// Selection describes how a filter is decoded.
type Selection struct {
	Strategy Strategy
	// Local is true when no attempt ever reaches the recognition service.
	Local bool
}

// Select picks the strategy for filter. It fails with a capability error
// when the needed local decoder is missing and with a config error when a
// remote strategy has no recognizer.
func (r Registry) Select(filter Filter, useZxing, useDiscover bool, rec Recognizer) (Selection, error) {
	switch {
	case filter.Method == Method2D && filter.Type == TypeQRCode:
		if r.Matrix == nil {
			return Selection{}, scanerr.Capability("select", "no matrix decoder installed for %s", filter)
		}
		return Selection{Strategy: local2D{dec: r.Matrix}, Local: true}, nil

	case useZxing && isBarcodeFilter(filter):
		if r.Barcode == nil {
			return Selection{}, scanerr.Capability("select", "no barcode decoder installed for %s", filter)
		}
		return Selection{Strategy: localBarcode{dec: r.Barcode}, Local: true}, nil

	case useDiscover && filter.Method == MethodDigimarc:
		if r.Watermark == nil {
			return Selection{}, scanerr.Capability("select", "no watermark detector installed")
		}
		if rec == nil {
			return Selection{}, scanerr.Config("select", "%s requires a recognition service", filter)
		}
		return Selection{Strategy: watermark{det: r.Watermark, remote: remote{rec: rec}}}, nil
	}

	if rec == nil {
		return Selection{}, scanerr.Config("select", "%s requires a recognition service", filter)
	}
	return Selection{Strategy: remote{rec: rec}}, nil
}

func isBarcodeFilter(f Filter) bool {
	if f.Method == Method1D {
		return true
	}
	return f.Method == Method2D && (f.Type == TypeDataMatrix || f.Type == "data_matrix")
}
