package decode

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Zxing adapts the gozxing readers to MatrixDecoder and BarcodeDecoder.
// Readers keep per-call state, so a fresh one is built for every decode.
type Zxing struct {
	TryHarder bool
}

// NewZxing returns a decoder that spends extra effort per frame.
func NewZxing() *Zxing {
	return &Zxing{TryHarder: true}
}

// NewRegistry returns a Registry backed by gozxing for both matrix and
// barcode decoding.
func NewRegistry(wm WatermarkDetector) Registry {
	z := NewZxing()
	return Registry{Matrix: z, Barcode: z, Watermark: wm}
}

func (z *Zxing) hints() map[gozxing.DecodeHintType]interface{} {
	if !z.TryHarder {
		return nil
	}
	return map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
}

// DecodeMatrix reads a QR code.
func (z *Zxing) DecodeMatrix(img image.Image) (Symbol, bool) {
	return z.decode(img, []gozxing.Reader{qrcode.NewQRCodeReader()})
}

// DecodeBarcode reads the requested symbology, or any supported one for
// "auto".
func (z *Zxing) DecodeBarcode(img image.Image, symbology string) (Symbol, bool) {
	return z.decode(img, barcodeReaders(symbology, z.hints()))
}

func (z *Zxing) decode(img image.Image, readers []gozxing.Reader) (Symbol, bool) {
	if img == nil || img.Bounds().Empty() || len(readers) == 0 {
		return Symbol{}, false
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return Symbol{}, false
	}

	hints := z.hints()
	for _, reader := range readers {
		res, err := reader.Decode(bmp, hints)
		if err != nil || res == nil {
			continue
		}
		return Symbol{Text: res.GetText(), Format: res.GetBarcodeFormat().String()}, true
	}
	return Symbol{}, false
}

func barcodeReaders(symbology string, hints map[gozxing.DecodeHintType]interface{}) []gozxing.Reader {
	switch symbology {
	case TypeDataMatrix, "data_matrix":
		return []gozxing.Reader{datamatrix.NewDataMatrixReader()}
	case "ean_13":
		return []gozxing.Reader{oned.NewEAN13Reader()}
	case "ean_8":
		return []gozxing.Reader{oned.NewEAN8Reader()}
	case "upc_a":
		return []gozxing.Reader{oned.NewUPCAReader()}
	case "upc_e":
		return []gozxing.Reader{oned.NewUPCEReader()}
	case "code_128":
		return []gozxing.Reader{oned.NewCode128Reader()}
	case "code_39":
		return []gozxing.Reader{oned.NewCode39Reader()}
	case "code_93":
		return []gozxing.Reader{oned.NewCode93Reader()}
	case "itf":
		return []gozxing.Reader{oned.NewITFReader()}
	}
	return []gozxing.Reader{
		oned.NewMultiFormatUPCEANReader(hints),
		oned.NewCode128Reader(),
		oned.NewCode39Reader(),
		oned.NewCode93Reader(),
		oned.NewITFReader(),
		datamatrix.NewDataMatrixReader(),
	}
}
