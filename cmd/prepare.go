package cmd

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	xdraw "golang.org/x/image/draw"

	"scanstream/internal/decode"
	"scanstream/internal/prepare"
	"scanstream/internal/recognition"
	"scanstream/internal/tui"
	"scanstream/pkg/imgutil"
)

var (
	prepareResize     int
	prepareKeepColour bool
	prepareFormat     string
	prepareQuality    float64
	prepareCrop       float64
	prepareOutput     string
	prepareScan       bool
	prepareMethod     string
	prepareType       string
)

var prepareCmd = &cobra.Command{
	Use:   "prepare [flags] <image|data-url>",
	Short: "Convert a still image into a recognition payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closeLog, err := loadRuntime()
		if err != nil {
			return err
		}
		defer closeLog()

		conv := prepare.Conversion{
			ResizeTo:      prepareResize,
			KeepColour:    prepareKeepColour,
			ExportFormat:  prepareFormat,
			ExportQuality: prepareQuality,
			CropPercent:   prepareCrop,
		}.WithDefaults(prepare.DefaultStill)
		if err := conv.Validate(); err != nil {
			return err
		}

		data, err := readStill(args[0])
		if err != nil {
			return err
		}
		meta, err := prepare.ReadMetadata(bytes.NewReader(data))
		if err != nil {
			logger.Printf("prepare: reading metadata: %v", err)
		}
		img, err := prepare.Decode(data)
		if err != nil {
			return err
		}
		bounds := img.Bounds()
		if conv.CropPercent > 0 {
			rect, err := imgutil.ComputeCrop(bounds.Dx(), bounds.Dy(), conv.CropPercent)
			if err != nil {
				return err
			}
			img = cropImage(img, rect.Add(bounds.Min))
		}

		payload, err := prepare.Prepare(img, conv)
		if err != nil {
			return err
		}

		if prepareOutput != "" {
			data, err := payload.Bytes()
			if err != nil {
				return err
			}
			if err := os.WriteFile(prepareOutput, data, 0o644); err != nil {
				return err
			}
		}

		rows := []tui.SummaryRow{
			{Label: "Source size", Value: fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy())},
			{Label: "Region", Value: fmt.Sprintf("%dx%d", img.Bounds().Dx(), img.Bounds().Dy())},
			{Label: "Format", Value: payload.Kind().MIMEType()},
			{Label: "Data URL length", Value: fmt.Sprintf("%d", len(payload))},
			{Label: "Metadata dropped", Value: metadataLabel(meta)},
		}
		if prepareOutput != "" {
			outPath := prepareOutput
			if abs, absErr := filepath.Abs(prepareOutput); absErr == nil {
				outPath = abs
			}
			rows = append(rows, tui.SummaryRow{Label: "Written to", Value: outPath})
		}
		fmt.Fprintln(os.Stdout, tui.RenderSummary(rows))

		if !prepareScan {
			return nil
		}
		if !cfg.Remote() {
			return fmt.Errorf("--scan needs SCANSTREAM_API_KEY")
		}
		filter := decode.Filter{Method: prepareMethod, Type: prepareType}.Normalize()
		if err := filter.Validate(); err != nil {
			return err
		}
		client, err := recognition.NewClient(recognition.ClientOptions{
			BaseURL: cfg.APIURL,
			APIKey:  cfg.APIKey,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		list, err := client.Scan(cmd.Context(), payload, recognition.ScanOptions{Filter: filter.Query()})
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, tui.RenderSummary(tui.ResultRows(list)))
		return nil
	},
}

func readStill(arg string) ([]byte, error) {
	if prepare.IsDataURL(arg) {
		_, data, err := prepare.ParseDataURL(arg)
		return data, err
	}
	return os.ReadFile(arg)
}

func metadataLabel(m prepare.SourceMetadata) string {
	if m.Empty() {
		return "none"
	}
	parts := []string{fmt.Sprintf("%d tags", m.Tags)}
	if m.GPSTags > 0 {
		parts = append(parts, fmt.Sprintf("%d GPS", m.GPSTags))
	}
	if m.HasModel {
		parts = append(parts, "camera model")
	}
	if m.HasTimestamp {
		parts = append(parts, "timestamp")
	}
	if m.SerialTags > 0 {
		parts = append(parts, fmt.Sprintf("%d serial", m.SerialTags))
	}
	return strings.Join(parts, ", ")
}

func cropImage(img image.Image, rect image.Rectangle) image.Image {
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect)
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.Copy(dst, image.Point{}, img, rect, xdraw.Src, nil)
	return dst
}

func init() {
	prepareCmd.Flags().IntVar(&prepareResize, "resize", 0, "smaller edge of the payload, negative to keep the size")
	prepareCmd.Flags().BoolVar(&prepareKeepColour, "keep-colour", false, "skip the greyscale pass")
	prepareCmd.Flags().StringVar(&prepareFormat, "format", "", "export format (image/png or image/jpeg)")
	prepareCmd.Flags().Float64Var(&prepareQuality, "quality", 0, "export quality between 0 and 1")
	prepareCmd.Flags().Float64Var(&prepareCrop, "crop", 0, "crop fraction of the centred square (0 to 0.9)")
	prepareCmd.Flags().StringVarP(&prepareOutput, "output", "o", "", "write the encoded payload to this file")
	prepareCmd.Flags().BoolVar(&prepareScan, "scan", false, "send the payload to the recognition service")
	prepareCmd.Flags().StringVarP(&prepareMethod, "method", "m", "ir", "filter method used with --scan")
	prepareCmd.Flags().StringVarP(&prepareType, "type", "t", "image", "filter type used with --scan")

	rootCmd.AddCommand(prepareCmd)
}
