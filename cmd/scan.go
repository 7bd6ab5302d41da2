package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"scanstream/internal/capture"
	"scanstream/internal/decode"
	"scanstream/internal/identity"
	"scanstream/internal/prepare"
	"scanstream/internal/recognition"
	"scanstream/internal/session"
	"scanstream/internal/telemetry"
	"scanstream/internal/tui"
)

var (
	scanFrames     string
	scanDevice     string
	scanMethod     string
	scanType       string
	scanContinuous bool
	scanInterval   time.Duration
	scanCrop       float64
	scanResize     int
	scanOffline    bool
	scanZxing      bool
	scanDownload   string
	scanTorch      bool
	scanCreateUser bool
	scanWarmup     int
	scanLoop       bool
	scanNoTUI      bool
)

var scanCmd = &cobra.Command{
	Use:   "scan --frames <dir>",
	Short: "Sample frames from a device and recognise a code",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closeLog, err := loadRuntime()
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		shutdown, err := telemetry.Setup(ctx, "scanstream", cfg.OTELEndpoint, cfg.OTELEnabled)
		if err != nil {
			logger.Printf("telemetry disabled: %v", err)
		}
		defer func() { _ = shutdown(context.Background()) }()

		var client *recognition.Client
		if cfg.Remote() {
			client, err = recognition.NewClient(recognition.ClientOptions{
				BaseURL: cfg.APIURL,
				APIKey:  cfg.APIKey,
				Logger:  logger,
			})
			if err != nil {
				return err
			}
		}

		sc := session.Config{
			Devices: &capture.DirectoryEnumerator{
				Root:         scanFrames,
				WarmupFrames: scanWarmup,
				Loop:         scanLoop,
			},
			Registry:          decode.NewRegistry(nil),
			Logger:            logger,
			MinRemoteInterval: cfg.MinRemoteInterval,
			DebounceWindow:    cfg.DebounceWindow,
		}
		var rec decode.Recognizer
		if client != nil {
			rec = client
			sc.Identifier = client
		}

		if scanCreateUser {
			if client == nil {
				return fmt.Errorf("--create-user needs SCANSTREAM_API_KEY")
			}
			store, err := identity.Open(cfg.IdentityDB)
			if err != nil {
				return err
			}
			defer store.Close()
			sc.Identity = &identity.Resolver{Store: store, Creator: client, AppID: cfg.AppID, Logger: logger}
		}

		var surface *tui.Surface
		containerID := ""
		if !scanNoTUI {
			events := make(chan session.Event, 256)
			surface = tui.NewSurface(events, tea.WithOutput(os.Stderr))
			sc.Events = events
			sc.Presentation = surface
			containerID = tui.ContainerID
		}

		ctrl, err := session.New(sc)
		if err != nil {
			return err
		}
		if surface != nil {
			surface.Stop = ctrl.Stop
			surface.Torch = ctrl.SetTorchEnabled
		}

		var mu sync.Mutex
		var values []session.Value
		opts := session.Options{
			Filter:      decode.Filter{Method: scanMethod, Type: scanType},
			Interval:    scanInterval,
			UseZxing:    scanZxing,
			ContainerID: containerID,
			DeviceID:    scanDevice,
			IdealWidth:  cfg.IdealWidth,
			IdealHeight: cfg.IdealHeight,
			DownloadDir: scanDownload,
			ImageConversion: prepare.Conversion{
				ResizeTo:    scanResize,
				CropPercent: scanCrop,
			},
			Offline:             scanOffline,
			CreateAnonymousUser: scanCreateUser,
		}
		if scanContinuous {
			opts.AutoStop = session.Bool(false)
			opts.OnScanValue = func(v session.Value) {
				mu.Lock()
				values = append(values, v)
				mu.Unlock()
				if scanNoTUI {
					fmt.Fprintf(os.Stdout, "%s %s\n", scanValueStyle.Render(v.String()), scanDimStyle.Render(v.Filter.String()))
				}
			}
		}

		pending, err := ctrl.Start(ctx, opts, rec)
		if err != nil {
			return err
		}
		if scanTorch {
			if err := ctrl.SetTorchEnabled(true); err != nil {
				logger.Printf("torch: %v", err)
			}
		}

		v, err := pending.Wait(context.Background())
		if scanContinuous {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintln(os.Stdout, tui.RenderSummary([]tui.SummaryRow{
				{Label: "Values delivered", Value: fmt.Sprintf("%d", len(values))},
				{Label: "Session", Value: pending.ID().String()},
			}))
			return nil
		}
		if err != nil {
			return err
		}

		list, err := ctrl.Resolve(ctx, v, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s\n", scanFileStyle.Render(scanMethod+"/"+scanType))
		fmt.Fprintln(os.Stdout, tui.RenderSummary(tui.ResultRows(list)))
		return nil
	},
}

var (
	scanFileStyle  = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	scanValueStyle = lipgloss.NewStyle().Foreground(tui.ColorInk)
	scanDimStyle   = lipgloss.NewStyle().Foreground(tui.ColorDim)
)

func init() {
	scanCmd.Flags().StringVarP(&scanFrames, "frames", "f", "", "directory of recorded frames acting as capture devices")
	scanCmd.Flags().StringVar(&scanDevice, "device", "", "device ID to open instead of the preferred one")
	scanCmd.Flags().StringVarP(&scanMethod, "method", "m", decode.Method2D, "filter method (2d, 1d, ir, digimarc)")
	scanCmd.Flags().StringVarP(&scanType, "type", "t", decode.TypeQRCode, "filter type (qr_code, dm, ean_13, auto, image)")
	scanCmd.Flags().BoolVarP(&scanContinuous, "continuous", "c", false, "keep scanning and report every value until stopped")
	scanCmd.Flags().DurationVar(&scanInterval, "interval", 0, "override the sampling interval")
	scanCmd.Flags().Float64Var(&scanCrop, "crop", 0, "crop fraction of the centred square sent for recognition (0 to 0.9)")
	scanCmd.Flags().IntVar(&scanResize, "resize", 0, "smaller edge of frames sent for recognition")
	scanCmd.Flags().BoolVar(&scanOffline, "offline", false, "skip the identify lookup of locally decoded values")
	scanCmd.Flags().BoolVar(&scanZxing, "zxing", false, "decode 1d and DataMatrix codes locally")
	scanCmd.Flags().StringVar(&scanDownload, "download", "", "save every frame sent for recognition to this directory")
	scanCmd.Flags().BoolVar(&scanTorch, "torch", false, "switch the torch on once the device is open")
	scanCmd.Flags().BoolVar(&scanCreateUser, "create-user", false, "attach the application's anonymous user to results")
	scanCmd.Flags().IntVar(&scanWarmup, "warmup", 0, "empty frames a device returns before its first image")
	scanCmd.Flags().BoolVar(&scanLoop, "loop", false, "replay frames from the start after the last one")
	scanCmd.Flags().BoolVar(&scanNoTUI, "no-tui", false, "run without the live terminal view")
	_ = scanCmd.MarkFlagRequired("frames")

	rootCmd.AddCommand(scanCmd)
}
