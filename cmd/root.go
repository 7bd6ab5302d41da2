package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"scanstream/internal/config"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "scanstream",
	Short: "scanstream - sample frames and recognise codes",
	Long:  "scanstream samples frames from a capture device and recognises QR codes, barcodes and images, locally or through the recognition service.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
}

// loadRuntime reads the environment and builds the logger. With --verbose
// logs go to stderr, otherwise to SCANSTREAM_LOG_FILE when set.
func loadRuntime() (config.Config, *log.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	closeLog := func() {}
	var out io.Writer = io.Discard
	switch {
	case verbose:
		out = os.Stderr
	case cfg.LogFile != "":
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return config.Config{}, nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeLog = func() { _ = f.Close() }
	}
	return cfg, log.New(out, "", log.LstdFlags|log.Lmicroseconds), closeLog, nil
}
