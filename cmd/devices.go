package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"scanstream/internal/capture"
	"scanstream/internal/tui"
)

var devicesFrames string

var devicesCmd = &cobra.Command{
	Use:   "devices --frames <dir>",
	Short: "List capture devices and the one a scan would open",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		enum := &capture.DirectoryEnumerator{Root: devicesFrames}
		devices, err := enum.Devices(cmd.Context())
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Fprintln(os.Stdout, dimStyle.Render("no video inputs found"))
			return nil
		}

		selected, _ := capture.SelectDevice(devices)
		for _, d := range devices {
			marker := "  "
			label := d.Label
			if d.ID == selected.ID {
				marker = selectedStyle.Render("> ")
				label = selectedStyle.Render(label)
			}
			fmt.Fprintf(os.Stdout, "%s%s %s\n", marker, label, dimStyle.Render(fmt.Sprintf("(%s, %s)", d.Facing, d.ID)))
		}
		return nil
	},
}

var (
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorFound)
	dimStyle      = lipgloss.NewStyle().Foreground(tui.ColorDim)
)

func init() {
	devicesCmd.Flags().StringVarP(&devicesFrames, "frames", "f", "", "directory of recorded frames acting as capture devices")
	_ = devicesCmd.MarkFlagRequired("frames")

	rootCmd.AddCommand(devicesCmd)
}
