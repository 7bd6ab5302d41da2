package tui

import "github.com/charmbracelet/lipgloss"

// Colours shared by the live scan view and the command summaries.
var (
	ColorInk     = lipgloss.Color("#E5E9F0")
	ColorDim     = lipgloss.Color("#7A8291")
	ColorAccent  = lipgloss.Color("#88C0D0")
	ColorFound   = lipgloss.Color("#A3BE8C")
	ColorPending = lipgloss.Color("#EBCB8B")
	ColorFailed  = lipgloss.Color("#BF616A")
)
