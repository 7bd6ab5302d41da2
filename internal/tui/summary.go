package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"scanstream/internal/recognition"
)

type SummaryRow struct {
	Label string
	Value string
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
		if len(row.Value) > valueWidth {
			valueWidth = len(row.Value)
		}
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		line := fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value))
		lines = append(lines, line)
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

// ResultRows lists each match of a result list: its decoded value and the
// resources it resolved to.
func ResultRows(list recognition.ResultList) []SummaryRow {
	var rows []SummaryRow
	for i, m := range list {
		prefix := fmt.Sprintf("#%d ", i+1)
		if m.Meta.Value != "" {
			rows = append(rows, SummaryRow{Label: prefix + "value", Value: m.Meta.Value})
		}
		if m.Meta.Type != "" {
			rows = append(rows, SummaryRow{Label: prefix + "type", Value: m.Meta.Type})
		}
		for _, e := range m.Results {
			if e.Product != nil {
				rows = append(rows, SummaryRow{Label: prefix + "product", Value: resourceLabel(e.Product)})
			}
			if e.Thng != nil {
				rows = append(rows, SummaryRow{Label: prefix + "thng", Value: resourceLabel(e.Thng)})
			}
		}
		if m.User != nil {
			rows = append(rows, SummaryRow{Label: prefix + "user", Value: m.User.ID})
		}
	}
	if len(rows) == 0 {
		rows = append(rows, SummaryRow{Label: "result", Value: "none"})
	}
	return rows
}

func resourceLabel(r *recognition.Resource) string {
	if r.Name == "" {
		return r.ID
	}
	return r.Name + " (" + r.ID + ")"
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var (
	valueStyle = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
)
