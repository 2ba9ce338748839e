package main

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/wippyai/opcore/metrics"
	"github.com/wippyai/opcore/op"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	nameStyle = cellStyle.
			Foreground(lipgloss.Color("#98FB98"))

	pendingStyle = cellStyle.
			Foreground(lipgloss.Color("#FFD700"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

var columns = []string{"op", "signature", "sync", "fast", "async", "done", "errors", "pending"}

// metricsTable renders one row per op plus an aggregate row.
func metricsTable(decls []*op.Decl, t *metrics.Tracker) string {
	rows := make([][]string, 0, len(decls)+1)
	pending := make(map[int]bool)
	for i, d := range decls {
		s := t.Op(uint32(i))
		if s.HasOutstandingOps() {
			pending[i] = true
		}
		rows = append(rows, summaryRow(d.Name, d.Signature(), s))
	}
	rows = append(rows, summaryRow("total", "", t.Aggregate()))

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return nameStyle
			case pending[row] && col == len(columns)-1:
				return pendingStyle
			}
			return cellStyle
		}).
		Headers(columns...).
		Rows(rows...).
		Render()
}

func summaryRow(name, sig string, s metrics.Summary) []string {
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	return []string{
		name,
		sig,
		u(s.OpsDispatchedSync),
		u(s.OpsDispatchedFast),
		u(s.OpsDispatchedAsync),
		u(s.OpsCompleted + s.OpsCompletedAsync),
		u(s.OpsErrored + s.OpsErroredAsync),
		u(s.Outstanding()),
	}
}
