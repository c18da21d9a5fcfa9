package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/cmec-driver/internal/logbook"
)

// TargetRow is one line of the run summary.
type TargetRow struct {
	Name     string
	Failed   bool
	ExitCode int
	Detail   string
	LogPath  string
}

var (
	okLabel   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	nameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
)

// RenderSummary lists every target with its status. Failed targets get the
// tail of their log underneath.
func RenderSummary(rows []TargetRow, tailLines int) string {
	var blocks []string
	for _, row := range rows {
		label := okLabel.Render("completed")
		if row.Failed {
			label = failLabel.Render(fmt.Sprintf("failed (%d)", row.ExitCode))
		}
		line := fmt.Sprintf("%s %s", label, nameStyle.Render(row.Name))
		if row.Detail != "" {
			line += " · " + row.Detail
		}
		blocks = append(blocks, line)
		if row.Failed && row.LogPath != "" && tailLines > 0 {
			if panel := RenderLogPanel(row.LogPath, tailLines, 80); panel != "" {
				blocks = append(blocks, panel)
			}
		}
	}
	return strings.Join(blocks, "\n")
}

// RenderLogPanel boxes the last maxLines of a target log.
func RenderLogPanel(path string, maxLines, width int) string {
	book, err := logbook.New(path)
	if err != nil {
		return ""
	}
	lines, total := book.Tail(maxLines)
	if len(lines) == 0 {
		return ""
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s (%d lines)", filepath.Base(path), total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Width(max(20, width-4)).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}
