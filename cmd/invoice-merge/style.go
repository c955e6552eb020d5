package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lesonky/invoice-merge-tool/folder"
	"github.com/lesonky/invoice-merge-tool/orchestrator"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB020"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func renderEntries(dir string, entries []folder.Entry) string {
	if len(entries) == 0 {
		return dimStyle.Render("no mergeable files in " + dir)
	}
	nameWidth := 0
	for _, e := range entries {
		nameWidth = max(nameWidth, lipgloss.Width(e.Name))
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%d file(s) in %s", len(entries), dir)))
	for _, e := range entries {
		kind := "image"
		if e.IsPDF() {
			kind = "pdf"
		}
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(nameWidth + 2).Render(e.Name))
		b.WriteString(dimStyle.Render(fmt.Sprintf("%-6s %10s", kind, humanSize(e.Size))))
	}
	return b.String()
}

func renderOutcome(out *orchestrator.Outcome) string {
	lines := []string{okStyle.Render("merged ") + out.OutputPath}
	if len(out.FailedFiles) > 0 {
		lines = append(lines, warnStyle.Render(*out.Message))
		for _, f := range out.FailedFiles {
			lines = append(lines, dimStyle.Render("  - ")+f)
		}
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderError(err error) string {
	return failStyle.Render("merge failed: ") + err.Error()
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
