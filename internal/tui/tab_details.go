package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hostwatch/internal/metrics"
	"hostwatch/internal/monitor"
	"hostwatch/internal/report"
)

type detailsModel struct {
	width  int
	height int

	success progress.Model
}

func newDetailsModel() detailsModel {
	return detailsModel{
		success: progress.New(
			progress.WithSolidFill(colorGreen.Dark),
			progress.WithoutPercentage(),
		),
	}
}

func (dm *detailsModel) setSize(w, h int) {
	dm.width = w
	dm.height = h
	dm.success.Width = maxInt(10, w/2-20)
}

func (dm *detailsModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, keys.Back) {
		root.activeTab = tabTargets
	}
	return nil
}

func (dm *detailsModel) View(row metrics.Row, found bool, stats monitor.CycleStats, now time.Time) string {
	var content string
	if !found {
		content = dm.viewEmpty()
	} else {
		content = dm.viewTarget(row, stats, now)
	}
	return forceHeight(content, dm.width, dm.height)
}

func (dm *detailsModel) viewEmpty() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		cardTitleStyle.Render("Target"),
		"",
		lipgloss.NewStyle().Foreground(colorDimFg).Render("No target selected"),
		"",
		dimStyle.Render("Pick a row on the Targets tab and press enter"),
	)

	w := dm.width - 6
	if w < 30 {
		w = 30
	}
	return cardStyle.Width(w).Render(content)
}

func (dm *detailsModel) viewTarget(r metrics.Row, stats monitor.CycleStats, now time.Time) string {
	var sections []string

	hostname := r.Hostname
	if hostname == "" {
		hostname = report.Placeholder
	}
	targetRows := []string{
		dm.row("Target", r.Key),
		dm.row("Hostname", hostname),
		dm.row("Address", report.Address(r)),
		dm.row("Spec", r.Spec),
		dm.row("Status", statusStyle(r.Status).Render(report.Status(r))),
		dm.row("Updated", report.Updated(r, now)),
	}
	if r.Status == metrics.StatusDown {
		targetRows = append(targetRows,
			dm.row("Failing for", fmt.Sprintf("%d probes", r.ConsecutiveFailures)),
			dm.row("Last error", errorStyle.Render(truncate(r.LastError, maxInt(20, dm.width/2-20)))),
		)
	}
	sections = append(sections, lipgloss.JoinVertical(lipgloss.Left,
		append([]string{cardTitleStyle.Render("Target")}, targetRows...)...,
	))

	latency := report.Latency(r)
	if r.Successes > 0 {
		latency = latencyStyle(r.Latency).Render(latency)
	}
	rate, _ := metrics.SuccessRate(r.Successes, r.Attempts)
	metricRows := []string{
		dm.row("Latency", latency),
		dm.row("Average", report.Average(r)),
		dm.row("Jitter", report.Jitter(r)),
		dm.row("Trend", fmt.Sprintf("%s %s", r.Trend.Arrow(), r.Trend)),
		dm.row("Success", fmt.Sprintf("%s (%d/%d)", report.SuccessRate(r), r.Successes, r.Attempts)),
		dm.row("", dm.success.ViewAs(rate)),
		dm.row("History", report.Sparkline(r.History, maxInt(historyWidth, dm.width/2-24))),
		dm.row("Cycles", fmt.Sprintf("%d (abandoned %d)", stats.Cycle, stats.Abandoned)),
	}
	sections = append(sections, lipgloss.JoinVertical(lipgloss.Left,
		append([]string{cardTitleStyle.Render("Metrics")}, metricRows...)...,
	))

	// Layout: side by side if wide enough.
	w := dm.width - 6
	if w < 30 {
		w = 30
	}

	if dm.width > 80 {
		halfW := (w - 4) / 2
		left := cardStyle.Width(halfW).Render(sections[0])
		right := cardStyle.Width(halfW).Render(sections[1])
		return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
	}

	var rendered []string
	for _, s := range sections {
		rendered = append(rendered, cardStyle.Width(w).Render(s))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rendered...)
}

func (dm *detailsModel) row(label, value string) string {
	if label == "" {
		return cardLabelStyle.Render("") + " " + value
	}
	return cardLabelStyle.Render(label+":") + " " + cardValueStyle.Render(value)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-1] + "~"
}
