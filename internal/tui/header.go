package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"hostwatch/internal/metrics"
)

var tabNames = []string{"Targets", "Details", "Settings"}

func renderHeader(activeTab int, summary metrics.Summary, paused bool, width int) string {
	logo := logoStyle.Render("HOSTWATCH")
	pill := renderPill(summary, paused)

	var tabs []string
	for i, name := range tabNames {
		if i == activeTab {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	tabBar := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	// First row: logo + pill right-aligned.
	pillWidth := lipgloss.Width(pill)
	logoWidth := lipgloss.Width(logo)
	gap := width - logoWidth - pillWidth
	if gap < 1 {
		gap = 1
	}
	topRow := logo + strings.Repeat(" ", gap) + pill

	// Second row: tabs + counters right-aligned.
	counters := renderCounters(summary)
	gap = width - lipgloss.Width(tabBar) - lipgloss.Width(counters) - 1
	if gap < 1 {
		gap = 1
	}
	tabRow := tabBar + strings.Repeat(" ", gap) + counters

	sep := lipgloss.NewStyle().
		Foreground(colorBorder).
		Render(strings.Repeat("─", max(width, 0)))

	return lipgloss.JoinVertical(lipgloss.Left, topRow, tabRow, sep)
}

func renderPill(s metrics.Summary, paused bool) string {
	switch {
	case paused:
		return pendingPillStyle.Render(" PAUSED ")
	case s.Down > 0:
		return failingPillStyle.Render(fmt.Sprintf(" %d DOWN ", s.Down))
	case s.Up > 0 && s.Unknown == 0:
		return healthyPillStyle.Render(" ALL UP ")
	default:
		return pendingPillStyle.Render(" PROBING ")
	}
}

func renderCounters(s metrics.Summary) string {
	part := func(label string, n int, style lipgloss.Style) string {
		return summaryLabelStyle.Render(label+": ") + style.Render(fmt.Sprintf("%d", n))
	}
	return strings.Join([]string{
		part("Total", s.Total, cardValueStyle),
		part("Online", s.Up, summaryUpStyle),
		part("Offline", s.Down, summaryDownStyle),
		part("Unknown", s.Unknown, summaryUnknownStyle),
	}, "  ")
}

func renderFooter(helpText, status string, width int) string {
	sep := lipgloss.NewStyle().
		Foreground(colorBorder).
		Render(strings.Repeat("─", max(width, 0)))

	help := helpBarStyle.Render(helpText)
	if status != "" && !strings.Contains(helpText, "\n") {
		gap := width - lipgloss.Width(help) - lipgloss.Width(status) - 1
		if gap >= 1 {
			help += strings.Repeat(" ", gap) + dimStyle.Render(status)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, sep, help)
}

func renderHelpBar(showFull bool) string {
	if showFull {
		return renderFullHelp()
	}
	return renderShortHelp()
}

func renderShortHelp() string {
	bindings := keys.ShortHelp()
	var parts []string
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		k := helpKeyStyle.Render(b.Help().Key)
		d := helpDescStyle.Render(b.Help().Desc)
		parts = append(parts, k+" "+d)
	}
	return strings.Join(parts, helpSepStyle.Render(" | "))
}

func renderFullHelp() string {
	groups := keys.FullHelp()
	var lines []string
	for _, group := range groups {
		var parts []string
		for _, b := range group {
			if !b.Enabled() {
				continue
			}
			k := helpKeyStyle.Render(b.Help().Key)
			d := helpDescStyle.Render(b.Help().Desc)
			parts = append(parts, k+" "+d)
		}
		lines = append(lines, strings.Join(parts, helpSepStyle.Render("  ")))
	}
	return strings.Join(lines, "\n")
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
