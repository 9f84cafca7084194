package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hostwatch/internal/metrics"
	"hostwatch/internal/report"
)

const historyWidth = 20

type targetsModel struct {
	table  table.Model
	rows   []metrics.Row
	sortBy metrics.SortKey
	width  int
	height int
}

func targetColumns(width int) []table.Column {
	host, name := 18, 22
	if width > 140 {
		extra := (width - 140) / 2
		host += extra / 2
		name += extra - extra/2
	}
	return []table.Column{
		{Title: "Host", Width: host},
		{Title: "Hostname", Width: name},
		{Title: "Status", Width: 18},
		{Title: "Latency", Width: 10},
		{Title: "Avg", Width: 10},
		{Title: "Jitter", Width: 10},
		{Title: "Success", Width: 8},
		{Title: "Trend", Width: 5},
		{Title: "History", Width: historyWidth},
		{Title: "Updated", Width: 14},
	}
}

func newTargetsModel() targetsModel {
	t := table.New(
		table.WithColumns(targetColumns(0)),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(colorPurple)
	s.Selected = s.Selected.
		Foreground(colorFg).
		Background(lipgloss.AdaptiveColor{Light: "#E8E0F0", Dark: "#2A1A3E"}).
		Bold(true)
	t.SetStyles(s)

	return targetsModel{table: t}
}

func (tm *targetsModel) setSize(w, h int) {
	tm.width = w
	tm.height = h
	tm.table.SetColumns(targetColumns(w))

	// One line for the sort indicator above the table.
	th := h - 1
	if th < 1 {
		th = 1
	}
	tm.table.SetHeight(th)
}

// setSnapshot replaces the rows, keeping the cursor on the same target when
// it is still present.
func (tm *targetsModel) setSnapshot(snap metrics.Snapshot) {
	selected := tm.selectedKey()
	sorted := snap.Sorted(tm.sortBy)
	tm.rows = sorted.Rows

	now := snap.TakenAt
	if now.IsZero() {
		now = time.Now()
	}

	rows := make([]table.Row, len(sorted.Rows))
	cursor := 0
	for i, r := range sorted.Rows {
		if r.Key == selected {
			cursor = i
		}
		hostname := r.Hostname
		if hostname == "" || hostname == r.Key {
			hostname = report.Placeholder
		}
		rows[i] = table.Row{
			r.Key,
			hostname,
			report.Status(r),
			report.Latency(r),
			report.Average(r),
			report.Jitter(r),
			report.SuccessRate(r),
			r.Trend.Arrow(),
			report.Sparkline(r.History, historyWidth),
			report.Updated(r, now),
		}
	}
	tm.table.SetRows(rows)
	if len(rows) > 0 {
		tm.table.SetCursor(cursor)
	}
}

func (tm *targetsModel) selectedKey() string {
	idx := tm.table.Cursor()
	if idx >= 0 && idx < len(tm.rows) {
		return tm.rows[idx].Key
	}
	return ""
}

func (tm *targetsModel) selectedRow() (metrics.Row, bool) {
	idx := tm.table.Cursor()
	if idx >= 0 && idx < len(tm.rows) {
		return tm.rows[idx], true
	}
	return metrics.Row{}, false
}

func (tm *targetsModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Sort):
			tm.sortBy = tm.sortBy.Next()
			tm.setSnapshot(root.snap)
			root.setNotification(fmt.Sprintf("Sorted by %s", tm.sortBy), false)
			return nil

		case key.Matches(msg, keys.Enter):
			if _, ok := tm.selectedRow(); ok {
				root.activeTab = tabDetails
			}
			return nil
		}
	}

	var cmd tea.Cmd
	tm.table, cmd = tm.table.Update(msg)
	return cmd
}

func (tm *targetsModel) View(s spinner.Model, waiting bool) string {
	var b strings.Builder

	line := dimStyle.Render(fmt.Sprintf("Sorted by %s", tm.sortBy))
	if waiting {
		line = s.View() + " " + dimStyle.Render("Waiting for the first results...")
	}
	b.WriteString(line + "\n")
	b.WriteString(tm.table.View())

	return forceHeight(b.String(), tm.width, tm.height)
}
