package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hostwatch/internal/config"
	"hostwatch/internal/metrics"
	"hostwatch/internal/monitor"
	"hostwatch/internal/storage"
)

// Tab indices.
const (
	tabTargets  = 0
	tabDetails  = 1
	tabSettings = 2
	tabCount    = 3
)

var errNoStorage = errors.New("settings storage is not available")

// StatsSource reports scheduler counters. *monitor.Scheduler satisfies it.
type StatsSource interface {
	Stats() monitor.CycleStats
}

// Model is the root BubbleTea model.
type Model struct {
	// Dependencies.
	source monitor.SnapshotSource
	stats  StatsSource
	store  storage.Storage
	cfg    config.Config

	// Dimensions.
	width  int
	height int

	// Navigation.
	activeTab int
	showHelp  bool

	// Latest data. A paused view keeps showing the snapshot it froze on.
	snap      metrics.Snapshot
	cycle     monitor.CycleStats
	paused    bool
	refreshed bool

	// Tab models.
	targetsTab  targetsModel
	detailsTab  detailsModel
	settingsTab settingsModel

	// Notification.
	notification    string
	notificationErr bool
	notifVersion    int

	// Spinner shown until the first results arrive.
	spinner spinner.Model
}

// Deps holds all dependencies injected into the TUI.
type Deps struct {
	Source  monitor.SnapshotSource
	Stats   StatsSource
	Storage storage.Storage
	Config  config.Config
}

// NewModel creates a new root Model.
func NewModel(deps Deps) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	if deps.Config.Refresh <= 0 {
		deps.Config.Refresh = config.Defaults().Refresh
	}

	return &Model{
		source:      deps.Source,
		stats:       deps.Stats,
		store:       deps.Storage,
		cfg:         deps.Config,
		activeTab:   tabTargets,
		spinner:     s,
		targetsTab:  newTargetsModel(),
		detailsTab:  newDetailsModel(),
		settingsTab: newSettingsModel(deps.Config),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		pullSnapshot(m.source, m.stats),
		refreshTick(m.cfg.Refresh),
		loadSettings(m.store),
		m.spinner.Tick,
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	prevNotifVersion := m.notifVersion

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		ch := m.contentHeight()
		m.targetsTab.setSize(msg.Width, ch)
		m.detailsTab.setSize(msg.Width, ch)
		m.settingsTab.setSize(msg.Width, ch)
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}

	// Refresh.
	case refreshTickMsg:
		if !m.paused {
			cmds = append(cmds, pullSnapshot(m.source, m.stats))
		}
		cmds = append(cmds, refreshTick(m.cfg.Refresh))
	case snapshotMsg:
		if !m.paused {
			m.applySnapshot(msg)
		}

	// Settings.
	case settingsLoadedMsg:
		if msg.err == nil {
			m.settingsTab.setSettings(msg.settings)
		}
	case settingSavedMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Save failed: %v", msg.err), true)
			cmds = append(cmds, loadSettings(m.store))
		} else {
			m.setNotification(fmt.Sprintf("Saved %s (applies next session)", msg.key), false)
		}

	// Notification.
	case clearNotificationMsg:
		if msg.version == m.notifVersion {
			m.notification = ""
			m.notificationErr = false
		}
	}

	if m.waiting() {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Delegate to active tab.
	switch m.activeTab {
	case tabTargets:
		cmds = append(cmds, m.targetsTab.Update(msg, m))
	case tabDetails:
		cmds = append(cmds, m.detailsTab.Update(msg, m))
	case tabSettings:
		cmds = append(cmds, m.settingsTab.Update(msg, m))
	}

	// Schedule notification auto-clear when a new notification was set.
	if m.notifVersion > prevNotifVersion && m.notification != "" {
		cmds = append(cmds, clearNotification(4*time.Second, m.notifVersion))
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) applySnapshot(msg snapshotMsg) {
	m.snap = msg.snap
	m.cycle = msg.stats
	m.refreshed = true
	m.targetsTab.setSnapshot(msg.snap)
}

// waiting is true until at least one target has a result.
func (m *Model) waiting() bool {
	s := m.snap.Summary
	return !m.refreshed || (s.Total > 0 && s.Unknown == s.Total)
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := renderHeader(m.activeTab, m.snap.Summary, m.paused, m.width)

	var content string
	switch m.activeTab {
	case tabTargets:
		content = m.targetsTab.View(m.spinner, m.waiting())
	case tabDetails:
		row, found := m.targetsTab.selectedRow()
		content = m.detailsTab.View(row, found, m.cycle, m.snap.TakenAt)
	case tabSettings:
		content = m.settingsTab.View()
	}

	var notif string
	if m.notification != "" {
		if m.notificationErr {
			notif = notifErrorStyle.Render("! " + m.notification)
		} else {
			notif = notifSuccessStyle.Render("* " + m.notification)
		}
	}

	helpText := renderHelpBar(m.showHelp)
	footer := renderFooter(helpText, m.statusLine(), m.width)

	parts := []string{header}
	if notif != "" {
		parts = append(parts, notif)
	}
	parts = append(parts, content, footer)
	output := lipgloss.JoinVertical(lipgloss.Left, parts...)

	// Force exactly m.height lines to prevent BubbleTea rendering drift.
	return forceHeight(output, m.width, m.height)
}

func (m *Model) statusLine() string {
	if m.snap.TakenAt.IsZero() {
		return ""
	}
	return fmt.Sprintf("cycle %d  every %s  %s",
		m.cycle.Cycle, m.cfg.Interval, m.snap.TakenAt.Format("15:04:05"))
}

// forceHeight ensures the string has exactly `height` lines, each padded to `width`.
// This prevents BubbleTea from leaving ghost lines when switching tabs.
func forceHeight(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	blank := strings.Repeat(" ", width)
	for len(lines) < height {
		lines = append(lines, blank)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) contentHeight() int {
	overhead := 5
	if m.showHelp {
		overhead += 3
	}
	h := m.height - overhead
	if h < 1 {
		h = 1
	}
	return h
}

// handleGlobalKey processes keys that work on every tab. handled reports
// whether the key was consumed.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	// Don't intercept while a setting is being edited.
	if m.activeTab == tabSettings && m.settingsTab.editing {
		return nil, false
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit, true

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		ch := m.contentHeight()
		m.targetsTab.setSize(m.width, ch)
		m.detailsTab.setSize(m.width, ch)
		m.settingsTab.setSize(m.width, ch)
		return nil, true

	case key.Matches(msg, keys.TabNext):
		m.activeTab = (m.activeTab + 1) % tabCount
		return nil, true

	case key.Matches(msg, keys.TabPrev):
		m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		return nil, true

	case key.Matches(msg, keys.Pause):
		m.paused = !m.paused
		if m.paused {
			m.setNotification("View paused; probing continues", false)
			return clearNotification(4*time.Second, m.notifVersion), true
		}
		m.setNotification("View resumed", false)
		return tea.Batch(pullSnapshot(m.source, m.stats), clearNotification(4*time.Second, m.notifVersion)), true

	case key.Matches(msg, keys.Refresh):
		if m.paused {
			return nil, true
		}
		return pullSnapshot(m.source, m.stats), true
	}

	return nil, false
}

func (m *Model) setNotification(text string, isErr bool) {
	m.notification = text
	m.notificationErr = isErr
	m.notifVersion++
}

// NewProgram creates a bubbletea program with alt screen.
func NewProgram(deps Deps, opts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(NewModel(deps), append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
}
