package tui

import (
	"net/netip"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostwatch/internal/config"
	"hostwatch/internal/metrics"
	"hostwatch/internal/monitor"
	"hostwatch/internal/probe"
	"hostwatch/internal/target"
	pkgerrors "hostwatch/pkg/errors"
)

type fixedStats monitor.CycleStats

func (f fixedStats) Stats() monitor.CycleStats { return monitor.CycleStats(f) }

func newTestModel(t *testing.T) (*Model, *metrics.Store) {
	t.Helper()

	targets := []target.Target{
		{Addr: netip.MustParseAddr("10.0.0.1"), Spec: "10.0.0.1"},
		{Addr: netip.MustParseAddr("10.0.0.2"), Spec: "10.0.0.2"},
		{Host: "db.internal", Spec: "db.internal"},
	}
	store := metrics.NewStore(targets, metrics.Options{})

	now := time.Now()
	require.NoError(t, store.Record("10.0.0.1", probe.Result{OK: true, Latency: 3 * time.Millisecond, At: now}))
	require.NoError(t, store.Record("10.0.0.2", probe.Result{Reason: probe.ReasonTimeout, At: now}))

	m := NewModel(Deps{
		Source: store,
		Stats:  fixedStats{Cycle: 7},
		Config: config.Defaults(),
	})
	m.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	return m, store
}

func pull(t *testing.T, m *Model) {
	t.Helper()
	msg := pullSnapshot(m.source, m.stats)()
	m.Update(msg)
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_LoadingBeforeSize(t *testing.T) {
	m := NewModel(Deps{Source: metrics.NewStore(nil, metrics.Options{}), Config: config.Defaults()})
	assert.Equal(t, "Loading...", m.View())
}

func TestModel_RendersSnapshot(t *testing.T) {
	m, _ := newTestModel(t)
	pull(t, m)

	assert.Equal(t, uint64(7), m.cycle.Cycle)
	assert.Equal(t, 3, m.snap.Summary.Total)

	view := m.View()
	assert.Contains(t, view, "10.0.0.1")
	assert.Contains(t, view, "10.0.0.2")
	assert.Contains(t, view, "db.internal")
	assert.Contains(t, view, "1 DOWN")
	assert.Contains(t, view, "cycle 7")
}

func TestModel_ForcesHeight(t *testing.T) {
	m, _ := newTestModel(t)
	pull(t, m)

	lines := 1
	for _, r := range m.View() {
		if r == '\n' {
			lines++
		}
	}
	assert.Equal(t, 40, lines)
}

func TestModel_SortKey(t *testing.T) {
	m, _ := newTestModel(t)
	pull(t, m)

	m.Update(runeKey("s"))
	assert.Equal(t, metrics.SortByStatus, m.targetsTab.sortBy)
	require.NotEmpty(t, m.targetsTab.rows)
	assert.Equal(t, "10.0.0.2", m.targetsTab.rows[0].Key)
	assert.Contains(t, m.notification, "status")
}

func TestModel_PauseFreezesView(t *testing.T) {
	m, store := newTestModel(t)
	pull(t, m)

	m.Update(runeKey("p"))
	require.True(t, m.paused)

	require.NoError(t, store.Record("db.internal", probe.Result{OK: true, Latency: time.Millisecond, At: time.Now()}))
	pull(t, m)
	assert.Equal(t, 1, m.snap.Summary.Unknown)

	m.Update(runeKey("p"))
	require.False(t, m.paused)
	pull(t, m)
	assert.Equal(t, 0, m.snap.Summary.Unknown)
	assert.Equal(t, 2, m.snap.Summary.Up)
}

func TestModel_TabNavigation(t *testing.T) {
	m, _ := newTestModel(t)
	pull(t, m)

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, tabDetails, m.activeTab)
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, tabSettings, m.activeTab)
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, tabTargets, m.activeTab)
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, tabSettings, m.activeTab)
}

func TestModel_DetailsShowSelectedTarget(t *testing.T) {
	m, _ := newTestModel(t)
	pull(t, m)

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, tabDetails, m.activeTab)

	view := m.View()
	assert.Contains(t, view, "10.0.0.1")
	assert.Contains(t, view, "Metrics")

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, tabTargets, m.activeTab)
}

func TestModel_SaveSettingWithoutStorage(t *testing.T) {
	msg := saveSetting(nil, map[string]string{}, config.KeyWorkers, "10")()
	saved, ok := msg.(settingSavedMsg)
	require.True(t, ok)
	assert.ErrorIs(t, saved.err, errNoStorage)

	msg = saveSetting(nil, map[string]string{}, config.KeyWorkers, "0")()
	saved = msg.(settingSavedMsg)
	require.Error(t, saved.err)
	assert.NotErrorIs(t, saved.err, errNoStorage)
}

func openSettings(t *testing.T, cfg config.Config) *Model {
	t.Helper()
	m := NewModel(Deps{Source: metrics.NewStore(nil, metrics.Options{}), Config: cfg})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	require.Equal(t, tabSettings, m.activeTab)
	return m
}

func typeText(m *Model, s string) {
	for _, r := range s {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestSettings_MarksValuesDifferingFromSession(t *testing.T) {
	session := config.Defaults()
	session.Workers = 8
	m := openSettings(t, session)

	m.Update(settingsLoadedMsg{settings: map[string]string{config.KeyWorkers: "8", config.KeyInterval: "2000.0"}})
	assert.Equal(t, "2000", m.settingsTab.stored[config.KeyInterval])

	view := m.settingsTab.View()
	for _, line := range strings.Split(view, "\n") {
		switch {
		case strings.Contains(line, "Workers"), strings.Contains(line, "Interval"):
			assert.NotContains(t, line, "*", line)
		}
	}

	m.Update(settingsLoadedMsg{settings: map[string]string{config.KeyWorkers: "16"}})
	for _, line := range strings.Split(m.settingsTab.View(), "\n") {
		if strings.Contains(line, "Workers") {
			assert.Contains(t, line, "16")
			assert.Contains(t, line, "8")
			assert.Contains(t, line, "*")
		}
	}
}

func TestSettings_InlineValidation(t *testing.T) {
	m := openSettings(t, config.Defaults())

	// Timeout row.
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, config.KeyTimeout, m.settingsTab.row().key)

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, m.settingsTab.editing)
	assert.NoError(t, m.settingsTab.inputErr)

	typeText(m, "x")
	assert.ErrorContains(t, m.settingsTab.inputErr, "milliseconds")

	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	typeText(m, "0") // 10000 ms is not below the 2000 ms interval
	require.Error(t, m.settingsTab.inputErr)
	assert.ErrorIs(t, m.settingsTab.inputErr, pkgerrors.ErrTimeoutNotBelowInterval)

	// Enter is refused while the value is invalid.
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.settingsTab.editing)
	assert.Equal(t, "1000", m.settingsTab.stored[config.KeyTimeout])
	assert.Contains(t, m.settingsTab.View(), "interval")

	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.NoError(t, m.settingsTab.inputErr)
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.settingsTab.editing)
	assert.Equal(t, "100", m.settingsTab.stored[config.KeyTimeout])
}

func TestSettings_ChoiceRow(t *testing.T) {
	m := openSettings(t, config.Defaults())
	for m.settingsTab.row().key != config.KeyStrategy {
		m.Update(tea.KeyMsg{Type: tea.KeyDown})
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, "tcp", m.settingsTab.stored[config.KeyStrategy])
	assert.False(t, m.settingsTab.editing)

	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, "icmp", m.settingsTab.stored[config.KeyStrategy])
}

func TestSettingRow_Parse(t *testing.T) {
	millis := settingRow{kind: kindMillis}
	assert.NoError(t, millis.parse("0.5"))
	assert.Error(t, millis.parse("-1"))
	assert.Error(t, millis.parse("2s"))

	ints := settingRow{kind: kindInt}
	assert.NoError(t, ints.parse("50"))
	assert.Error(t, ints.parse("5.5"))

	choice := settingRow{kind: kindChoice, choices: []string{"icmp", "tcp"}}
	assert.NoError(t, choice.parse("tcp"))
	assert.Error(t, choice.parse("udp"))
}

func TestForceHeight(t *testing.T) {
	assert.Equal(t, "a\nb", forceHeight("a\nb\nc", 1, 2))
	assert.Equal(t, "a\n  \n  ", forceHeight("a", 2, 3))
}
