package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"hostwatch/internal/config"
	"hostwatch/internal/monitor"
	"hostwatch/internal/storage"
)

// refreshTick schedules the next snapshot pull.
func refreshTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

// pullSnapshot reads the current metrics. It never waits on the scheduler.
func pullSnapshot(source monitor.SnapshotSource, stats StatsSource) tea.Cmd {
	return func() tea.Msg {
		msg := snapshotMsg{snap: source.Snapshot()}
		if stats != nil {
			msg.stats = stats.Stats()
		}
		return msg
	}
}

// loadSettings fetches all stored settings.
func loadSettings(store storage.Storage) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		ctx := context.Background()
		settings, err := store.GetAllSettings(ctx)
		return settingsLoadedMsg{settings: settings, err: err}
	}
}

// saveSetting validates and stores a setting for the next session. The value
// is checked against the other stored settings, not the running session.
func saveSetting(store storage.Storage, stored map[string]string, key, value string) tea.Cmd {
	verr := validateStored(stored, key, value)
	return func() tea.Msg {
		if verr != nil {
			return settingSavedMsg{key: key, err: verr}
		}
		if store == nil {
			return settingSavedMsg{key: key, err: errNoStorage}
		}
		err := store.SetSetting(context.Background(), key, value)
		return settingSavedMsg{key: key, err: err}
	}
}

// validateStored checks key=value on top of every other stored setting.
func validateStored(stored map[string]string, key, value string) error {
	others := make(map[string]string, len(stored))
	for k, v := range stored {
		if k != key {
			others[k] = v
		}
	}
	base, err := config.Defaults().ApplySettings(others)
	if err != nil {
		base = config.Defaults()
	}
	return config.ValidateSetting(base, key, value)
}

// clearNotification returns a command that clears the notification after a delay.
func clearNotification(delay time.Duration, version int) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return clearNotificationMsg{version: version}
	})
}
