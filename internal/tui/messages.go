package tui

import (
	"time"

	"hostwatch/internal/metrics"
	"hostwatch/internal/monitor"
)

// Refresh messages.

type refreshTickMsg time.Time

type snapshotMsg struct {
	snap  metrics.Snapshot
	stats monitor.CycleStats
}

// Settings messages.

type settingsLoadedMsg struct {
	settings map[string]string
	err      error
}

type settingSavedMsg struct {
	key string
	err error
}

// Notification message.

type clearNotificationMsg struct {
	version int
}
