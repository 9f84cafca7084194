package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hostwatch/internal/config"
)

type settingKind int

const (
	kindMillis settingKind = iota
	kindInt
	kindChoice
)

// settingRow is one editable line of the settings tab.
type settingRow struct {
	key     string
	label   string
	kind    settingKind
	choices []string
}

// Rows cover what a watch session reads. The remaining keys are set with
// "hostwatch settings set".
var settingRows = []settingRow{
	{key: config.KeyInterval, label: "Interval", kind: kindMillis},
	{key: config.KeyTimeout, label: "Timeout", kind: kindMillis},
	{key: config.KeyWorkers, label: "Workers", kind: kindInt},
	{key: config.KeyStrategy, label: "Strategy", kind: kindChoice, choices: []string{"icmp", "tcp"}},
	{key: config.KeyTCPPort, label: "TCP port", kind: kindInt},
	{key: config.KeyPrivileged, label: "Raw sockets", kind: kindChoice, choices: []string{"auto", "true", "false"}},
	{key: config.KeyWindowSize, label: "Window", kind: kindInt},
	{key: config.KeyEpsilon, label: "Trend epsilon", kind: kindMillis},
	{key: config.KeyRefresh, label: "Refresh", kind: kindMillis},
}

// parse checks that v has the row's shape before the value is checked
// against the rest of the configuration.
func (r settingRow) parse(v string) error {
	switch r.kind {
	case kindMillis:
		if f, err := strconv.ParseFloat(v, 64); err != nil || f < 0 {
			return fmt.Errorf("expected milliseconds, got %q", v)
		}
	case kindInt:
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("expected a whole number, got %q", v)
		}
	case kindChoice:
		for _, c := range r.choices {
			if c == v {
				return nil
			}
		}
		return fmt.Errorf("expected one of %s", strings.Join(r.choices, ", "))
	}
	return nil
}

func (r settingRow) unit() string {
	if r.kind == kindMillis {
		return " ms"
	}
	return ""
}

// settingsModel edits stored settings. The running session keeps its own
// values; rows whose stored value differs are marked.
type settingsModel struct {
	stored    map[string]string
	effective map[string]string
	cursor    int
	editing   bool
	input     textinput.Model
	inputErr  error
	width     int
	height    int
}

func newSettingsModel(session config.Config) settingsModel {
	ti := textinput.New()
	ti.CharLimit = 16
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorPurple)
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorFg)

	return settingsModel{
		stored:    config.Defaults().Settings(),
		effective: session.Settings(),
		input:     ti,
	}
}

func (sm *settingsModel) setSize(w, h int) {
	sm.width = w
	sm.height = h
}

// setSettings merges loaded values over the defaults so every row has one.
// Values are re-rendered in canonical form so "2000.0" matches "2000".
func (sm *settingsModel) setSettings(s map[string]string) {
	if cfg, err := config.Defaults().ApplySettings(s); err == nil {
		sm.stored = cfg.Settings()
		return
	}
	stored := config.Defaults().Settings()
	for k, v := range s {
		stored[k] = v
	}
	sm.stored = stored
}

func (sm *settingsModel) row() settingRow {
	return settingRows[sm.cursor]
}

// validate runs the row's own parse, then the cross-field checks against
// the other stored settings.
func (sm *settingsModel) validate(r settingRow, v string) error {
	if err := r.parse(v); err != nil {
		return err
	}
	return validateStored(sm.stored, r.key, v)
}

func (sm *settingsModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		if sm.editing {
			var cmd tea.Cmd
			sm.input, cmd = sm.input.Update(msg)
			return cmd
		}
		return nil
	}
	if sm.editing {
		return sm.updateEditing(keyMsg, root)
	}

	r := sm.row()
	switch keyMsg.String() {
	case "up", "k":
		if sm.cursor > 0 {
			sm.cursor--
		}
	case "down", "j":
		if sm.cursor < len(settingRows)-1 {
			sm.cursor++
		}
	case "left", "h":
		if r.kind == kindChoice {
			return sm.stepChoice(root, -1)
		}
	case "right", "l":
		if r.kind == kindChoice {
			return sm.stepChoice(root, 1)
		}
	case "enter":
		if r.kind == kindChoice {
			return sm.stepChoice(root, 1)
		}
		sm.editing = true
		sm.inputErr = nil
		sm.input.SetValue(sm.stored[r.key])
		sm.input.CursorEnd()
		sm.input.Focus()
		return textinput.Blink
	}
	return nil
}

func (sm *settingsModel) stepChoice(root *Model, dir int) tea.Cmd {
	r := sm.row()
	idx := 0
	for i, c := range r.choices {
		if c == sm.stored[r.key] {
			idx = i
		}
	}
	v := r.choices[(idx+dir+len(r.choices))%len(r.choices)]
	if err := sm.validate(r, v); err != nil {
		root.setNotification(err.Error(), true)
		return nil
	}
	sm.stored[r.key] = v
	return saveSetting(root.store, sm.stored, r.key, v)
}

func (sm *settingsModel) updateEditing(msg tea.KeyMsg, root *Model) tea.Cmd {
	r := sm.row()
	switch {
	case key.Matches(msg, keys.Back):
		sm.editing = false
		sm.inputErr = nil
		sm.input.Blur()
		return nil
	case msg.Type == tea.KeyEnter:
		v := strings.TrimSpace(sm.input.Value())
		if sm.inputErr = sm.validate(r, v); sm.inputErr != nil {
			return nil
		}
		sm.editing = false
		sm.input.Blur()
		sm.stored[r.key] = v
		return saveSetting(root.store, sm.stored, r.key, v)
	}

	var cmd tea.Cmd
	sm.input, cmd = sm.input.Update(msg)
	sm.inputErr = sm.validate(r, strings.TrimSpace(sm.input.Value()))
	return cmd
}

func (sm *settingsModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("* stored value differs from this session and applies next session"))
	b.WriteString("\n\n")

	header := fmt.Sprintf("  %-16s%-18s%s", "SETTING", "STORED", "SESSION")
	b.WriteString(dimStyle.Render(header) + "\n")

	for i, r := range settingRows {
		selected := i == sm.cursor
		stored := sm.stored[r.key]
		session := sm.effective[r.key]

		marker := " "
		if stored != session {
			marker = "*"
		}

		labelStyle := lipgloss.NewStyle().Foreground(colorFg)
		prefix := "  "
		if selected {
			labelStyle = labelStyle.Bold(true).Foreground(colorPurple)
			prefix = "> "
		}
		line := labelStyle.Width(16).Render(prefix + r.label)

		switch {
		case selected && sm.editing:
			line += sm.input.View()
		case selected && r.kind == kindChoice:
			line += lipgloss.NewStyle().Width(18).Render(renderChoices(r.choices, stored))
		default:
			line += lipgloss.NewStyle().Foreground(colorFg).Width(18).Render(stored + r.unit())
		}
		if !(selected && sm.editing) {
			line += dimStyle.Render(session+r.unit()) + " " + warningStyle.Render(marker)
		}
		b.WriteString(line + "\n")

		if selected {
			b.WriteString(sm.hint(r) + "\n")
		}
	}

	return forceHeight(b.String(), sm.width, sm.height)
}

func (sm *settingsModel) hint(r settingRow) string {
	style := lipgloss.NewStyle().Foreground(colorDimFg).PaddingLeft(4)
	switch {
	case sm.editing && sm.inputErr != nil:
		return errorStyle.PaddingLeft(4).Render(sm.inputErr.Error())
	case sm.editing:
		return style.Render("enter to save, esc to cancel")
	case r.kind == kindChoice:
		return style.Render(config.Help(r.key) + "  (enter/arrows to change)")
	}
	return style.Render(config.Help(r.key) + "  (enter to edit)")
}

func renderChoices(choices []string, current string) string {
	parts := make([]string, len(choices))
	for i, c := range choices {
		if c == current {
			parts[i] = lipgloss.NewStyle().Bold(true).Foreground(colorPurple).Render("[" + c + "]")
		} else {
			parts[i] = lipgloss.NewStyle().Foreground(colorDimFg).Render(c)
		}
	}
	return strings.Join(parts, " ")
}
