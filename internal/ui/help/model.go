package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todosync/internal/keys"
	"github.com/nhle/todosync/internal/queue"
	"github.com/nhle/todosync/internal/theme"
)

// section is one titled group of bindings in the overlay.
type section struct {
	title    string
	bindings []key.Binding
}

// Model is the help overlay of the queue inspector. It lists the keys by
// what they act on and explains the status column.
type Model struct {
	sections []section
	help     help.Model
	width    int
	height   int
}

// New creates a help overlay for k.
func New(k *keys.KeyMap, width, height int) Model {
	m := Model{
		sections: []section{
			{title: "Navigation", bindings: []key.Binding{k.Up, k.Down, k.Back}},
			{title: "Queue actions", bindings: []key.Binding{k.Sync, k.Requeue, k.Discard}},
			{title: "General", bindings: []key.Binding{k.Help, k.Quit}},
		},
		help: help.New(),
	}
	m.SetSize(width, height)
	return m
}

var statusLegend = []struct {
	status queue.Status
	text   string
}{
	{queue.StatusPending, "waiting for the next drain"},
	{queue.StatusInProgress, "being sent to the server"},
	{queue.StatusMaxRetriesExceeded, fmt.Sprintf("rejected, or failed %d times; requeue or discard", queue.MaxRetries)},
	{queue.StatusFailed, "unreadable entry, discard it"},
}

// View renders the overlay.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Queue inspector keys")
	heading := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue)

	parts := []string{title}
	for _, s := range m.sections {
		lines := make([]string, 0, len(s.bindings))
		for _, b := range s.bindings {
			h := b.Help()
			lines = append(lines, fmt.Sprintf("  %-8s %s",
				m.help.Styles.FullKey.Render(h.Key), m.help.Styles.FullDesc.Render(h.Desc)))
		}
		parts = append(parts, heading.Render(s.title), strings.Join(lines, "\n"), "")
	}

	parts = append(parts, heading.Render("Statuses"))
	for _, l := range statusLegend {
		parts = append(parts, fmt.Sprintf("  %s %s",
			theme.StatusStyle(string(l.status)).Render(string(l.status)), theme.HelpStyle.Render(l.text)))
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the overlay dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
