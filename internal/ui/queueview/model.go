package queueview

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todosync/internal/keys"
	"github.com/nhle/todosync/internal/queue"
	"github.com/nhle/todosync/internal/theme"
)

// Queue is the part of the sync queue the inspector needs.
type Queue interface {
	Operations() []queue.Operation
	Requeue(ctx context.Context, id string) error
	Discard(ctx context.Context, id string) error
}

type viewMode int

const (
	modeList viewMode = iota
	modeConfirmDiscard
)

type opsLoadedMsg struct {
	ops []queue.Operation
}

type opActionMsg struct {
	verb string
	id   string
	err  error
}

// Model lists queued operations and lets the user requeue or discard them.
type Model struct {
	mode        viewMode
	queue       Queue
	keys        *keys.KeyMap
	ops         []queue.Operation
	table       table.Model
	confirmForm *huh.Form
	confirm     *bool
	statusMsg   string
	width       int
	height      int
}

// New creates a new queue inspector model.
func New(q Queue, k *keys.KeyMap, width, height int) Model {
	t := table.New(
		table.WithColumns(columns(width)),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Selected = theme.SelectedRowStyle
	t.SetStyles(styles)

	m := Model{
		mode:    modeList,
		queue:   q,
		keys:    k,
		table:   t,
		confirm: new(bool),
	}
	m.SetSize(width, height)
	return m
}

// Init loads the operations.
func (m Model) Init() tea.Cmd {
	return m.Reload()
}

// Reload returns a command that re-reads the queue.
func (m Model) Reload() tea.Cmd {
	q := m.queue
	return func() tea.Msg {
		return opsLoadedMsg{ops: q.Operations()}
	}
}

// Confirming reports whether a confirmation dialog has focus.
func (m Model) Confirming() bool {
	return m.mode == modeConfirmDiscard
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case opsLoadedMsg:
		m.ops = msg.ops
		m.table.SetRows(rows(m.ops))
		if c := m.table.Cursor(); c >= len(m.ops) && len(m.ops) > 0 {
			m.table.SetCursor(len(m.ops) - 1)
		}
		return m, nil

	case opActionMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.statusMsg = fmt.Sprintf("Operation %s %s", shortID(msg.id), msg.verb)
		}
		m.mode = modeList
		return m, m.Reload()

	case tea.KeyMsg:
		if m.mode == modeConfirmDiscard {
			return m.updateConfirm(msg)
		}
		return m.handleListKey(msg)
	}

	if m.mode == modeConfirmDiscard {
		return m.updateConfirm(msg)
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Requeue):
		op, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.requeue(op.ID)

	case key.Matches(msg, m.keys.Discard):
		op, ok := m.selected()
		if !ok {
			return m, nil
		}
		*m.confirm = false
		m.confirmForm = m.buildConfirmForm(op)
		m.mode = modeConfirmDiscard
		return m, m.confirmForm.Init()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) selected() (queue.Operation, bool) {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.ops) {
		return queue.Operation{}, false
	}
	return m.ops[c], true
}

func (m Model) buildConfirmForm(op queue.Operation) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Discard %s %s?", op.Kind, shortID(op.ID))).
				Description("The change will never reach the server.").
				Affirmative("Yes, discard").
				Negative("Cancel").
				Value(m.confirm),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmForm == nil {
		m.mode = modeList
		return m, nil
	}
	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}
	switch m.confirmForm.State {
	case huh.StateCompleted:
		m.mode = modeList
		if op, ok := m.selected(); ok && *m.confirm {
			return m, m.discard(op.ID)
		}
		return m, nil
	case huh.StateAborted:
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

// View renders the inspector.
func (m Model) View() string {
	if m.mode == modeConfirmDiscard && m.confirmForm != nil {
		return theme.PanelStyle.Render(m.confirmForm.View())
	}

	var b strings.Builder
	if len(m.ops) == 0 {
		b.WriteString(theme.HelpStyle.Render("Queue is empty. Everything is in sync."))
	} else {
		b.WriteString(m.table.View())
		if op, ok := m.selected(); ok && op.LastError != "" {
			b.WriteString("\n")
			b.WriteString(theme.StatusStyle(string(op.Status)).Render("last error: "))
			b.WriteString(op.LastError)
		}
	}

	if m.statusMsg != "" {
		b.WriteString("\n\n")
		b.WriteString(theme.NoticeStyle.Render(m.statusMsg))
	}

	return lipgloss.NewStyle().Padding(0, 1).Render(b.String())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columns(width))
	h := height - 4
	if h < 3 {
		h = 3
	}
	m.table.SetHeight(h)
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}

func (m Model) requeue(id string) tea.Cmd {
	q := m.queue
	return func() tea.Msg {
		return opActionMsg{verb: "requeued", id: id, err: q.Requeue(context.Background(), id)}
	}
}

func (m Model) discard(id string) tea.Cmd {
	q := m.queue
	return func() tea.Msg {
		return opActionMsg{verb: "discarded", id: id, err: q.Discard(context.Background(), id)}
	}
}

func columns(width int) []table.Column {
	target := width - 8 - 12 - 20 - 8 - 20 - 12
	if target < 12 {
		target = 12
	}
	return []table.Column{
		{Title: "ID", Width: 8},
		{Title: "Kind", Width: 12},
		{Title: "Status", Width: 20},
		{Title: "Retry", Width: 8},
		{Title: "Created", Width: 20},
		{Title: "Target", Width: target},
	}
}

func rows(ops []queue.Operation) []table.Row {
	out := make([]table.Row, 0, len(ops))
	for _, op := range ops {
		target := "?"
		if op.Payload != nil {
			target = op.Payload.EntityID()
		}
		out = append(out, table.Row{
			shortID(op.ID),
			string(op.Kind),
			string(op.Status),
			fmt.Sprintf("%d/%d", op.RetryCount, queue.MaxRetries),
			op.CreatedAt.Local().Format(time.DateTime),
			target,
		})
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
