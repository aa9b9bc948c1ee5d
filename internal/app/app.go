package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/todosync/internal/keys"
	"github.com/nhle/todosync/internal/queue"
	appsync "github.com/nhle/todosync/internal/sync"
	"github.com/nhle/todosync/internal/theme"
	"github.com/nhle/todosync/internal/ui"
	helpview "github.com/nhle/todosync/internal/ui/help"
	"github.com/nhle/todosync/internal/ui/queueview"
)

const statusRefresh = time.Second

// statusTickMsg re-renders the header with fresh scheduler state.
type statusTickMsg struct{}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewQueue ViewState = iota
	ViewHelp
)

// Scheduler is the part of the drain scheduler the UI drives.
type Scheduler interface {
	Start() tea.Cmd
	RefreshNow() tea.Cmd
	Status() appsync.Status
	WaitForResult() tea.Cmd
}

// Model is the root Bubble Tea model of the queue inspector.
type Model struct {
	currentView ViewState
	layout      ui.Layout
	keys        *keys.KeyMap
	scheduler   Scheduler
	queueView   queueview.Model
	helpView    helpview.Model
	lastDrain   string
	ready       bool
}

// New creates the root model. The scheduler must already be started;
// Init only begins listening for its results.
func New(q queueview.Queue, s Scheduler) Model {
	k := keys.DefaultKeyMap()
	return Model{
		currentView: ViewQueue,
		keys:        k,
		scheduler:   s,
		queueView:   queueview.New(q, k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
	}
}

// Init loads the queue and subscribes to drain results.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.queueView.Init(),
		m.scheduler.WaitForResult(),
		tick(),
	)
}

func tick() tea.Cmd {
	return tea.Tick(statusRefresh, func(time.Time) tea.Msg { return statusTickMsg{} })
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.queueView.SetSize(msg.Width, m.layout.ContentHeight())
		m.helpView.SetSize(msg.Width, m.layout.ContentHeight())
		return m, nil

	case statusTickMsg:
		return m, tick()

	case appsync.DrainResultMsg:
		m.lastDrain = summarize(msg)
		return m, tea.Batch(m.queueView.Reload(), m.scheduler.WaitForResult())

	case tea.KeyMsg:
		if m.currentView == ViewQueue && m.queueView.Confirming() {
			var cmd tea.Cmd
			m.queueView, cmd = m.queueView.Update(msg)
			return m, cmd
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = ViewQueue
			} else {
				m.currentView = ViewHelp
			}
			return m, nil
		case key.Matches(msg, m.keys.Back):
			m.currentView = ViewQueue
			return m, nil
		case key.Matches(msg, m.keys.Sync):
			m.lastDrain = "drain requested"
			return m, m.scheduler.RefreshNow()
		}
	}

	if m.currentView == ViewQueue {
		var cmd tea.Cmd
		m.queueView, cmd = m.queueView.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("todosync queue", m.syncStatus())
	var content string
	if m.currentView == ViewHelp {
		content = m.helpView.View()
	} else {
		content = m.queueView.View()
	}
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// syncStatus describes connectivity, scheduler state and queue depth.
func (m Model) syncStatus() string {
	st := m.scheduler.Status()
	conn := "offline"
	if st.Online {
		conn = "online"
	}
	return fmt.Sprintf("%s | %s | %d pending",
		theme.ConnectivityStyle(st.Online).Render(conn),
		st.State,
		st.Counts[queue.StatusPending])
}

func (m Model) keyHints() string {
	if m.currentView == ViewHelp {
		return "? close help | esc back"
	}
	hints := "q quit | ? help | s sync | r requeue | d discard"
	if m.lastDrain != "" {
		hints += " | " + m.lastDrain
	}
	return hints
}

func summarize(msg appsync.DrainResultMsg) string {
	r := msg.Result
	if r.Skipped {
		return fmt.Sprintf("%s drain skipped", msg.Trigger)
	}
	return fmt.Sprintf("%s drain: %d/%d ok, %d retry, %d parked",
		msg.Trigger, r.Succeeded, r.Attempted, r.Retried, r.Exhausted+r.Rejected)
}
