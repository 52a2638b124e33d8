// Package tui implements the operator-facing surfaces: the read-only
// live dashboard ("lswitch monitor") and the reflection-driven
// AutoForm/huh wizard ("lswitch init"). The dashboard's styling lives in
// styles.go; AutoForm uses huh's Base16 theme.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"grimm.is/lswitch/internal/monitor"
)

// Backend is what the dashboard needs from a running session; satisfied
// by *monitor.Client when attaching to a remote instance over HTTP/WS, or
// by a hand-built fake in tests.
type Backend interface {
	FetchStatus() (monitor.Status, error)
}

const statusPollInterval = 2 * time.Second

type eventItem monitor.Event

func (i eventItem) Title() string {
	return fmt.Sprintf("%s  %s", i.Timestamp.Format("15:04:05"), i.Kind)
}

func (i eventItem) Description() string {
	if i.DatapathID != "" {
		return "datapath " + i.DatapathID
	}
	return ""
}

func (i eventItem) FilterValue() string { return i.Kind }

type statusMsg struct {
	status monitor.Status
	err    error
}

type eventMsg monitor.Event

// DashboardModel is the bubbletea.Model backing "lswitch monitor": a
// status header plus a scrolling list of recent session events, grounded
// on the teacher's internal/tui history.go (bubbles/list fed by a
// backend, refreshed on a tick).
type DashboardModel struct {
	backend Backend
	events  <-chan monitor.Event

	status    monitor.Status
	statusErr error

	List          list.Model
	Width, Height int
}

// NewDashboardModel builds a dashboard polling backend for status and
// draining events for the live log.
func NewDashboardModel(backend Backend, events <-chan monitor.Event) DashboardModel {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Session Events"
	l.Styles.Title = StyleTitle
	l.SetShowStatusBar(false)

	return DashboardModel{
		backend: backend,
		events:  events,
		List:    l,
	}
}

// Init kicks off the first status fetch and the event-channel listener.
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), waitForEvent(m.events))
}

func (m DashboardModel) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		st, err := m.backend.FetchStatus()
		return statusMsg{status: st, err: err}
	}
}

func tickStatus() tea.Cmd {
	return tea.Tick(statusPollInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

type tickMsg struct{}

func waitForEvent(events <-chan monitor.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		evt, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(evt)
	}
}

// Update implements tea.Model.
func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.List.SetSize(msg.Width-4, msg.Height-8)

	case statusMsg:
		m.status, m.statusErr = msg.status, msg.err
		cmds = append(cmds, tickStatus())

	case tickMsg:
		cmds = append(cmds, m.fetchStatus())

	case eventMsg:
		items := append([]list.Item{eventItem(msg)}, m.List.Items()...)
		cmds = append(cmds, m.List.SetItems(items))
		cmds = append(cmds, waitForEvent(m.events))
	}

	var cmd tea.Cmd
	m.List, cmd = m.List.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m DashboardModel) View() string {
	header := StyleHeader.Render("lswitch monitor")
	status := m.renderStatus()
	return lipgloss.JoinVertical(lipgloss.Left, header, status, StyleCard.Render(m.List.View()))
}

func (m DashboardModel) renderStatus() string {
	if m.statusErr != nil {
		return StyleStatusBad.Render("status unavailable: " + m.statusErr.Error())
	}
	modeStyle := StyleStatusGood
	if m.status.DatapathID == "0000000000000000" || m.status.DatapathID == "" {
		modeStyle = StyleStatusWarn
	}
	line := fmt.Sprintf("datapath=%s mode=%s link=%s mac_entries=%d events(pub/drop)=%d/%d",
		m.status.DatapathID, m.status.Mode, m.status.LinkName,
		m.status.MacTableSize, m.status.Published, m.status.Dropped)
	return modeStyle.Render(line)
}

// Model wraps DashboardModel to satisfy tea.Model's value-receiver
// Init/Update/View signatures at the top level.
type Model struct {
	Dashboard DashboardModel
}

// NewModel constructs the top-level program model.
func NewModel(backend Backend, events <-chan monitor.Event) Model {
	return Model{Dashboard: NewDashboardModel(backend, events)}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return m.Dashboard.Init() }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.Dashboard, cmd = m.Dashboard.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string { return m.Dashboard.View() }
