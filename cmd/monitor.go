package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"grimm.is/lswitch/internal/monitor"
	"grimm.is/lswitch/internal/tui"
)

// RunMonitor attaches the operator TUI dashboard to a running instance's
// monitor endpoint at addr (host:port), polling GET /status and
// streaming GET /stream. Grounded on the teacher's cmd/tuidemo/main.go
// (tea.NewProgram(tui.NewModel(backend), tea.WithAltScreen())).
func RunMonitor(addr string) error {
	client := monitor.NewClient(addr)

	events := make(chan monitor.Event, 64)
	stop := make(chan struct{})
	go func() {
		if err := client.Stream(events, stop); err != nil {
			fmt.Fprintf(os.Stderr, "lswitch monitor: stream error: %v\n", err)
		}
	}()
	defer close(stop)

	p := tea.NewProgram(tui.NewModel(client, events), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("cmd: tui: %w", err)
	}
	return nil
}
