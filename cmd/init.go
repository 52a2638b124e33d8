package cmd

import (
	"fmt"

	"grimm.is/lswitch/internal/config"
	"grimm.is/lswitch/internal/tui"
)

// starterForm holds the config.Starter fields the wizard asks about (mode,
// exact flows, max idle), with `tui:` tags driving tui.AutoForm's
// reflection; AutoForm edits the int MaxIdle through a string buffer the
// way huh.Input requires. DefaultQueue and PortQueues are not asked.
type starterForm struct {
	Mode       string `tui:"title=Mode,desc=hub floods everything; normal defers to the datapath's own L2 learning; learn runs learning in this controller,options=hub:hub,normal:normal,learn:learn"`
	ExactFlows bool   `tui:"title=Exact-match flows,desc=match every field instead of just L2/VLAN/ingress-port"`
	MaxIdle    int    `tui:"title=Flow idle timeout (seconds),desc=negative disables flow-mod installation entirely"`
}

// RunInit walks the operator through charmbracelet/huh's form and writes
// a starter HCL config to outPath. Grounded on the teacher's
// internal/setup first-run wizard, adapted from netlink/DHCP probing
// questions to this session's mode/exact-flows/max-idle questions.
func RunInit(outPath string) error {
	answers := starterForm{Mode: "learn", MaxIdle: 60}
	form, apply := tui.AutoForm(&answers)
	if err := form.Run(); err != nil {
		return fmt.Errorf("cmd: init wizard: %w", err)
	}
	if err := apply(); err != nil {
		return fmt.Errorf("cmd: init wizard: %w", err)
	}

	starter := config.Starter{
		Mode:         config.Mode(answers.Mode),
		ExactFlows:   answers.ExactFlows,
		MaxIdle:      answers.MaxIdle,
		DefaultQueue: config.NoQueue,
		PortQueues:   map[string]uint32{},
	}
	if err := config.WriteStarter(outPath, starter); err != nil {
		return fmt.Errorf("cmd: write config: %w", err)
	}
	fmt.Printf("wrote %s\n", outPath)
	return nil
}
