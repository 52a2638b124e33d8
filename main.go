package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/lswitch/cmd"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runFlags := flag.NewFlagSet("run", flag.ExitOnError)
		configFile := runFlags.String("config", "lswitch.hcl", "session configuration file")
		datapath := runFlags.String("datapath", "", "host:port of the OpenFlow datapath to dial")
		listen := runFlags.String("listen", "127.0.0.1:6680", "host:port for the /status and /stream monitor endpoints ('' disables them)")
		auditPath := runFlags.String("audit-db", "", "sqlite path for the session event audit trail ('' disables it)")
		runFlags.Parse(os.Args[2:])

		if *datapath == "" {
			fmt.Fprintln(os.Stderr, "run: -datapath is required")
			os.Exit(1)
		}

		if err := cmd.RunSwitch(cmd.RunOptions{
			ConfigPath: *configFile,
			Datapath:   *datapath,
			Listen:     *listen,
			AuditPath:  *auditPath,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "run: %v\n", err)
			os.Exit(1)
		}

	case "monitor":
		monitorFlags := flag.NewFlagSet("monitor", flag.ExitOnError)
		addr := monitorFlags.String("addr", "127.0.0.1:6680", "host:port of a running instance's monitor endpoint")
		monitorFlags.Parse(os.Args[2:])

		if err := cmd.RunMonitor(*addr); err != nil {
			fmt.Fprintf(os.Stderr, "monitor: %v\n", err)
			os.Exit(1)
		}

	case "init":
		initFlags := flag.NewFlagSet("init", flag.ExitOnError)
		outPath := initFlags.String("out", "lswitch.hcl", "path to write the starter configuration")
		initFlags.Parse(os.Args[2:])

		if err := cmd.RunInit(*outPath); err != nil {
			fmt.Fprintf(os.Stderr, "init: %v\n", err)
			os.Exit(1)
		}

	case "-h", "-help", "--help", "help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "lswitch: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`lswitch - OpenFlow 1.0 learning-switch controller

Usage:
  lswitch run -datapath host:port -config lswitch.hcl   run a session against a datapath
  lswitch monitor -addr host:port                       attach the live TUI dashboard
  lswitch init -out lswitch.hcl                          interactively write a starter config`)
}
