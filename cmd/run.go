// Package cmd implements the lswitch CLI's subcommands, dispatched from
// the root main.go the way grimm.is/glacic's main.go dispatches to its
// own cmd package: thin RunX(args) functions, no third-party CLI
// framework at this layer.
package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grimm.is/lswitch/internal/audit"
	"grimm.is/lswitch/internal/clock"
	"grimm.is/lswitch/internal/config"
	"grimm.is/lswitch/internal/logging"
	"grimm.is/lswitch/internal/lswitch"
	"grimm.is/lswitch/internal/metrics"
	"grimm.is/lswitch/internal/monitor"
	"grimm.is/lswitch/internal/oflink"
	"grimm.is/lswitch/internal/ofp"
)

// RunOptions bundles the flags "lswitch run" accepts beyond the config
// file itself.
type RunOptions struct {
	ConfigPath string
	Datapath   string // host:port of the OpenFlow datapath to dial
	Listen     string // host:port for the /status and /stream HTTP endpoints
	AuditPath  string // sqlite file for the event audit trail; "" disables it
}

// RunSwitch loads the configuration, dials the datapath, and drives the
// session loop until the process is signaled. It wires every ambient and
// domain-stack collaborator (logging, metrics, audit, the live monitor
// feed) around the single *lswitch.Switch this process owns.
//
// Spec §5 requires the session's own methods to be externally serialised
// from one caller goroutine. recvLoop below only decodes bytes off the
// link; every call into sw (HandleMessage, Run) happens from this
// function's select loop, which is the sole owner of the session for the
// life of the process.
func RunSwitch(opts RunOptions) error {
	log := logging.Default().WithComponent("cmd")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("cmd: load config: %w", err)
	}

	link, err := oflink.Dial(opts.Datapath, opts.Datapath)
	if err != nil {
		return fmt.Errorf("cmd: dial datapath: %w", err)
	}
	defer link.Close()

	clk := &clock.RealClock{}
	sw := lswitch.New(link, cfg, nil, clk, logging.Default())
	sw.SetMetrics(metrics.Get())

	hub := monitor.NewHub(clk)

	var store *audit.Store
	if opts.AuditPath != "" {
		store, err = audit.NewStore(opts.AuditPath, 0, clk)
		if err != nil {
			return fmt.Errorf("cmd: open audit store: %w", err)
		}
		defer store.Close()
	}
	// live, not hub.ForDatapath/store.ForDatapath with a tag captured at
	// construction time: the datapath id is still 0 here (the handshake
	// hasn't completed), so the notifier must read sw.DatapathID() fresh
	// on every call, after the features-reply has arrived.
	sw.SetNotifier(&liveNotifier{sw: sw, hub: hub, store: store, clock: clk})

	var shutdownHTTP func() error
	if opts.Listen != "" {
		srv := monitor.NewServer(hub, sw, logging.Default())
		httpSrv := &http.Server{Addr: opts.Listen, Handler: srv.Handler()}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WarnRL("http-serve-error", "monitor http server stopped", "err", err)
			}
		}()
		shutdownHTTP = httpSrv.Close
		log.Info("monitor endpoint listening", "addr", opts.Listen)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	msgCh := make(chan ofp.Message, 64)
	errCh := make(chan error, 1)
	go recvLoop(link, msgCh, errCh)

	nextMaintenance := time.NewTimer(time.Second)
	defer nextMaintenance.Stop()

	log.Info("session started", "datapath", opts.Datapath)
	for {
		select {
		case <-sigCh:
			log.Info("shutting down on signal")
			if shutdownHTTP != nil {
				shutdownHTTP()
			}
			return nil
		case err := <-errCh:
			return fmt.Errorf("cmd: link closed: %w", err)
		case msg := <-msgCh:
			sw.HandleMessage(msg, clk.Now())
		case <-nextMaintenance.C:
			sw.Run(clk.Now())
			if wait := sw.WaitUntil(); !wait.IsZero() {
				resetTimer(nextMaintenance, wait.Sub(clk.Now()))
			} else {
				resetTimer(nextMaintenance, time.Second)
			}
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if d <= 0 {
		d = time.Millisecond
	}
	t.Reset(d)
}

// liveNotifier fans one session event out to the monitor hub and
// (optionally) the audit trail, tagging each with sw's *current*
// datapath id rather than one captured at construction time.
type liveNotifier struct {
	sw    *lswitch.Switch
	hub   *monitor.Hub
	store *audit.Store
	clock clock.Clock
}

func (n *liveNotifier) Notify(kind string, fields map[string]any) {
	id := fmt.Sprintf("%016x", n.sw.DatapathID())
	n.hub.Publish(monitor.Event{DatapathID: id, Kind: kind, Fields: fields})
	if n.store != nil {
		_ = n.store.Write(audit.Event{Timestamp: n.clock.Now(), DatapathID: id, Kind: kind, Fields: fields})
	}
}

// recvLoop only decodes inbound bytes off link and forwards them; it
// never touches sw directly, so the session stays single-threaded per
// spec §5. Short messages (warning) and unhandled types (debug) are
// logged, rate-limited, and dropped; any other error ends the loop.
func recvLoop(link oflink.Link, out chan<- ofp.Message, errc chan<- error) {
	log := logging.Default().WithComponent("cmd")
	for {
		msg, err := link.Recv()
		switch e := err.(type) {
		case nil:
			out <- msg
		case *ofp.ErrTooShort:
			log.WarnRL("short-message", "dropping short inbound message", "type", e.Type, "want", e.Want, "got", e.Got)
		case *ofp.ErrUnknownType:
			log.DebugRL("unknown-type", "ignoring message of unhandled type", "type", e.Type)
		default:
			errc <- err
			return
		}
	}
}
