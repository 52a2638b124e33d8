// Package lswitch implements the per-datapath session state machine
// (handshake, echo liveness, dispatch) and the packet-in handler that
// combines the queue-binding table and the output-policy engine into
// flow-mod/packet-out decisions. This is the generalized `struct
// lswitch` from the original Open vSwitch learning switch.
package lswitch

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"grimm.is/lswitch/internal/clock"
	"grimm.is/lswitch/internal/config"
	"grimm.is/lswitch/internal/flowkey"
	"grimm.is/lswitch/internal/logging"
	"grimm.is/lswitch/internal/mactable"
	"grimm.is/lswitch/internal/monitor"
	"grimm.is/lswitch/internal/oflink"
	"grimm.is/lswitch/internal/ofp"
	"grimm.is/lswitch/internal/policy"
	"grimm.is/lswitch/internal/queuebind"
)

// MetricsSink receives counter/gauge updates; nil-safe (a Switch with no
// sink simply doesn't record anything).
type MetricsSink interface {
	PacketIn()
	StationLearned()
	StationMoved()
	FlowInstalled()
	PacketOutSent()
	BackpressureDrop()
	MacTableSize(n int)
}

// Notifier receives discrete session events for the live status feed
// (internal/monitor) and/or the audit trail (internal/audit). Both are
// optional; a Switch with Notifier == nil runs identically, just quieter.
type Notifier interface {
	Notify(kind string, fields map[string]any)
}

// Switch is one session, owned exclusively by the caller that constructed
// it. All its exported methods are meant to be called from a single
// goroutine: cooperative, no locks inside.
type Switch struct {
	link      oflink.Link
	opts      config.Options
	extractor flowkey.Extractor
	clock     clock.Clock
	log       *logging.Logger
	metrics   MetricsSink
	notify    Notifier

	datapathID      uint64
	lastFeaturesReq time.Time
	xid             uint32

	wildcards uint32
	table     *mactable.Table // nil in hub/normal modes
	queues    *queuebind.Table
}

// New constructs a session: it seeds the queue-binding table from
// opts.PortQueues, creates the MAC learning table iff mode is learn, and
// immediately emits FEATURES_REQUEST, SET_CONFIG, and every entry of
// opts.DefaultFlows verbatim, in that order, through the same
// backpressure-checked send path as any other outbound message.
func New(link oflink.Link, opts config.Options, extractor flowkey.Extractor, clk clock.Clock, log *logging.Logger) *Switch {
	if extractor == nil {
		extractor = flowkey.Default{}
	}
	if clk == nil {
		clk = &clock.RealClock{}
	}
	if log == nil {
		log = logging.Default()
	}

	s := &Switch{
		link:      link,
		opts:      opts,
		extractor: extractor,
		clock:     clk,
		log:       log.WithComponent("lswitch").WithFields(map[string]any{"link": link.Name()}),
		queues:    queuebind.New(opts.DefaultQueue),
		wildcards: wildcardsFor(opts.ExactFlows),
	}
	for name, q := range opts.PortQueues {
		s.queues.Bind(name, q)
	}
	if opts.Mode == config.ModeLearn {
		s.table = mactable.New()
	}

	now := s.clock.Now()
	s.sendFeaturesRequest(now)
	s.queueTx(ofp.EncodeSetConfig(ofp.SetConfig{Xid: s.nextXid(), MissSendLen: ofp.DefaultMissSendLen}))
	for _, raw := range opts.DefaultFlows {
		s.queueTx(raw)
	}
	return s
}

// SetMetrics attaches a metrics sink after construction.
func (s *Switch) SetMetrics(m MetricsSink) { s.metrics = m }

// SetNotifier attaches an event notifier after construction.
func (s *Switch) SetNotifier(n Notifier) { s.notify = n }

// DatapathID reports the session's known datapath id, or 0 if the
// handshake hasn't completed.
func (s *Switch) DatapathID() uint64 { return s.datapathID }

// Status implements monitor.StatusProvider, giving a freshly attached
// dashboard a snapshot to paint before the first event arrives.
func (s *Switch) Status() monitor.Status {
	macSize := 0
	if s.table != nil {
		macSize = s.table.Len()
	}
	return monitor.Status{
		DatapathID:   fmt.Sprintf("%016x", s.datapathID),
		Mode:         string(s.opts.Mode),
		LinkName:     s.link.Name(),
		MacTableSize: macSize,
	}
}

func wildcardsFor(exact bool) uint32 {
	if exact {
		return ofp.ExactMatchWildcards
	}
	return ofp.DefaultWildcards
}

func (s *Switch) nextXid() uint32 { return atomic.AddUint32(&s.xid, 1) }

// HandleRaw decodes raw wire bytes and dispatches them. Short/unknown
// messages are logged (rate-limited) and dropped without state change.
func (s *Switch) HandleRaw(raw []byte, now time.Time) {
	msg, err := ofp.Decode(raw)
	if err != nil {
		switch e := err.(type) {
		case *ofp.ErrTooShort:
			s.log.WarnRL("short-message", "dropping short inbound message", "type", e.Type, "want", e.Want, "got", e.Got)
		case *ofp.ErrUnknownType:
			s.log.DebugRL("unknown-type", "ignoring message of unhandled type", "type", e.Type)
		default:
			s.log.WarnRL("decode-error", "dropping undecodable message", "err", err)
		}
		return
	}
	s.HandleMessage(msg, now)
}

// HandleMessage dispatches one already-decoded inbound message. Echo-
// request and features-reply are handled regardless of session state;
// everything else only fires its real handler once datapathID is known —
// before that, any other message just triggers a throttled
// features-request retry and is otherwise ignored.
func (s *Switch) HandleMessage(msg ofp.Message, now time.Time) {
	switch {
	case msg.EchoRequest != nil:
		s.handleEchoRequest(msg.Header.Xid, msg.EchoRequest)
	case msg.FeaturesReply != nil:
		s.handleFeaturesReply(msg.FeaturesReply)
	case s.datapathID == 0:
		s.sendFeaturesRequest(now)
	case msg.PacketIn != nil:
		s.handlePacketIn(msg.PacketIn, now)
	case msg.FlowRemoved != nil:
		// accepted silently, forward-compatibility only
	default:
		s.log.DebugRL("unhandled", "ignoring dispatched message", "type", msg.Header.Type)
	}
}

// Run performs opportunistic MAC table maintenance (aging, eviction).
func (s *Switch) Run(now time.Time) {
	if s.table == nil {
		return
	}
	s.table.Run(now)
	if s.metrics != nil {
		s.metrics.MacTableSize(s.table.Len())
	}
}

// WaitUntil returns the earliest time the session wants Run called
// again, or the zero time if there's nothing to do.
func (s *Switch) WaitUntil() time.Time {
	if s.table == nil {
		return time.Time{}
	}
	return s.table.WaitUntil()
}

// Close releases the session's sub-tables and the underlying link.
func (s *Switch) Close() error {
	s.table = nil
	s.queues = nil
	return s.link.Close()
}

func (s *Switch) sendFeaturesRequest(now time.Time) {
	if !s.lastFeaturesReq.IsZero() && now.Sub(s.lastFeaturesReq) < config.HandshakeTimeout {
		return
	}
	s.lastFeaturesReq = now
	s.queueTx(ofp.EncodeFeaturesRequest(ofp.FeaturesRequest{Xid: s.nextXid()}))
}

func (s *Switch) handleEchoRequest(xid uint32, er *ofp.EchoRequest) {
	s.queueTx(ofp.EncodeEchoReply(ofp.EchoReply{Xid: xid, Data: er.Data}))
}

func (s *Switch) handleFeaturesReply(fr *ofp.FeaturesReply) {
	wasUnknown := s.datapathID == 0
	s.datapathID = fr.DatapathID
	for _, p := range fr.Ports {
		s.queues.Resolve(p.Name, p.PortNo)
	}
	if wasUnknown && s.datapathID != 0 {
		s.log = s.log.WithFields(map[string]any{"datapath_id": fmt.Sprintf("%016x", s.datapathID)})
	}
	if wasUnknown && s.datapathID != 0 && s.notify != nil {
		s.notify.Notify("handshake-complete", map[string]any{
			"datapath_id": fmt.Sprintf("%016x", s.datapathID),
			"ports":       len(fr.Ports),
		})
	}
}

// --- component E: packet-in handling ---

func (s *Switch) handlePacketIn(pi *ofp.PacketIn, now time.Time) {
	if pi.Reason != ofp.ReasonNoMatch {
		// the datapath sent this because another controller's action
		// asked it to; don't interfere.
		return
	}
	if s.metrics != nil {
		s.metrics.PacketIn()
	}

	key, err := s.extractor.Extract(pi.InPort, pi.Data)
	if err != nil {
		s.log.DebugRL("extract-error", "dropping packet-in with unparsable packet", "err", err)
		return
	}

	mode := policyModeOf(s.opts.Mode)
	lenBefore := 0
	if s.table != nil {
		lenBefore = s.table.Len()
	}
	outPort := policy.Resolve(mode, s.table, pi.InPort, key.DlSrc, key.DlDst, key.DlVlan, now, s.onMove)
	if s.table != nil && s.metrics != nil && s.table.Len() > lenBefore {
		s.metrics.StationLearned()
	}

	queueID := s.queues.QueueFor(pi.InPort) // queued against the ingress port, intentionally
	actions := buildActions(outPort, queueID)

	if s.shouldInstallFlow(mode, outPort) {
		fm := s.buildFlowMod(pi, key, actions)
		s.queueTx(ofp.EncodeFlowMod(fm))
		if s.metrics != nil {
			s.metrics.FlowInstalled()
		}
		if s.notify != nil {
			s.notify.Notify("flow-installed", map[string]any{"in_port": pi.InPort, "out_port": outPort})
		}
		if pi.BufferID == ofp.BufferIDNone && len(actions) > 0 {
			s.emitPacketOut(pi, actions, true)
		}
		return
	}

	if pi.BufferID != ofp.BufferIDNone || len(actions) > 0 {
		s.emitPacketOut(pi, actions, pi.BufferID == ofp.BufferIDNone)
	}
}

func (s *Switch) onMove(addr net.HardwareAddr, vlan uint16, inPort uint16) {
	s.log.InfoRL("station-move", "station moved", "addr", addr.String(), "vlan", vlan, "in_port", inPort)
	if s.metrics != nil {
		s.metrics.StationMoved()
	}
	if s.notify != nil {
		s.notify.Notify("station-moved", map[string]any{
			"addr": addr.String(), "vlan": vlan, "in_port": inPort,
		})
	}
}

func (s *Switch) emitPacketOut(pi *ofp.PacketIn, actions []ofp.Action, includeData bool) {
	po := ofp.PacketOut{
		Xid:      s.nextXid(),
		BufferID: pi.BufferID,
		InPort:   pi.InPort,
		Actions:  actions,
	}
	if includeData {
		po.Data = pi.Data
	}
	s.queueTx(ofp.EncodePacketOut(po))
	if s.metrics != nil {
		s.metrics.PacketOutSent()
	}
}

// shouldInstallFlow decides whether to push a flow-mod for this packet-in:
// install when flows are enabled at all, and — when learning — only once
// the destination is known (a flood installed while learning would
// starve a later packet-in needed to learn the real destination port).
func (s *Switch) shouldInstallFlow(mode policy.Mode, outPort uint16) bool {
	if s.opts.MaxIdle < 0 {
		return false
	}
	if mode == policy.ModeLearn && outPort == ofp.PortFlood {
		return false
	}
	return true
}

// buildActions turns a resolved output port and queue id into the action
// list for a flow-mod or packet-out: no action for PortNone, OUTPUT when
// there's no queue bound or the port is a reserved one (>= PortMax),
// ENQUEUE otherwise.
func buildActions(outPort uint16, queueID uint32) []ofp.Action {
	if outPort == ofp.PortNone {
		return nil
	}
	if queueID == ofp.QueueIDNone || outPort >= ofp.PortMax {
		return []ofp.Action{{Output: &ofp.ActionOutput{Port: outPort}}}
	}
	return []ofp.Action{{Enqueue: &ofp.ActionEnqueue{Port: outPort, QueueID: queueID}}}
}

func (s *Switch) buildFlowMod(pi *ofp.PacketIn, key flowkey.Key, actions []ofp.Action) ofp.FlowMod {
	idle := uint16(s.opts.MaxIdle)
	if s.opts.MaxIdle == config.PermanentFlow {
		idle = 0 // OFP_FLOW_PERMANENT
	}
	return ofp.FlowMod{
		Xid:         s.nextXid(),
		Match:       matchFor(pi.InPort, key, s.wildcards),
		Command:     ofp.FlowModAdd,
		IdleTimeout: idle,
		BufferID:    pi.BufferID,
		OutPort:     ofp.PortNone,
		Actions:     actions,
	}
}

func matchFor(inPort uint16, key flowkey.Key, wildcards uint32) ofp.Match {
	return ofp.Match{
		Wildcards: wildcards,
		InPort:    inPort,
		DlSrc:     key.DlSrc,
		DlDst:     key.DlDst,
		DlVlan:    key.DlVlan,
		DlVlanPcp: key.DlVlanPcp,
		DlType:    key.DlType,
		NwTos:     key.NwTos,
		NwProto:   key.NwProto,
		NwSrc:     key.NwSrc,
		NwDst:     key.NwDst,
		TpSrc:     key.TpSrc,
		TpDst:     key.TpDst,
	}
}

func policyModeOf(m config.Mode) policy.Mode {
	switch m {
	case config.ModeHub:
		return policy.ModeHub
	case config.ModeNormal:
		return policy.ModeNormal
	default:
		return policy.ModeLearn
	}
}

// queueTx is the single choke point for outbound sends. WOULD_BLOCK is
// logged at info and dropped, NOT_CONNECTED is silent, anything else is
// a warning.
func (s *Switch) queueTx(raw []byte) {
	err := s.link.Send(raw)
	if err == nil {
		return
	}
	switch err {
	case oflink.ErrWouldBlock:
		s.log.InfoRL("backpressure", "link would block, dropping outbound message")
		if s.metrics != nil {
			s.metrics.BackpressureDrop()
		}
		if s.notify != nil {
			s.notify.Notify("backpressure-drop", nil)
		}
	case oflink.ErrNotConnected:
		// silent: the link isn't up yet, nothing new to report
	default:
		s.log.WarnRL("send-error", "failed to send outbound message", "err", err)
	}
}
