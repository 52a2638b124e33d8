package lswitch

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/lswitch/internal/clock"
	"grimm.is/lswitch/internal/config"
	"grimm.is/lswitch/internal/oflink"
	"grimm.is/lswitch/internal/ofp"
)

func mac(s string) net.HardwareAddr {
	a, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return a
}

func learnOpts() config.Options {
	return config.Options{
		Mode:         config.ModeLearn,
		ExactFlows:   false,
		MaxIdle:      60,
		DefaultQueue: config.NoQueue,
		PortQueues:   map[string]uint32{},
	}
}

func newTestSwitch(opts config.Options) (*Switch, *oflink.FakeLink) {
	link := oflink.NewFakeLink("test0")
	clk := clock.NewMockClock(time.Unix(1_700_000_000, 0))
	sw := New(link, opts, nil, clk, nil)
	return sw, link
}

func ethFrame(dst, src net.HardwareAddr) []byte {
	pkt := make([]byte, 14+20)
	copy(pkt[0:6], dst)
	copy(pkt[6:12], src)
	pkt[12] = 0x08
	pkt[13] = 0x00 // ethertype IPv4
	pkt[14] = 0x45 // version+ihl
	return pkt
}

func packetInRaw(xid uint32, inPort uint16, bufferID uint32, reason uint8, data []byte) []byte {
	m := ofp.PacketIn{BufferID: bufferID, InPort: inPort, Reason: reason, Data: data}
	body := make([]byte, ofp.PacketInFixedLen+len(data))
	// hand-encode since ofp has no inbound PacketIn encoder (not needed in
	// production; the datapath sends these, not us).
	putU32(body[0:4], m.BufferID)
	putU16(body[4:6], uint16(len(data)))
	putU16(body[6:8], m.InPort)
	body[8] = m.Reason
	copy(body[ofp.PacketInFixedLen:], data)

	raw := make([]byte, ofp.HeaderLen+len(body))
	raw[0] = 1
	raw[1] = ofp.TypePacketIn
	putU16(raw[2:4], uint16(len(raw)))
	putU32(raw[4:8], xid)
	copy(raw[ofp.HeaderLen:], body)
	return raw
}

func featuresReplyRaw(xid uint32, datapathID uint64, ports []ofp.PortDesc) []byte {
	bodyLen := ofp.FeaturesReplyFixedLen + len(ports)*ofp.PhyPortLen
	raw := make([]byte, ofp.HeaderLen+bodyLen)
	raw[0] = 1
	raw[1] = ofp.TypeFeaturesReply
	putU16(raw[2:4], uint16(len(raw)))
	putU32(raw[4:8], xid)
	body := raw[ofp.HeaderLen:]
	putU64(body[0:8], datapathID)
	off := ofp.FeaturesReplyFixedLen
	for _, p := range ports {
		putU16(body[off:off+2], p.PortNo)
		copy(body[off+2:off+8], p.HWAddr)
		copy(body[off+8:off+24], []byte(p.Name))
		off += ofp.PhyPortLen
	}
	return raw
}

func putU16(b []byte, v uint16) { b[0] = byte(v >> 8); b[1] = byte(v) }
func putU32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v >> (8 * i))
	}
}

func TestS1Handshake(t *testing.T) {
	sw, link := newTestSwitch(learnOpts())
	require.Len(t, link.Sent, 2)

	decoded, err := link.Decoded()
	require.NoError(t, err)
	require.NotNil(t, decoded[0].FeaturesRequest)
	require.NotNil(t, decoded[1].SetConfig)
	assert.Equal(t, ofp.DefaultMissSendLen, decoded[1].SetConfig.MissSendLen)

	assert.Equal(t, uint64(0), sw.DatapathID())
	raw := featuresReplyRaw(1, 0x0123456789abcdef, nil)
	sw.HandleRaw(raw, time.Now())
	assert.Equal(t, uint64(0x0123456789abcdef), sw.DatapathID())
}

func TestS2LearningAndForwarding(t *testing.T) {
	sw, link := newTestSwitch(learnOpts())
	sw.HandleRaw(featuresReplyRaw(1, 0x0123456789abcdef, nil), time.Now())
	link.Sent = nil

	src1 := mac("00:11:22:33:44:55")
	dst1 := mac("66:77:88:99:aa:bb")
	sw.HandleRaw(packetInRaw(2, 1, ofp.BufferIDNone, ofp.ReasonNoMatch, ethFrame(dst1, src1)), time.Now())

	decoded, err := link.Decoded()
	require.NoError(t, err)
	require.Len(t, decoded, 1, "learn mode must not install a flow for an unresolved flood destination")
	require.NotNil(t, decoded[0].PacketOut)
	require.Len(t, decoded[0].PacketOut.Actions, 1)
	assert.Equal(t, ofp.PortFlood, decoded[0].PacketOut.Actions[0].Output.Port)

	link.Sent = nil
	sw.HandleRaw(packetInRaw(3, 2, ofp.BufferIDNone, ofp.ReasonNoMatch, ethFrame(src1, dst1)), time.Now())

	decoded, err = link.Decoded()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(decoded), 1)
	require.NotNil(t, decoded[0].FlowMod, "flow-mod must precede any packet-out")
	assert.Len(t, decoded[0].FlowMod.Actions, 1)
	assert.Equal(t, uint16(1), decoded[0].FlowMod.Actions[0].Output.Port)
	if len(decoded) > 1 {
		assert.NotNil(t, decoded[1].PacketOut)
	}
}

func TestS3SplitHorizon(t *testing.T) {
	sw, link := newTestSwitch(learnOpts())
	sw.HandleRaw(featuresReplyRaw(1, 0x1, nil), time.Now())
	link.Sent = nil

	aa, bb, cc := mac("aa:aa:aa:aa:aa:aa"), mac("bb:bb:bb:bb:bb:bb"), mac("cc:cc:cc:cc:cc:cc")
	sw.HandleRaw(packetInRaw(2, 1, ofp.BufferIDNone, ofp.ReasonNoMatch, ethFrame(bb, aa)), time.Now())
	link.Sent = nil

	sw.HandleRaw(packetInRaw(3, 1, ofp.BufferIDNone, ofp.ReasonNoMatch, ethFrame(aa, cc)), time.Now())
	decoded, err := link.Decoded()
	require.NoError(t, err)
	for _, m := range decoded {
		assert.Nil(t, m.PacketOut, "an empty-action packet-out must never be sent")
	}
}

func TestS4QueueBindingResolution(t *testing.T) {
	opts := learnOpts()
	opts.DefaultQueue = 3
	opts.PortQueues = map[string]uint32{"eth0": 7}
	sw, link := newTestSwitch(opts)
	sw.HandleRaw(featuresReplyRaw(1, 0x1, nil), time.Now())
	link.Sent = nil

	a, b := mac("aa:aa:aa:aa:aa:aa"), mac("bb:bb:bb:bb:bb:bb")
	sw.HandleRaw(packetInRaw(2, 5, ofp.BufferIDNone, ofp.ReasonNoMatch, ethFrame(b, a)), time.Now())
	decoded, err := link.Decoded()
	require.NoError(t, err)
	require.NotNil(t, decoded[0].PacketOut)
	require.NotNil(t, decoded[0].PacketOut.Actions[0].Output)
	assert.Equal(t, uint32(3), opts.DefaultQueue)
	link.Sent = nil

	sw.HandleRaw(featuresReplyRaw(3, 0x1, []ofp.PortDesc{{PortNo: 5, Name: "eth0"}}), time.Now())
	// b is learned on port 6, so a's next frame to b from port 5 has a
	// concrete egress port instead of a flood or a split-horizon drop.
	sw.HandleRaw(packetInRaw(4, 6, ofp.BufferIDNone, ofp.ReasonNoMatch, ethFrame(a, b)), time.Now())
	link.Sent = nil

	sw.HandleRaw(packetInRaw(5, 5, ofp.BufferIDNone, ofp.ReasonNoMatch, ethFrame(b, a)), time.Now())
	decoded, err = link.Decoded()
	require.NoError(t, err)
	require.NotNil(t, decoded[0].FlowMod)
	require.Len(t, decoded[0].FlowMod.Actions, 1)
	enq := decoded[0].FlowMod.Actions[0].Enqueue
	require.NotNil(t, enq)
	assert.Equal(t, uint32(7), enq.QueueID)
}

func TestS5ReservedMulticastDropNoOutboundWhenFlowsDisabled(t *testing.T) {
	opts := learnOpts()
	opts.MaxIdle = config.NeverInstall
	sw, link := newTestSwitch(opts)
	sw.HandleRaw(featuresReplyRaw(1, 0x1, nil), time.Now())
	link.Sent = nil

	src := mac("aa:aa:aa:aa:aa:aa")
	dst := mac("01:80:c2:00:00:00")
	sw.HandleRaw(packetInRaw(2, 1, ofp.BufferIDNone, ofp.ReasonNoMatch, ethFrame(dst, src)), time.Now())
	assert.Empty(t, link.Sent)
}

func TestS6Backpressure(t *testing.T) {
	link := oflink.NewFakeLink("test0")
	clk := clock.NewMockClock(time.Unix(1_700_000_000, 0))
	opts := learnOpts()
	sw := New(link, opts, nil, clk, nil)
	sw.HandleRaw(featuresReplyRaw(1, 0x1, nil), time.Now())

	link.WouldBlock = true
	beforeID := sw.DatapathID()
	sw.HandleRaw(packetInRaw(2, 1, ofp.BufferIDNone, ofp.ReasonNoMatch,
		ethFrame(mac("bb:bb:bb:bb:bb:bb"), mac("aa:aa:aa:aa:aa:aa"))), time.Now())
	assert.Equal(t, beforeID, sw.DatapathID(), "backpressure must not change session state")

	link.WouldBlock = false
	sentBefore := len(link.Sent)
	sw.HandleRaw(packetInRaw(3, 1, ofp.BufferIDNone, ofp.ReasonNoMatch,
		ethFrame(mac("bb:bb:bb:bb:bb:bb"), mac("aa:aa:aa:aa:aa:aa"))), time.Now())
	assert.Greater(t, len(link.Sent), sentBefore, "sends resume once backpressure clears")
}

func TestUnknownDatapathNeverActsOnPacketIn(t *testing.T) {
	sw, link := newTestSwitch(learnOpts())
	link.Sent = nil

	sw.HandleRaw(packetInRaw(2, 1, ofp.BufferIDNone, ofp.ReasonNoMatch,
		ethFrame(mac("bb:bb:bb:bb:bb:bb"), mac("aa:aa:aa:aa:aa:aa"))), time.Now())

	decoded, err := link.Decoded()
	require.NoError(t, err)
	for _, m := range decoded {
		assert.Nil(t, m.FlowMod)
		assert.Nil(t, m.PacketOut)
		assert.NotNil(t, m.FeaturesRequest, "the only allowed emission while unknown is a features-request retry")
	}
}

func TestFeaturesRequestThrottledToOncePerSecond(t *testing.T) {
	sw, link := newTestSwitch(learnOpts())
	link.Sent = nil

	now := time.Now()
	sw.HandleRaw(packetInRaw(2, 1, ofp.BufferIDNone, ofp.ReasonNoMatch, []byte{}), now)
	sw.HandleRaw(packetInRaw(3, 1, ofp.BufferIDNone, ofp.ReasonNoMatch, []byte{}), now.Add(100*time.Millisecond))
	assert.Len(t, link.Sent, 1, "a second retry within one second must be suppressed")

	sw.HandleRaw(packetInRaw(4, 1, ofp.BufferIDNone, ofp.ReasonNoMatch, []byte{}), now.Add(1100*time.Millisecond))
	assert.Len(t, link.Sent, 2, "after one second, a retry is allowed again")
}

func TestEchoRequestRoundTrip(t *testing.T) {
	sw, link := newTestSwitch(learnOpts())
	link.Sent = nil

	payload := []byte("arbitrary-payload")
	raw := make([]byte, ofp.HeaderLen+len(payload))
	raw[0] = 1
	raw[1] = ofp.TypeEchoRequest
	putU16(raw[2:4], uint16(len(raw)))
	putU32(raw[4:8], 0xdeadbeef)
	copy(raw[ofp.HeaderLen:], payload)

	sw.HandleRaw(raw, time.Now())
	decoded, err := link.Decoded()
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.NotNil(t, decoded[0].EchoReply)
	assert.Equal(t, uint32(0xdeadbeef), decoded[0].EchoReply.Xid)
	assert.Equal(t, payload, decoded[0].EchoReply.Data)
}

func TestDefaultFlowsSentVerbatimAtConstruction(t *testing.T) {
	flow := ofp.EncodeFlowMod(ofp.FlowMod{Xid: 99, Command: ofp.FlowModAdd})
	opts := learnOpts()
	opts.DefaultFlows = [][]byte{flow}
	_, link := newTestSwitch(opts)
	require.Len(t, link.Sent, 3)
	assert.Equal(t, flow, link.Sent[2])
}

func TestTooShortMessageDropsWithoutStateChange(t *testing.T) {
	sw, link := newTestSwitch(learnOpts())
	link.Sent = nil
	sw.HandleRaw([]byte{1, ofp.TypeFeaturesReply, 0, 4, 0, 0, 0, 1}, time.Now())
	assert.Equal(t, uint64(0), sw.DatapathID())
	assert.Empty(t, link.Sent)
}

func TestRunAndWaitUntilDelegateToTable(t *testing.T) {
	sw, _ := newTestSwitch(learnOpts())
	assert.True(t, sw.WaitUntil().IsZero())
	sw.Run(time.Now()) // must not panic with an empty table
}
