package ofp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTooShortHeader(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	require.Error(t, err)
	var tooShort *ErrTooShort
	require.ErrorAs(t, err, &tooShort)
}

func TestDecodeEchoRequestRoundTrip(t *testing.T) {
	raw := header(TypeEchoRequest, 42, 3)
	raw = append(raw, []byte("hey")...)

	msg, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, msg.EchoRequest)
	assert.Equal(t, uint32(42), msg.Header.Xid)
	assert.Equal(t, []byte("hey"), msg.EchoRequest.Data)
}

func TestDecodePacketInTooShortForReason(t *testing.T) {
	raw := header(TypePacketIn, 1, 4)
	raw = append(raw, []byte{0, 0, 0, 0}...)

	_, err := Decode(raw)
	require.Error(t, err)
	var tooShort *ErrTooShort
	require.ErrorAs(t, err, &tooShort)
	assert.Equal(t, TypePacketIn, tooShort.Type)
}

func TestDecodePacketInBody(t *testing.T) {
	body := make([]byte, PacketInFixedLen)
	body[0], body[1], body[2], body[3] = 0xff, 0xff, 0xff, 0xff // buffer_id = BufferIDNone
	body[4], body[5] = 0x00, 0x40                                // total_len = 64
	body[6], body[7] = 0x00, 0x03                                // in_port = 3
	body[8] = ReasonNoMatch
	payload := []byte{0xde, 0xad, 0xbe, 0xef}

	raw := header(TypePacketIn, 7, len(body)+len(payload))
	raw = append(raw, body...)
	raw = append(raw, payload...)

	msg, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, msg.PacketIn)
	assert.Equal(t, BufferIDNone, msg.PacketIn.BufferID)
	assert.Equal(t, uint16(64), msg.PacketIn.TotalLen)
	assert.Equal(t, uint16(3), msg.PacketIn.InPort)
	assert.Equal(t, ReasonNoMatch, msg.PacketIn.Reason)
	assert.Equal(t, payload, msg.PacketIn.Data)
}

func TestDecodeFeaturesReplyWithPorts(t *testing.T) {
	body := make([]byte, FeaturesReplyFixedLen)
	body[7] = 1 // datapath_id low byte, arbitrary nonzero
	body[12] = 2 // n_tables

	port := make([]byte, PhyPortLen)
	port[1] = 1 // port_no = 1
	copy(port[2:8], []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff})
	copy(port[8:24], []byte("eth0"))

	raw := header(TypeFeaturesReply, 5, len(body)+len(port))
	raw = append(raw, body...)
	raw = append(raw, port...)

	msg, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, msg.FeaturesReply)
	assert.Equal(t, uint8(2), msg.FeaturesReply.NTables)
	require.Len(t, msg.FeaturesReply.Ports, 1)
	assert.Equal(t, uint16(1), msg.FeaturesReply.Ports[0].PortNo)
	assert.Equal(t, "eth0", msg.FeaturesReply.Ports[0].Name)
	assert.Equal(t, net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, msg.FeaturesReply.Ports[0].HWAddr)
}

func TestEncodeFlowModDecodesBackViaLoopback(t *testing.T) {
	fm := FlowMod{
		Xid:     9,
		Match:   Match{Wildcards: DefaultWildcards, InPort: 1, DlSrc: mac(t, "aa:aa:aa:aa:aa:aa"), DlDst: mac(t, "bb:bb:bb:bb:bb:bb")},
		Command: FlowModAdd,
		IdleTimeout: 60,
		BufferID:    BufferIDNone,
		OutPort:     2,
		Actions:     []Action{{Output: &ActionOutput{Port: 2}}},
	}

	raw := EncodeFlowMod(fm)
	msg, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, msg.FlowMod)
	assert.Equal(t, fm.Xid, msg.FlowMod.Xid)
	assert.Equal(t, fm.Match.Wildcards, msg.FlowMod.Match.Wildcards)
	assert.Equal(t, fm.Match.InPort, msg.FlowMod.Match.InPort)
	assert.Equal(t, fm.BufferID, msg.FlowMod.BufferID)
	require.Len(t, msg.FlowMod.Actions, 1)
	require.NotNil(t, msg.FlowMod.Actions[0].Output)
	assert.Equal(t, uint16(2), msg.FlowMod.Actions[0].Output.Port)
}

func TestEncodePacketOutDecodesBackViaLoopback(t *testing.T) {
	po := PacketOut{
		Xid:      11,
		BufferID: BufferIDNone,
		InPort:   PortController,
		Actions:  []Action{{Enqueue: &ActionEnqueue{Port: 3, QueueID: 1}}},
		Data:     []byte{1, 2, 3, 4},
	}

	raw := EncodePacketOut(po)
	msg, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, msg.PacketOut)
	assert.Equal(t, po.Data, msg.PacketOut.Data)
	require.Len(t, msg.PacketOut.Actions, 1)
	require.NotNil(t, msg.PacketOut.Actions[0].Enqueue)
	assert.Equal(t, uint32(1), msg.PacketOut.Actions[0].Enqueue.QueueID)
}

func TestDecodeUnknownTypeReturnsError(t *testing.T) {
	raw := header(TypeHello, 1, 0)
	_, err := Decode(raw)
	require.Error(t, err)
	var unknown *ErrUnknownType
	require.ErrorAs(t, err, &unknown)
}

func mac(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	a, err := net.ParseMAC(s)
	require.NoError(t, err)
	return a
}
