// Package ofp implements the closed subset of OpenFlow 1.0 message framing
// this controller speaks: decoding inbound bytes into a typed Message,
// encoding outbound Messages back to wire bytes, and enforcing the
// minimum-length guarantee for each message type at decode time so nothing
// upstream of this package ever has to reason about wire offsets.
package ofp

// Message type codes, OpenFlow 1.0 wire values.
const (
	TypeHello          uint8 = 0
	TypeError          uint8 = 1
	TypeEchoRequest    uint8 = 2
	TypeEchoReply      uint8 = 3
	TypeVendor         uint8 = 4
	TypeFeaturesRequest uint8 = 5
	TypeFeaturesReply  uint8 = 6
	TypeGetConfigRequest uint8 = 7
	TypeGetConfigReply uint8 = 8
	TypeSetConfig      uint8 = 9
	TypePacketIn       uint8 = 10
	TypeFlowRemoved    uint8 = 11
	TypePortStatus     uint8 = 12
	TypePacketOut      uint8 = 13
	TypeFlowMod        uint8 = 14
)

// Reserved port numbers.
const (
	PortMax        uint16 = 0xff00
	PortInPort     uint16 = 0xfff8
	PortTable      uint16 = 0xfff9
	PortNormal     uint16 = 0xfffa
	PortFlood      uint16 = 0xfffb
	PortAll        uint16 = 0xfffc
	PortController uint16 = 0xfffd
	PortLocal      uint16 = 0xfffe
	PortNone       uint16 = 0xffff
)

// Buffer id sentinel meaning "packet bytes are included inline".
const BufferIDNone uint32 = 0xffffffff

// Queue id sentinel meaning "no specific queue".
const QueueIDNone uint32 = 0xffffffff

// OFP_DEFAULT_MISS_SEND_LEN, the byte count requested via SET_CONFIG so the
// datapath sends enough of each unmatched packet for flow extraction.
const DefaultMissSendLen uint16 = 128

// Wildcard mask bits (ofp_flow_wildcards).
const (
	WildcardInPort  uint32 = 1 << 0
	WildcardDlVlan  uint32 = 1 << 1
	WildcardDlSrc   uint32 = 1 << 2
	WildcardDlDst   uint32 = 1 << 3
	WildcardDlType  uint32 = 1 << 4
	WildcardNwProto uint32 = 1 << 5
	WildcardTpSrc   uint32 = 1 << 6
	WildcardTpDst   uint32 = 1 << 7

	nwSrcShift uint32 = 8
	nwSrcBits  uint32 = 6
	nwSrcMask  uint32 = ((1 << nwSrcBits) - 1) << nwSrcShift
	nwSrcAll   uint32 = 32 << nwSrcShift

	nwDstShift uint32 = 14
	nwDstBits  uint32 = 6
	nwDstMask  uint32 = ((1 << nwDstBits) - 1) << nwDstShift
	nwDstAll   uint32 = 32 << nwDstShift

	WildcardDlVlanPcp uint32 = 1 << 20
	WildcardNwTos     uint32 = 1 << 21

	WildcardAll uint32 = (1 << 22) - 1
)

// ExactMatchWildcards matches every field (exact_flows = true).
const ExactMatchWildcards uint32 = 0

// DefaultWildcards is the mask used when exact_flows = false: match on L2
// addresses, VLAN, and ingress port only, wildcarding everything else
// (dl_type, the full nw_src/nw_dst ranges, nw_proto, tp_src, tp_dst).
const DefaultWildcards uint32 = WildcardDlType | nwSrcAll | nwDstAll | WildcardNwProto | WildcardTpSrc | WildcardTpDst

// Packet-in reasons.
const (
	ReasonNoMatch uint8 = 0
	ReasonAction  uint8 = 1
)

// Flow-mod commands.
const (
	FlowModAdd uint16 = 0
)

// Action types.
const (
	ActionTypeOutput  uint16 = 0
	ActionTypeEnqueue uint16 = 11
)

// Fixed-size wire layouts, in bytes.
const (
	HeaderLen         = 8
	MatchLen          = 40
	ActionOutputLen   = 8
	ActionEnqueueLen  = 16
	PhyPortLen        = 48
	FeaturesReplyFixedLen = 24 // datapath_id(8)+n_buffers(4)+n_tables(1)+pad(3)+capabilities(4)+actions(4), after header
	SetConfigLen      = 4 // flags + miss_send_len, after header
	PacketOutFixedLen = 8 // buffer_id + in_port + actions_len, after header
	FlowModFixedLen   = MatchLen + 8 + 2 + 2 + 2 + 2 + 4 + 2 + 2 // after header
	FlowRemovedFixedLen = MatchLen + 8 + 2 + 1 + 1 + 4 + 4 + 2 + 2 + 8 + 8 // after header
	PacketInFixedLen  = 4 + 2 + 2 + 1 + 1 // after header: buffer_id, total_len, in_port, reason, pad
)

// MinLen returns the minimum total wire length (including the 8-byte
// header) a message of the given inbound type must have to be decodable,
// or false if typ is not one of the inbound types this controller handles.
func MinLen(typ uint8) (int, bool) {
	switch typ {
	case TypeEchoRequest:
		return HeaderLen, true
	case TypeFeaturesReply:
		return HeaderLen + FeaturesReplyFixedLen, true
	case TypePacketIn:
		return HeaderLen + PacketInFixedLen, true
	case TypeFlowRemoved:
		return HeaderLen + FlowRemovedFixedLen, true
	default:
		return 0, false
	}
}
