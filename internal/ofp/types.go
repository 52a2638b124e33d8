package ofp

import "net"

// Header is the 8-byte OpenFlow message header common to every message.
type Header struct {
	Version uint8
	Type    uint8
	Length  uint16
	Xid     uint32
}

// Message is the decoded form of any inbound message this controller
// handles. Exactly one of the typed fields is non-nil, selected by
// Header.Type.
type Message struct {
	Header       Header
	EchoRequest  *EchoRequest
	FeaturesReply *FeaturesReply
	PacketIn     *PacketIn
	FlowRemoved  *FlowRemoved

	// The remaining fields are populated only by Decode when handed one
	// of this controller's own outbound message types (a loopback test
	// fixture, or FakeLink.Decoded() in tests asserting on what the
	// session sent). The live dispatch path (4.D) never sees these.
	EchoReply       *EchoReply
	FeaturesRequest *FeaturesRequest
	SetConfig       *SetConfig
	PacketOut       *PacketOut
	FlowMod         *FlowMod
}

// EchoRequest carries an arbitrary payload that must be echoed back
// unchanged in the reply.
type EchoRequest struct {
	Data []byte
}

// PortDesc is one ofp_phy_port entry from a features-reply.
type PortDesc struct {
	PortNo  uint16
	HWAddr  net.HardwareAddr
	Name    string
	Config  uint32
	State   uint32
	Curr    uint32
	Advertised uint32
	Supported  uint32
	Peer       uint32
}

// FeaturesReply is the fixed prefix of ofp_switch_features plus the
// variable-length port list.
type FeaturesReply struct {
	DatapathID uint64
	NBuffers   uint32
	NTables    uint8
	Capabilities uint32
	Actions      uint32
	Ports        []PortDesc
}

// Match is the 40-byte ofp_match flow-matching structure.
type Match struct {
	Wildcards uint32
	InPort    uint16
	DlSrc     net.HardwareAddr
	DlDst     net.HardwareAddr
	DlVlan    uint16
	DlVlanPcp uint8
	DlType    uint16
	NwTos     uint8
	NwProto   uint8
	NwSrc     uint32
	NwDst     uint32
	TpSrc     uint16
	TpDst     uint16
}

// PacketIn is the decoded fixed prefix (header + 4+2+2+1+1 = 18 bytes)
// plus the trailing raw packet bytes.
type PacketIn struct {
	BufferID uint32
	TotalLen uint16
	InPort   uint16
	Reason   uint8
	Data     []byte
}

// FlowRemoved is accepted and discarded (no field is currently consumed),
// kept as a distinct type for forward-compatibility and so the dispatch
// table has somewhere to route it.
type FlowRemoved struct {
	Match Match
	Cookie uint64
}

// --- outbound messages ---

// EchoReply echoes an EchoRequest's xid and payload.
type EchoReply struct {
	Xid  uint32
	Data []byte
}

// FeaturesRequest has no body beyond the header.
type FeaturesRequest struct {
	Xid uint32
}

// SetConfig carries the miss-send length the datapath should use when
// cloning unmatched packets to the controller.
type SetConfig struct {
	Xid         uint32
	Flags       uint16
	MissSendLen uint16
}

// Action is the tagged union of the two action kinds this controller
// emits.
type Action struct {
	Output  *ActionOutput
	Enqueue *ActionEnqueue
}

// ActionOutput sends the packet out Port, optionally truncated to MaxLen
// bytes when headed to the controller (0 = no truncation for any other
// port).
type ActionOutput struct {
	Port   uint16
	MaxLen uint16
}

// ActionEnqueue sends the packet out Port via the traffic queue QueueID.
type ActionEnqueue struct {
	Port    uint16
	QueueID uint32
}

// PacketOut asks the datapath to emit a packet, either a previously
// buffered one (BufferID != BufferIDNone) or inline bytes.
type PacketOut struct {
	Xid      uint32
	BufferID uint32
	InPort   uint16
	Actions  []Action
	Data     []byte
}

// FlowMod installs or modifies a flow entry.
type FlowMod struct {
	Xid         uint32
	Match       Match
	Cookie      uint64
	Command     uint16
	IdleTimeout uint16
	HardTimeout uint16
	Priority    uint16
	BufferID    uint32
	OutPort     uint16
	Flags       uint16
	Actions     []Action
}
