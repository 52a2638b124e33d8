package ofp

import (
	"encoding/binary"
	"fmt"
	"net"
)

// ErrTooShort is returned by Decode when raw is shorter than MinLen for its
// declared type. The session's dispatch treats this as a rate-limited
// warning-and-drop disposition; it never recomputes wire offsets itself.
type ErrTooShort struct {
	Type uint8
	Want int
	Got  int
}

func (e *ErrTooShort) Error() string {
	return fmt.Sprintf("ofp: message type %d too short: want %d bytes, got %d", e.Type, e.Want, e.Got)
}

// ErrUnknownType is returned by Decode for an inbound type this controller
// does not dispatch on. Callers log it and drop the message.
type ErrUnknownType struct {
	Type uint8
}

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("ofp: unhandled message type %d", e.Type)
}

// Decode parses the header and, for the four inbound types this controller
// understands, the typed body. Length guarantees are enforced here so
// nothing upstream reasons about wire offsets.
func Decode(raw []byte) (Message, error) {
	if len(raw) < HeaderLen {
		return Message{}, &ErrTooShort{Want: HeaderLen, Got: len(raw)}
	}
	hdr := Header{
		Version: raw[0],
		Type:    raw[1],
		Length:  binary.BigEndian.Uint16(raw[2:4]),
		Xid:     binary.BigEndian.Uint32(raw[4:8]),
	}

	want, known := MinLen(hdr.Type)
	if !known {
		return decodeOutbound(hdr, raw)
	}
	if len(raw) < want {
		return Message{Header: hdr}, &ErrTooShort{Type: hdr.Type, Want: want, Got: len(raw)}
	}

	msg := Message{Header: hdr}
	body := raw[HeaderLen:]
	switch hdr.Type {
	case TypeEchoRequest:
		msg.EchoRequest = &EchoRequest{Data: append([]byte(nil), body...)}
	case TypeFeaturesReply:
		fr, err := decodeFeaturesReply(body)
		if err != nil {
			return msg, err
		}
		msg.FeaturesReply = &fr
	case TypePacketIn:
		pi, err := decodePacketIn(body)
		if err != nil {
			return msg, err
		}
		msg.PacketIn = &pi
	case TypeFlowRemoved:
		msg.FlowRemoved = &FlowRemoved{}
	}
	return msg, nil
}

// decodeOutbound decodes this controller's own outbound message types.
// These are never received over the wire in production (the dispatch
// table in 4.D only handles the four inbound types), but tests decode a
// FakeLink's captured Sent bytes back into a Message to assert on them.
func decodeOutbound(hdr Header, raw []byte) (Message, error) {
	msg := Message{Header: hdr}
	body := raw[HeaderLen:]
	switch hdr.Type {
	case TypeEchoReply:
		msg.EchoReply = &EchoReply{Xid: hdr.Xid, Data: append([]byte(nil), body...)}
	case TypeFeaturesRequest:
		msg.FeaturesRequest = &FeaturesRequest{Xid: hdr.Xid}
	case TypeSetConfig:
		if len(body) < SetConfigLen {
			return msg, &ErrTooShort{Type: hdr.Type, Want: HeaderLen + SetConfigLen, Got: len(raw)}
		}
		msg.SetConfig = &SetConfig{
			Xid:         hdr.Xid,
			Flags:       binary.BigEndian.Uint16(body[0:2]),
			MissSendLen: binary.BigEndian.Uint16(body[2:4]),
		}
	case TypePacketOut:
		if len(body) < PacketOutFixedLen {
			return msg, &ErrTooShort{Type: hdr.Type, Want: HeaderLen + PacketOutFixedLen, Got: len(raw)}
		}
		bufferID := binary.BigEndian.Uint32(body[0:4])
		inPort := binary.BigEndian.Uint16(body[4:6])
		actionsLen := int(binary.BigEndian.Uint16(body[6:8]))
		rest := body[PacketOutFixedLen:]
		if len(rest) < actionsLen {
			return msg, &ErrTooShort{Type: hdr.Type, Want: HeaderLen + PacketOutFixedLen + actionsLen, Got: len(raw)}
		}
		actions, err := decodeActions(rest[:actionsLen])
		if err != nil {
			return msg, err
		}
		msg.PacketOut = &PacketOut{
			Xid:      hdr.Xid,
			BufferID: bufferID,
			InPort:   inPort,
			Actions:  actions,
			Data:     append([]byte(nil), rest[actionsLen:]...),
		}
	case TypeFlowMod:
		if len(body) < FlowModFixedLen {
			return msg, &ErrTooShort{Type: hdr.Type, Want: HeaderLen + FlowModFixedLen, Got: len(raw)}
		}
		m := decodeMatch(body[0:MatchLen])
		off := MatchLen
		cookie := binary.BigEndian.Uint64(body[off : off+8])
		off += 8
		command := binary.BigEndian.Uint16(body[off : off+2])
		off += 2
		idle := binary.BigEndian.Uint16(body[off : off+2])
		off += 2
		hard := binary.BigEndian.Uint16(body[off : off+2])
		off += 2
		priority := binary.BigEndian.Uint16(body[off : off+2])
		off += 2
		bufferID := binary.BigEndian.Uint32(body[off : off+4])
		off += 4
		outPort := binary.BigEndian.Uint16(body[off : off+2])
		off += 2
		flags := binary.BigEndian.Uint16(body[off : off+2])
		off += 2
		actions, err := decodeActions(body[off:])
		if err != nil {
			return msg, err
		}
		msg.FlowMod = &FlowMod{
			Xid: hdr.Xid, Match: m, Cookie: cookie, Command: command,
			IdleTimeout: idle, HardTimeout: hard, Priority: priority,
			BufferID: bufferID, OutPort: outPort, Flags: flags, Actions: actions,
		}
	default:
		return msg, &ErrUnknownType{Type: hdr.Type}
	}
	return msg, nil
}

func decodeMatch(b []byte) Match {
	return Match{
		Wildcards: binary.BigEndian.Uint32(b[0:4]),
		InPort:    binary.BigEndian.Uint16(b[4:6]),
		DlSrc:     net.HardwareAddr(append([]byte(nil), b[6:12]...)),
		DlDst:     net.HardwareAddr(append([]byte(nil), b[12:18]...)),
		DlVlan:    binary.BigEndian.Uint16(b[18:20]),
		DlVlanPcp: b[20],
		DlType:    binary.BigEndian.Uint16(b[22:24]),
		NwTos:     b[24],
		NwProto:   b[25],
		NwSrc:     binary.BigEndian.Uint32(b[28:32]),
		NwDst:     binary.BigEndian.Uint32(b[32:36]),
		TpSrc:     binary.BigEndian.Uint16(b[36:38]),
		TpDst:     binary.BigEndian.Uint16(b[38:40]),
	}
}

func decodeActions(b []byte) ([]Action, error) {
	var out []Action
	for len(b) > 0 {
		if len(b) < 4 {
			return nil, fmt.Errorf("ofp: truncated action header")
		}
		typ := binary.BigEndian.Uint16(b[0:2])
		length := int(binary.BigEndian.Uint16(b[2:4]))
		if length < 4 || length > len(b) {
			return nil, fmt.Errorf("ofp: invalid action length %d", length)
		}
		switch typ {
		case ActionTypeOutput:
			out = append(out, Action{Output: &ActionOutput{
				Port:   binary.BigEndian.Uint16(b[4:6]),
				MaxLen: binary.BigEndian.Uint16(b[6:8]),
			}})
		case ActionTypeEnqueue:
			out = append(out, Action{Enqueue: &ActionEnqueue{
				Port:    binary.BigEndian.Uint16(b[4:6]),
				QueueID: binary.BigEndian.Uint32(b[12:16]),
			}})
		}
		b = b[length:]
	}
	return out, nil
}

func decodeFeaturesReply(body []byte) (FeaturesReply, error) {
	if len(body) < FeaturesReplyFixedLen {
		return FeaturesReply{}, &ErrTooShort{Type: TypeFeaturesReply, Want: HeaderLen + FeaturesReplyFixedLen, Got: HeaderLen + len(body)}
	}
	fr := FeaturesReply{
		DatapathID:   binary.BigEndian.Uint64(body[0:8]),
		NBuffers:     binary.BigEndian.Uint32(body[8:12]),
		NTables:      body[12],
		Capabilities: binary.BigEndian.Uint32(body[16:20]),
		Actions:      binary.BigEndian.Uint32(body[20:24]),
	}
	ports := body[FeaturesReplyFixedLen:]
	for len(ports) >= PhyPortLen {
		p := PortDesc{
			PortNo: binary.BigEndian.Uint16(ports[0:2]),
			HWAddr: net.HardwareAddr(append([]byte(nil), ports[2:8]...)),
			Name:   cString(ports[8:24]),
			Config: binary.BigEndian.Uint32(ports[24:28]),
			State:  binary.BigEndian.Uint32(ports[28:32]),
			Curr:   binary.BigEndian.Uint32(ports[32:36]),
			Advertised: binary.BigEndian.Uint32(ports[36:40]),
			Supported:  binary.BigEndian.Uint32(ports[40:44]),
			Peer:       binary.BigEndian.Uint32(ports[44:48]),
		}
		fr.Ports = append(fr.Ports, p)
		ports = ports[PhyPortLen:]
	}
	return fr, nil
}

// decodePacketIn decodes the fixed 18-byte prefix (header + buffer_id(4)
// + total_len(2) + in_port(2) + reason(1) + pad(1)) followed by the raw
// packet. This offset is computed from the declared OpenFlow 1.0 wire
// layout, never from a host struct's padding.
func decodePacketIn(body []byte) (PacketIn, error) {
	if len(body) < PacketInFixedLen {
		return PacketIn{}, &ErrTooShort{Type: TypePacketIn, Want: HeaderLen + PacketInFixedLen, Got: HeaderLen + len(body)}
	}
	pi := PacketIn{
		BufferID: binary.BigEndian.Uint32(body[0:4]),
		TotalLen: binary.BigEndian.Uint16(body[4:6]),
		InPort:   binary.BigEndian.Uint16(body[6:8]),
		Reason:   body[8],
		Data:     append([]byte(nil), body[PacketInFixedLen:]...),
	}
	return pi, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// --- encoding ---

func header(typ uint8, xid uint32, bodyLen int) []byte {
	buf := make([]byte, HeaderLen)
	buf[0] = 1 // OFP_VERSION (1.0)
	buf[1] = typ
	binary.BigEndian.PutUint16(buf[2:4], uint16(HeaderLen+bodyLen))
	binary.BigEndian.PutUint32(buf[4:8], xid)
	return buf
}

// EncodeEchoReply encodes an echo-reply that echoes m's xid and payload.
func EncodeEchoReply(m EchoReply) []byte {
	buf := header(TypeEchoReply, m.Xid, len(m.Data))
	return append(buf, m.Data...)
}

// EncodeFeaturesRequest encodes a features-request (no body).
func EncodeFeaturesRequest(m FeaturesRequest) []byte {
	return header(TypeFeaturesRequest, m.Xid, 0)
}

// EncodeSetConfig encodes a set-config message.
func EncodeSetConfig(m SetConfig) []byte {
	buf := header(TypeSetConfig, m.Xid, SetConfigLen)
	body := buf[HeaderLen:]
	binary.BigEndian.PutUint16(body[0:2], m.Flags)
	binary.BigEndian.PutUint16(body[2:4], m.MissSendLen)
	return buf
}

func encodeMatch(m Match) []byte {
	b := make([]byte, MatchLen)
	binary.BigEndian.PutUint32(b[0:4], m.Wildcards)
	binary.BigEndian.PutUint16(b[4:6], m.InPort)
	copy(b[6:12], padMAC(m.DlSrc))
	copy(b[12:18], padMAC(m.DlDst))
	binary.BigEndian.PutUint16(b[18:20], m.DlVlan)
	b[20] = m.DlVlanPcp
	binary.BigEndian.PutUint16(b[22:24], m.DlType)
	b[24] = m.NwTos
	b[25] = m.NwProto
	binary.BigEndian.PutUint32(b[28:32], m.NwSrc)
	binary.BigEndian.PutUint32(b[32:36], m.NwDst)
	binary.BigEndian.PutUint16(b[36:38], m.TpSrc)
	binary.BigEndian.PutUint16(b[38:40], m.TpDst)
	return b
}

func padMAC(hw net.HardwareAddr) []byte {
	out := make([]byte, 6)
	copy(out, hw)
	return out
}

func encodeAction(a Action) []byte {
	switch {
	case a.Output != nil:
		b := make([]byte, ActionOutputLen)
		binary.BigEndian.PutUint16(b[0:2], ActionTypeOutput)
		binary.BigEndian.PutUint16(b[2:4], ActionOutputLen)
		binary.BigEndian.PutUint16(b[4:6], a.Output.Port)
		binary.BigEndian.PutUint16(b[6:8], a.Output.MaxLen)
		return b
	case a.Enqueue != nil:
		b := make([]byte, ActionEnqueueLen)
		binary.BigEndian.PutUint16(b[0:2], ActionTypeEnqueue)
		binary.BigEndian.PutUint16(b[2:4], ActionEnqueueLen)
		binary.BigEndian.PutUint16(b[4:6], a.Enqueue.Port)
		binary.BigEndian.PutUint32(b[12:16], a.Enqueue.QueueID)
		return b
	default:
		return nil
	}
}

func encodeActions(actions []Action) []byte {
	var out []byte
	for _, a := range actions {
		out = append(out, encodeAction(a)...)
	}
	return out
}

// EncodePacketOut encodes a packet-out message.
func EncodePacketOut(m PacketOut) []byte {
	actions := encodeActions(m.Actions)
	bodyLen := PacketOutFixedLen + len(actions) + len(m.Data)
	buf := header(TypePacketOut, m.Xid, bodyLen)
	body := buf[HeaderLen:]
	binary.BigEndian.PutUint32(body[0:4], m.BufferID)
	binary.BigEndian.PutUint16(body[4:6], m.InPort)
	binary.BigEndian.PutUint16(body[6:8], uint16(len(actions)))
	copy(body[PacketOutFixedLen:], actions)
	copy(body[PacketOutFixedLen+len(actions):], m.Data)
	return buf
}

// EncodeFlowMod encodes a flow-mod message.
func EncodeFlowMod(m FlowMod) []byte {
	actions := encodeActions(m.Actions)
	bodyLen := FlowModFixedLen + len(actions)
	buf := header(TypeFlowMod, m.Xid, bodyLen)
	body := buf[HeaderLen:]
	copy(body[0:MatchLen], encodeMatch(m.Match))
	off := MatchLen
	binary.BigEndian.PutUint64(body[off:off+8], m.Cookie)
	off += 8
	binary.BigEndian.PutUint16(body[off:off+2], m.Command)
	off += 2
	binary.BigEndian.PutUint16(body[off:off+2], m.IdleTimeout)
	off += 2
	binary.BigEndian.PutUint16(body[off:off+2], m.HardTimeout)
	off += 2
	binary.BigEndian.PutUint16(body[off:off+2], m.Priority)
	off += 2
	binary.BigEndian.PutUint32(body[off:off+4], m.BufferID)
	off += 4
	binary.BigEndian.PutUint16(body[off:off+2], m.OutPort)
	off += 2
	binary.BigEndian.PutUint16(body[off:off+2], m.Flags)
	off += 2
	copy(body[off:], actions)
	return buf
}

// Encode dispatches to the outbound encoder for typ; v must be the
// matching message struct (EchoReply, FeaturesRequest, SetConfig,
// PacketOut or FlowMod) or Encode panics. Any other typ returns an error.
// The session itself calls the typed encoders directly.
func Encode(typ uint8, v any) ([]byte, error) {
	switch typ {
	case TypeEchoReply:
		return EncodeEchoReply(v.(EchoReply)), nil
	case TypeFeaturesRequest:
		return EncodeFeaturesRequest(v.(FeaturesRequest)), nil
	case TypeSetConfig:
		return EncodeSetConfig(v.(SetConfig)), nil
	case TypePacketOut:
		return EncodePacketOut(v.(PacketOut)), nil
	case TypeFlowMod:
		return EncodeFlowMod(v.(FlowMod)), nil
	default:
		return nil, fmt.Errorf("ofp: no encoder for type %d", typ)
	}
}
