// Package flowkey pulls the header fields the output-policy engine and
// flow-mod matcher need out of a raw Ethernet frame handed up in a
// packet-in. The core (internal/lswitch, internal/policy) only ever sees
// the decoded Key, never packet bytes.
package flowkey

import (
	"encoding/binary"
	"errors"
	"net"

	"golang.org/x/net/ipv4"
)

const (
	ethHeaderLen = 14
	vlanTagLen   = 4
	etherTypeVLAN = 0x8100
	etherTypeIPv4 = 0x0800
)

// ErrTooShort is returned when pkt is too small to contain an Ethernet
// header, or carries the 802.1Q ethertype but is too short to hold the
// tag and the inner ethertype.
var ErrTooShort = errors.New("flowkey: packet shorter than its ethernet/802.1Q header")

// Key is the read-only input to the output-policy engine: the ingress
// port plus whatever the extractor could read out of the packet.
// Fields that don't apply to a given packet (non-IP, non-TCP/UDP) are left
// zero.
type Key struct {
	InPort  uint16
	DlSrc   net.HardwareAddr
	DlDst   net.HardwareAddr
	DlVlan  uint16
	DlVlanPcp uint8
	DlType  uint16
	NwTos   uint8
	NwProto uint8
	NwSrc   uint32
	NwDst   uint32
	TpSrc   uint16
	TpDst   uint16
}

// NoVlan is the wire value of dl_vlan when the frame carries no 802.1Q tag
// (OFP_VLAN_NONE).
const NoVlan uint16 = 0xffff

// Extractor pulls a Key out of a raw packet. The default implementation
// (Extract) hand-parses Ethernet/802.1Q and delegates IPv4 header parsing
// to golang.org/x/net/ipv4.
type Extractor interface {
	Extract(inPort uint16, pkt []byte) (Key, error)
}

// Default is the extractor used when a session isn't configured with one
// of its own (tests substitute a fake).
type Default struct{}

// Extract implements Extractor.
func (Default) Extract(inPort uint16, pkt []byte) (Key, error) {
	return Extract(inPort, pkt)
}

// Extract parses the Ethernet header (and an optional single 802.1Q tag),
// then for IPv4 payloads the IP header and, when the protocol is TCP or
// UDP, the first four bytes of the transport header (source/destination
// port share the same 2+2 layout in both).
func Extract(inPort uint16, pkt []byte) (Key, error) {
	if len(pkt) < ethHeaderLen {
		return Key{}, ErrTooShort
	}
	k := Key{
		InPort: inPort,
		DlDst:  net.HardwareAddr(append([]byte(nil), pkt[0:6]...)),
		DlSrc:  net.HardwareAddr(append([]byte(nil), pkt[6:12]...)),
		DlVlan: NoVlan,
	}

	off := 12
	etherType := binary.BigEndian.Uint16(pkt[off : off+2])
	off += 2

	if etherType == etherTypeVLAN {
		if len(pkt) < ethHeaderLen+vlanTagLen {
			return k, ErrTooShort
		}
		tci := binary.BigEndian.Uint16(pkt[off : off+2])
		k.DlVlan = tci & 0x0fff
		k.DlVlanPcp = uint8(tci >> 13)
		off += 2
		etherType = binary.BigEndian.Uint16(pkt[off : off+2])
		off += 2
	}
	k.DlType = etherType

	if etherType != etherTypeIPv4 || len(pkt) < off+20 {
		return k, nil
	}

	hdr, err := ipv4.ParseHeader(pkt[off:])
	if err != nil {
		return k, nil // non-conformant IP payload: return what we have
	}
	k.NwTos = uint8(hdr.TOS)
	k.NwProto = uint8(hdr.Protocol)
	k.NwSrc = binary.BigEndian.Uint32(hdr.Src.To4())
	k.NwDst = binary.BigEndian.Uint32(hdr.Dst.To4())

	switch k.NwProto {
	case 6, 17: // TCP, UDP
		l4 := off + hdr.Len
		if len(pkt) >= l4+4 {
			k.TpSrc = binary.BigEndian.Uint16(pkt[l4 : l4+2])
			k.TpDst = binary.BigEndian.Uint16(pkt[l4+2 : l4+4])
		}
	}
	return k, nil
}
