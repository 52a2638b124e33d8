// Package policy implements component C: the output-policy engine that
// decides a destination port symbol for a flow, given the session's mode
// and (in learn mode) the MAC learning table.
package policy

import (
	"net"
	"time"

	"grimm.is/lswitch/internal/mactable"
	"grimm.is/lswitch/internal/ofp"
)

// Mode selects how an unknown destination is resolved.
type Mode int

const (
	ModeHub Mode = iota
	ModeNormal
	ModeLearn
)

// reservedMulticastPrefix is the IEEE 802.1D bridge-reserved range
// 01:80:C2:00:00:00/ff:ff:ff:ff:ff:f0 (the low nibble of the 6th octet is
// don't-care).
var reservedMulticastPrefix = [5]byte{0x01, 0x80, 0xc2, 0x00, 0x00}

// IsReservedMulticast reports whether dst falls in the bridge-reserved
// multicast range. Checked *before* any learned-table lookup: a learned
// entry for such an address is never trusted.
func IsReservedMulticast(dst net.HardwareAddr) bool {
	if len(dst) != 6 {
		return false
	}
	for i := 0; i < 5; i++ {
		if dst[i] != reservedMulticastPrefix[i] {
			return false
		}
	}
	return dst[5]&0xf0 == 0x00
}

// MoveLogger is called when Resolve's learn step detects a station move,
// so internal/lswitch can log it (the engine itself never logs). inPort is
// the port the station was just seen on.
type MoveLogger func(addr net.HardwareAddr, vlan uint16, inPort uint16)

// Resolve returns the chosen port symbol: one of ofp.PortNone,
// ofp.PortFlood, ofp.PortNormal, or a concrete port_no. table is nil in
// hub/normal modes; onMove may be nil.
func Resolve(mode Mode, table *mactable.Table, inPort uint16, src, dst net.HardwareAddr, vlan uint16, now time.Time, onMove MoveLogger) uint16 {
	if mode == ModeLearn && table != nil {
		if moved := table.Learn(src, vlan, inPort, now, time.Time{}); moved && onMove != nil {
			onMove(src, vlan, inPort)
		}
	}

	if IsReservedMulticast(dst) {
		return ofp.PortNone
	}

	candidate := ofp.PortFlood
	if mode == ModeLearn && table != nil {
		if out, ok := table.Lookup(dst, vlan, now); ok {
			if out == inPort {
				return ofp.PortNone // split horizon
			}
			candidate = out
		}
	}

	if mode == ModeNormal && candidate == ofp.PortFlood {
		return ofp.PortNormal
	}
	return candidate
}
