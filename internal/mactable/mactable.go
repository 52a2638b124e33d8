// Package mactable implements the bounded, aging MAC learning table
// keyed by (station address, VLAN). It is owned exclusively by one
// session (internal/lswitch) and is not safe for concurrent use, since
// the switch core runs single-threaded and cooperative.
package mactable

import (
	"container/list"
	"net"
	"time"
)

// MaxEntries bounds the table; the least-recently-used entry is evicted
// on insertion once the table is full.
const MaxEntries = 2048

// AgeHard is how long an entry may go unused before lookups stop seeing
// it (it is not yet removed, only hidden).
const AgeHard = 300 * time.Second

// AgeMax is how long an entry may go unused before Run removes it
// entirely.
const AgeMax = 3600 * time.Second

// GratArpLock is the duration a locked entry refuses updates for, per the
// gratuitous-ARP suppression hook. The core never sets this; it exists so
// a caller can.
const GratArpLock = 5 * time.Second

// PortUnknown is returned by Lookup when the key is absent, aged past
// AgeHard, or locked.
const PortUnknown uint16 = 0

// Key identifies a learned station: its link-layer address plus the VLAN
// it was learned on (two stations with the same address on different
// VLANs are distinct entries).
type Key struct {
	Addr [6]byte
	Vlan uint16
}

func keyOf(addr net.HardwareAddr, vlan uint16) Key {
	var k Key
	copy(k.Addr[:], addr)
	k.Vlan = vlan
	return k
}

func (k Key) isMulticastOrZero() bool {
	if k.Addr[0]&0x01 != 0 {
		return true
	}
	return k.Addr == [6]byte{}
}

type entry struct {
	key       Key
	portNo    uint16
	learnedAt time.Time
	usedAt    time.Time
	lockedTil time.Time
	elem      *list.Element
}

// Table is the learning table. Zero value is not usable; use New.
type Table struct {
	entries map[Key]*entry
	lru     *list.List // front = most-recently-used, back = LRU
}

// New returns an empty table.
func New() *Table {
	return &Table{
		entries: make(map[Key]*entry),
		lru:     list.New(),
	}
}

// Len reports the current entry count, for metrics/tests.
func (t *Table) Len() int { return len(t.entries) }

// Learn records that addr was seen arriving on inPort with the given
// VLAN at time now. It returns moved=true when the station was already
// known on a *different* port (a station move), false for a fresh
// insert, a same-port refresh, or a refusal (multicast/zero source, or
// the entry is lock-held).
//
// lockUntil, when non-zero and after now, marks the entry so further
// Learn calls are refused until that time: a gratuitous-ARP suppression
// hook. The core itself always passes the zero time (no lock).
func (t *Table) Learn(addr net.HardwareAddr, vlan uint16, inPort uint16, now time.Time, lockUntil time.Time) (moved bool) {
	k := keyOf(addr, vlan)
	if k.isMulticastOrZero() {
		return false
	}

	if e, ok := t.entries[k]; ok {
		if now.Before(e.lockedTil) {
			return false
		}
		moved = e.portNo != inPort
		e.portNo = inPort
		e.usedAt = now
		if lockUntil.After(now) {
			e.lockedTil = lockUntil
		}
		t.lru.MoveToFront(e.elem)
		return moved
	}

	if len(t.entries) >= MaxEntries {
		t.evictLRU()
	}

	e := &entry{key: k, portNo: inPort, learnedAt: now, usedAt: now}
	if lockUntil.After(now) {
		e.lockedTil = lockUntil
	}
	e.elem = t.lru.PushFront(e)
	t.entries[k] = e
	return false
}

// Lookup returns the learned port for (dst, vlan), or (PortUnknown,
// false) if the key is absent, aged beyond AgeHard, or lock-held.
func (t *Table) Lookup(dst net.HardwareAddr, vlan uint16, now time.Time) (uint16, bool) {
	k := keyOf(dst, vlan)
	e, ok := t.entries[k]
	if !ok {
		return PortUnknown, false
	}
	if now.Sub(e.usedAt) > AgeHard {
		return PortUnknown, false
	}
	if now.Before(e.lockedTil) {
		return PortUnknown, false
	}
	return e.portNo, true
}

// Run performs opportunistic maintenance: entries unused for longer than
// AgeMax are removed. O(k) in the number of expired entries, since the
// LRU list keeps them contiguous at the back.
func (t *Table) Run(now time.Time) {
	for {
		back := t.lru.Back()
		if back == nil {
			return
		}
		e := back.Value.(*entry)
		if now.Sub(e.usedAt) <= AgeMax {
			return
		}
		t.removeElem(back, e)
	}
}

// WaitUntil returns the earliest time the table will next want Run
// called, or the zero time if the table is empty (no maintenance is ever
// needed until something is learned).
func (t *Table) WaitUntil() time.Time {
	back := t.lru.Back()
	if back == nil {
		return time.Time{}
	}
	e := back.Value.(*entry)
	return e.usedAt.Add(AgeMax)
}

func (t *Table) evictLRU() {
	back := t.lru.Back()
	if back == nil {
		return
	}
	t.removeElem(back, back.Value.(*entry))
}

func (t *Table) removeElem(elem *list.Element, e *entry) {
	t.lru.Remove(elem)
	delete(t.entries, e.key)
}
