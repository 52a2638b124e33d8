// Package queuebind implements the port-name to queue-id binding table,
// resolved to port-number to queue-id once a features-reply has told the
// session which name maps to which port number.
package queuebind

// Unresolved marks a binding whose port number hasn't yet been observed
// in a features-reply.
const Unresolved uint16 = 0xffff

type binding struct {
	queueID uint32
	portNo  uint16 // Unresolved until Resolve is called
}

// Table holds two indices: by name (every binding) and by port number
// (only the resolved ones). The by-number index never owns a binding; it
// only ever points at one already present in byName, so a binding
// appears at most once logically even though two maps reference it.
type Table struct {
	defaultQueue uint32
	byName       map[string]*binding
	byPort       map[uint16]*binding
}

// New returns a table that falls back to defaultQueue when QueueFor finds
// no resolved binding for a port.
func New(defaultQueue uint32) *Table {
	return &Table{
		defaultQueue: defaultQueue,
		byName:       make(map[string]*binding),
		byPort:       make(map[uint16]*binding),
	}
}

// Bind inserts or replaces the binding for name. A second Bind on the
// same name replaces the queue id and resets it to unresolved — it is
// once again waiting for a features-reply to confirm its port number,
// matching the config-reload case where port assignments may have
// changed underneath a renamed/rebuilt binding.
func (t *Table) Bind(name string, queueID uint32) {
	if old, ok := t.byName[name]; ok && old.portNo != Unresolved {
		delete(t.byPort, old.portNo)
	}
	t.byName[name] = &binding{queueID: queueID, portNo: Unresolved}
}

// Resolve fills in the port number for an existing name binding. If the
// binding already has a resolved port number, this is a no-op: the
// binding is already indexed and a second features-reply mentioning the
// same name/port pair changes nothing. A name with no prior Bind is
// ignored — there is nothing to resolve.
func (t *Table) Resolve(name string, portNo uint16) {
	b, ok := t.byName[name]
	if !ok {
		return
	}
	if b.portNo != Unresolved {
		return
	}
	b.portNo = portNo
	t.byPort[portNo] = b
}

// QueueFor returns the queue id bound to portNo, or the table's default
// queue if no resolved binding matches.
func (t *Table) QueueFor(portNo uint16) uint32 {
	if b, ok := t.byPort[portNo]; ok {
		return b.queueID
	}
	return t.defaultQueue
}

// Len reports the number of name bindings, for tests/metrics.
func (t *Table) Len() int { return len(t.byName) }
