package oflink

import "grimm.is/lswitch/internal/ofp"

// FakeLink is a hand-built in-memory Link for tests: Send appends to Sent
// unless WouldBlock/NotConnected is set, mirroring the disposition a real
// TCPLink would report under backpressure or a dead connection.
type FakeLink struct {
	NameVal     string
	Sent        [][]byte
	WouldBlock  bool
	NotConnected bool
}

// NewFakeLink returns a ready FakeLink named name.
func NewFakeLink(name string) *FakeLink {
	return &FakeLink{NameVal: name}
}

// Name implements Link.
func (f *FakeLink) Name() string { return f.NameVal }

// Send implements Link.
func (f *FakeLink) Send(raw []byte) error {
	if f.NotConnected {
		return ErrNotConnected
	}
	if f.WouldBlock {
		return ErrWouldBlock
	}
	f.Sent = append(f.Sent, append([]byte(nil), raw...))
	return nil
}

// Recv is not used in tests that drive the session directly via its
// HandleRaw/HandleMessage entry points; it panics if called.
func (f *FakeLink) Recv() (ofp.Message, error) {
	panic("oflink: FakeLink.Recv not implemented, drive the session directly")
}

// Close implements Link.
func (f *FakeLink) Close() error { return nil }

// Decoded decodes every sent message back into ofp.Message, for assertions.
func (f *FakeLink) Decoded() ([]ofp.Message, error) {
	out := make([]ofp.Message, 0, len(f.Sent))
	for _, raw := range f.Sent {
		m, err := ofp.Decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
