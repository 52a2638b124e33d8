// Package monitor is the live status feed: a non-blocking pub/sub hub
// that fans session events out to whatever is currently watching — a
// websocket client, the TUI dashboard, or nothing at all.
package monitor

import (
	"sync"
	"time"

	"grimm.is/lswitch/internal/clock"
)

// Event is one published notification, timestamped at publish time.
type Event struct {
	Timestamp  time.Time      `json:"timestamp"`
	DatapathID string         `json:"datapath_id,omitempty"`
	Kind       string         `json:"kind"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// Hub is the central event bus for live session monitoring. It provides
// pub/sub semantics with non-blocking fan-out: a slow or absent
// subscriber never stalls the session that published the event.
type Hub struct {
	mu    sync.RWMutex
	subs  map[chan Event]struct{}
	clock clock.Clock

	published uint64
	dropped   uint64
}

// NewHub creates a new event hub.
func NewHub(clk clock.Clock) *Hub {
	if clk == nil {
		clk = &clock.RealClock{}
	}
	return &Hub{subs: make(map[chan Event]struct{}), clock: clk}
}

// Publish sends an event to every current subscriber. Non-blocking: if a
// subscriber's channel is full, the event is dropped for that subscriber
// only and counted in Stats.
func (h *Hub) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = h.clock.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	h.published++
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.dropped++
		}
	}
}

// ForDatapath returns a Notifier that stamps every notification with the
// given datapath id before publishing it, implementing lswitch.Notifier.
func (h *Hub) ForDatapath(datapathID string) *DatapathNotifier {
	return &DatapathNotifier{hub: h, datapathID: datapathID}
}

// DatapathNotifier implements lswitch.Notifier against a single Hub.
type DatapathNotifier struct {
	hub        *Hub
	datapathID string
}

// Notify implements lswitch.Notifier.
func (n *DatapathNotifier) Notify(kind string, fields map[string]any) {
	n.hub.Publish(Event{DatapathID: n.datapathID, Kind: kind, Fields: fields})
}

// Subscribe returns a channel that receives every published event. The
// caller must drain it and call Unsubscribe when done, or pass it to a
// context that does so on cancellation.
func (h *Hub) Subscribe(bufSize int) chan Event {
	if bufSize <= 0 {
		bufSize = 256
	}
	ch := make(chan Event, bufSize)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes ch from the subscriber set. It does not close ch.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, ch)
}

// Stats returns publish/drop counts for monitoring the monitor itself.
func (h *Hub) Stats() (published, dropped uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.published, h.dropped
}
