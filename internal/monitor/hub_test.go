package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/lswitch/internal/clock"
	"grimm.is/lswitch/internal/lswitch"
)

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	clk := clock.NewMockClock(time.Unix(0, 0))
	h := NewHub(clk)

	a := h.Subscribe(4)
	b := h.Subscribe(4)
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.Publish(Event{Kind: "handshake-complete"})

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, "handshake-complete", (<-a).Kind)
	assert.Equal(t, "handshake-complete", (<-b).Kind)
}

func TestPublishDropsOnFullSubscriberWithoutBlocking(t *testing.T) {
	h := NewHub(nil)
	ch := h.Subscribe(1)
	defer h.Unsubscribe(ch)

	h.Publish(Event{Kind: "first"})
	h.Publish(Event{Kind: "second"})

	published, dropped := h.Stats()
	assert.Equal(t, uint64(2), published)
	assert.Equal(t, uint64(1), dropped)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub(nil)
	ch := h.Subscribe(4)
	h.Unsubscribe(ch)

	h.Publish(Event{Kind: "ignored"})
	assert.Len(t, ch, 0)
}

func TestDatapathNotifierStampsEvents(t *testing.T) {
	h := NewHub(nil)
	ch := h.Subscribe(4)
	defer h.Unsubscribe(ch)

	var notifier lswitch.Notifier = h.ForDatapath("00000000000000ab")
	notifier.Notify("station-moved", map[string]any{"in_port": float64(2)})

	evt := <-ch
	assert.Equal(t, "00000000000000ab", evt.DatapathID)
	assert.Equal(t, "station-moved", evt.Kind)
}

func TestTimestampDefaultsToClockNow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(now)
	h := NewHub(clk)
	ch := h.Subscribe(1)
	defer h.Unsubscribe(ch)

	h.Publish(Event{Kind: "x"})
	assert.True(t, (<-ch).Timestamp.Equal(now))
}
