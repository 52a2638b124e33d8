package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/lswitch/internal/clock"
	"grimm.is/lswitch/internal/lswitch"
)

func newTestStore(t *testing.T) (*Store, *clock.MockClock) {
	t.Helper()
	clk := clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := NewStore(path, 0, clk)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clk
}

func TestWriteAndQueryRoundTrip(t *testing.T) {
	s, clk := newTestStore(t)

	require.NoError(t, s.Write(Event{
		Timestamp:  clk.Now(),
		DatapathID: "0000000000000001",
		Kind:       "handshake-complete",
		Fields:     map[string]any{"ports": float64(4)},
	}))

	events, err := s.Query(clk.Now().Add(-time.Hour), clk.Now().Add(time.Hour), "", "", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "handshake-complete", events[0].Kind)
	assert.Equal(t, "0000000000000001", events[0].DatapathID)
	assert.Equal(t, float64(4), events[0].Fields["ports"])
}

func TestQueryFiltersByKindAndDatapath(t *testing.T) {
	s, clk := newTestStore(t)
	require.NoError(t, s.Write(Event{Timestamp: clk.Now(), DatapathID: "a", Kind: "station-moved"}))
	require.NoError(t, s.Write(Event{Timestamp: clk.Now(), DatapathID: "b", Kind: "station-moved"}))
	require.NoError(t, s.Write(Event{Timestamp: clk.Now(), DatapathID: "a", Kind: "backpressure-drop"}))

	byKind, err := s.Query(clk.Now().Add(-time.Minute), clk.Now().Add(time.Minute), "station-moved", "", 0)
	require.NoError(t, err)
	assert.Len(t, byKind, 2)

	byDatapath, err := s.Query(clk.Now().Add(-time.Minute), clk.Now().Add(time.Minute), "", "a", 0)
	require.NoError(t, err)
	assert.Len(t, byDatapath, 2)
}

func TestPruneRemovesOldEvents(t *testing.T) {
	s, clk := newTestStore(t)
	require.NoError(t, s.Write(Event{Timestamp: clk.Now(), Kind: "old-event"}))

	clk.Advance(200 * 24 * time.Hour)
	require.NoError(t, s.Write(Event{Timestamp: clk.Now(), Kind: "new-event"}))

	n, err := s.Prune()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDatapathNotifierStampsDatapathID(t *testing.T) {
	s, clk := newTestStore(t)
	_ = clk

	var notifier lswitch.Notifier = s.ForDatapath("00000000000000ab")
	notifier.Notify("flow-installed", map[string]any{"out_port": float64(2)})

	events, err := s.Query(time.Time{}, time.Now().Add(time.Hour), "", "", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "00000000000000ab", events[0].DatapathID)
	assert.Equal(t, "flow-installed", events[0].Kind)
}
