package monitor

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatusProvider struct{ status Status }

func (f fakeStatusProvider) Status() Status { return f.status }

func newTestServer(t *testing.T, hub *Hub, status StatusProvider) (addr string, close func()) {
	t.Helper()
	srv := NewServer(hub, status, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	httpSrv := &http.Server{Handler: srv.Handler()}
	go httpSrv.Serve(ln)
	return ln.Addr().String(), func() { httpSrv.Close() }
}

func TestClientFetchStatus(t *testing.T) {
	want := Status{DatapathID: "00000000000000ab", Mode: "learn", MacTableSize: 3}
	addr, closeFn := newTestServer(t, NewHub(nil), fakeStatusProvider{status: want})
	defer closeFn()

	got, err := NewClient(addr).FetchStatus()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestClientFetchStatusWithoutProviderFails(t *testing.T) {
	addr, closeFn := newTestServer(t, NewHub(nil), nil)
	defer closeFn()

	_, err := NewClient(addr).FetchStatus()
	assert.Error(t, err)
}

func TestClientStreamDeliversPublishedEvents(t *testing.T) {
	hub := NewHub(nil)
	addr, closeFn := newTestServer(t, hub, nil)
	defer closeFn()

	out := make(chan Event, 4)
	stop := make(chan struct{})
	go NewClient(addr).Stream(out, stop)

	// give the websocket handshake time to land before publishing.
	time.Sleep(50 * time.Millisecond)
	hub.Publish(Event{Kind: "station-moved"})

	select {
	case evt := <-out:
		assert.Equal(t, "station-moved", evt.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for streamed event")
	}
	close(stop)
}
