package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Client attaches to a running session's monitor.Server from another
// process (the "lswitch monitor" CLI command), the way internal/tui's
// dashboard is fed in production: over the wire, not via a shared Hub.
type Client struct {
	baseHTTP string
	baseWS   string
}

// NewClient builds a Client against a server listening on addr
// (host:port, no scheme).
func NewClient(addr string) *Client {
	return &Client{
		baseHTTP: "http://" + addr,
		baseWS:   "ws://" + addr,
	}
}

// FetchStatus performs a single GET /status and decodes the snapshot.
func (c *Client) FetchStatus() (Status, error) {
	httpClient := http.Client{Timeout: 3 * time.Second}
	resp, err := httpClient.Get(c.baseHTTP + "/status")
	if err != nil {
		return Status{}, fmt.Errorf("monitor: fetch status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("monitor: fetch status: server returned %s", resp.Status)
	}
	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Status{}, fmt.Errorf("monitor: decode status: %w", err)
	}
	return st, nil
}

// Stream connects to /stream and delivers decoded events to out until the
// connection closes or stop is closed. It blocks until then and returns
// an error only when the dial fails; a closed connection or a closed stop
// returns nil. The caller owns draining out.
func (c *Client) Stream(out chan<- Event, stop <-chan struct{}) error {
	conn, _, err := websocket.DefaultDialer.Dial(c.baseWS+"/stream", nil)
	if err != nil {
		return fmt.Errorf("monitor: dial %s: %w", c.baseWS, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var evt Event
			if err := json.Unmarshal(payload, &evt); err != nil {
				continue
			}
			select {
			case out <- evt:
			case <-stop:
				return
			}
		}
	}()

	select {
	case <-done:
		return nil
	case <-stop:
		return nil
	}
}
