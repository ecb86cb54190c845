package ws

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testClient(h *Hub, label string) *Client {
	return &Client{Label: label, hub: h, send: make(chan []byte, 8)}
}

func TestClientCountTracksRegistrations(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a := testClient(hub, "a@example.com")
	b := testClient(hub, "b@example.com")

	hub.register <- a
	hub.register <- b
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 },
		time.Second, 5*time.Millisecond)

	hub.unregister <- a
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	hub.unregister <- b
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		time.Second, 5*time.Millisecond)
}

// Gauges and feed pushes read ClientCount from their own goroutines while
// the hub loop churns through connects and disconnects. Run under -race.
func TestClientCountConcurrentWithChurn(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				require.GreaterOrEqual(t, hub.ClientCount(), 0)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		c := testClient(hub, "churn@example.com")
		hub.register <- c
		hub.unregister <- c
	}
	close(done)
	wg.Wait()

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		time.Second, 5*time.Millisecond)
}
