package controllers

import (
	"time"

	"github.com/tiendalabs/tienda/app/realtime"
	"github.com/tiendalabs/tienda/pkg/ctx"
	"github.com/tiendalabs/tienda/pkg/logger"
	"github.com/tiendalabs/tienda/pkg/sse"
)

const keepaliveInterval = 25 * time.Second

// StreamController mirrors the product feed over Server-Sent Events for
// clients that cannot hold a WebSocket.
type StreamController struct {
	hubs *realtime.Hubs
}

func NewStreamController(hubs *realtime.Hubs) *StreamController {
	return &StreamController{hubs: hubs}
}

// Products streams the full product list: once on connect and again after
// every catalog mutation, with keepalive comments in between.
func (sc *StreamController) Products(c *ctx.Context) {
	stream := sse.New(c.W, c.R)
	if stream == nil {
		return
	}

	changes, cancel := sc.hubs.SubscribeFeed()
	defer cancel()

	send := func() {
		feed, err := sc.hubs.CurrentFeed()
		if err != nil {
			logger.Error("sse: feed load failed", "error", err)
			return
		}
		if err := stream.Send("products", feed); err != nil {
			logger.Warn("sse: send failed", "error", err)
		}
	}
	send()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for !stream.IsClosed() {
		select {
		case <-c.Context().Done():
			return
		case <-changes:
			send()
		case <-keepalive.C:
			stream.Comment("keepalive")
		}
	}
}
