// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/solenne-ai/solenne/pkg/telemetry"
	"github.com/solenne-ai/solenne/services/life/events"
)

const (
	// eventWriteWait bounds a single frame write to a slow client.
	eventWriteWait = 10 * time.Second

	// eventPingInterval keeps idle connections alive through proxies.
	eventPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

// StreamEvents upgrades to a WebSocket and pushes lifecycle events to the
// client until it disconnects. Push-only: inbound frames are read and
// discarded so close frames surface promptly.
func StreamEvents(bus *events.Bus, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade events websocket", "error", err)
			return
		}
		defer ws.Close()

		ctx := c.Request.Context()
		slog.Info("events websocket client connected", "remote", ws.RemoteAddr().String())
		if metrics != nil {
			metrics.WebsocketClients.Add(ctx, 1)
			defer metrics.WebsocketClients.Add(ctx, -1)
		}

		sub, unsubscribe := bus.Subscribe()
		defer unsubscribe()

		// Reader loop exists only to notice the client going away.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(eventPingInterval)
		defer ping.Stop()

		for {
			select {
			case ev, ok := <-sub:
				if !ok {
					return
				}
				ws.SetWriteDeadline(time.Now().Add(eventWriteWait))
				if err := ws.WriteJSON(ev); err != nil {
					slog.Info("events websocket client disconnected", "error", err.Error())
					return
				}

			case <-ping.C:
				ws.SetWriteDeadline(time.Now().Add(eventWriteWait))
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}

			case <-done:
				slog.Info("events websocket client closed the connection")
				return

			case <-ctx.Done():
				return
			}
		}
	}
}
