// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/pathwayprop/pathway/services/analysis"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

// wsWriteTimeout bounds each event write so a stalled client cannot pin
// the handler goroutine.
const wsWriteTimeout = 10 * time.Second

func sendJSON(ws *websocket.Conn, v interface{}) error {
	_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleAnalysisEvents streams progress events for an analysis over a
// websocket.
//
// # Description
//
// Upgrades the connection, subscribes to the run's event stream, and
// forwards each event as a JSON frame. When the stream closes the final
// analysis snapshot is sent as the last frame before the connection shuts
// down. Subscribing to an already-finished run yields just the snapshot.
//
// # Outputs
//
//   - 404 (before upgrade) when the analysis does not exist
//   - JSON frames of analysis.Event, then one final frame
//     {"phase":"done","analysis":...}
func HandleAnalysisEvents(runner *analysis.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		events, stop, err := runner.Subscribe(id)
		if err != nil {
			if errors.Is(err, analysis.ErrAnalysisNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer stop()

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		// Read pump: the client never sends data frames, but reading is
		// required to notice close frames and drop the subscription.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					// Run finished; deliver the terminal snapshot.
					if run, err := runner.Get(id); err == nil {
						_ = sendJSON(ws, gin.H{"phase": analysis.PhaseDone, "analysis": run})
					}
					_ = ws.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(wsWriteTimeout))
					return
				}
				if err := sendJSON(ws, event); err != nil {
					return
				}
			case <-done:
				slog.Debug("WebSocket client disconnected", "analysis_id", id)
				return
			}
		}
	}
}
