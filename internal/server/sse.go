package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tiny-backspace/internal/core"
	"tiny-backspace/internal/session"
)

const heartbeatInterval = 15 * time.Second

// handleStream pushes a session's events to the client as SSE, one event per
// frame, in store arrival order. With ?backfill=1 the stored timeline is
// replayed before going live. The stream carries no termination frame: the
// client stops when it has seen the terminal event it cares about, or just
// disconnects.
func (s *Server) handleStream(c *gin.Context) {
	sessionID := c.Param("id")
	if !session.IsWellFormed(sessionID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "malformed session id",
			"message": "session id must look like session_<millis>_<token>",
		})
		return
	}

	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "streaming unsupported"})
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := c.Request.Context()

	// Subscribe before backfilling so nothing appended in between is lost;
	// anything delivered both ways is dropped by id.
	live, err := s.relay.Subscribe(ctx, sessionID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error()})
		return
	}
	s.metrics.streamClients.Inc()
	defer s.metrics.streamClients.Dec()

	fmt.Fprintf(w, "event: connected\ndata: {\"sessionId\":%q}\n\n", sessionID)
	flusher.Flush()

	replayed := make(map[string]struct{})
	if c.Query("backfill") != "" {
		events, err := s.store.ListBySession(ctx, sessionID, 0)
		if err != nil {
			s.logger.Println("stream backfill failed", err)
			return
		}
		for _, ev := range events {
			replayed[ev.ID] = struct{}{}
			s.writeEvent(c, flusher, ev)
		}
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case ev, ok := <-live:
			if !ok {
				return
			}
			if _, seen := replayed[ev.ID]; seen {
				continue
			}
			s.writeEvent(c, flusher, ev)
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) writeEvent(c *gin.Context, flusher http.Flusher, ev core.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Println("stream could not serialize event", err)
		return
	}
	if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return
	}
	s.metrics.streamEvents.Inc()
	flusher.Flush()
}
