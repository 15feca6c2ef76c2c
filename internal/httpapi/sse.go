package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nextlevelbuilder/agentsd/pkg/protocol"
)

const sseHeartbeatInterval = 30 * time.Second

// handleChannelsStream implements spec.md §4.8's SSE endpoint: subscribes to
// dm:received and channel:message, sends a connected event on open, and a
// comment heartbeat every 30s.
func (s *Server) handleChannelsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID := uuid.NewString()
	events := make(chan protocol.Event, 16)

	s.Bus.Subscribe(subID, func(e protocol.Event) {
		if !e.SSERelevant() {
			return
		}
		select {
		case events <- e:
		default:
		}
	})
	defer s.Bus.Unsubscribe(subID)

	writeSSE(w, protocol.Event{Type: protocol.EventSSEConnected})
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			writeSSE(w, e)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, e protocol.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
