package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// EventsBuffer is the per-client event buffer of GET /events
const EventsBuffer = 32

// keepAliveInterval spaces comment lines that keep idle streams open
var keepAliveInterval = 25 * time.Second

// events streams scheduler events as server-sent events until the client
// disconnects or the scheduler closes its stream
func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorResponse(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := h.svc.Subscribe(EventsBuffer)
	defer h.svc.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case event, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("failed to encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Phase, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
