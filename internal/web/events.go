package web

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// streamEvents pushes every completed ingestion run as a server-sent event.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.handlers.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events := s.events.Subscribe()
	defer s.events.Unsubscribe(events)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("failed to encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\nid: %s\ndata: %s\n\n", ev.Event, ev.RunID, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
