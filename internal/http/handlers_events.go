package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"finviz/internal/core"
	"finviz/internal/log"
)

const sseHeartbeat = 25 * time.Second

type invalidationEvent struct {
	Op        string    `json:"op"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// handleEvents streams invalidations as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.WarnContext(r.Context(), "Could not clear write deadline", log.FieldError, err)
	}

	sub, cancel := s.bus.Subscribe()
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprint(w, "retry: 3000\n: connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		s.logger.WarnContext(r.Context(), "Streaming not supported", log.FieldError, err)
		return
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case inv, ok := <-sub:
			if !ok {
				return
			}
			if err := writeInvalidation(w, inv); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeInvalidation(w http.ResponseWriter, inv core.Invalidation) error {
	data, err := json.Marshal(invalidationEvent{Op: string(inv.Op), ID: inv.ID, Timestamp: inv.At})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: invalidate\ndata: %s\n\n", data)
	return err
}
