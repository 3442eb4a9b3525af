package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kekahyde/inferd/internal/manager"
	"github.com/kekahyde/inferd/internal/model"
)

// handleStreamEvents streams status snapshots for one execution as SSE. The
// current snapshot is sent first, then live updates until the execution
// reaches a terminal state or the client disconnects.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := s.manager.Get(id)
	if errors.Is(err, manager.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	if err != nil {
		s.logger.Error("get execution for events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get execution")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// Subscribe before sending the initial snapshot so no update published
	// in between is missed. Updates for other executions are filtered out.
	ch, unsub := s.manager.Subscribe()
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)

	if err := writeSSESnapshot(w, snap); err != nil {
		return
	}
	if canFlush {
		flusher.Flush()
	}
	if model.Terminal(snap.State) {
		return
	}

	for {
		select {
		case snap := <-ch:
			if snap.ID != id {
				continue
			}
			if err := writeSSESnapshot(w, snap); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
			if model.Terminal(snap.State) {
				return
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeSSESnapshot writes one status snapshot as an SSE event named by its
// state, with the JSON snapshot as the data payload.
func writeSSESnapshot(w http.ResponseWriter, snap model.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", snap.State); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
