package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/jobs"
)

// keepaliveTicks is how many unchanged ticks pass before a comment line is
// sent to hold the connection open.
const keepaliveTicks = 15

type jobSnapshot struct {
	Stats jobs.Stats   `json:"stats"`
	Tasks []*jobs.Task `json:"tasks"`
}

// handleJobStream sends a "jobs" event with the pool stats and tasks
// whenever they change, polling every streamInterval. It returns when the
// client leaves or the server shuts down.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	interval := s.streamInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		last  []byte
		seq   int
		quiet int
	)
	for {
		payload, err := json.Marshal(jobSnapshot{Stats: s.svc.Stats(), Tasks: s.svc.Jobs()})
		if err != nil {
			return
		}
		if !bytes.Equal(payload, last) {
			seq++
			if err := writeEvent(w, seq, "jobs", payload); err != nil {
				return
			}
			last, quiet = payload, 0
		} else if quiet++; quiet >= keepaliveTicks {
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			quiet = 0
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
		}
	}
}

func writeEvent(w io.Writer, id int, event string, data []byte) error {
	_, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, data)
	return err
}
