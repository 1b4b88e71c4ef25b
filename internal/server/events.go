package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/matzehuels/lanegrid/pkg/grid"
	lgio "github.com/matzehuels/lanegrid/pkg/io"
)

// handleEvents streams every placed item as a "place" event. The item is
// read under the engine lock when it is delivered, so the event carries its
// position at delivery time.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		s.logger.Error("events: streaming not supported")
		return
	}

	sub := s.engine.Subscribe(eventBuffer)
	defer func() {
		sub.Close()
		if n := sub.Dropped(); n > 0 {
			s.logger.Warn("events: client missed events", "dropped", n)
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprint(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Debug("events: client connected")

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("events: client disconnected")
			return
		case it, ok := <-sub.C:
			if !ok {
				return
			}
			var placed lgio.PlacedItem
			_ = s.withEngine(func(e *grid.Engine) error {
				placed = lgio.NewPlacedItem(it, e.IndexOf(it))
				return nil
			})
			data, err := json.Marshal(placed)
			if err != nil {
				s.logger.Error("events: encode failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: place\nid: %s\ndata: %s\n\n", placed.ID, data)
			flusher.Flush()
		}
	}
}
