package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sawdustofmind/matchcenter/internal/hub"
	"github.com/sawdustofmind/matchcenter/internal/log"
)

// streamEvents attaches the caller to the match stream and writes each
// record as a server-sent event until the client goes away. Records
// published before the attach are never replayed.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.matches.Get(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported by response writer"))
		return
	}

	if last := r.Header.Get("Last-Event-ID"); last != "" {
		log.Info("Stream client reconnected", log.MatchID(id), zap.String("last_event_id", last))
	}

	sub := s.streams.Attach(id)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ":\n\n"); err != nil {
		return
	}
	flusher.Flush()
	log.Info("Stream client connected", log.MatchID(id))

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Info("Stream client disconnected", log.MatchID(id))
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case rec, ok := <-sub.C():
			if !ok {
				return
			}
			if err := writeRecord(w, rec); err != nil {
				log.Warn("Failed to write stream record", log.MatchID(id), zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeRecord(w http.ResponseWriter, rec hub.Record) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", rec.ID, rec.Kind, data)
	return err
}
