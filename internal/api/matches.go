package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sawdustofmind/matchcenter/internal/apperr"
)

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	list, err := s.matches.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	m, err := s.matches.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, m)
}

func (s *Server) createMatch(w http.ResponseWriter, r *http.Request) {
	var body CreateMatchRequest
	if err := s.decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	m, err := s.matches.Create(r.Context(), body.Match())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, m)
}

func (s *Server) updateMatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body UpdateMatchRequest
	if err := s.decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	m, err := s.matches.Update(r.Context(), id, body.Update())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, m)
}

func (s *Server) deleteMatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if s.sim.IsActive(id) {
		if err := s.sim.Stop(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := s.matches.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body CreateEventRequest
	if err := s.decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	e, err := s.matches.CreateEvent(r.Context(), id, body.Event())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, e)
}

func eventIDs(r *http.Request) (matchID, eventID string, err error) {
	if matchID, err = pathID(r, "id"); err != nil {
		return "", "", err
	}
	eventID = mux.Vars(r)["eventId"]
	if _, err := uuid.Parse(eventID); err != nil {
		return "", "", apperr.Validationf("eventId must be a UUID, got %q", eventID)
	}
	return matchID, eventID, nil
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	matchID, eventID, err := eventIDs(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body UpdateEventRequest
	if err := s.decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	e, err := s.matches.UpdateEvent(r.Context(), matchID, eventID, body.Update())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, e)
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	matchID, eventID, err := eventIDs(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.matches.DeleteEvent(r.Context(), matchID, eventID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) upsertStatistics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body StatisticsRequest
	if err := s.decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.matches.UpsertStatistics(r.Context(), id, body.Patch())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, stats)
}

func (s *Server) updateStatistics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body StatisticsRequest
	if err := s.decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.matches.UpdateStatistics(r.Context(), id, body.Patch())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (s *Server) presenceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.matches.Get(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	n, err := s.presence.Count(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, PresenceResponse{MatchID: id, Subscribers: n})
}
