package api

import (
	"fmt"
	"net/http"

	"github.com/sawdustofmind/matchcenter/internal/apperr"
)

// maxStartMultiple bounds one start-multiple request.
const maxStartMultiple = 5

func (s *Server) activeSimulations(w http.ResponseWriter, _ *http.Request) {
	ids := s.sim.Active()
	writeData(w, http.StatusOK, ActiveSimulationsResponse{MatchIDs: ids, Count: len(ids)})
}

func (s *Server) startSimulation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.sim.Start(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	msg := "Match simulation started"
	if res.AlreadyRunning {
		msg = "Match is already being simulated"
	}
	writeData(w, http.StatusCreated, SimulationResponse{MatchID: id, Message: msg})
}

func (s *Server) stopSimulation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.sim.IsActive(id) {
		writeError(w, apperr.NotFoundf("Match %s is not being simulated", id))
		return
	}
	if err := s.sim.Stop(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, SimulationResponse{MatchID: id, Message: "Match simulation stopped"})
}

func (s *Server) startMultiple(w http.ResponseWriter, r *http.Request) {
	started, err := s.sim.StartMultiple(r.Context(), maxStartMultiple)
	if err != nil {
		writeError(w, err)
		return
	}
	total := len(s.sim.Active())

	var msg string
	if len(started) == 0 {
		msg = fmt.Sprintf("No matches available to start. Currently simulating %d match(es).", total)
	} else {
		msg = fmt.Sprintf("Started simulating %d match(es). Total active matches: %d", len(started), total)
	}
	if started == nil {
		started = []string{}
	}
	writeData(w, http.StatusCreated, StartMultipleResponse{MatchIDs: started, Message: msg})
}
