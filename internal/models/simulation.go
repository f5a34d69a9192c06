package models

import "time"

// MaxSubstitutions is the number of substitutions a team may make per match.
const MaxSubstitutions = 5

// SimulationState is the transient bookkeeping of a match under simulation.
// It is never persisted.
type SimulationState struct {
	MatchID         string
	StartTime       time.Time
	CurrentMinute   int
	Status          MatchStatus
	LastEventMinute int
	LastStatsMinute int
	HomeSubs        int
	AwaySubs        int
}

func NewSimulationState(matchID string, start time.Time) *SimulationState {
	return &SimulationState{
		MatchID:   matchID,
		StartTime: start,
		Status:    StatusNotStarted,
	}
}

func (s *SimulationState) Substitutions(team Team) int {
	if team == TeamHome {
		return s.HomeSubs
	}
	return s.AwaySubs
}

// CanSubstitute reports whether the team still has substitutions left.
func (s *SimulationState) CanSubstitute(team Team) bool {
	return s.Substitutions(team) < MaxSubstitutions
}

func (s *SimulationState) AddSubstitution(team Team) {
	if team == TeamHome {
		s.HomeSubs++
		return
	}
	s.AwaySubs++
}
