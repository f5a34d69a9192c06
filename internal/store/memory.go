package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/sawdustofmind/matchcenter/internal/apperr"
	"github.com/sawdustofmind/matchcenter/internal/models"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps everything in process. It backs tests and the
// "memory" store backend; rows are copied in and out so callers never
// share state with the store.
type MemoryStore struct {
	mu         sync.RWMutex
	matches    map[string]models.Match
	events     map[string]models.MatchEvent
	statistics map[string]models.MatchStatistics // keyed by match id
	now        func() time.Time
	last       time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches:    make(map[string]models.Match),
		events:     make(map[string]models.MatchEvent),
		statistics: make(map[string]models.MatchStatistics),
		now:        time.Now,
	}
}

func (s *MemoryStore) CreateMatch(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = models.StatusNotStarted
	}
	now := s.stamp()
	m.CreatedAt, m.UpdatedAt = now, now

	row := *m
	row.Events, row.Statistics = nil, nil
	s.matches[m.ID] = row
	return nil
}

func (s *MemoryStore) GetMatch(_ context.Context, id string) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, apperr.NotFoundf("match with ID %s", id)
	}
	return &m, nil
}

func (s *MemoryStore) GetMatchDetails(_ context.Context, id string) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, apperr.NotFoundf("match with ID %s", id)
	}

	m.Events = s.eventsOf(id)
	sort.SliceStable(m.Events, func(i, j int) bool {
		if m.Events[i].Minute != m.Events[j].Minute {
			return m.Events[i].Minute < m.Events[j].Minute
		}
		return m.Events[i].CreatedAt.Before(m.Events[j].CreatedAt)
	})
	if st, ok := s.statistics[id]; ok {
		m.Statistics = &st
	}
	return &m, nil
}

func (s *MemoryStore) ListMatches(_ context.Context, filter MatchFilter) ([]models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := lo.Filter(lo.Values(s.matches), func(m models.Match, _ int) bool {
		return filter.Status == nil || m.Status == *filter.Status
	})
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].KickoffTime == matches[j].KickoffTime {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		if filter.Order == KickoffAsc {
			return matches[i].KickoffTime < matches[j].KickoffTime
		}
		return matches[i].KickoffTime > matches[j].KickoffTime
	})
	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

func (s *MemoryStore) UpdateMatch(_ context.Context, id string, update models.MatchUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok {
		return apperr.NotFoundf("match with ID %s", id)
	}
	update.Apply(&m)
	m.UpdatedAt = s.stamp()
	s.matches[id] = m
	return nil
}

func (s *MemoryStore) DeleteMatch(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matches[id]; !ok {
		return apperr.NotFoundf("match with ID %s", id)
	}
	delete(s.matches, id)
	delete(s.statistics, id)
	for eventID, e := range s.events {
		if e.MatchID == id {
			delete(s.events, eventID)
		}
	}
	return nil
}

func (s *MemoryStore) CreateEvent(_ context.Context, e *models.MatchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matches[e.MatchID]; !ok {
		return apperr.NotFoundf("match with ID %s", e.MatchID)
	}
	s.insertEvent(e)
	return nil
}

func (s *MemoryStore) CreateGoal(_ context.Context, e *models.MatchEvent) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[e.MatchID]
	if !ok {
		return nil, apperr.NotFoundf("match with ID %s", e.MatchID)
	}
	s.insertEvent(e)
	if e.Team == models.TeamHome {
		m.HomeScore++
	} else {
		m.AwayScore++
	}
	m.UpdatedAt = s.stamp()
	s.matches[m.ID] = m
	return &m, nil
}

func (s *MemoryStore) RecountScore(_ context.Context, matchID string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[matchID]
	if !ok {
		return nil, apperr.NotFoundf("match with ID %s", matchID)
	}
	m.HomeScore, m.AwayScore = s.countGoals(matchID)
	m.UpdatedAt = s.stamp()
	s.matches[matchID] = m
	return &m, nil
}

// insertEvent must be called with s.mu held for writing.
func (s *MemoryStore) insertEvent(e *models.MatchEvent) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := s.stamp()
	e.CreatedAt, e.UpdatedAt = now, now
	s.events[e.ID] = *e
}

func (s *MemoryStore) GetEvent(_ context.Context, matchID, eventID string) (*models.MatchEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[eventID]
	if !ok || e.MatchID != matchID {
		return nil, apperr.NotFoundf("match event with ID %s for match %s", eventID, matchID)
	}
	return &e, nil
}

func (s *MemoryStore) SaveEvent(_ context.Context, e *models.MatchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.events[e.ID]
	if !ok || prev.MatchID != e.MatchID {
		return apperr.NotFoundf("match event with ID %s for match %s", e.ID, e.MatchID)
	}
	e.CreatedAt = prev.CreatedAt
	e.UpdatedAt = s.stamp()
	s.events[e.ID] = *e
	return nil
}

func (s *MemoryStore) DeleteEvent(_ context.Context, matchID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok || e.MatchID != matchID {
		return apperr.NotFoundf("match event with ID %s for match %s", eventID, matchID)
	}
	delete(s.events, eventID)
	return nil
}

func (s *MemoryStore) CountGoals(_ context.Context, matchID string) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	home, away := s.countGoals(matchID)
	return home, away, nil
}

// countGoals must be called with s.mu held.
func (s *MemoryStore) countGoals(matchID string) (home, away int) {
	for _, e := range s.eventsOf(matchID) {
		if !e.IsGoal() {
			continue
		}
		if e.Team == models.TeamHome {
			home++
		} else {
			away++
		}
	}
	return home, away
}

func (s *MemoryStore) GetStatistics(_ context.Context, matchID string) (*models.MatchStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.statistics[matchID]
	if !ok {
		return nil, apperr.NotFoundf("match statistics for match %s", matchID)
	}
	return &st, nil
}

func (s *MemoryStore) SaveStatistics(_ context.Context, st *models.MatchStatistics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matches[st.MatchID]; !ok {
		return apperr.NotFoundf("match with ID %s", st.MatchID)
	}
	now := s.stamp()
	if st.ID == "" {
		st.ID = uuid.NewString()
		st.CreatedAt = now
	}
	st.UpdatedAt = now
	s.statistics[st.MatchID] = *st
	return nil
}

// eventsOf must be called with s.mu held.
func (s *MemoryStore) eventsOf(matchID string) []models.MatchEvent {
	return lo.Filter(lo.Values(s.events), func(e models.MatchEvent, _ int) bool {
		return e.MatchID == matchID
	})
}

// stamp returns a strictly increasing timestamp so creation order is total.
// Must be called with s.mu held for writing.
func (s *MemoryStore) stamp() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}
