package matches

import (
	"context"

	"go.uber.org/zap"

	"github.com/sawdustofmind/matchcenter/internal/apperr"
	"github.com/sawdustofmind/matchcenter/internal/log"
	"github.com/sawdustofmind/matchcenter/internal/models"
	"github.com/sawdustofmind/matchcenter/internal/store"
)

// Broadcaster announces match changes to the live audience.
type Broadcaster interface {
	BroadcastScore(ctx context.Context, matchID string, home, away, minute int)
	BroadcastEvent(ctx context.Context, matchID string, e models.MatchEvent)
	BroadcastStats(ctx context.Context, matchID string, v models.StatisticsValues)
	BroadcastStatus(ctx context.Context, matchID string, status models.MatchStatus, minute int)
}

// Service mutates matches, their events and statistics, keeping the score
// equal to the goal events on record and announcing every change.
type Service struct {
	store       store.Store
	broadcaster Broadcaster
}

func NewService(s store.Store, b Broadcaster) *Service {
	return &Service{store: s, broadcaster: b}
}

func (s *Service) List(ctx context.Context) ([]models.Match, error) {
	return s.store.ListMatches(ctx, store.MatchFilter{Order: store.KickoffDesc})
}

func (s *Service) Get(ctx context.Context, id string) (*models.Match, error) {
	return s.store.GetMatchDetails(ctx, id)
}

func (s *Service) Create(ctx context.Context, m *models.Match) (*models.Match, error) {
	if m.Status == "" {
		m.Status = models.StatusNotStarted
	}
	if !m.Status.Valid() {
		return nil, apperr.Validationf("unknown match status %q", m.Status)
	}
	if m.HomeScore < 0 || m.AwayScore < 0 || m.Minute < 0 {
		return nil, apperr.Validationf("scores and minute must not be negative")
	}

	if err := s.store.CreateMatch(ctx, m); err != nil {
		return nil, err
	}
	log.Info("Created match",
		log.MatchID(m.ID),
		zap.String("home_team", m.HomeTeam),
		zap.String("away_team", m.AwayTeam),
	)
	return m, nil
}

// Update applies a partial update and announces a status change.
func (s *Service) Update(ctx context.Context, id string, update models.MatchUpdate) (*models.Match, error) {
	if update.Status != nil && !update.Status.Valid() {
		return nil, apperr.Validationf("unknown match status %q", *update.Status)
	}

	old, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateMatch(ctx, id, update); err != nil {
		return nil, err
	}
	updated, err := s.store.GetMatchDetails(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Status != nil && *update.Status != old.Status {
		s.broadcaster.BroadcastStatus(ctx, id, updated.Status, updated.Minute)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteMatch(ctx, id); err != nil {
		return err
	}
	log.Info("Deleted match", log.MatchID(id))
	return nil
}

func validateEvent(e *models.MatchEvent) error {
	if !e.Type.Valid() {
		return apperr.Validationf("unknown event type %q", e.Type)
	}
	if !e.Team.Valid() {
		return apperr.Validationf("unknown team %q", e.Team)
	}
	if e.Minute < 0 {
		return apperr.Validationf("minute must not be negative")
	}
	return nil
}

// CreateEvent records the event. A goal is stored together with its
// team's score increment, and the score is announced before the event.
func (s *Service) CreateEvent(ctx context.Context, matchID string, e *models.MatchEvent) (*models.MatchEvent, error) {
	e.MatchID = matchID
	if err := validateEvent(e); err != nil {
		return nil, err
	}

	var scored *models.Match
	if e.IsGoal() {
		m, err := s.store.CreateGoal(ctx, e)
		if err != nil {
			return nil, err
		}
		scored = m
	} else if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, err
	}
	log.Info("Created match event",
		log.MatchID(matchID),
		zap.String("type", string(e.Type)),
		zap.Int("minute", e.Minute),
	)

	if scored != nil {
		log.Info("Updated match score",
			log.MatchID(matchID),
			zap.String("team", string(e.Team)),
			zap.Int("team_score", scored.ScoreFor(e.Team)),
			zap.Int("home", scored.HomeScore),
			zap.Int("away", scored.AwayScore),
		)
		s.broadcaster.BroadcastScore(ctx, matchID, scored.HomeScore, scored.AwayScore, e.Minute)
	}

	s.broadcaster.BroadcastEvent(ctx, matchID, *e)
	return e, nil
}

// UpdateEvent applies a partial update. When goal membership may have
// changed the score is recounted from the events on record.
func (s *Service) UpdateEvent(ctx context.Context, matchID, eventID string, update models.EventUpdate) (*models.MatchEvent, error) {
	if _, err := s.store.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}
	e, err := s.store.GetEvent(ctx, matchID, eventID)
	if err != nil {
		return nil, err
	}

	wasGoal, oldTeam := e.IsGoal(), e.Team
	update.Apply(e)
	if err := validateEvent(e); err != nil {
		return nil, err
	}
	if err := s.store.SaveEvent(ctx, e); err != nil {
		return nil, err
	}
	log.Info("Updated match event",
		log.MatchID(matchID),
		zap.String("event_id", eventID),
		zap.String("type", string(e.Type)),
		zap.Int("minute", e.Minute),
	)

	isGoal := e.IsGoal()
	if wasGoal != isGoal || (isGoal && oldTeam != e.Team) {
		home, away, err := s.RecomputeScore(ctx, matchID)
		if err != nil {
			return nil, err
		}
		s.broadcaster.BroadcastScore(ctx, matchID, home, away, e.Minute)
	}

	s.broadcaster.BroadcastEvent(ctx, matchID, *e)
	return e, nil
}

// DeleteEvent removes the event; removing a goal recounts the score.
func (s *Service) DeleteEvent(ctx context.Context, matchID, eventID string) error {
	if _, err := s.store.GetMatch(ctx, matchID); err != nil {
		return err
	}
	e, err := s.store.GetEvent(ctx, matchID, eventID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteEvent(ctx, matchID, eventID); err != nil {
		return err
	}
	log.Info("Deleted match event",
		log.MatchID(matchID),
		zap.String("event_id", eventID),
		zap.String("type", string(e.Type)),
	)

	if e.IsGoal() {
		home, away, err := s.RecomputeScore(ctx, matchID)
		if err != nil {
			return err
		}
		s.broadcaster.BroadcastScore(ctx, matchID, home, away, e.Minute)
	}
	return nil
}

// RecomputeScore overwrites the match score with the goal events on record.
func (s *Service) RecomputeScore(ctx context.Context, matchID string) (home, away int, err error) {
	m, err := s.store.RecountScore(ctx, matchID)
	if err != nil {
		return 0, 0, err
	}
	log.Info("Recalculated match score",
		log.MatchID(matchID),
		zap.Int("home", m.HomeScore),
		zap.Int("away", m.AwayScore),
	)
	return m.HomeScore, m.AwayScore, nil
}

// EnsureStatistics creates a default statistics row when the match has none.
func (s *Service) EnsureStatistics(ctx context.Context, matchID string) (*models.MatchStatistics, error) {
	stats, err := s.store.GetStatistics(ctx, matchID)
	if err == nil {
		return stats, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}

	stats = &models.MatchStatistics{
		MatchID:          matchID,
		StatisticsValues: models.DefaultStatisticsValues(),
	}
	if err := s.store.SaveStatistics(ctx, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// UpsertStatistics changes only the provided fields of the existing row, or
// creates the row from defaults overridden by the provided fields.
func (s *Service) UpsertStatistics(ctx context.Context, matchID string, patch models.StatisticsPatch) (*models.MatchStatistics, error) {
	if _, err := s.store.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}

	stats, err := s.store.GetStatistics(ctx, matchID)
	switch {
	case apperr.IsNotFound(err):
		stats = &models.MatchStatistics{
			MatchID:          matchID,
			StatisticsValues: models.DefaultStatisticsValues(),
		}
	case err != nil:
		return nil, err
	}

	return s.saveStatistics(ctx, stats, patch)
}

// UpdateStatistics changes the provided fields of an existing row. It never
// creates one.
func (s *Service) UpdateStatistics(ctx context.Context, matchID string, patch models.StatisticsPatch) (*models.MatchStatistics, error) {
	if _, err := s.store.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}

	stats, err := s.store.GetStatistics(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return s.saveStatistics(ctx, stats, patch)
}

func (s *Service) saveStatistics(ctx context.Context, stats *models.MatchStatistics, patch models.StatisticsPatch) (*models.MatchStatistics, error) {
	patch.Apply(&stats.StatisticsValues)
	if err := s.store.SaveStatistics(ctx, stats); err != nil {
		return nil, err
	}
	log.Info("Saved statistics",
		log.MatchID(stats.MatchID),
		zap.Int("home_possession", stats.HomePossession),
		zap.Int("away_possession", stats.AwayPossession),
	)

	s.broadcaster.BroadcastStats(ctx, stats.MatchID, stats.StatisticsValues)
	return stats, nil
}
