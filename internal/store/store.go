package store

import (
	"context"

	"github.com/sawdustofmind/matchcenter/internal/models"
)

type SortOrder int

const (
	KickoffDesc SortOrder = iota
	KickoffAsc
)

// MatchFilter narrows ListMatches; zero values mean no restriction.
type MatchFilter struct {
	Status *models.MatchStatus
	Order  SortOrder
	Limit  int
}

// Store is the system of record for matches, their events and statistics.
// Missing rows are reported as apperr.ErrNotFound.
type Store interface {
	CreateMatch(ctx context.Context, m *models.Match) error
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	// GetMatchDetails loads the match with its events (minute, then creation
	// order) and its statistics.
	GetMatchDetails(ctx context.Context, id string) (*models.Match, error)
	ListMatches(ctx context.Context, filter MatchFilter) ([]models.Match, error)
	UpdateMatch(ctx context.Context, id string, update models.MatchUpdate) error
	// DeleteMatch removes the match together with its events and statistics.
	DeleteMatch(ctx context.Context, id string) error

	CreateEvent(ctx context.Context, e *models.MatchEvent) error
	// CreateGoal records a GOAL event and adds it to its team's score as one
	// write, returning the updated match.
	CreateGoal(ctx context.Context, e *models.MatchEvent) (*models.Match, error)
	// RecountScore overwrites the score with the GOAL events on record as one
	// write, returning the updated match. Score writers of a match never
	// interleave.
	RecountScore(ctx context.Context, matchID string) (*models.Match, error)
	GetEvent(ctx context.Context, matchID, eventID string) (*models.MatchEvent, error)
	SaveEvent(ctx context.Context, e *models.MatchEvent) error
	DeleteEvent(ctx context.Context, matchID, eventID string) error
	// CountGoals counts the GOAL events of a match per team.
	CountGoals(ctx context.Context, matchID string) (home, away int, err error)

	GetStatistics(ctx context.Context, matchID string) (*models.MatchStatistics, error)
	// SaveStatistics inserts the row when it has no ID yet, otherwise updates it.
	SaveStatistics(ctx context.Context, s *models.MatchStatistics) error
}
