package api

import (
	"github.com/sawdustofmind/matchcenter/internal/models"
)

type CreateMatchRequest struct {
	HomeTeam    string              `json:"home_team" validate:"required,max=255"`
	AwayTeam    string              `json:"away_team" validate:"required,max=255"`
	HomeScore   *int                `json:"home_score" validate:"omitempty,gte=0"`
	AwayScore   *int                `json:"away_score" validate:"omitempty,gte=0"`
	Minute      *int                `json:"minute" validate:"omitempty,gte=0"`
	Status      *models.MatchStatus `json:"status" validate:"omitempty,oneof=NOT_STARTED FIRST_HALF HALF_TIME SECOND_HALF FULL_TIME"`
	KickoffTime *int64              `json:"kickoff_time" validate:"required,gte=0"`
}

func (r CreateMatchRequest) Match() *models.Match {
	m := &models.Match{
		HomeTeam:    r.HomeTeam,
		AwayTeam:    r.AwayTeam,
		KickoffTime: *r.KickoffTime,
		Status:      models.StatusNotStarted,
	}
	if r.HomeScore != nil {
		m.HomeScore = *r.HomeScore
	}
	if r.AwayScore != nil {
		m.AwayScore = *r.AwayScore
	}
	if r.Minute != nil {
		m.Minute = *r.Minute
	}
	if r.Status != nil {
		m.Status = *r.Status
	}
	return m
}

type UpdateMatchRequest struct {
	HomeTeam    *string             `json:"home_team" validate:"omitempty,min=1,max=255"`
	AwayTeam    *string             `json:"away_team" validate:"omitempty,min=1,max=255"`
	HomeScore   *int                `json:"home_score" validate:"omitempty,gte=0"`
	AwayScore   *int                `json:"away_score" validate:"omitempty,gte=0"`
	Minute      *int                `json:"minute" validate:"omitempty,gte=0"`
	Status      *models.MatchStatus `json:"status" validate:"omitempty,oneof=NOT_STARTED FIRST_HALF HALF_TIME SECOND_HALF FULL_TIME"`
	KickoffTime *int64              `json:"kickoff_time" validate:"omitempty,gte=0"`
}

func (r UpdateMatchRequest) Update() models.MatchUpdate {
	return models.MatchUpdate{
		HomeTeam:    r.HomeTeam,
		AwayTeam:    r.AwayTeam,
		HomeScore:   r.HomeScore,
		AwayScore:   r.AwayScore,
		Minute:      r.Minute,
		Status:      r.Status,
		KickoffTime: r.KickoffTime,
	}
}

type CreateEventRequest struct {
	Type        models.EventType `json:"type" validate:"required,oneof=GOAL YELLOW_CARD RED_CARD SUBSTITUTION FOUL SHOT"`
	Minute      *int             `json:"minute" validate:"required,gte=0"`
	Team        models.Team      `json:"team" validate:"required,oneof=HOME AWAY"`
	Player      *string          `json:"player" validate:"omitempty,max=255"`
	Description *string          `json:"description"`
}

func (r CreateEventRequest) Event() *models.MatchEvent {
	return &models.MatchEvent{
		Type:        r.Type,
		Minute:      *r.Minute,
		Team:        r.Team,
		Player:      r.Player,
		Description: r.Description,
	}
}

type UpdateEventRequest struct {
	Type        *models.EventType `json:"type" validate:"omitempty,oneof=GOAL YELLOW_CARD RED_CARD SUBSTITUTION FOUL SHOT"`
	Minute      *int              `json:"minute" validate:"omitempty,gte=0"`
	Team        *models.Team      `json:"team" validate:"omitempty,oneof=HOME AWAY"`
	Player      *string           `json:"player" validate:"omitempty,max=255"`
	Description *string           `json:"description"`
}

func (r UpdateEventRequest) Update() models.EventUpdate {
	return models.EventUpdate{
		Type:        r.Type,
		Minute:      r.Minute,
		Team:        r.Team,
		Player:      r.Player,
		Description: r.Description,
	}
}

// StatisticsRequest is shared by create-or-update and strict update.
// Possession sums are not cross-checked.
type StatisticsRequest struct {
	HomePossession      *int `json:"home_possession" validate:"omitempty,gte=0,lte=100"`
	AwayPossession      *int `json:"away_possession" validate:"omitempty,gte=0,lte=100"`
	HomeShots           *int `json:"home_shots" validate:"omitempty,gte=0"`
	AwayShots           *int `json:"away_shots" validate:"omitempty,gte=0"`
	HomeShotsOnTarget   *int `json:"home_shots_on_target" validate:"omitempty,gte=0"`
	AwayShotsOnTarget   *int `json:"away_shots_on_target" validate:"omitempty,gte=0"`
	HomePasses          *int `json:"home_passes" validate:"omitempty,gte=0"`
	AwayPasses          *int `json:"away_passes" validate:"omitempty,gte=0"`
	HomePassesCompleted *int `json:"home_passes_completed" validate:"omitempty,gte=0"`
	AwayPassesCompleted *int `json:"away_passes_completed" validate:"omitempty,gte=0"`
	HomeFouls           *int `json:"home_fouls" validate:"omitempty,gte=0"`
	AwayFouls           *int `json:"away_fouls" validate:"omitempty,gte=0"`
	HomeCorners         *int `json:"home_corners" validate:"omitempty,gte=0"`
	AwayCorners         *int `json:"away_corners" validate:"omitempty,gte=0"`
	HomeOffsides        *int `json:"home_offsides" validate:"omitempty,gte=0"`
	AwayOffsides        *int `json:"away_offsides" validate:"omitempty,gte=0"`
}

func (r StatisticsRequest) Patch() models.StatisticsPatch {
	return models.StatisticsPatch(r)
}

type SimulationResponse struct {
	MatchID string `json:"matchId"`
	Message string `json:"message"`
}

type StartMultipleResponse struct {
	MatchIDs []string `json:"matchIds"`
	Message  string   `json:"message"`
}

type ActiveSimulationsResponse struct {
	MatchIDs []string `json:"matchIds"`
	Count    int      `json:"count"`
}

type PresenceResponse struct {
	MatchID     string `json:"matchId"`
	Subscribers int64  `json:"subscribers"`
}
