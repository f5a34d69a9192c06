package models

// Payloads delivered to subscribers. Field names follow the wire format
// clients already consume.

type ScoreUpdate struct {
	MatchID   string `json:"matchId"`
	HomeScore int    `json:"homeScore"`
	AwayScore int    `json:"awayScore"`
	Minute    int    `json:"minute"`
}

type EventPayload struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Minute      int       `json:"minute"`
	Team        Team      `json:"team"`
	Player      *string   `json:"player,omitempty"`
	Description *string   `json:"description,omitempty"`
}

type EventBroadcast struct {
	MatchID string       `json:"matchId"`
	Event   EventPayload `json:"event"`
}

type StatsPayload struct {
	HomePossession      int `json:"homePossession"`
	AwayPossession      int `json:"awayPossession"`
	HomeShots           int `json:"homeShots"`
	AwayShots           int `json:"awayShots"`
	HomeShotsOnTarget   int `json:"homeShotsOnTarget"`
	AwayShotsOnTarget   int `json:"awayShotsOnTarget"`
	HomePasses          int `json:"homePasses"`
	AwayPasses          int `json:"awayPasses"`
	HomePassesCompleted int `json:"homePassesCompleted"`
	AwayPassesCompleted int `json:"awayPassesCompleted"`
	HomeFouls           int `json:"homeFouls"`
	AwayFouls           int `json:"awayFouls"`
	HomeCorners         int `json:"homeCorners"`
	AwayCorners         int `json:"awayCorners"`
	HomeOffsides        int `json:"homeOffsides"`
	AwayOffsides        int `json:"awayOffsides"`
}

type StatsUpdate struct {
	MatchID    string       `json:"matchId"`
	Statistics StatsPayload `json:"statistics"`
}

type StatusUpdate struct {
	MatchID string      `json:"matchId"`
	Status  MatchStatus `json:"status"`
	Minute  int         `json:"minute"`
}

func NewEventPayload(e MatchEvent) EventPayload {
	return EventPayload{
		ID:          e.ID,
		Type:        e.Type,
		Minute:      e.Minute,
		Team:        e.Team,
		Player:      e.Player,
		Description: e.Description,
	}
}

func NewStatsPayload(v StatisticsValues) StatsPayload {
	return StatsPayload{
		HomePossession:      v.HomePossession,
		AwayPossession:      v.AwayPossession,
		HomeShots:           v.HomeShots,
		AwayShots:           v.AwayShots,
		HomeShotsOnTarget:   v.HomeShotsOnTarget,
		AwayShotsOnTarget:   v.AwayShotsOnTarget,
		HomePasses:          v.HomePasses,
		AwayPasses:          v.AwayPasses,
		HomePassesCompleted: v.HomePassesCompleted,
		AwayPassesCompleted: v.AwayPassesCompleted,
		HomeFouls:           v.HomeFouls,
		AwayFouls:           v.AwayFouls,
		HomeCorners:         v.HomeCorners,
		AwayCorners:         v.AwayCorners,
		HomeOffsides:        v.HomeOffsides,
		AwayOffsides:        v.AwayOffsides,
	}
}
