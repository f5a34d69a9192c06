package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventType string

const (
	EventGoal         EventType = "GOAL"
	EventYellowCard   EventType = "YELLOW_CARD"
	EventRedCard      EventType = "RED_CARD"
	EventSubstitution EventType = "SUBSTITUTION"
	EventFoul         EventType = "FOUL"
	EventShot         EventType = "SHOT"
)

func (t EventType) Valid() bool {
	switch t {
	case EventGoal, EventYellowCard, EventRedCard, EventSubstitution, EventFoul, EventShot:
		return true
	}
	return false
}

type Team string

const (
	TeamHome Team = "HOME"
	TeamAway Team = "AWAY"
)

func (t Team) Valid() bool {
	return t == TeamHome || t == TeamAway
}

// MatchEvent is a single entry of a match's event log.
type MatchEvent struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	MatchID     string    `gorm:"type:uuid;not null;index" json:"match_id"`
	Type        EventType `gorm:"type:varchar(50);not null" json:"type"`
	Minute      int       `gorm:"not null" json:"minute"`
	Team        Team      `gorm:"type:varchar(10);not null" json:"team"`
	Player      *string   `gorm:"type:varchar(255)" json:"player,omitempty"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (e *MatchEvent) BeforeCreate(_ *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// IsGoal reports whether the event counts towards the score.
func (e *MatchEvent) IsGoal() bool {
	return e.Type == EventGoal
}

// EventUpdate carries the fields of a partial event update; nil means untouched.
type EventUpdate struct {
	Type        *EventType
	Minute      *int
	Team        *Team
	Player      *string
	Description *string
}

func (u EventUpdate) Apply(e *MatchEvent) {
	if u.Type != nil {
		e.Type = *u.Type
	}
	if u.Minute != nil {
		e.Minute = *u.Minute
	}
	if u.Team != nil {
		e.Team = *u.Team
	}
	if u.Player != nil {
		e.Player = u.Player
	}
	if u.Description != nil {
		e.Description = u.Description
	}
}

// GeneratedEvent is what the simulation produces before it is persisted.
type GeneratedEvent struct {
	Type        EventType
	Minute      int
	Team        Team
	Player      *string
	Description string
}

// ToMatchEvent converts the generated event into a row of the given match.
func (g GeneratedEvent) ToMatchEvent(matchID string) MatchEvent {
	description := g.Description
	return MatchEvent{
		MatchID:     matchID,
		Type:        g.Type,
		Minute:      g.Minute,
		Team:        g.Team,
		Player:      g.Player,
		Description: &description,
	}
}
