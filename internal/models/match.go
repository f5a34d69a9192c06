package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MatchStatus string

const (
	StatusNotStarted MatchStatus = "NOT_STARTED"
	StatusFirstHalf  MatchStatus = "FIRST_HALF"
	StatusHalfTime   MatchStatus = "HALF_TIME"
	StatusSecondHalf MatchStatus = "SECOND_HALF"
	StatusFullTime   MatchStatus = "FULL_TIME"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusFirstHalf, StatusHalfTime, StatusSecondHalf, StatusFullTime:
		return true
	}
	return false
}

// InPlay reports whether the ball is rolling, i.e. events may happen.
func (s MatchStatus) InPlay() bool {
	return s == StatusFirstHalf || s == StatusSecondHalf
}

// Match is one fixture with its live score and clock.
type Match struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	HomeTeam    string      `gorm:"type:varchar(255);not null" json:"home_team"`
	AwayTeam    string      `gorm:"type:varchar(255);not null" json:"away_team"`
	HomeScore   int         `gorm:"not null" json:"home_score"`
	AwayScore   int         `gorm:"not null" json:"away_score"`
	Minute      int         `gorm:"not null" json:"minute"`
	Status      MatchStatus `gorm:"type:varchar(50);not null;index" json:"status"`
	KickoffTime int64       `gorm:"not null;index" json:"kickoff_time"`

	Events     []MatchEvent     `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE" json:"events,omitempty"`
	Statistics *MatchStatistics `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE" json:"statistics,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Match) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// ScoreFor returns the score of the given side.
func (m *Match) ScoreFor(team Team) int {
	if team == TeamHome {
		return m.HomeScore
	}
	return m.AwayScore
}

// MatchUpdate carries the fields of a partial match update; nil means untouched.
type MatchUpdate struct {
	HomeTeam    *string
	AwayTeam    *string
	HomeScore   *int
	AwayScore   *int
	Minute      *int
	Status      *MatchStatus
	KickoffTime *int64
}

// Columns maps the provided fields to their column names.
func (u MatchUpdate) Columns() map[string]any {
	cols := make(map[string]any)
	if u.HomeTeam != nil {
		cols["home_team"] = *u.HomeTeam
	}
	if u.AwayTeam != nil {
		cols["away_team"] = *u.AwayTeam
	}
	if u.HomeScore != nil {
		cols["home_score"] = *u.HomeScore
	}
	if u.AwayScore != nil {
		cols["away_score"] = *u.AwayScore
	}
	if u.Minute != nil {
		cols["minute"] = *u.Minute
	}
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.KickoffTime != nil {
		cols["kickoff_time"] = *u.KickoffTime
	}
	return cols
}

// Apply copies the provided fields onto m.
func (u MatchUpdate) Apply(m *Match) {
	if u.HomeTeam != nil {
		m.HomeTeam = *u.HomeTeam
	}
	if u.AwayTeam != nil {
		m.AwayTeam = *u.AwayTeam
	}
	if u.HomeScore != nil {
		m.HomeScore = *u.HomeScore
	}
	if u.AwayScore != nil {
		m.AwayScore = *u.AwayScore
	}
	if u.Minute != nil {
		m.Minute = *u.Minute
	}
	if u.Status != nil {
		m.Status = *u.Status
	}
	if u.KickoffTime != nil {
		m.KickoffTime = *u.KickoffTime
	}
}
