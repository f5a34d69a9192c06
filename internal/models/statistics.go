package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultPossession = 50

// StatisticsValues holds the per-team counters of a match.
type StatisticsValues struct {
	HomePossession      int `gorm:"not null" json:"home_possession"`
	AwayPossession      int `gorm:"not null" json:"away_possession"`
	HomeShots           int `gorm:"not null" json:"home_shots"`
	AwayShots           int `gorm:"not null" json:"away_shots"`
	HomeShotsOnTarget   int `gorm:"not null" json:"home_shots_on_target"`
	AwayShotsOnTarget   int `gorm:"not null" json:"away_shots_on_target"`
	HomePasses          int `gorm:"not null" json:"home_passes"`
	AwayPasses          int `gorm:"not null" json:"away_passes"`
	HomePassesCompleted int `gorm:"not null" json:"home_passes_completed"`
	AwayPassesCompleted int `gorm:"not null" json:"away_passes_completed"`
	HomeFouls           int `gorm:"not null" json:"home_fouls"`
	AwayFouls           int `gorm:"not null" json:"away_fouls"`
	HomeCorners         int `gorm:"not null" json:"home_corners"`
	AwayCorners         int `gorm:"not null" json:"away_corners"`
	HomeOffsides        int `gorm:"not null" json:"home_offsides"`
	AwayOffsides        int `gorm:"not null" json:"away_offsides"`
}

// DefaultStatisticsValues is an even possession split with every counter at zero.
func DefaultStatisticsValues() StatisticsValues {
	return StatisticsValues{
		HomePossession: DefaultPossession,
		AwayPossession: DefaultPossession,
	}
}

// MatchStatistics is the single statistics row of a match.
type MatchStatistics struct {
	ID               string `gorm:"primaryKey;type:uuid" json:"id"`
	MatchID          string `gorm:"type:uuid;not null;uniqueIndex" json:"match_id"`
	StatisticsValues `gorm:"embedded"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (s *MatchStatistics) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// StatisticsPatch carries optionally provided counters; nil means untouched.
type StatisticsPatch struct {
	HomePossession      *int
	AwayPossession      *int
	HomeShots           *int
	AwayShots           *int
	HomeShotsOnTarget   *int
	AwayShotsOnTarget   *int
	HomePasses          *int
	AwayPasses          *int
	HomePassesCompleted *int
	AwayPassesCompleted *int
	HomeFouls           *int
	AwayFouls           *int
	HomeCorners         *int
	AwayCorners         *int
	HomeOffsides        *int
	AwayOffsides        *int
}

// PatchFrom builds a patch that sets every counter of v.
func PatchFrom(v StatisticsValues) StatisticsPatch {
	return StatisticsPatch{
		HomePossession:      &v.HomePossession,
		AwayPossession:      &v.AwayPossession,
		HomeShots:           &v.HomeShots,
		AwayShots:           &v.AwayShots,
		HomeShotsOnTarget:   &v.HomeShotsOnTarget,
		AwayShotsOnTarget:   &v.AwayShotsOnTarget,
		HomePasses:          &v.HomePasses,
		AwayPasses:          &v.AwayPasses,
		HomePassesCompleted: &v.HomePassesCompleted,
		AwayPassesCompleted: &v.AwayPassesCompleted,
		HomeFouls:           &v.HomeFouls,
		AwayFouls:           &v.AwayFouls,
		HomeCorners:         &v.HomeCorners,
		AwayCorners:         &v.AwayCorners,
		HomeOffsides:        &v.HomeOffsides,
		AwayOffsides:        &v.AwayOffsides,
	}
}

// Apply overwrites the provided counters of v.
func (p StatisticsPatch) Apply(v *StatisticsValues) {
	set := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	set(&v.HomePossession, p.HomePossession)
	set(&v.AwayPossession, p.AwayPossession)
	set(&v.HomeShots, p.HomeShots)
	set(&v.AwayShots, p.AwayShots)
	set(&v.HomeShotsOnTarget, p.HomeShotsOnTarget)
	set(&v.AwayShotsOnTarget, p.AwayShotsOnTarget)
	set(&v.HomePasses, p.HomePasses)
	set(&v.AwayPasses, p.AwayPasses)
	set(&v.HomePassesCompleted, p.HomePassesCompleted)
	set(&v.AwayPassesCompleted, p.AwayPassesCompleted)
	set(&v.HomeFouls, p.HomeFouls)
	set(&v.AwayFouls, p.AwayFouls)
	set(&v.HomeCorners, p.HomeCorners)
	set(&v.AwayCorners, p.AwayCorners)
	set(&v.HomeOffsides, p.HomeOffsides)
	set(&v.AwayOffsides, p.AwayOffsides)
}
