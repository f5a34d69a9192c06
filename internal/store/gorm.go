package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sawdustofmind/matchcenter/internal/apperr"
	"github.com/sawdustofmind/matchcenter/internal/models"
)

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects to the database and migrates the schema.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := NewGormStore(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(
		&models.Match{},
		&models.MatchEvent{},
		&models.MatchStatistics{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFoundf(format, args...)
	}
	return err
}

func (s *GormStore) CreateMatch(ctx context.Context, m *models.Match) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (s *GormStore) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	var m models.Match
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "match with ID %s", id)
	}
	return &m, nil
}

func (s *GormStore) GetMatchDetails(ctx context.Context, id string) (*models.Match, error) {
	var m models.Match
	err := s.db.WithContext(ctx).
		Preload("Events", func(db *gorm.DB) *gorm.DB {
			return db.Order("minute ASC").Order("created_at ASC")
		}).
		Preload("Statistics").
		First(&m, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "match with ID %s", id)
	}
	return &m, nil
}

func (s *GormStore) ListMatches(ctx context.Context, filter MatchFilter) ([]models.Match, error) {
	q := s.db.WithContext(ctx).Model(&models.Match{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Order == KickoffAsc {
		q = q.Order("kickoff_time ASC")
	} else {
		q = q.Order("kickoff_time DESC")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var matches []models.Match
	if err := q.Find(&matches).Error; err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return matches, nil
}

func (s *GormStore) UpdateMatch(ctx context.Context, id string, update models.MatchUpdate) error {
	cols := update.Columns()
	if len(cols) == 0 {
		_, err := s.GetMatch(ctx, id)
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.Match{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("failed to update match %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFoundf("match with ID %s", id)
	}
	return nil
}

// DeleteMatch removes the events and statistics with the match, without
// relying on the schema's cascade.
func (s *GormStore) DeleteMatch(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.MatchEvent{}, "match_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete events of match %s: %w", id, err)
		}
		if err := tx.Delete(&models.MatchStatistics{}, "match_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete statistics of match %s: %w", id, err)
		}
		res := tx.Delete(&models.Match{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete match %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFoundf("match with ID %s", id)
		}
		return nil
	})
}

func scoreColumn(team models.Team) string {
	if team == models.TeamHome {
		return "home_score"
	}
	return "away_score"
}

// lockMatch writes one column of the match row, holding the row lock until
// tx ends. Score writers take it before they touch goal events.
func lockMatch(tx *gorm.DB, matchID, column string, value any) error {
	res := tx.Model(&models.Match{}).Where("id = ?", matchID).UpdateColumn(column, value)
	if res.Error != nil {
		return fmt.Errorf("failed to update match %s: %w", matchID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFoundf("match with ID %s", matchID)
	}
	return nil
}

func (s *GormStore) CreateGoal(ctx context.Context, e *models.MatchEvent) (*models.Match, error) {
	column := scoreColumn(e.Team)

	var m models.Match
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockMatch(tx, e.MatchID, column, gorm.Expr(column+" + ?", 1)); err != nil {
			return err
		}
		if err := tx.Create(e).Error; err != nil {
			return fmt.Errorf("failed to create goal for match %s: %w", e.MatchID, err)
		}
		return tx.First(&m, "id = ?", e.MatchID).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *GormStore) RecountScore(ctx context.Context, matchID string) (*models.Match, error) {
	var m models.Match
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockMatch(tx, matchID, "updated_at", time.Now()); err != nil {
			return err
		}
		home, away, err := countGoals(tx, matchID)
		if err != nil {
			return err
		}
		err = tx.Model(&models.Match{}).
			Where("id = ?", matchID).
			UpdateColumns(map[string]any{"home_score": home, "away_score": away}).Error
		if err != nil {
			return fmt.Errorf("failed to set score of match %s: %w", matchID, err)
		}
		return tx.First(&m, "id = ?", matchID).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *GormStore) CreateEvent(ctx context.Context, e *models.MatchEvent) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to create event for match %s: %w", e.MatchID, err)
	}
	return nil
}

func (s *GormStore) GetEvent(ctx context.Context, matchID, eventID string) (*models.MatchEvent, error) {
	var e models.MatchEvent
	err := s.db.WithContext(ctx).First(&e, "id = ? AND match_id = ?", eventID, matchID).Error
	if err != nil {
		return nil, notFound(err, "match event with ID %s for match %s", eventID, matchID)
	}
	return &e, nil
}

func (s *GormStore) SaveEvent(ctx context.Context, e *models.MatchEvent) error {
	if err := s.db.WithContext(ctx).Save(e).Error; err != nil {
		return fmt.Errorf("failed to save event %s: %w", e.ID, err)
	}
	return nil
}

func (s *GormStore) DeleteEvent(ctx context.Context, matchID, eventID string) error {
	res := s.db.WithContext(ctx).Delete(&models.MatchEvent{}, "id = ? AND match_id = ?", eventID, matchID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFoundf("match event with ID %s for match %s", eventID, matchID)
	}
	return nil
}

func (s *GormStore) CountGoals(ctx context.Context, matchID string) (int, int, error) {
	return countGoals(s.db.WithContext(ctx), matchID)
}

func countGoals(db *gorm.DB, matchID string) (int, int, error) {
	var rows []struct {
		Team  models.Team
		Total int
	}
	err := db.Model(&models.MatchEvent{}).
		Select("team, COUNT(*) AS total").
		Where("match_id = ? AND type = ?", matchID, models.EventGoal).
		Group("team").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count goals of match %s: %w", matchID, err)
	}

	var home, away int
	for _, r := range rows {
		if r.Team == models.TeamHome {
			home = r.Total
		} else {
			away += r.Total
		}
	}
	return home, away, nil
}

func (s *GormStore) GetStatistics(ctx context.Context, matchID string) (*models.MatchStatistics, error) {
	var st models.MatchStatistics
	if err := s.db.WithContext(ctx).First(&st, "match_id = ?", matchID).Error; err != nil {
		return nil, notFound(err, "match statistics for match %s", matchID)
	}
	return &st, nil
}

func (s *GormStore) SaveStatistics(ctx context.Context, st *models.MatchStatistics) error {
	db := s.db.WithContext(ctx)
	var err error
	if st.ID == "" {
		err = db.Create(st).Error
	} else {
		err = db.Save(st).Error
	}
	if err != nil {
		return fmt.Errorf("failed to save statistics of match %s: %w", st.MatchID, err)
	}
	return nil
}
