package store

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sawdustofmind/matchcenter/internal/apperr"
	"github.com/sawdustofmind/matchcenter/internal/models"
)

// openSQLite migrates a GormStore onto a throwaway SQLite file.
func openSQLite(t *testing.T) *GormStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "matchcenter.db") + "?_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection serialises writers the way the row lock does on postgres.
	sqlDB.SetMaxOpenConns(1)

	s := NewGormStore(db)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestGormStore_UpdateMatch_EmptyUpdateChecksExistence(t *testing.T) {
	req := require.New(t)
	s := openSQLite(t)
	m := newMatch(t, s, 100)

	req.NoError(s.UpdateMatch(t.Context(), m.ID, models.MatchUpdate{}))
	req.True(apperr.IsNotFound(s.UpdateMatch(t.Context(), "00000000-0000-0000-0000-000000000000", models.MatchUpdate{})))
}
